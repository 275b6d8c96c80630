package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"stillframe/internal/config"
	"stillframe/internal/fileutil"
	"stillframe/internal/logging"
	"stillframe/internal/render"
	"stillframe/internal/workdir"
)

func newRenderCommand(ctx *commandContext) *cobra.Command {
	var imagePath, audioPath, outPath string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a video locally from an image and an MP3",
		Long: "Render runs the same ffmpeg pipeline the bot uses, without Telegram.\n" +
			"The output lands in paths.work_dir unless --out is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			job, err := renderJob(imagePath, audioPath)
			if err != nil {
				return err
			}

			logger, err := logging.New(logging.Options{
				Level:            cfg.Logging.Level,
				Format:           cfg.Logging.Format,
				OutputPaths:      []string{"stderr"},
				ErrorOutputPaths: []string{"stderr"},
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			work, err := workdir.New(cfg.Paths.WorkDir)
			if err != nil {
				return err
			}

			result := render.NewFromConfig(cfg, work, logger).Render(cmd.Context(), job)
			if !result.OK() {
				if result.Failure == nil {
					return errors.New("render produced no output")
				}
				if result.Failure.Diagnostic != "" {
					fmt.Fprintln(cmd.ErrOrStderr(), result.Failure.Diagnostic)
				}
				return fmt.Errorf("render failed: %w", result.Failure)
			}

			final := result.OutputPath
			if target := strings.TrimSpace(outPath); target != "" {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return err
				}
				if err := fileutil.MoveFile(result.OutputPath, expanded); err != nil {
					return fmt.Errorf("move output: %w", err)
				}
				final = expanded
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s\n", final)
			fmt.Fprintf(out, "Size: %.1f MB, audio %s, encoded in %s\n",
				float64(result.SizeBytes)/(1024*1024),
				result.AudioDuration.Round(time.Second),
				result.Elapsed.Round(time.Millisecond),
			)
			if limit := cfg.MaxOutputBytes(); limit > 0 && result.SizeBytes > limit {
				fmt.Fprintf(out, "Warning: output exceeds render.max_output_mb (%d MB)\n", cfg.Render.MaxOutputMB)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "Cover image (JPEG or PNG)")
	cmd.Flags().StringVar(&audioPath, "audio", "", "MP3 audio track")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Destination for the rendered MP4")
	_ = cmd.MarkFlagRequired("image")
	_ = cmd.MarkFlagRequired("audio")
	return cmd
}

func renderJob(imagePath, audioPath string) (render.Job, error) {
	image, err := existingFile("image", imagePath)
	if err != nil {
		return render.Job{}, err
	}
	audio, err := existingFile("audio", audioPath)
	if err != nil {
		return render.Job{}, err
	}
	return render.Job{ImagePath: image, AudioPath: audio}, nil
}

func existingFile(label, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("--%s is required", label)
	}
	expanded, err := config.ExpandPath(strings.TrimSpace(path))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s file %s does not exist", label, expanded)
		}
		return "", fmt.Errorf("stat %s file: %w", label, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s path %s is a directory", label, expanded)
	}
	return expanded, nil
}
