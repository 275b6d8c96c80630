package deps

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

var commandContext = exec.CommandContext

// RequiredEncoders are the ffmpeg encoders the render graph uses.
var RequiredEncoders = []string{"libx264", "aac"}

// CheckFFmpegEncoders runs "ffmpeg -encoders" and reports whether every
// encoder in RequiredEncoders is compiled in. Distribution builds without
// libx264 are common enough to be worth surfacing before the first render.
func CheckFFmpegEncoders(ctx context.Context, binary string) Status {
	result := Status{
		Name:        "FFmpeg encoders",
		Command:     strings.TrimSpace(binary),
		Description: "libx264 and aac are required for rendering",
	}
	if result.Command == "" {
		result.Command = "ffmpeg"
	}

	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	output, err := commandContext(checkCtx, result.Command, "-hide_banner", "-encoders").Output()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}

	available := parseEncoders(output)
	var missing []string
	for _, name := range RequiredEncoders {
		if _, ok := available[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		result.Detail = fmt.Sprintf("missing encoders: %s", strings.Join(missing, ", "))
		return result
	}
	result.Available = true
	return result
}

// parseEncoders extracts encoder names from "ffmpeg -encoders" output. Each
// encoder line is "<flags> <name> <description>" after the "------" separator.
func parseEncoders(output []byte) map[string]struct{} {
	names := make(map[string]struct{})
	scanner := bufio.NewScanner(bytes.NewReader(output))
	listing := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !listing {
			listing = strings.HasPrefix(line, "------")
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		names[fields[1]] = struct{}{}
	}
	return names
}
