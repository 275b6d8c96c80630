// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// The renderer uses it to size the encode timeout from the audio duration,
// and the render command uses it to sanity check inputs before encoding.
package ffprobe
