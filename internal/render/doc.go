// Package render turns a still image and an MP3 track into a 1920x1080 MP4.
//
// The encode is one ffmpeg invocation with a fixed filter graph: the image is
// scaled to fit the frame without distortion, given square pixels, and padded
// to full HD on black. Video is x264 tuned for still images, audio is AAC at
// a fixed bitrate, and the output stops with the audio track.
//
// Render never returns an error. Every outcome is a Result whose Failure field
// is set when the encode did not produce a usable file; in that case no
// output is left on disk.
package render
