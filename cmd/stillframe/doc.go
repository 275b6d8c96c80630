// Command stillframe runs the chat bot that turns an MP3 and a still image
// into a 1080p video, and provides the operator commands around it: status,
// one-off local renders, session and language inspection, and config
// scaffolding.
package main
