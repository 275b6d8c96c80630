// Package logs reads the daemon's run log for the "stillframe logs" command.
//
// Last returns the trailing lines of a file with bounded memory. Follow polls
// for appended lines and restarts from the top when the file shrinks, which
// happens when the daemon restarts and the stillframe.log pointer moves to a
// fresh run log.
package logs
