// Package session drives the per-user input state machine.
//
// A user's pending session is derived from the stored record on every event:
// Empty, HasAudioOnly, HasImageOnly, or Ready. Apply merges one classified
// input into the store and reports the resulting transition. Callers must
// hold the user's lock across Apply and, when the result is Ready, across the
// whole render and cleanup that follows; Ready is never left in the store
// outside that critical section.
package session
