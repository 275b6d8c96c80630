// Package pipeline coordinates a user's conversation with the render
// service.
//
// Service is the single entry point the chat transport calls into. It
// classifies attachments, downloads accepted ones into the work directory,
// advances the per-user session, and once both inputs are present takes the
// session through render, delivery, and cleanup while holding that user's
// lock. Unrelated users never contend on a lock.
//
// The service only selects message keys and languages. Turning a Message
// into text is the transport's job.
package pipeline
