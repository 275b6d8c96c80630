// Package telegram connects the pipeline to the Telegram Bot API.
//
// Client is a small JSON-over-HTTP wrapper for the handful of Bot API methods
// the bot needs. Transport implements pipeline.Transport on top of it,
// rendering message keys through the locale catalog. Poller long-polls
// getUpdates and hands each update to a Dispatcher on its own goroutine,
// bounded by a weighted semaphore.
package telegram
