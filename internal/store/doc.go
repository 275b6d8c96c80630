// Package store persists per-user language settings and pending render
// sessions in a single SQLite database.
//
// The Store owns the connection, schema initialization, and the transient
// failure retry policy. SettingsStore and SessionStore are thin views over it
// that are handed to the pipeline at construction time. Writes are
// synchronous: a call that returns nil has committed with synchronous=FULL and
// is visible after an unclean restart.
//
// Schema changes bump schemaVersion in schema.go; operators clear the
// database to adopt the new schema.
package store
