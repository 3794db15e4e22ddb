// Package session owns per-conversation state: the ordered message log,
// the rolling token-usage counter, the optional compaction summary, and
// the validation pass that keeps tool-call/tool-result pairs consistent
// before a log is sent to a model.
//
// Persistence is pluggable through the Store interface; the package ships
// an in-memory store and a SQLite-backed one.
package session
