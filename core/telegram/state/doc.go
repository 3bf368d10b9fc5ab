// Package state keeps per-user conversation sessions for Telegram bots.
// Sessions live in process memory only; a Manager serialises events of one
// user and forgets sessions that were idle for longer than its TTL.
package state
