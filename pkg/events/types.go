// Package events delivers Debug Events — the Orchestrated Q&A loop's
// streaming protocol records (§3.1, §4.9) — to RPC-stream subscribers.
// Anna is a single daemon process with no multi-pod fan-out, so delivery
// is in-process pub/sub (pkg/events.Manager) rather than the teacher's
// WebSocket + PostgreSQL LISTEN/NOTIFY cross-pod design.
package events
