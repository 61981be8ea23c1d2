// Package session holds the per-contact conversation record and the stores
// that keep it.
//
// Invariants:
// - Get never fails on an unknown contact; it returns a fresh default session.
// - A stored display name is only replaced by an explicit self-introduction.
// - Journal entries are append-only and kept in chronological order.
// - LastCheckinAt never moves backwards.
//
// Usage:
//
//	store := session.NewMemoryStore()
//	s, _ := store.Get(ctx, "5511999990000")
//	s.AppendJournal(time.Now(), "first note")
//	_ = store.Put(ctx, s)
package session
