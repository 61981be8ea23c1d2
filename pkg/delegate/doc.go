// Package delegate wraps the external language models used when no
// deterministic rule produced a reply.
//
// Invariants:
// - An empty answer means the capability is unavailable or produced nothing usable.
// - Providers are tried in profile priority order; the first non-empty answer wins.
// - A provider that fails is put in a growing cooldown and skipped until it expires.
//
// Usage:
//
//	responder, _ := delegate.New(profiles, delegate.ChainOptions{}, logger)
//	if responder != nil {
//		text, _ := responder.Generate(ctx, delegate.Request{Persona: persona, Text: "oi"})
//		_ = text
//	}
package delegate
