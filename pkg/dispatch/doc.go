// Package dispatch decides how IAttom answers one inbound message.
//
// Every text message walks the same ordered states and stops at the first
// one that produces a reply: duplicate, name learned, structured command,
// first contact, topical trigger, periodic check-in, delegated answer.
//
// Invariants:
// - A message id is processed at most once; a duplicate never mutates state.
// - Session read-modify-write is serialized per contact.
// - Provider profile names never replace a stored name.
// - Dispatch never fails: collaborator errors become logs, metrics and fixed replies.
// - Check-ins are evaluated lazily on the next inbound message; there is no timer.
//
// Usage:
//
//	d := dispatch.New(dispatch.Options{}, dispatch.Deps{Store: store, Sender: client}, logger)
//	result := d.Handle(ctx, dispatch.Event{ContactID: "5511", MessageID: "wamid.1", Type: "text", Text: "oi"})
//	_ = result.Outcome
package dispatch
