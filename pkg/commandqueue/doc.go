// Package commandqueue runs tasks in per-contact lanes.
//
// Invariants:
// - Tasks in the same lane execute one at a time in FIFO order.
// - Tasks in different lanes may execute concurrently, at most
//   Options.MaxConcurrent at a time.
// - A lane exists only while it has queued or running work.
// - Close stops accepting tasks and waits for queued ones to finish.
//
// Usage:
//
//	queue := commandqueue.New(commandqueue.Options{MaxConcurrent: 32}, logger)
//	defer queue.Close(ctx)
//	_ = queue.Submit(ctx, contactID, func(ctx context.Context) error {
//		dispatcher.Handle(ctx, event)
//		return nil
//	})
package commandqueue
