// Package monitor holds the two in-memory views canscope keeps for a session:
// the chronological trace (LogStore) and the per-signal rolling summary
// (AggregationStore).
//
// Both stores are safe for concurrent producers. Every mutation is applied
// under the store's own lock and announced to subscribed observers exactly
// once, in registration order, in the same order the mutations happened.
// The next mutation of a store waits until the current one has been
// delivered, so an observer reading the store sees exactly the state its
// Change describes.
// Observers are called on the producer's goroutine and must return quickly;
// the usual pattern is to copy the Change into a queue and return.
package monitor
