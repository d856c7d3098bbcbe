// Package intent implements the write-intent queue and its executor.
//
// Nothing in a cycle writes to the table store directly. Lifecycle code and
// generators describe mutations as WriteIntents on the cycle's
// ExecutionContext; the Executor applies them once, at the end of the cycle,
// in priority order:
//
//  1. replace operations (default priority 50)
//  2. cell, range and append updates (default priority 100)
//  3. log appends (default priority 200)
//
// Ties are broken by insertion order. Within updates, intents are grouped by
// collection; runs of cell writes are coalesced into range writes and the
// appends of one collection become a single batch.
//
// In dry-run and replay modes the executor plans every operation, may read
// row counts, and writes nothing. The executor never clears the queues; the
// cycle orchestrator does that after inspecting the result.
package intent
