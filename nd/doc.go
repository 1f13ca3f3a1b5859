// Package nd layers typed, relationship-aware records over a db.Database.
//
// An Nd owns the node-type registry, the root record and the deletion queue.
// Records are plain addresses; the type of a node is a uint16 tag stored in
// its first two bytes and resolved through the Registry when the node is
// loaded or deleted.
//
// Deletion is two-phase. Field code calls ScheduleDeletion, which only
// enqueues, so a cascade triggered in the middle of a mutation never
// re-enters the record being mutated. The top-level caller drains the queue
// with ProcessDeletions once its operation is complete.
//
// An Nd is not safe for concurrent use.
package nd
