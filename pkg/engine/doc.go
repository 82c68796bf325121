// Package engine provides the queue producer/consumer engine: per-queue
// bounded pools of worker slots fed by atomic claim batches, outcome
// recording through the job state machine, maintenance plugins on
// independent timers, and a drain-then-halt shutdown coordinator.
//
// Multiple engine instances may run against one shared store; correctness
// derives entirely from the store's atomic conditional updates, no instance
// holds a privileged role.
package engine
