package migrator

import "errors"

// ErrProtocol marks a malformed loader frame: the connection is closed and
// the error logged, but the process does not crash.
var ErrProtocol = errors.New("migrator: malformed loader frame")

// ErrTransport marks a network failure mid-migration: the source aborts and
// rolls the heap back to Resident.
var ErrTransport = errors.New("migrator: transport failure")

// ErrNoResource marks a destination that rejected a heap for lack of free
// capacity: the monitor retries with a different target on its next tick.
var ErrNoResource = errors.New("migrator: destination lacks free resource")

// ErrUnknownHeap marks an operation against a HeapID this node does not
// host.
var ErrUnknownHeap = errors.New("migrator: unknown heap")
