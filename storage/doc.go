// Package storage defines the raw block device boundary the configuration
// store is built on, plus a few implementations.
//
// A [Device] exposes absolute byte addresses over a medium with NOR flash
// semantics: erased bytes read as 0xFF, programming can only clear bits, and
// erase works on whole erase blocks.
//
// # Implementations
//
//   - [Memory]: in-memory NOR emulation for tests and tooling
//   - [File]: the same semantics persisted to an mmap'd image file
//   - [Faulty]: wraps a Device to inject failures (power loss, torn writes) and count operations
//   - [Throttled]: wraps a Device to limit program/erase bandwidth
//
// Devices are safe for concurrent use. Retries are the device's business;
// callers treat every returned error as final.
package storage
