// Package handle tracks result handles obtained from the inventory subsystem.
//
// A result handle is an opaque token owned by the subsystem until it is
// destroyed. Every valid handle the client obtains is tracked in a Registry
// the moment it is returned, and removed from it by the first release. The
// registry guarantees:
//
//   - Exactly one DestroyResult call per tracked handle
//   - No destroy call for a handle that is not tracked
//   - No lock held while calling into the subsystem
//
// ReleaseAll is the teardown safety net for handles the caller abandoned
// (for example after a poll timeout). It may be called more than once.
package handle
