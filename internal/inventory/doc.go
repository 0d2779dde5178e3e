// Package inventory implements the result retrieval engine for the
// handle-based inventory subsystem.
//
// # Retrieval sequence
//
// GetAllItems drives one request through:
//
//  1. Start: ask the subsystem for a result handle and track it at once
//  2. Poll: query status up to PollAttempts times, PollInterval apart
//  3. Size: call the fill function with a nil buffer to learn the count
//  4. Fill: call it again with a buffer of exactly that count
//  5. Decode: copy the entries the fill reported, never more
//  6. Release: destroy the handle through the registry
//
// A poll timeout leaves the handle tracked; Close releases it. Every other
// failure after step 1 still releases the handle before returning.
//
// ConsumeItem skips the poll: its handle is usable immediately and is
// released straight away.
//
// # Purchases
//
// StartPurchase never polls and never touches the handle registry. It
// registers a completion handler with the callresult.Dispatcher under the
// reserved callresult.OpStartPurchase id and the subsystem's call token.
// The caller's callback runs at most once, on whichever goroutine delivers
// the completion. Purchase wraps this in a blocking, context-aware call.
//
// # Concurrency
//
// An Engine may be shared by any number of goroutines. Requests are
// independent; the only shared state is the handle registry, which never
// holds its lock across a subsystem call.
package inventory
