// Package store provides SQLite-backed durable state for the local
// inventory subsystem.
//
// Tables:
//   - item_defs: Purchasable definitions with current and base price
//   - items: Owned item instances (instance ids are never reused)
//   - result_handles: Audit trail of every issued result handle
//   - purchases: Completed orders with their granted lines
//
// # Ordering
//
// Rows carry a seq value from the logical clock in the counters table.
// List queries order by seq, then primary key, so results are
// deterministic regardless of wall time.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
