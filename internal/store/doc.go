// Package store defines interfaces for data persistence operations.
// These interfaces abstract the underlying data storage mechanism from
// the ledger, recurrence and notification components, allowing their rules
// to remain independent of specific database technologies.
package store
