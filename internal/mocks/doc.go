// Package mocks provides centralized mock implementations for testing.
//
// The store mocks are in-memory and safe for concurrent use, so they can
// stand in for Postgres in concurrency tests. Each mock exposes optional
// function fields that override the default behavior for a single method,
// plus call tracking for verification.
//
// Usage:
//
//	audits := mocks.NewMockAuditStore()
//	audits.CreateFn = func(ctx context.Context, r *domain.AuditRecord) error {
//	    return errors.New("connection reset")
//	}
package mocks
