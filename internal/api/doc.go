// Package api exposes the HTTP surface: read-only queries over audit
// records, notifications and recurrence schedules, push ingestion of broker
// deliveries, health checks and connection counts. Handlers translate HTTP
// concerns into store reads and event dispatch; they never mutate state
// directly.
package api
