// Package domain contains the core business entities of the task
// choreography layer: the task and reminder event payloads exchanged between
// services, the immutable audit record, the per-parent recurrence schedule
// and the notification delivery record. It is independent of any storage or
// transport mechanism.
package domain
