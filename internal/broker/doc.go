// Package broker defines the pub/sub transport used between consumers.
//
// Delivery is at-least-once: a message is acknowledged only after its handler
// succeeds or fails permanently, and retryable failures are redelivered with
// capped exponential backoff. Memory is an in-process implementation used by
// tests and single-node deployments; Redis Streams and Kafka implementations
// live under internal/platform.
package broker
