// Package events provides the wire format and routing for domain events.
//
// Events travel inside a CloudEvents envelope whose data member carries the
// event itself (event_id, event_type, task_id, timestamp, payload). Decode
// turns a delivered message into an Envelope, a Dispatcher routes it to the
// handlers registered for its EventType, and a Publisher wraps outgoing
// events and hands them to a broker.
//
// Components never call each other directly: a handler that needs to trigger
// more work publishes a new event.
package events
