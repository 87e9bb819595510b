// Package consumer runs the event consumers. Each consumer owns one
// subscription on one topic, joins its own consumer group, and routes
// deliveries through a private events.Dispatcher.
package consumer
