package broker

import (
	"context"
	"errors"
)

// ErrPermanent marks a handler failure that redelivery cannot fix.
// Messages failing with an error wrapping ErrPermanent are acknowledged and dropped.
var ErrPermanent = errors.New("permanent failure")

// ErrClosed is returned when publishing to a closed broker.
var ErrClosed = errors.New("broker closed")

// Message is a single delivery from a topic.
type Message struct {
	// ID is the transport-assigned message id (stream entry id, offset, sequence).
	ID    string
	Topic string
	Key   string
	Body  []byte
}

// Handler processes one delivered message.
type Handler func(ctx context.Context, msg Message) error

// Publisher appends messages to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, body []byte) error
}

// Subscriber consumes a topic as a member of a consumer group.
// Subscribe blocks until ctx is cancelled or the transport fails.
// Every group receives each message; members of one group share the load.
type Subscriber interface {
	Subscribe(ctx context.Context, topic, group string, handler Handler) error
}

// Broker is a full pub/sub transport.
type Broker interface {
	Publisher
	Subscriber
	Close() error
}

// Permanent wraps err so that it is not retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() []error { return []error{e.err, ErrPermanent} }

// IsPermanent reports whether err should not be retried.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// ShouldAck reports whether a delivery that ended with err is finished with.
func ShouldAck(err error) bool {
	return err == nil || IsPermanent(err)
}
