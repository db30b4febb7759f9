// Package notify delivers check-in and digest messages to the user.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Notifier shows a short message to the user.
type Notifier interface {
	// Name returns the notifier identifier.
	Name() string

	// Notify delivers a message. Delivery is best effort.
	Notify(ctx context.Context, title, body string) error
}

// Multi fans a message out to every notifier in order.
type Multi []Notifier

// Name returns the notifier identifier.
func (m Multi) Name() string {
	return "multi"
}

// Notify calls every notifier and joins their errors. One failing notifier
// does not stop the others.
func (m Multi) Notify(ctx context.Context, title, body string) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, title, body); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Log writes messages to the process log. It is always part of the daemon's
// notifier set so nothing is lost when no desktop session is available.
type Log struct{}

// Name returns the notifier identifier.
func (Log) Name() string {
	return "log"
}

// Notify logs the message.
func (Log) Notify(_ context.Context, title, body string) error {
	log.Printf("[notify] %s: %s", title, body)
	return nil
}
