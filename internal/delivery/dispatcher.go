package delivery

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Result reports whether a message got out and through which channel.
type Result struct {
	Delivered bool
	Provider  string
}

// Dispatcher tries each channel once, in order, until one succeeds. When all
// of them fail (or none are configured) the fallback channel is used, if set.
// Send never returns an error or panics past its own boundary.
type Dispatcher struct {
	channels []Channel
	fallback Channel
	timeout  time.Duration
	validFor time.Duration
	logger   *logrus.Logger
}

func NewDispatcher(channels []Channel, fallback Channel, timeout, validFor time.Duration, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		channels: channels,
		fallback: fallback,
		timeout:  timeout,
		validFor: validFor,
		logger:   logger,
	}
}

// Providers lists the configured channel names in priority order.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.channels)+1)
	for _, ch := range d.channels {
		names = append(names, ch.Name())
	}
	if d.fallback != nil {
		names = append(names, d.fallback.Name())
	}
	return names
}

func (d *Dispatcher) Send(ctx context.Context, phone, code string) Result {
	message := FormatMessage(code, d.validFor)

	for _, ch := range d.channels {
		err := d.attempt(ctx, ch, phone, message)
		if err == nil {
			return Result{Delivered: true, Provider: ch.Name()}
		}
		d.logger.WithError(err).WithFields(logrus.Fields{
			"phone":      phone,
			"provider":   ch.Name(),
			"error_kind": "DELIVERY_PROVIDER_FAILED",
		}).Error("SMS provider failed, trying next")
	}

	if d.fallback != nil {
		if err := d.attempt(ctx, d.fallback, phone, message); err == nil {
			return Result{Delivered: true, Provider: d.fallback.Name()}
		}
	}

	return Result{Delivered: false}
}

func (d *Dispatcher) attempt(ctx context.Context, ch Channel, phone, message string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider %s panicked: %v", ch.Name(), r)
		}
	}()

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	return ch.Send(ctx, phone, message)
}
