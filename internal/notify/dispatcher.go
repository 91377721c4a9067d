// Package notify delivers reservation notifications to guests and restaurants.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"reserva/internal/events"
	"reserva/internal/metrics"
	"reserva/internal/model"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrQueueFull is returned by Enqueue when the dispatcher cannot keep up.
var ErrQueueFull = errors.New("notification queue full")

// Message is one delivery on one channel.
type Message struct {
	Channel   string
	Recipient string
	Subject   string
	Body      string
}

// Channel delivers messages of one kind.
type Channel interface {
	Name() string
	Send(ctx context.Context, msg Message) error
}

// RestaurantSource resolves restaurant contact details.
type RestaurantSource interface {
	Snapshot(ctx context.Context, clientID string) (*model.RestaurantSnapshot, error)
}

// PermanentError marks a failure that retrying cannot fix.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }
func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so the dispatcher stops retrying it.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// RetryAfterError asks the dispatcher to wait a specific time before the next attempt.
type RetryAfterError struct {
	Err   error
	After time.Duration
}

func (e *RetryAfterError) Error() string {
	return fmt.Sprintf("%v (retry after %s)", e.Err, e.After)
}
func (e *RetryAfterError) Unwrap() error { return e.Err }

// DispatcherConfig holds the queue and retry settings.
type DispatcherConfig struct {
	QueueSize     int
	RatePerSecond float64
	Burst         int
	RetryDelays   []time.Duration
}

// DefaultDispatcherConfig returns the default configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		QueueSize:     256,
		RatePerSecond: 5,
		Burst:         10,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// Dispatcher turns reservation events into messages and delivers them from a single
// worker, throttled and retried. Delivery failures never reach the booking flow.
type Dispatcher struct {
	channels    map[string]Channel
	restaurants RestaurantSource
	queue       chan events.Event
	limiter     *rate.Limiter
	retryDelays []time.Duration
	logger      zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewDispatcher(cfg DispatcherConfig, restaurants RestaurantSource, logger zerolog.Logger, channels ...Channel) *Dispatcher {
	def := DefaultDispatcherConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = def.RatePerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.RetryDelays == nil {
		cfg.RetryDelays = def.RetryDelays
	}

	d := &Dispatcher{
		channels:    make(map[string]Channel, len(channels)),
		restaurants: restaurants,
		queue:       make(chan events.Event, cfg.QueueSize),
		limiter:     rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst),
		retryDelays: cfg.RetryDelays,
		logger:      logger.With().Str("component", "notify").Logger(),
	}
	for _, ch := range channels {
		d.channels[ch.Name()] = ch
	}
	return d
}

// Subscribe attaches the dispatcher to reservation events on bus.
func (d *Dispatcher) Subscribe(bus *events.EventBus) func() {
	unsubscribe := []func(){
		bus.Subscribe(events.ReservationCreated, d.Enqueue),
		bus.Subscribe(events.ReservationUpdated, d.Enqueue),
		bus.Subscribe(events.ReservationReminder, d.Enqueue),
	}
	return func() {
		for _, u := range unsubscribe {
			u()
		}
	}
}

// Enqueue queues e without blocking.
func (d *Dispatcher) Enqueue(e events.Event) error {
	select {
	case d.queue <- e:
		return nil
	default:
		metrics.IncNotification("queue", "dropped")
		return ErrQueueFull
	}
}

// Start runs the worker until ctx is done or Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-d.queue:
				if !ok {
					return
				}
				d.handle(ctx, e)
			}
		}
	}()
}

// Stop closes the queue and waits for queued events to drain. Unsubscribe from the bus
// first; Enqueue after Stop panics.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() { close(d.queue) })
	d.wg.Wait()
}

func (d *Dispatcher) handle(ctx context.Context, e events.Event) {
	payload, err := events.DecodeReservation(e)
	if err != nil {
		d.logger.Error().Err(err).Int64("event_id", e.ID).Msg("Undecodable reservation event")
		return
	}

	var restaurant model.Restaurant
	if d.restaurants != nil {
		snap, err := d.restaurants.Snapshot(ctx, payload.ClientID)
		if err != nil {
			d.logger.Warn().Err(err).Str("client_id", payload.ClientID).Msg("Restaurant lookup failed, notifying guest only")
		} else {
			restaurant = snap.Restaurant
		}
	}
	if restaurant.Name == "" {
		restaurant.Name = payload.RestaurantName
	}

	for _, msg := range MessagesFor(e.Type, restaurant, payload) {
		ch, ok := d.channels[msg.Channel]
		if !ok {
			continue
		}
		if err := d.sendWithRetry(ctx, ch, msg); err != nil {
			metrics.IncNotification(ch.Name(), "failed")
			d.logger.Error().Err(err).
				Str("channel", ch.Name()).
				Str("reservation_id", payload.ReservationID).
				Msg("Notification failed")
			continue
		}
		metrics.IncNotification(ch.Name(), "sent")
	}
}

func (d *Dispatcher) sendWithRetry(ctx context.Context, ch Channel, msg Message) error {
	var lastErr error
	for attempt := 0; attempt <= len(d.retryDelays); attempt++ {
		if err := d.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		err := ch.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		var perm *PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if attempt == len(d.retryDelays) {
			break
		}

		delay := d.retryDelays[attempt]
		var ra *RetryAfterError
		if errors.As(err, &ra) && ra.After > 0 {
			delay = ra.After
		}
		d.logger.Info().Err(err).
			Str("channel", ch.Name()).
			Int("attempt", attempt+1).
			Dur("delay", delay).
			Msg("Retrying notification")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
