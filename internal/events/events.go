package events

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"reserva/internal/model"

	"github.com/rs/zerolog"
)

const (
	ReservationCreated  = "reservation.created"
	ReservationUpdated  = "reservation.updated"
	ReservationReminder = "reservation.reminder"
)

// Event represents a lightweight domain event.
type Event struct {
	ID        int64
	Type      string
	ClientID  string
	Date      string
	Payload   []byte
	CreatedAt time.Time
}

// ReservationPayload is the JSON body of reservation events.
type ReservationPayload struct {
	ClientID        string `json:"clientId"`
	RestaurantName  string `json:"restaurantName"`
	ReservationID   string `json:"reservationId"`
	ReservationDate string `json:"reservationDate"`
	ReservationTime string `json:"reservationTime"`
	PartySize       int    `json:"partySize"`
	Status          string `json:"status"`
	CustomerName    string `json:"customerName"`
	CustomerEmail   string `json:"customerEmail"`
	CustomerPhone   string `json:"customerPhone"`
	SpecialRequests string `json:"specialRequests,omitempty"`
}

// EventHandler reacts to an event.
type EventHandler func(event Event) error

type subscription struct {
	id      int64
	handler EventHandler
}

// EventBus provides in-process pub/sub for events.
type EventBus struct {
	subscribers map[string][]subscription
	mu          sync.RWMutex
	nextSub     int64
	nextEvent   atomic.Int64
	logger      *zerolog.Logger
}

// NewEventBus constructs an empty bus.
func NewEventBus(logger *zerolog.Logger) *EventBus {
	return &EventBus{subscribers: make(map[string][]subscription), logger: logger}
}

// Subscribe registers a handler for a given event type and returns a function that
// removes it.
func (b *EventBus) Subscribe(eventType string, handler EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextSub++
	id := b.nextSub
	b.subscribers[eventType] = append(b.subscribers[eventType], subscription{id: id, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subscribers[eventType]
		for i, s := range subs {
			if s.id == id {
				b.subscribers[eventType] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish notifies subscribers of the event type.
func (b *EventBus) Publish(event Event) {
	b.mu.RLock()
	subs := append([]subscription(nil), b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	if event.ID == 0 {
		event.ID = b.nextEvent.Add(1)
	}

	for _, s := range subs {
		// Handlers run synchronously; caller decides concurrency model.
		if err := s.handler(event); err != nil && b.logger != nil {
			b.logger.Warn().Err(err).Str("type", event.Type).Int64("event_id", event.ID).Msg("Event handler failed")
		}
	}
}

// PublishJSON marshals v as the payload of a new event.
func (b *EventBus) PublishJSON(eventType, clientID, date string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b.Publish(Event{Type: eventType, ClientID: clientID, Date: date, Payload: data})
	return nil
}

// Publisher turns committed reservations into bus events.
type Publisher struct {
	bus *EventBus
}

func NewPublisher(bus *EventBus) *Publisher {
	return &Publisher{bus: bus}
}

func (p *Publisher) ReservationCreated(_ context.Context, restaurant model.Restaurant, r model.Reservation) {
	p.publish(ReservationCreated, restaurant, r)
}

func (p *Publisher) ReservationUpdated(_ context.Context, restaurant model.Restaurant, r model.Reservation) {
	p.publish(ReservationUpdated, restaurant, r)
}

func (p *Publisher) ReservationReminder(_ context.Context, restaurant model.Restaurant, r model.Reservation) {
	p.publish(ReservationReminder, restaurant, r)
}

func (p *Publisher) publish(eventType string, restaurant model.Restaurant, r model.Reservation) {
	payload := NewReservationPayload(restaurant, r)
	if err := p.bus.PublishJSON(eventType, r.ClientID, r.ReservationDate, payload); err != nil && p.bus.logger != nil {
		p.bus.logger.Error().Err(err).Str("reservation_id", r.ID).Msg("Failed to publish reservation event")
	}
}

// NewReservationPayload flattens a reservation for event consumers.
func NewReservationPayload(restaurant model.Restaurant, r model.Reservation) ReservationPayload {
	return ReservationPayload{
		ClientID:        r.ClientID,
		RestaurantName:  restaurant.Name,
		ReservationID:   r.ID,
		ReservationDate: r.ReservationDate,
		ReservationTime: r.ReservationTime,
		PartySize:       r.PartySize,
		Status:          string(r.Status),
		CustomerName:    r.CustomerName,
		CustomerEmail:   r.CustomerEmail,
		CustomerPhone:   r.CustomerPhone,
		SpecialRequests: r.SpecialRequests,
	}
}

// DecodeReservation parses the payload of a reservation event.
func DecodeReservation(e Event) (ReservationPayload, error) {
	var p ReservationPayload
	err := json.Unmarshal(e.Payload, &p)
	return p, err
}
