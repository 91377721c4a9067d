package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"reserva/internal/events"
	"reserva/internal/model"
	"reserva/internal/timeutil"
)

const (
	ChannelEmail    = "email"
	ChannelTelegram = "telegram"
)

// MessagesFor routes a reservation event to the messages it produces.
func MessagesFor(eventType string, restaurant model.Restaurant, p events.ReservationPayload) []Message {
	switch eventType {
	case events.ReservationCreated:
		return BuildMessages(restaurant, p)
	case events.ReservationUpdated:
		return guestOnly(statusEmail(restaurant, p))
	case events.ReservationReminder:
		return guestOnly(reminderEmail(restaurant, p))
	}
	return nil
}

func guestOnly(p events.ReservationPayload, subject, body string) []Message {
	if p.CustomerEmail == "" || subject == "" {
		return nil
	}
	return []Message{{Channel: ChannelEmail, Recipient: p.CustomerEmail, Subject: subject, Body: body}}
}

// BuildMessages returns the guest confirmation and the restaurant alerts for a new
// reservation. Channels without a recipient are skipped.
func BuildMessages(restaurant model.Restaurant, p events.ReservationPayload) []Message {
	var out []Message

	if p.CustomerEmail != "" {
		subject, body := guestEmail(restaurant, p)
		out = append(out, Message{Channel: ChannelEmail, Recipient: p.CustomerEmail, Subject: subject, Body: body})
	}
	if restaurant.NotifyEmail != "" {
		out = append(out, Message{
			Channel:   ChannelEmail,
			Recipient: restaurant.NotifyEmail,
			Subject:   fmt.Sprintf("Nueva reserva: %s %s, %d pax", p.ReservationDate, p.ReservationTime, p.PartySize),
			Body:      staffText(restaurant, p),
		})
	}
	if restaurant.TelegramChatID != 0 {
		out = append(out, Message{
			Channel:   ChannelTelegram,
			Recipient: strconv.FormatInt(restaurant.TelegramChatID, 10),
			Body:      staffText(restaurant, p),
		})
	}
	return out
}

func dateLabel(date, locale string) string {
	d, err := time.Parse(timeutil.DateLayout, date)
	if err != nil {
		return date
	}
	return timeutil.Label(d, locale)
}

func guestEmail(restaurant model.Restaurant, p events.ReservationPayload) (string, string) {
	label := dateLabel(p.ReservationDate, restaurant.Locale)
	var b strings.Builder

	if restaurant.Locale == "en" {
		fmt.Fprintf(&b, "Hello %s,\n\n", p.CustomerName)
		fmt.Fprintf(&b, "We have received your reservation at %s for %d guests on %s at %s.\n", restaurant.Name, p.PartySize, label, p.ReservationTime)
		b.WriteString("The restaurant will confirm it shortly.\n\n")
		fmt.Fprintf(&b, "Reference: %s\n", p.ReservationID)
		return "Reservation received: " + restaurant.Name, b.String()
	}

	fmt.Fprintf(&b, "Hola %s,\n\n", p.CustomerName)
	fmt.Fprintf(&b, "Hemos recibido tu reserva en %s para %d personas el %s a las %s.\n", restaurant.Name, p.PartySize, label, p.ReservationTime)
	b.WriteString("El restaurante la confirmará en breve.\n\n")
	fmt.Fprintf(&b, "Referencia: %s\n", p.ReservationID)
	return "Reserva recibida: " + restaurant.Name, b.String()
}

func staffText(restaurant model.Restaurant, p events.ReservationPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Nueva reserva en %s\n", restaurant.Name)
	fmt.Fprintf(&b, "%s %s, %d pax\n", dateLabel(p.ReservationDate, restaurant.Locale), p.ReservationTime, p.PartySize)
	fmt.Fprintf(&b, "%s · %s · %s\n", p.CustomerName, p.CustomerPhone, p.CustomerEmail)
	if p.SpecialRequests != "" {
		fmt.Fprintf(&b, "Peticiones: %s\n", p.SpecialRequests)
	}
	fmt.Fprintf(&b, "ID: %s", p.ReservationID)
	return b.String()
}

// statusEmail tells the guest the restaurant confirmed or cancelled. Other statuses
// produce no message.
func statusEmail(restaurant model.Restaurant, p events.ReservationPayload) (events.ReservationPayload, string, string) {
	label := dateLabel(p.ReservationDate, restaurant.Locale)
	en := restaurant.Locale == "en"

	switch model.ReservationStatus(p.Status) {
	case model.StatusConfirmed:
		if en {
			return p, "Reservation confirmed: " + restaurant.Name,
				fmt.Sprintf("Hello %s,\n\nYour table at %s for %d guests on %s at %s is confirmed.\n\nReference: %s\n",
					p.CustomerName, restaurant.Name, p.PartySize, label, p.ReservationTime, p.ReservationID)
		}
		return p, "Reserva confirmada: " + restaurant.Name,
			fmt.Sprintf("Hola %s,\n\nTu mesa en %s para %d personas el %s a las %s está confirmada.\n\nReferencia: %s\n",
				p.CustomerName, restaurant.Name, p.PartySize, label, p.ReservationTime, p.ReservationID)
	case model.StatusCancelled:
		if en {
			return p, "Reservation cancelled: " + restaurant.Name,
				fmt.Sprintf("Hello %s,\n\nYour reservation at %s on %s at %s has been cancelled.\n%s\n\nReference: %s\n",
					p.CustomerName, restaurant.Name, label, p.ReservationTime, contactLine(restaurant, true), p.ReservationID)
		}
		return p, "Reserva cancelada: " + restaurant.Name,
			fmt.Sprintf("Hola %s,\n\nTu reserva en %s el %s a las %s ha sido cancelada.\n%s\n\nReferencia: %s\n",
				p.CustomerName, restaurant.Name, label, p.ReservationTime, contactLine(restaurant, false), p.ReservationID)
	}
	return p, "", ""
}

func reminderEmail(restaurant model.Restaurant, p events.ReservationPayload) (events.ReservationPayload, string, string) {
	label := dateLabel(p.ReservationDate, restaurant.Locale)
	if restaurant.Locale == "en" {
		return p, "See you soon at " + restaurant.Name,
			fmt.Sprintf("Hello %s,\n\nA reminder of your reservation at %s for %d guests on %s at %s.\n%s\n\nReference: %s\n",
				p.CustomerName, restaurant.Name, p.PartySize, label, p.ReservationTime, contactLine(restaurant, true), p.ReservationID)
	}
	return p, "Te esperamos en " + restaurant.Name,
		fmt.Sprintf("Hola %s,\n\nTe recordamos tu reserva en %s para %d personas el %s a las %s.\n%s\n\nReferencia: %s\n",
			p.CustomerName, restaurant.Name, p.PartySize, label, p.ReservationTime, contactLine(restaurant, false), p.ReservationID)
}

func contactLine(restaurant model.Restaurant, en bool) string {
	phone := restaurant.Phone
	if phone == "" {
		phone = restaurant.WhatsAppNumber
	}
	switch {
	case phone == "":
		return ""
	case en:
		return "Need to change it? Call us at " + phone + "."
	default:
		return "¿Necesitas cambiarla? Llámanos al " + phone + "."
	}
}
