package domain

import "time"

// BookingEventType identifies a booking lifecycle notification
type BookingEventType string

const (
	BookingEventCheckoutStarted BookingEventType = "booking.checkout_started"
	BookingEventConfirmed       BookingEventType = "booking.confirmed"
	BookingEventAborted         BookingEventType = "booking.aborted"
	BookingEventCancelled       BookingEventType = "booking.cancelled"
	BookingEventRefundPending   BookingEventType = "booking.refund_pending"
)

// BookingEvent is the notification payload published on lifecycle changes
type BookingEvent struct {
	EventID          string           `json:"event_id"`
	Type             BookingEventType `json:"type"`
	BookingID        string           `json:"booking_id"`
	BookingReference string           `json:"booking_reference"`
	TicketEventID    string           `json:"ticket_event_id"`
	UserID           string           `json:"user_id,omitempty"`
	GuestEmail       string           `json:"guest_email,omitempty"`
	Quantity         int              `json:"quantity"`
	TotalAmount      float64          `json:"total_amount"`
	Currency         string           `json:"currency"`
	Status           string           `json:"status"`
	PaymentStatus    string           `json:"payment_status"`
	Timestamp        time.Time        `json:"timestamp"`
}

// NewBookingEvent builds a notification for a booking lifecycle change
func NewBookingEvent(eventType BookingEventType, booking *Booking, eventID string) *BookingEvent {
	return &BookingEvent{
		EventID:          eventID,
		Type:             eventType,
		BookingID:        booking.ID,
		BookingReference: booking.BookingReference,
		TicketEventID:    booking.EventID,
		UserID:           booking.UserID,
		GuestEmail:       booking.GuestEmail,
		Quantity:         booking.Quantity,
		TotalAmount:      booking.TotalAmount,
		Currency:         booking.Currency,
		Status:           booking.Status.String(),
		PaymentStatus:    booking.PaymentStatus.String(),
		Timestamp:        time.Now().UTC(),
	}
}

// Key returns the partition key for the event: all notifications for one
// booking land on the same partition so consumers see them in order.
func (e *BookingEvent) Key() string {
	return e.BookingID
}
