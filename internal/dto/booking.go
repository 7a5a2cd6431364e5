package dto

import (
	"time"

	"github.com/eventspark/backend-booking/internal/domain"
)

// CheckoutRequest is the booking intent submitted at checkout
type CheckoutRequest struct {
	EventID    string `json:"event_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
	UserID     string `json:"user_id"`
	GuestName  string `json:"guest_name"`
	GuestEmail string `json:"guest_email"`
	GuestPhone string `json:"guest_phone"`
}

// CheckoutResponse carries the hosted payment redirect for a pending booking
type CheckoutResponse struct {
	BookingID        string  `json:"booking_id"`
	BookingReference string  `json:"booking_reference"`
	CheckoutURL      string  `json:"checkout_url"`
	TotalAmount      float64 `json:"total_amount"`
	Currency         string  `json:"currency"`
}

// ConfirmRequest carries the processor payment reference from the
// success-page landing
type ConfirmRequest struct {
	PaymentReference string `json:"payment_reference"`
}

// CancelRequest identifies who is cancelling
type CancelRequest struct {
	Initiator string `json:"initiator"`
	Reason    string `json:"reason"`
}

// CancelResponse reports the cancellation outcome, including the refund
// disposition when the refund leg degraded to manual follow-up
type CancelResponse struct {
	BookingID    string `json:"booking_id"`
	Status       string `json:"status"`
	RefundStatus string `json:"refund_status"`
	Message      string `json:"message"`
}

// BookingResponse is the API shape of a booking record
type BookingResponse struct {
	ID               string     `json:"id"`
	EventID          string     `json:"event_id"`
	BookingReference string     `json:"booking_reference"`
	Quantity         int        `json:"quantity"`
	UnitPrice        float64    `json:"unit_price"`
	TotalAmount      float64    `json:"total_amount"`
	Currency         string     `json:"currency"`
	Status           string     `json:"status"`
	PaymentStatus    string     `json:"payment_status"`
	CreatedAt        time.Time  `json:"created_at"`
	ConfirmedAt      *time.Time `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time `json:"cancelled_at,omitempty"`
}

// FromDomain converts a domain booking to a BookingResponse
func FromDomain(b *domain.Booking) *BookingResponse {
	return &BookingResponse{
		ID:               b.ID,
		EventID:          b.EventID,
		BookingReference: b.BookingReference,
		Quantity:         b.Quantity,
		UnitPrice:        b.UnitPrice,
		TotalAmount:      b.TotalAmount,
		Currency:         b.Currency,
		Status:           b.Status.String(),
		PaymentStatus:    b.PaymentStatus.String(),
		CreatedAt:        b.CreatedAt,
		ConfirmedAt:      b.ConfirmedAt,
		CancelledAt:      b.CancelledAt,
	}
}
