package domain

import (
	"time"
)

// BookingStatus represents the lifecycle status of a booking
type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// String returns the string representation of the status
func (s BookingStatus) String() string {
	return string(s)
}

// PaymentStatus represents the payment leg of a booking
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusRefundPending PaymentStatus = "refund_pending"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusFailed        PaymentStatus = "failed"
)

// String returns the string representation of the payment status
func (s PaymentStatus) String() string {
	return string(s)
}

// CancelInitiator identifies who requested a cancellation.
// User cancellations are subject to the cancellation deadline; host and
// admin cancellations (event deletion, manual intervention) are not.
type CancelInitiator string

const (
	InitiatorUser  CancelInitiator = "user"
	InitiatorHost  CancelInitiator = "host"
	InitiatorAdmin CancelInitiator = "admin"
)

// Booking represents a booking record.
//
// SpotsDecremented is the de-duplication guard for inventory effects:
// true means the event's spots_left has been reduced by Quantity exactly
// once for this booking. It is flipped true only inside the confirm
// transition and cleared only inside the cancel transition, so inventory
// is never adjusted twice for the same booking.
type Booking struct {
	ID               string        `json:"id"`
	EventID          string        `json:"event_id"`
	UserID           string        `json:"user_id,omitempty"`
	GuestName        string        `json:"guest_name,omitempty"`
	GuestEmail       string        `json:"guest_email,omitempty"`
	GuestPhone       string        `json:"guest_phone,omitempty"`
	Quantity         int           `json:"quantity"`
	UnitPrice        float64       `json:"unit_price"`
	TotalAmount      float64       `json:"total_amount"`
	Currency         string        `json:"currency"`
	Status           BookingStatus `json:"status"`
	PaymentStatus    PaymentStatus `json:"payment_status"`
	SpotsDecremented bool          `json:"spots_decremented"`
	BookingReference string        `json:"booking_reference"`
	CheckoutSession  string        `json:"checkout_session,omitempty"`
	PaymentReference string        `json:"payment_reference,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	UpdatedAt        time.Time     `json:"updated_at"`
	ConfirmedAt      *time.Time    `json:"confirmed_at,omitempty"`
	CancelledAt      *time.Time    `json:"cancelled_at,omitempty"`
}

// IsPending returns true if the booking is awaiting payment
func (b *Booking) IsPending() bool {
	return b.Status == BookingStatusPending
}

// IsConfirmed returns true if the booking is confirmed
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingStatusConfirmed
}

// IsCancelled returns true if the booking is cancelled
func (b *Booking) IsCancelled() bool {
	return b.Status == BookingStatusCancelled
}

// IsGuest returns true if the booking was made without a user account
func (b *Booking) IsGuest() bool {
	return b.UserID == ""
}

// BelongsToUser checks if the booking belongs to the given user
func (b *Booking) BelongsToUser(userID string) bool {
	return b.UserID == userID
}

// StatusChange describes the fields applied by a conditional status
// transition. Nil pointer fields are left untouched.
type StatusChange struct {
	Status           BookingStatus
	PaymentStatus    PaymentStatus
	SpotsDecremented *bool
	PaymentReference string
	ConfirmedAt      *time.Time
	CancelledAt      *time.Time
}

// Bool returns a pointer to b, for use in StatusChange
func Bool(b bool) *bool {
	return &b
}
