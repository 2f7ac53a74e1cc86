package models

import "time"

// Booking statuses. A booking is created as pending and moves to exactly
// one of the terminal statuses through the admin workflow.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// OccupyingStatuses are the statuses that count toward slot exhaustion.
var OccupyingStatuses = []string{StatusPending, StatusConfirmed}

// Service represents a bookable salon service.
type Service struct {
	ID          int64   `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Duration    int     `json:"duration"` // minutes
	IsActive    bool    `json:"is_active"`
}

// Booking represents a customer appointment for a single slot.
type Booking struct {
	ID            int64     `json:"id"`
	CustomerName  string    `json:"customer_name"`
	CustomerEmail string    `json:"customer_email"`
	CustomerPhone string    `json:"customer_phone"`
	ServiceID     int64     `json:"service_id"`
	BookingDate   string    `json:"booking_date"` // YYYY-MM-DD
	BookingTime   string    `json:"booking_time"` // HH:MM
	TotalAmount   float64   `json:"total_amount"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// BookingDetail is a booking joined with its service name for display.
type BookingDetail struct {
	Booking
	ServiceName string `json:"service_name"`
}

// IsOccupying reports whether the booking currently blocks its slot.
func (b *Booking) IsOccupying() bool {
	return IsOccupyingStatus(b.Status)
}

// IsOccupyingStatus reports whether a status counts toward slot exhaustion.
func IsOccupyingStatus(status string) bool {
	return status != StatusRejected && status != StatusCancelled
}

// ValidStatus reports whether status is one of the known booking statuses.
func ValidStatus(status string) bool {
	switch status {
	case StatusPending, StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// CanTransition reports whether a status change is allowed.
// Only pending bookings move; confirmed/rejected/cancelled are terminal.
func CanTransition(from, to string) bool {
	if from != StatusPending {
		return false
	}
	switch to {
	case StatusConfirmed, StatusRejected, StatusCancelled:
		return true
	}
	return false
}
