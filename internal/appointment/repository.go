package appointment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrStaleStatus         = errors.New("appointment status changed concurrently")
)

// Repository contains all store interactions needed by the service.
type Repository interface {
	GetByID(ctx context.Context, id string) (*Appointment, error)
	List(ctx context.Context, f ListFilter) ([]Appointment, error)

	// For conflict checks
	ReservedStarts(ctx context.Context, specialistID, specialty string, from, to time.Time) ([]time.Time, error)

	// Creation and updates
	Create(ctx context.Context, a Appointment) (*Appointment, error)
	UpdateIfStatus(ctx context.Context, id string, from []Status, u Update) (*Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
