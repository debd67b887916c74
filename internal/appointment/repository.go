package appointment

import (
	"context"
	"errors"
)

var (
	ErrInvalidUserType = errors.New("user type must be voluntario or assistido")
	ErrInvalidPeriod   = errors.New("period must be dia, semana or mes")
)

// Repository is the port between the workflows and the clinic backend.
// Every failure it returns is a *backend.APIError.
type Repository interface {
	// Counts
	Count(ctx context.Context, userType UserType, period Period) (int, error)
	AllStats(ctx context.Context, userType UserType) (Stats, error)

	// Listings
	Upcoming3(ctx context.Context, userType UserType) ([]Appointment, error)
	Recent(ctx context.Context, userType UserType) ([]Appointment, error)
	History(ctx context.Context, userType UserType) ([]Appointment, error)
	Reviews(ctx context.Context, userType UserType) ([]Review, error)
	// Next returns nil without error when the user has nothing scheduled.
	Next(ctx context.Context, userID int64) (*Upcoming, error)

	// Mutations
	Cancel(ctx context.Context, id int64) error
	Rate(ctx context.Context, id int64, rating int) error
	AddFeedback(ctx context.Context, id int64, feedback string) error
	Create(ctx context.Context, assistedID int64, in CreateInput) (*Appointment, error)

	// Booking support
	AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error)
}
