package appointment

import (
	"context"
)

// Service is the surface the handlers and the booking wizard depend on.
// It delegates to whichever Repository is wired in.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) Count(ctx context.Context, userType UserType, period Period) (int, error) {
	return s.repo.Count(ctx, userType, period)
}

func (s *Service) AllStats(ctx context.Context, userType UserType) (Stats, error) {
	return s.repo.AllStats(ctx, userType)
}

func (s *Service) Upcoming3(ctx context.Context, userType UserType) ([]Appointment, error) {
	return s.repo.Upcoming3(ctx, userType)
}

func (s *Service) Recent(ctx context.Context, userType UserType) ([]Appointment, error) {
	return s.repo.Recent(ctx, userType)
}

func (s *Service) History(ctx context.Context, userType UserType) ([]Appointment, error) {
	return s.repo.History(ctx, userType)
}

func (s *Service) Reviews(ctx context.Context, userType UserType) ([]Review, error) {
	return s.repo.Reviews(ctx, userType)
}

func (s *Service) Next(ctx context.Context, userID int64) (*Upcoming, error) {
	return s.repo.Next(ctx, userID)
}

func (s *Service) Cancel(ctx context.Context, id int64) error {
	return s.repo.Cancel(ctx, id)
}

func (s *Service) Rate(ctx context.Context, id int64, rating int) error {
	return s.repo.Rate(ctx, id, rating)
}

func (s *Service) AddFeedback(ctx context.Context, id int64, feedback string) error {
	return s.repo.AddFeedback(ctx, id, feedback)
}

func (s *Service) AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error) {
	return s.repo.AvailableTimes(ctx, volunteerID, day)
}

func (s *Service) Create(ctx context.Context, assistedID int64, in CreateInput) (*Appointment, error) {
	return s.repo.Create(ctx, assistedID, in)
}
