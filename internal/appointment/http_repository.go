package appointment

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/assistance-scheduling/internal/backend"
)

const (
	pathConsulta       = "/consulta"
	pathConsultas      = "/consulta/consultas"
	pathCancel         = "/consulta/cancelar/%d"
	pathRating         = "/consulta/consultas/%d/avaliacao"
	pathFeedback       = "/consulta/consultas/%d/feedback"
	pathNext           = "/consulta/consultas/%d/proxima"
	pathAvailableTimes = "/consulta/horarios-disponiveis"
	pathUpcoming3      = pathConsultas + "/3-proximas"
	pathRecent         = pathConsultas + "/recentes"
	pathHistory        = pathConsultas + "/historico"
	pathReviews        = pathConsultas + "/avaliacoes"
)

// HTTPRepository implements Repository against the clinic REST backend.
type HTTPRepository struct {
	client *backend.Client
}

func NewHTTPRepository(client *backend.Client) *HTTPRepository {
	return &HTTPRepository{client: client}
}

type createRequest struct {
	VolunteerID int64    `json:"idVoluntario"`
	AssistedID  int64    `json:"idAssistido"`
	ScheduledAt string   `json:"horario"`
	Modality    Modality `json:"modalidade"`
	Location    string   `json:"local"`
	Notes       string   `json:"observacoes"`
	Status      Status   `json:"status"`
	SpecialtyID *int64   `json:"idEspecialidade"`
}

func userQuery(userType UserType) (url.Values, error) {
	if !userType.Valid() {
		return nil, backend.Unexpected(fmt.Errorf("%w: %q", ErrInvalidUserType, userType))
	}
	return url.Values{"user": []string{string(userType)}}, nil
}

func (r *HTTPRepository) Count(ctx context.Context, userType UserType, period Period) (int, error) {
	if !period.Valid() {
		return 0, backend.Unexpected(fmt.Errorf("%w: %q", ErrInvalidPeriod, period))
	}
	q, err := userQuery(userType)
	if err != nil {
		return 0, err
	}

	var items []json.RawMessage
	if err := r.client.Get(ctx, pathConsultas+"/"+string(period), q, &items); err != nil {
		return 0, err
	}
	return len(items), nil
}

// AllStats runs the three counts concurrently. Any single failure fails
// the aggregate; partial stats are never returned.
func (r *HTTPRepository) AllStats(ctx context.Context, userType UserType) (Stats, error) {
	var stats Stats
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := r.Count(gctx, userType, PeriodDay)
		stats.Today = n
		return err
	})
	g.Go(func() error {
		n, err := r.Count(gctx, userType, PeriodWeek)
		stats.Week = n
		return err
	})
	g.Go(func() error {
		n, err := r.Count(gctx, userType, PeriodMonth)
		stats.Month = n
		return err
	})

	if err := g.Wait(); err != nil {
		return Stats{}, err
	}
	return stats, nil
}

func (r *HTTPRepository) list(ctx context.Context, path string, userType UserType) ([]Appointment, error) {
	q, err := userQuery(userType)
	if err != nil {
		return nil, err
	}

	var out []Appointment
	if err := r.client.Get(ctx, path, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRepository) Upcoming3(ctx context.Context, userType UserType) ([]Appointment, error) {
	return r.list(ctx, pathUpcoming3, userType)
}

func (r *HTTPRepository) Recent(ctx context.Context, userType UserType) ([]Appointment, error) {
	return r.list(ctx, pathRecent, userType)
}

func (r *HTTPRepository) History(ctx context.Context, userType UserType) ([]Appointment, error) {
	return r.list(ctx, pathHistory, userType)
}

func (r *HTTPRepository) Reviews(ctx context.Context, userType UserType) ([]Review, error) {
	q, err := userQuery(userType)
	if err != nil {
		return nil, err
	}

	var out []Review
	if err := r.client.Get(ctx, pathReviews, q, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *HTTPRepository) Next(ctx context.Context, userID int64) (*Upcoming, error) {
	var out Upcoming
	found, err := r.client.GetOptional(ctx, fmt.Sprintf(pathNext, userID), nil, &out)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	return &out, nil
}

func (r *HTTPRepository) Cancel(ctx context.Context, id int64) error {
	return r.client.PostJSON(ctx, fmt.Sprintf(pathCancel, id), struct{}{}, nil)
}

func (r *HTTPRepository) Rate(ctx context.Context, id int64, rating int) error {
	return r.client.PostText(ctx, fmt.Sprintf(pathRating, id), strconv.Itoa(rating), nil)
}

func (r *HTTPRepository) AddFeedback(ctx context.Context, id int64, feedback string) error {
	return r.client.PostText(ctx, fmt.Sprintf(pathFeedback, id), feedback, nil)
}

// AvailableTimes reduces the backend's ISO timestamps to "HH:mm".
func (r *HTTPRepository) AvailableTimes(ctx context.Context, volunteerID int64, day string) ([]string, error) {
	if !backend.ValidDay(day) {
		return nil, backend.Unexpected(fmt.Errorf("invalid day %q", day))
	}

	q := url.Values{}
	q.Set("data", day)
	q.Set("idVoluntario", strconv.FormatInt(volunteerID, 10))

	var stamps []string
	if err := r.client.Get(ctx, pathAvailableTimes, q, &stamps); err != nil {
		return nil, err
	}
	return ClockTimes(stamps)
}

func (r *HTTPRepository) Create(ctx context.Context, assistedID int64, in CreateInput) (*Appointment, error) {
	if err := backend.Validator().Struct(in); err != nil {
		return nil, backend.Unexpected(fmt.Errorf("validate create input: %w", err))
	}

	scheduledAt, err := backend.JoinDateTime(in.Date, in.Time)
	if err != nil {
		return nil, backend.Unexpected(err)
	}

	req := createRequest{
		VolunteerID: in.VolunteerID,
		AssistedID:  assistedID,
		ScheduledAt: scheduledAt,
		Modality:    in.Modality,
		Location:    in.location(),
		Notes:       in.Notes,
		Status:      StatusScheduled,
		SpecialtyID: in.SpecialtyID,
	}

	var out Appointment
	if err := r.client.PostJSON(ctx, pathConsulta, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ClockTimes maps backend timestamps to "HH:mm", keeping the backend order.
func ClockTimes(stamps []string) ([]string, error) {
	out := make([]string, 0, len(stamps))
	for _, s := range stamps {
		clock, err := backend.ClockTime(s)
		if err != nil {
			return nil, backend.SchemaMismatch(err)
		}
		out = append(out, clock)
	}
	return out, nil
}
