package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hackgods/assistance-scheduling/internal/appointment"
	"github.com/hackgods/assistance-scheduling/internal/availability"
	"github.com/hackgods/assistance-scheduling/internal/backend"
	"github.com/hackgods/assistance-scheduling/internal/booking"
	"github.com/hackgods/assistance-scheduling/internal/store"
)

// forgedToken is a bearer the clinic API never issued.
const forgedToken = "forged"

// clinicBackend is a minimal stand-in for the clinic REST API.
type clinicBackend struct {
	mu      sync.Mutex
	tokens  []string
	creates int
	slots   map[int64]string
	nextID  int64
	reject  bool
}

func (b *clinicBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens = append(b.tokens, r.Header.Get("Authorization"))

	if b.reject || r.Header.Get("Authorization") == "Bearer "+forgedToken {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"token expirado"}`))
		return
	}

	switch {
	case r.URL.Path == "/consulta/consultas/dia":
		_, _ = w.Write([]byte(`[{"id":1}]`))
	case r.URL.Path == "/consulta/consultas/semana":
		_, _ = w.Write([]byte(`[{"id":1},{"id":2}]`))
	case r.URL.Path == "/consulta/consultas/mes":
		_, _ = w.Write([]byte(`[{"id":1},{"id":2},{"id":3}]`))
	case r.URL.Path == "/consulta/consultas/55/proxima":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/consulta/horarios-disponiveis":
		_, _ = w.Write([]byte(`["2025-06-01T09:00:00","2025-06-01T10:00:00"]`))
	case r.URL.Path == "/consulta" && r.Method == http.MethodPost:
		b.creates++
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":900,"horario":"2025-06-01T10:00:00","status":"AGENDADA","modalidade":"ONLINE","local":"Online"}`))
	case r.URL.Path == "/disponibilidade" && r.Method == http.MethodGet:
		out := make([]map[string]any, 0, len(b.slots))
		for id, dt := range b.slots {
			out = append(out, map[string]any{"id": id, "dataHorario": dt})
		}
		_ = json.NewEncoder(w).Encode(out)
	case r.URL.Path == "/disponibilidade" && r.Method == http.MethodPost:
		var body struct {
			DataHorario string `json:"dataHorario"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.nextID++
		b.slots[b.nextID] = body.DataHorario
		_, _ = w.Write([]byte(`{"id":` + itoa(b.nextID) + `}`))
	case strings.HasPrefix(r.URL.Path, "/disponibilidade/") && r.Method == http.MethodDelete:
		_, _ = w.Write([]byte(`true`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (b *clinicBackend) sawToken(header string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.tokens {
		if t == header {
			return true
		}
	}
	return false
}

func (b *clinicBackend) createCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.creates
}

func (b *clinicBackend) setReject(v bool) {
	b.mu.Lock()
	b.reject = v
	b.mu.Unlock()
}

func itoa(n int64) string {
	raw, _ := json.Marshal(n)
	return string(raw)
}

type testServer struct {
	handler http.Handler
	store   *store.MemoryStore
	backend *clinicBackend
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	clinic := &clinicBackend{slots: map[int64]string{}, nextID: 10}
	upstream := httptest.NewServer(clinic)
	t.Cleanup(upstream.Close)

	s := store.NewMemoryStore()
	tokens := store.NewSessionTokens(s)
	client := backend.NewClient(upstream.URL, backend.WithTokenSource(tokens), backend.WithInvalidator(tokens))

	appointments := appointment.NewService(appointment.NewHTTPRepository(client))
	calendar := availability.NewManager(availability.NewHTTPRepository(client), s, availability.NewLocalLocker(), zap.NewNop())
	bookings := booking.NewRegistry(appointments, appointments, time.Hour, zap.NewNop())

	h := NewRouter(RouterConfig{
		Appointments: appointments,
		Calendar:     calendar,
		Bookings:     bookings,
		Store:        s,
		Log:          zap.NewNop(),
		Env:          "test",
		Version:      "test",
		CORSOrigins:  []string{"*"},
	})
	return &testServer{handler: h, store: s, backend: clinic}
}

func (ts *testServer) do(t *testing.T, method, path, session string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if session != "" {
		req.Header.Set(SessionHeader, session)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) login(t *testing.T, userID int64, userType string) string {
	t.Helper()
	return ts.loginWithToken(t, "tok-"+userType, userID, userType)
}

func (ts *testServer) loginWithToken(t *testing.T, token string, userID int64, userType string) string {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/sessions", "", CreateSessionRequest{
		Token:    token,
		UserID:   userID,
		UserType: userType,
		Profile:  &store.Profile{Name: "Maria"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp SessionResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.SessionID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestSessions(t *testing.T) {
	ts := newTestServer(t)

	t.Run("Protected routes need a session", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/appointments/stats", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("Session carries profile and bearer token", func(t *testing.T) {
		sid := ts.login(t, 55, "assistido")

		me := decode[SessionResponse](t, ts.do(t, http.MethodGet, "/sessions/me", sid, nil))
		require.NotNil(t, me.Profile)
		assert.Equal(t, "Maria", me.Profile.Name)
		assert.Equal(t, int64(55), me.Profile.UserID)

		rec := ts.do(t, http.MethodGet, "/appointments/stats", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"hoje":1,"semana":2,"mes":3}`, rec.Body.String())
		assert.True(t, ts.backend.sawToken("Bearer tok-assistido"))
	})

	t.Run("Backend 401 ends the session", func(t *testing.T) {
		sid := ts.login(t, 55, "assistido")
		ts.backend.setReject(true)
		defer ts.backend.setReject(false)

		rec := ts.do(t, http.MethodGet, "/appointments/recent", sid, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		resp := decode[ErrorResponse](t, rec)
		assert.Equal(t, "token expirado", resp.Details)
		require.NotNil(t, resp.Upstream)
		assert.Equal(t, http.StatusUnauthorized, *resp.Upstream)

		_, err := ts.store.LoadAuth(context.Background(), sid)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("Sign out", func(t *testing.T) {
		sid := ts.login(t, 55, "assistido")
		rec := ts.do(t, http.MethodDelete, "/sessions/me", sid, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)

		rec = ts.do(t, http.MethodGet, "/sessions/me", sid, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestAppointmentRoutes(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.login(t, 55, "assistido")

	t.Run("Next with none scheduled", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/appointments/next", sid, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("Available times", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/volunteers/7/available-times?date=2025-06-01", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{"09:00", "10:00"}, decode[TimesResponse](t, rec).Times)
	})

	t.Run("Bad user type", func(t *testing.T) {
		rec := ts.do(t, http.MethodGet, "/appointments/history?user=admin", sid, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Rating out of range", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/appointments/4/rating", sid, RatingRequest{Rating: 9})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestBookingFlow(t *testing.T) {
	ts := newTestServer(t)
	sid := ts.login(t, 55, "assistido")

	opened := decode[booking.Snapshot](t, ts.do(t, http.MethodPost, "/bookings", sid, nil))
	base := "/bookings/" + opened.ID
	assert.Equal(t, 1, opened.Step)

	rec := ts.do(t, http.MethodPost, base+"/next", sid, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	steps := []struct {
		path string
		body any
	}{
		{"/specialist", SpecialistRequest{VolunteerID: 7}},
		{"/date", DateRequest{Date: "2025-06-01"}},
		{"/time", TimeRequest{Time: "10:00"}},
		{"/modality", ModalityRequest{Modality: appointment.ModalityOnline}},
	}
	for _, s := range steps {
		rec := ts.do(t, http.MethodPut, base+s.path, sid, s.body)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = ts.do(t, http.MethodPost, base+"/next", sid, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	snap := decode[booking.Snapshot](t, ts.do(t, http.MethodGet, base, sid, nil))
	assert.Equal(t, "confirm", snap.State)

	rec = ts.do(t, http.MethodPost, base+"/submit", sid, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, int64(900), decode[BookingSubmitted](t, rec).Appointment.ID)
	assert.Equal(t, 1, ts.backend.createCount())

	rec = ts.do(t, http.MethodGet, base, sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "a submitted wizard is torn down")

	t.Run("Another session cannot see the wizard", func(t *testing.T) {
		other := ts.login(t, 56, "assistido")
		snap := decode[booking.Snapshot](t, ts.do(t, http.MethodPost, "/bookings", sid, nil))
		rec := ts.do(t, http.MethodGet, "/bookings/"+snap.ID, other, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("Volunteers do not book", func(t *testing.T) {
		vol := ts.login(t, 7, "voluntario")
		rec := ts.do(t, http.MethodPost, "/bookings", vol, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestCalendarRoutes(t *testing.T) {
	ts := newTestServer(t)
	vol := ts.login(t, 7, "voluntario")

	t.Run("Only the owner manages the calendar", func(t *testing.T) {
		other := ts.login(t, 8, "voluntario")
		rec := ts.do(t, http.MethodGet, "/volunteers/7/calendar", other, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	rec := ts.do(t, http.MethodPost, "/volunteers/7/calendar/2025-06-01/slots", vol, AddSlotRequest{Time: "09:00", Modality: appointment.ModalityOnline})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	slot := decode[availability.Slot](t, rec)
	assert.Equal(t, int64(11), slot.ID)

	rec = ts.do(t, http.MethodPost, "/volunteers/7/calendar/2025-06-01/slots", vol, AddSlotRequest{Time: "09:00", Modality: appointment.ModalityOnline})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPut, "/volunteers/7/calendar/2025-06-01", vol, EditDayRequest{Times: []string{"09:00", "11:00"}, Modality: appointment.ModalityOnline})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"11:00"}, decode[availability.Plan](t, rec).Creates)

	view := decode[availability.View](t, ts.do(t, http.MethodGet, "/volunteers/7/calendar?month=2025-06", vol, nil))
	require.Len(t, view.Days, 1)
	assert.Len(t, view.Days[0].Slots, 2)

	rec = ts.do(t, http.MethodDelete, "/volunteers/7/calendar/2025-06-01", vol, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	view = decode[availability.View](t, ts.do(t, http.MethodGet, "/volunteers/7/calendar?month=2025-06", vol, nil))
	assert.Empty(t, view.Days)

	t.Run("A rejected token never reads the cached calendar", func(t *testing.T) {
		rec := ts.do(t, http.MethodPost, "/volunteers/7/calendar/2025-06-02/slots", vol, AddSlotRequest{Time: "09:00", Modality: appointment.ModalityOnline})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		for _, path := range []string{"/volunteers/7/calendar", "/volunteers/7/calendar?day=2025-06-02"} {
			forged := ts.loginWithToken(t, forgedToken, 7, "voluntario")

			rec = ts.do(t, http.MethodGet, path, forged, nil)

			assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
			assert.NotContains(t, rec.Body.String(), "2025-06-02", path)
			_, err := ts.store.LoadAuth(context.Background(), forged)
			assert.ErrorIs(t, err, store.ErrNotFound, path)
		}
	})
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health/ready", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[ReadinessResponse](t, rec)
	assert.Equal(t, "ok", resp.Dependencies["store"])
}
