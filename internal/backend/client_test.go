package backend

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingInvalidator struct {
	calls int
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return nil
}

type record struct {
	ID          int64  `json:"id" validate:"required"`
	DataHorario string `json:"dataHorario" validate:"required,datetime_iso"`
}

func TestClientErrorNormalization(t *testing.T) {
	t.Run("Server message and status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"message":"horario indisponivel"}`))
		}))
		defer srv.Close()

		err := NewClient(srv.URL).Get(context.Background(), "/consulta", nil, nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, "horario indisponivel", apiErr.Message)
		assert.Equal(t, http.StatusConflict, apiErr.Status)
		assert.Equal(t, KindServer, apiErr.Kind)
	})

	t.Run("Plain text server message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte("nota invalida"))
		}))
		defer srv.Close()

		err := NewClient(srv.URL).PostText(context.Background(), "/consulta/consultas/1/avaliacao", "9", nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, "nota invalida", apiErr.Message)
		assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	})

	t.Run("Empty error body falls back to generic message", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		err := NewClient(srv.URL).Get(context.Background(), "/consulta", nil, nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, MessageServerError, apiErr.Message)
		assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	})

	t.Run("No response means server unavailable", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		url := srv.URL
		srv.Close()

		err := NewClient(url).Get(context.Background(), "/consulta", nil, nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, MessageUnavailable, apiErr.Message)
		assert.Equal(t, StatusUnavailable, apiErr.Status)
		assert.Equal(t, KindUnavailable, apiErr.Kind)
	})

	t.Run("Client side failure is unexpected", func(t *testing.T) {
		err := NewClient("http://backend.local").PostJSON(context.Background(), "/consulta", make(chan int), nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.Equal(t, MessageUnexpected, apiErr.Message)
		assert.Equal(t, StatusUnexpected, apiErr.Status)
	})

	t.Run("Schema mismatch is rejected", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`[{"id": 3, "data": "2025-06-01T09:00:00"}]`))
		}))
		defer srv.Close()

		var out []record
		err := NewClient(srv.URL).Get(context.Background(), "/disponibilidade", nil, &out)

		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrSchemaMismatch))
		apiErr, _ := AsAPIError(err)
		assert.Equal(t, KindSchema, apiErr.Kind)
		assert.Equal(t, StatusUnexpected, apiErr.Status)
	})
}

func TestClientAuth(t *testing.T) {
	t.Run("Bearer token is attached", func(t *testing.T) {
		var got string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`[]`))
		}))
		defer srv.Close()

		var out []record
		err := NewClient(srv.URL, WithTokenSource(StaticToken("abc"))).Get(context.Background(), "/x", nil, &out)

		require.NoError(t, err)
		assert.Equal(t, "Bearer abc", got)
	})

	t.Run("Unauthorized invalidates the session", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer srv.Close()

		inv := &countingInvalidator{}
		err := NewClient(srv.URL, WithInvalidator(inv)).Get(context.Background(), "/x", nil, nil)

		apiErr, ok := AsAPIError(err)
		require.True(t, ok)
		assert.True(t, apiErr.Unauthorized())
		assert.Equal(t, 1, inv.calls)
	})
}

func TestClientBodies(t *testing.T) {
	t.Run("Plain text post", func(t *testing.T) {
		var contentType, body string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			contentType = r.Header.Get("Content-Type")
			raw, _ := io.ReadAll(r.Body)
			body = string(raw)
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		err := NewClient(srv.URL).PostText(context.Background(), "/consulta/consultas/5/feedback", "muito bom", nil)

		require.NoError(t, err)
		assert.Equal(t, "text/plain", contentType)
		assert.Equal(t, "muito bom", body)
	})

	t.Run("Optional get reports absence", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		defer srv.Close()

		var out record
		found, err := NewClient(srv.URL).GetOptional(context.Background(), "/consulta/consultas/1/proxima", nil, &out)

		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestClockTime(t *testing.T) {
	testCases := []struct {
		name     string
		raw      string
		expected string
	}{
		{name: "UTC designator", raw: "2025-06-01T09:00:00Z", expected: "09:00"},
		{name: "Explicit offset keeps wall clock", raw: "2025-06-01T09:30:00-03:00", expected: "09:30"},
		{name: "No offset", raw: "2025-06-01T14:05:00", expected: "14:05"},
		{name: "Fractional seconds", raw: "2025-06-01T07:45:00.123", expected: "07:45"},
		{name: "Minutes only", raw: "2025-06-01T18:00", expected: "18:00"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ClockTime(tc.raw)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}

	_, err := ClockTime("amanha")
	assert.Error(t, err)
}

func TestJoinAndSplit(t *testing.T) {
	joined, err := JoinDateTime("2025-06-01", "09:00")
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01T09:00:00", joined)

	day, clock, err := SplitDateTime(joined)
	require.NoError(t, err)
	assert.Equal(t, "2025-06-01", day)
	assert.Equal(t, "09:00", clock)

	_, err = JoinDateTime("2025-13-01", "09:00")
	assert.Error(t, err)

	assert.True(t, ValidClock("23:59"))
	assert.False(t, ValidClock("9:00"))
	assert.False(t, ValidClock("24:00"))
	assert.True(t, ValidDay("2025-02-28"))
	assert.False(t, ValidDay("2025-2-28"))
}

type countingTransport struct {
	calls int
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return http.DefaultTransport.RoundTrip(r)
}

func TestClientHTTPClientOption(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	transport := &countingTransport{}
	shared := &http.Client{Transport: transport, Timeout: time.Minute}

	c := NewClient(srv.URL, WithHTTPClient(shared), WithTimeout(2*time.Second))
	require.NoError(t, c.Get(context.Background(), "/consulta", nil, nil))

	assert.Equal(t, 1, transport.calls, "requests go through the supplied transport")
	assert.Equal(t, time.Minute, shared.Timeout, "the caller's client is left untouched")
	assert.Equal(t, 2*time.Second, c.http.Timeout)
}
