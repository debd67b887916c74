package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/goccy/go-json"

	"github.com/hackgods/assistance-scheduling/internal/config"
)

type SimConfig struct {
	BFFBaseURL     string
	Duration       time.Duration
	Workers        int
	BookingRatio   float64
	CalendarRatio  float64
	ReadRatio      float64
	AssistedID     int64
	AssistedToken  string
	VolunteerToken string
	Volunteers     []int64
	DaysAhead      int
}

// session is one worker's login against the BFF.
type session struct {
	id     string
	userID int64
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)

	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]

	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Session      OperationMetrics
	Booking      OperationMetrics
	BookingStep  OperationMetrics
	CalendarRead OperationMetrics
	CalendarEdit OperationMetrics
	Stats        OperationMetrics
	Upcoming     OperationMetrics
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("config: duration=%s workers=%d booking=%.2f calendar=%.2f read=%.2f volunteers=%d",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CalendarRatio, cfg.ReadRatio, len(cfg.Volunteers))

	gofakeit.Seed(time.Now().UnixNano())

	sim := &Simulator{
		config: cfg,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	// Run simulation
	sim.Run()

	// Print report
	sim.PrintReport()
}

func loadConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}

	cfg := SimConfig{
		BFFBaseURL:     getEnv("SIM_BFF_BASE_URL", "http://localhost:"+baseCfg.HTTPPort),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		BookingRatio:   getFloat("SIM_BOOKING_RATIO", 0.4),
		CalendarRatio:  getFloat("SIM_CALENDAR_RATIO", 0.3),
		ReadRatio:      getFloat("SIM_READ_RATIO", 0.3),
		AssistedID:     int64(getInt("SIM_ASSISTED_ID", 0)),
		AssistedToken:  os.Getenv("SIM_ASSISTED_TOKEN"),
		VolunteerToken: os.Getenv("SIM_VOLUNTEER_TOKEN"),
		Volunteers:     baseCfg.SyncVolunteers,
		DaysAhead:      getInt("SIM_DAYS_AHEAD", 14),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CalendarRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CalendarRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.AssistedID <= 0 || cfg.AssistedToken == "" {
		return fmt.Errorf("SIM_ASSISTED_ID and SIM_ASSISTED_TOKEN are required")
	}
	if len(cfg.Volunteers) == 0 {
		return fmt.Errorf("SYNC_VOLUNTEER_IDS must list at least one volunteer")
	}
	if cfg.CalendarRatio > 0 && cfg.VolunteerToken == "" {
		return fmt.Errorf("SIM_VOLUNTEER_TOKEN is required when SIM_CALENDAR_RATIO > 0")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	return nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	log.Printf("starting simulation for %s with %d workers", s.config.Duration, s.config.Workers)

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	log.Println("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	assisted, ok := s.openSession(ctx, s.config.AssistedToken, s.config.AssistedID, "assistido")
	if !ok {
		log.Printf("worker %d: could not open assisted session", workerID)
		return
	}

	// Each worker edits one volunteer's calendar so the workers mostly
	// contend on the backend rather than on each other's locks.
	var volunteer *session
	if s.config.CalendarRatio > 0 {
		vid := s.config.Volunteers[workerID%len(s.config.Volunteers)]
		if v, ok := s.openSession(ctx, s.config.VolunteerToken, vid, "voluntario"); ok {
			volunteer = &v
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
			// Select operation based on ratios
			r := rng.Float64()
			if r < s.config.BookingRatio {
				s.doBooking(ctx, rng, assisted)
			} else if r < s.config.BookingRatio+s.config.CalendarRatio && volunteer != nil {
				s.doCalendarEdit(ctx, rng, *volunteer)
			} else {
				switch rng.Intn(3) {
				case 0:
					s.doRead(ctx, assisted, "/appointments/stats", &s.metrics.Stats)
				case 1:
					s.doRead(ctx, assisted, "/appointments/upcoming", &s.metrics.Upcoming)
				case 2:
					if volunteer != nil {
						s.doRead(ctx, *volunteer, fmt.Sprintf("/volunteers/%d/calendar", volunteer.userID), &s.metrics.CalendarRead)
					}
				}
			}
		}
	}
}

func (s *Simulator) openSession(ctx context.Context, token string, userID int64, userType string) (session, bool) {
	start := time.Now()
	var out struct {
		SessionID string `json:"sessionId"`
	}
	status, err := s.call(ctx, "", http.MethodPost, "/sessions", map[string]any{
		"token":    token,
		"userId":   userID,
		"userType": userType,
	}, &out)
	ok := err == nil && status == http.StatusCreated && out.SessionID != ""
	s.metrics.Session.Record(time.Since(start), ok, false)
	return session{id: out.SessionID, userID: userID}, ok
}

// doBooking walks one wizard from specialist to submission. A day with no
// free times or a time taken meanwhile counts as a conflict.
func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, sess session) {
	start := time.Now()
	success, conflict := s.book(ctx, rng, sess)
	s.metrics.Booking.Record(time.Since(start), success, conflict)
}

func (s *Simulator) book(ctx context.Context, rng *rand.Rand, sess session) (success, conflict bool) {
	var snap struct {
		ID string `json:"id"`
	}
	if !s.step(ctx, sess, http.MethodPost, "/bookings", nil, &snap, http.StatusCreated) {
		return false, false
	}
	base := "/bookings/" + snap.ID
	defer s.call(ctx, sess.id, http.MethodDelete, base, nil, nil)

	vid := s.config.Volunteers[rng.Intn(len(s.config.Volunteers))]
	if !s.step(ctx, sess, http.MethodPut, base+"/specialist", map[string]any{"idVoluntario": vid}, nil, http.StatusOK) ||
		!s.step(ctx, sess, http.MethodPost, base+"/next", nil, nil, http.StatusOK) {
		return false, false
	}

	day := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
	if !s.step(ctx, sess, http.MethodPut, base+"/date", map[string]any{"data": day}, nil, http.StatusOK) ||
		!s.step(ctx, sess, http.MethodPost, base+"/next", nil, nil, http.StatusOK) {
		return false, false
	}

	var times struct {
		Times []string `json:"horarios"`
	}
	if !s.step(ctx, sess, http.MethodGet, base+"/times", nil, &times, http.StatusOK) {
		return false, false
	}
	if len(times.Times) == 0 {
		return false, true
	}

	clock := times.Times[rng.Intn(len(times.Times))]
	status, err := s.call(ctx, sess.id, http.MethodPut, base+"/time", map[string]any{"horario": clock}, nil)
	if err != nil || status != http.StatusOK {
		return false, status == http.StatusUnprocessableEntity
	}
	if !s.step(ctx, sess, http.MethodPost, base+"/next", nil, nil, http.StatusOK) {
		return false, false
	}

	modality := gofakeit.RandomString([]string{"ONLINE", "PRESENCIAL"})
	if !s.step(ctx, sess, http.MethodPut, base+"/modality", map[string]any{"modalidade": modality}, nil, http.StatusOK) ||
		!s.step(ctx, sess, http.MethodPost, base+"/next", nil, nil, http.StatusOK) {
		return false, false
	}

	status, err = s.call(ctx, sess.id, http.MethodPost, base+"/submit", nil, nil)
	if err != nil {
		return false, false
	}
	return status == http.StatusCreated, status == http.StatusConflict || status == http.StatusUnprocessableEntity
}

// doCalendarEdit adds a random slot and removes it again.
func (s *Simulator) doCalendarEdit(ctx context.Context, rng *rand.Rand, sess session) {
	day := time.Now().AddDate(0, 0, 1+rng.Intn(s.config.DaysAhead)).Format("2006-01-02")
	clock := fmt.Sprintf("%02d:%02d", 8+rng.Intn(10), 30*rng.Intn(2))
	base := fmt.Sprintf("/volunteers/%d/calendar/%s", sess.userID, day)

	start := time.Now()
	status, err := s.call(ctx, sess.id, http.MethodPost, base+"/slots", map[string]any{
		"horario":    clock,
		"modalidade": gofakeit.RandomString([]string{"ONLINE", "PRESENCIAL"}),
	}, nil)
	s.metrics.CalendarEdit.Record(time.Since(start), err == nil && status == http.StatusCreated, status == http.StatusConflict)
	if err != nil || status != http.StatusCreated {
		return
	}

	start = time.Now()
	status, err = s.call(ctx, sess.id, http.MethodDelete, base+"/slots/"+clock, nil, nil)
	s.metrics.CalendarEdit.Record(time.Since(start), err == nil && status == http.StatusNoContent, status == http.StatusConflict)
}

func (s *Simulator) doRead(ctx context.Context, sess session, path string, om *OperationMetrics) {
	start := time.Now()
	status, err := s.call(ctx, sess.id, http.MethodGet, path, nil, nil)
	om.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// step performs one wizard request and records it.
func (s *Simulator) step(ctx context.Context, sess session, method, path string, body, out any, want int) bool {
	start := time.Now()
	status, err := s.call(ctx, sess.id, method, path, body, out)
	ok := err == nil && status == want
	s.metrics.BookingStep.Record(time.Since(start), ok, status == http.StatusConflict)
	return ok
}

func (s *Simulator) call(ctx context.Context, sessionID, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.BFFBaseURL+path, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set("X-Session-ID", sessionID)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
		return resp.StatusCode, nil
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Session", &s.metrics.Session)
	printOperationReport("Booking (end to end)", &s.metrics.Booking)
	printOperationReport("Booking step", &s.metrics.BookingStep)
	printOperationReport("Calendar edit", &s.metrics.CalendarEdit)
	printOperationReport("Calendar read", &s.metrics.CalendarRead)
	printOperationReport("Stats", &s.metrics.Stats)
	printOperationReport("Upcoming", &s.metrics.Upcoming)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func repeat(s string, n int) string {
	return strings.Repeat(s, n)
}
