package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"

	"github.com/hackgods/clinic-availability/internal/db"
	"github.com/hackgods/clinic-availability/internal/logger"
)

// SimConfig is read from SIM_* variables, POSTGRES_DSN is shared with the
// services.
type SimConfig struct {
	APIBaseURL   string        `envconfig:"SIM_API_BASE_URL" default:"http://localhost:8080"`
	Duration     time.Duration `envconfig:"SIM_DURATION" default:"30s"`
	Workers      int           `envconfig:"SIM_WORKERS" default:"10"`
	BookingRatio float64       `envconfig:"SIM_BOOKING_RATIO" default:"0.4"`
	MatchRatio   float64       `envconfig:"SIM_MATCH_RATIO" default:"0.3"`
	AutoRatio    float64       `envconfig:"SIM_AUTOBOOK_RATIO" default:"0.1"`
	ReadRatio    float64       `envconfig:"SIM_READ_RATIO" default:"0.2"`
	HotSlots     int           `envconfig:"SIM_HOT_SLOTS" default:"50"` // bookings target this many slots to force contention
	PatientLimit int           `envconfig:"SIM_PATIENT_LIMIT" default:"2000"`
	PostgresDSN  string        `envconfig:"POSTGRES_DSN" required:"true"`
	CenterLat    float64       `envconfig:"SIM_CENTER_LAT" default:"-36.8485"`
	CenterLng    float64       `envconfig:"SIM_CENTER_LNG" default:"174.7633"`
}

type DataPool struct {
	Patients []string
	Slots    []uuid.UUID
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
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.Latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	pct := func(p int) time.Duration {
		idx := len(latencies) * p / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), pct(50), pct(95), latencies[len(latencies)-1]
}

type Metrics struct {
	Booking  OperationMetrics
	Match    OperationMetrics
	AutoBook OperationMetrics
	Unbooked OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

func main() {
	log := logger.New("dev", "info").With().Str("service", "simulate").Logger()

	_ = godotenv.Load()
	var cfg SimConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}
	if cfg.Workers <= 0 || cfg.Duration <= 0 {
		log.Fatal().Msg("SIM_WORKERS and SIM_DURATION must be > 0")
	}
	normalizeRatios(&cfg)

	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Float64("booking", cfg.BookingRatio).
		Float64("match", cfg.MatchRatio).
		Float64("autobook", cfg.AutoRatio).
		Float64("read", cfg.ReadRatio).
		Msg("simulator starting")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{MaxConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("connect postgres")
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("load data pool")
	}
	log.Info().Int("patients", len(dataPool.Patients)).Int("slots", len(dataPool.Slots)).Msg("data loaded")

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}
	sim.Run()
	sim.PrintReport()
}

func normalizeRatios(cfg *SimConfig) {
	total := cfg.BookingRatio + cfg.MatchRatio + cfg.AutoRatio + cfg.ReadRatio
	if total <= 0 {
		return
	}
	cfg.BookingRatio /= total
	cfg.MatchRatio /= total
	cfg.AutoRatio /= total
	cfg.ReadRatio /= total
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	rows, err := pool.Query(ctx, `SELECT id FROM patients ORDER BY id LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	patients, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan patients: %w", err)
	}

	rows, err = pool.Query(ctx, `
		SELECT id FROM availability_slots
		WHERE NOT is_booked AND start_time > now()
		ORDER BY start_time
		LIMIT $1
	`, cfg.HotSlots)
	if err != nil {
		return nil, fmt.Errorf("load slots: %w", err)
	}
	slots, err := pgx.CollectRows(rows, pgx.RowTo[uuid.UUID])
	if err != nil {
		return nil, fmt.Errorf("scan slots: %w", err)
	}

	if len(patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(slots) == 0 {
		return nil, fmt.Errorf("no slots loaded")
	}
	return &DataPool{Patients: patients, Slots: slots}, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	c := s.config

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < c.BookingRatio:
			s.doBooking(ctx, rng)
		case r < c.BookingRatio+c.MatchRatio:
			s.doLocated(ctx, rng, "/match", &s.metrics.Match, http.StatusOK)
		case r < c.BookingRatio+c.MatchRatio+c.AutoRatio:
			s.doLocated(ctx, rng, "/autobook", &s.metrics.AutoBook, http.StatusCreated)
		default:
			status, latency, err := s.send(ctx, http.MethodGet, "/availability/unbooked", nil)
			s.metrics.Unbooked.Record(latency, err == nil && status == http.StatusOK, false)
		}
	}
}

func (s *Simulator) patient(rng *rand.Rand) string {
	return s.pool.Patients[rng.Intn(len(s.pool.Patients))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	slotID := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	body := map[string]string{"patient_id": s.patient(rng)}

	status, latency, err := s.send(ctx, http.MethodPost, "/slots/"+slotID.String()+"/book", body)
	s.metrics.Booking.Record(latency, err == nil && status == http.StatusOK, status == http.StatusConflict)
}

// doLocated posts a random requester position within roughly 20km of the
// configured centre.
func (s *Simulator) doLocated(ctx context.Context, rng *rand.Rand, path string, om *OperationMetrics, want int) {
	body := map[string]any{
		"lat":        s.config.CenterLat + (rng.Float64()-0.5)*0.36,
		"lng":        s.config.CenterLng + (rng.Float64()-0.5)*0.36,
		"patient_id": s.patient(rng),
	}

	status, latency, err := s.send(ctx, http.MethodPost, path, body)
	// a 404 means nothing was left to offer, not a failure
	ok := err == nil && (status == want || status == http.StatusNotFound)
	om.Record(latency, ok, status == http.StatusConflict)
}

func (s *Simulator) send(ctx context.Context, method, path string, body any) (int, time.Duration, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, 0, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return 0, latency, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, latency, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Book slot", &s.metrics.Booking)
	printOperationReport("Match", &s.metrics.Match)
	printOperationReport("Auto-book", &s.metrics.AutoBook)
	printOperationReport("List unbooked", &s.metrics.Unbooked)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
}
