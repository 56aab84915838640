// simulate drives concurrent reservation traffic against a running
// api-server to exercise the double-booking guarantees, then verifies
// the non-overlap invariant directly in Postgres.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medibook/scheduling/internal/config"
	"github.com/medibook/scheduling/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	SlotPool     int // distinct candidate start times; small pools force races
	DoctorLimit  int
	PatientLimit int
	PostgresDSN  string
}

type DataPool struct {
	Doctors  []uuid.UUID
	Patients []uuid.UUID

	mu           sync.RWMutex
	appointments []uuid.UUID
}

func (dp *DataPool) AddAppointment(id uuid.UUID) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) GetRandomAppointment() (uuid.UUID, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return uuid.Nil, false
	}
	return dp.appointments[rand.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Rejected  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	case status == http.StatusUnprocessableEntity:
		atomic.AddInt64(&om.Rejected, 1)
	default:
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
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min95(len(latencies))]
	return avg, min, max, p50, p95
}

func min95(n int) int {
	idx := n * 95 / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Reserve OperationMetrics
	Confirm OperationMetrics
	Cancel  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	slots   []time.Time
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	dataPool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d doctors, %d patients", len(dataPool.Doctors), len(dataPool.Patients))

	sim := &Simulator{
		config: cfg,
		pool:   dataPool,
		slots:  candidateSlots(cfg.SlotPool),
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.Run()
	sim.Report()

	if err := verifyNoOverlap(context.Background(), pgPool); err != nil {
		log.Fatalf("INVARIANT VIOLATION: %v", err)
	}
	log.Println("non-overlap invariant holds")
}

// candidateSlots picks aligned weekday-morning starts over the next two
// weeks so most attempts land inside the default template.
func candidateSlots(n int) []time.Time {
	var slots []time.Time
	cursor := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	for len(slots) < n {
		if wd := cursor.Weekday(); wd != time.Saturday && wd != time.Sunday {
			for h := 10; h <= 15 && len(slots) < n; h++ {
				slots = append(slots, time.Date(cursor.Year(), cursor.Month(), cursor.Day(), h, 0, 0, 0, time.UTC))
			}
		}
		cursor = cursor.AddDate(0, 0, 1)
	}
	return slots
}

func (s *Simulator) Run() {
	deadline := time.Now().Add(s.config.Duration)
	var wg sync.WaitGroup

	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(deadline) {
				switch rand.Intn(10) {
				case 0, 1:
					s.doConfirm()
				case 2:
					s.doCancel()
				default:
					s.doReserve()
				}
			}
		}()
	}

	wg.Wait()
}

func (s *Simulator) doReserve() {
	doctorID := s.pool.Doctors[rand.Intn(len(s.pool.Doctors))]
	patientID := s.pool.Patients[rand.Intn(len(s.pool.Patients))]
	start := s.slots[rand.Intn(len(s.slots))]

	body, _ := json.Marshal(map[string]any{
		"doctor_id":        doctorID.String(),
		"patient_id":       patientID.String(),
		"start_time":       start.Format(time.RFC3339),
		"duration_minutes": 30,
	})

	began := time.Now()
	resp, err := s.client.Post(s.config.APIBaseURL+"/appointments", "application/json", bytes.NewReader(body))
	if err != nil {
		s.metrics.Reserve.Record(time.Since(began), 0)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusCreated {
		var created struct {
			ID uuid.UUID `json:"id"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&created); err == nil {
			s.pool.AddAppointment(created.ID)
		}
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	s.metrics.Reserve.Record(time.Since(began), resp.StatusCode)
}

func (s *Simulator) doConfirm() {
	id, ok := s.pool.GetRandomAppointment()
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.client.Post(fmt.Sprintf("%s/appointments/%s/confirm", s.config.APIBaseURL, id), "application/json", nil)
	if err != nil {
		s.metrics.Confirm.Record(time.Since(began), 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	s.metrics.Confirm.Record(time.Since(began), resp.StatusCode)
}

func (s *Simulator) doCancel() {
	id, ok := s.pool.GetRandomAppointment()
	if !ok {
		return
	}

	began := time.Now()
	resp, err := s.client.Post(fmt.Sprintf("%s/appointments/%s/cancel", s.config.APIBaseURL, id), "application/json", nil)
	if err != nil {
		s.metrics.Cancel.Record(time.Since(began), 0)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	s.metrics.Cancel.Record(time.Since(began), resp.StatusCode)
}

func (s *Simulator) Report() {
	report := func(name string, om *OperationMetrics) {
		avg, min, max, p50, p95 := om.Stats()
		log.Printf("%s: total=%d success=%d conflict=%d rejected=%d error=%d avg=%s min=%s max=%s p50=%s p95=%s",
			name, om.Total, om.Success, om.Conflict, om.Rejected, om.Error, avg, min, max, p50, p95)
	}
	report("reserve", &s.metrics.Reserve)
	report("confirm", &s.metrics.Confirm)
	report("cancel", &s.metrics.Cancel)
}

// verifyNoOverlap asks Postgres for any pair of live appointments for
// one doctor whose ranges intersect.
func verifyNoOverlap(ctx context.Context, pool *pgxpool.Pool) error {
	var count int
	err := pool.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments a
		JOIN appointments b
		  ON a.doctor_id = b.doctor_id
		 AND a.id < b.id
		 AND a.status IN ('pending', 'confirmed')
		 AND b.status IN ('pending', 'confirmed')
		 AND a.start_time < b.end_time
		 AND b.start_time < a.end_time
	`).Scan(&count)
	if err != nil {
		return fmt.Errorf("overlap query: %w", err)
	}
	if count > 0 {
		return fmt.Errorf("%d overlapping live appointment pairs", count)
	}
	return nil
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `SELECT id FROM doctors LIMIT $1`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Doctors = append(dp.Doctors, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prows, err := pool.Query(ctx, `SELECT id FROM patients LIMIT $1`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer prows.Close()
	for prows.Next() {
		var id uuid.UUID
		if err := prows.Scan(&id); err != nil {
			return nil, err
		}
		dp.Patients = append(dp.Patients, id)
	}
	if err := prows.Err(); err != nil {
		return nil, err
	}

	if len(dp.Doctors) == 0 || len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no doctors or patients; run the seed binary first")
	}
	return dp, nil
}

func loadConfig() SimConfig {
	appCfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_URL", "http://localhost:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 16),
		SlotPool:     getIntEnv("SIM_SLOT_POOL", 40),
		DoctorLimit:  getIntEnv("SIM_DOCTOR_LIMIT", 5),
		PatientLimit: getIntEnv("SIM_PATIENT_LIMIT", 50),
		PostgresDSN:  appCfg.PostgresDSN,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
