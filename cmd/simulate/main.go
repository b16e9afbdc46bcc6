package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
)

type SimConfig struct {
	APIBaseURL     string
	Duration       time.Duration
	Workers        int
	CreateRatio    float64
	ListRatio      float64
	TraceRatio     float64
	InsuredPool    int
	ReplayRatio    float64 // share of creates that resend a used Idempotency-Key
	UnsupportedPct float64 // share of creates with a country the API rejects
}

// DataPool holds generated insured ids and the appointments created so far.
type DataPool struct {
	InsuredIDs   []string
	mu           sync.RWMutex
	appointments []string
	keys         []string
}

func (dp *DataPool) AddAppointment(id, key string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
	if key != "" {
		dp.keys = append(dp.keys, key)
	}
}

func (dp *DataPool) RandomAppointment(f *gofakeit.Faker) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[f.Number(0, len(dp.appointments)-1)], true
}

func (dp *DataPool) RandomKey(f *gofakeit.Faker) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.keys) == 0 {
		return "", false
	}
	return dp.keys[f.Number(0, len(dp.keys)-1)], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Rejected  int64 // expected 4xx
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success, rejected bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case rejected:
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
	Create OperationMetrics
	Replay OperationMetrics
	List   OperationMetrics
	Trace  OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
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

	log.Printf("config: duration=%s workers=%d create=%.2f list=%.2f trace=%.2f",
		cfg.Duration, cfg.Workers, cfg.CreateRatio, cfg.ListRatio, cfg.TraceRatio)

	sim := &Simulator{
		config: cfg,
		pool:   newDataPool(gofakeit.New(0), cfg.InsuredPool),
		client: &http.Client{Timeout: 10 * time.Second},
	}
	log.Printf("generated %d insured ids", len(sim.pool.InsuredIDs))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:     strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:       getDuration("SIM_DURATION", 30*time.Second),
		Workers:        getInt("SIM_WORKERS", 10),
		CreateRatio:    getFloat("SIM_CREATE_RATIO", 0.5),
		ListRatio:      getFloat("SIM_LIST_RATIO", 0.25),
		TraceRatio:     getFloat("SIM_TRACE_RATIO", 0.25),
		InsuredPool:    getInt("SIM_INSURED_POOL", 500),
		ReplayRatio:    getFloat("SIM_REPLAY_RATIO", 0.05),
		UnsupportedPct: getFloat("SIM_UNSUPPORTED_RATIO", 0.02),
	}

	total := cfg.CreateRatio + cfg.ListRatio + cfg.TraceRatio
	if total > 0 {
		cfg.CreateRatio /= total
		cfg.ListRatio /= total
		cfg.TraceRatio /= total
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.InsuredPool <= 0 {
		return fmt.Errorf("SIM_INSURED_POOL must be > 0")
	}
	return nil
}

func newDataPool(f *gofakeit.Faker, size int) *DataPool {
	dp := &DataPool{}
	seen := make(map[string]struct{}, size)
	for len(dp.InsuredIDs) < size && len(seen) < 100000 {
		id := f.Numerify("#####")
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		dp.InsuredIDs = append(dp.InsuredIDs, id)
	}
	return dp
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
	f := gofakeit.New(uint64(time.Now().UnixNano()) + uint64(workerID))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := f.Float64()
			switch {
			case r < s.config.CreateRatio:
				if f.Float64() < s.config.ReplayRatio {
					s.doReplay(ctx, f)
				} else {
					s.doCreate(ctx, f)
				}
			case r < s.config.CreateRatio+s.config.ListRatio:
				s.doList(ctx, f)
			default:
				s.doTrace(ctx, f)
			}
		}
	}
}

func (s *Simulator) createBody(f *gofakeit.Faker) []byte {
	country := f.RandomString([]string{"PE", "CL"})
	if f.Float64() < s.config.UnsupportedPct {
		country = f.CountryAbr()
	}
	body, _ := json.Marshal(map[string]any{
		"insuredId":  s.pool.InsuredIDs[f.Number(0, len(s.pool.InsuredIDs)-1)],
		"scheduleId": f.Number(1, 100000),
		"countryISO": country,
	})
	return body
}

func (s *Simulator) postCreate(ctx context.Context, body []byte, key string) (*http.Response, time.Duration, error) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", key)

	start := time.Now()
	resp, err := s.client.Do(req)
	return resp, time.Since(start), err
}

func (s *Simulator) doCreate(ctx context.Context, f *gofakeit.Faker) {
	key := uuid.NewString()
	resp, latency, err := s.postCreate(ctx, s.createBody(f), key)

	success, rejected := false, false
	if err == nil {
		defer resp.Body.Close()
		switch {
		case resp.StatusCode == http.StatusAccepted:
			success = true
			var created struct {
				AppointmentID string `json:"appointmentId"`
			}
			bodyBytes, _ := io.ReadAll(resp.Body)
			if json.Unmarshal(bodyBytes, &created) == nil && created.AppointmentID != "" {
				s.pool.AddAppointment(created.AppointmentID, key)
			}
		case resp.StatusCode == http.StatusBadRequest:
			rejected = true
		}
	}
	s.metrics.Create.Record(latency, success, rejected)
}

// doReplay resends a used key; the body is irrelevant because the API
// answers from the stored key.
func (s *Simulator) doReplay(ctx context.Context, f *gofakeit.Faker) {
	key, ok := s.pool.RandomKey(f)
	if !ok {
		return
	}
	resp, latency, err := s.postCreate(ctx, s.createBody(f), key)

	success, rejected := false, false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusAccepted && resp.Header.Get("Idempotent-Replayed") == "true"
		rejected = resp.StatusCode == http.StatusConflict
	}
	s.metrics.Replay.Record(latency, success, rejected)
}

func (s *Simulator) doList(ctx context.Context, f *gofakeit.Faker) {
	insuredID := s.pool.InsuredIDs[f.Number(0, len(s.pool.InsuredIDs)-1)]
	s.get(ctx, &s.metrics.List, fmt.Sprintf("%s/appointments/%s", s.config.APIBaseURL, insuredID))
}

func (s *Simulator) doTrace(ctx context.Context, f *gofakeit.Faker) {
	id, ok := s.pool.RandomAppointment(f)
	if !ok {
		return
	}
	s.get(ctx, &s.metrics.Trace, fmt.Sprintf("%s/appointments/%s/trace", s.config.APIBaseURL, id))
}

func (s *Simulator) get(ctx context.Context, om *OperationMetrics, url string) {
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		success = resp.StatusCode == http.StatusOK
	}
	om.Record(latency, success, false)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Create", &s.metrics.Create)
	printOperationReport("Idempotent replay", &s.metrics.Replay)
	printOperationReport("List by insured id", &s.metrics.List)
	printOperationReport("Trace", &s.metrics.Trace)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	rejected := atomic.LoadInt64(&om.Rejected)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if rejected > 0 {
		fmt.Printf("  Rejected: %d (%.1f%%)\n", rejected, float64(rejected)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

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
