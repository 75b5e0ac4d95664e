package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"

	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/api"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/appointment"
	"github.com/AntonioAguirreAA/ClinicaOnLineAguirre/internal/user"
)

// accounts created by cmd/seed and by the in-memory stack share this password
const seedPassword = "turnos123"

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	CancelRatio  float64
	ReadRatio    float64
	PatientLimit int
	Hotspot      int // bookings pick among the first Hotspot offered slots
	Memory       bool
}

type offer struct {
	SpecialistID string
	Specialty    string
}

type booked struct {
	ID    string
	token string
}

type DataPool struct {
	Patients   []string // bearer tokens
	AdminToken string
	Offers     []offer

	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) GetRandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
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

func (om *OperationMetrics) Stats() (avg, lo, hi, p50, p95 time.Duration) {
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
	lo = latencies[0]
	hi = latencies[len(latencies)-1]
	p50 = latencies[min(len(latencies)*50/100, len(latencies)-1)]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	return avg, lo, hi, p50, p95
}

type Metrics struct {
	Booking    OperationMetrics
	Cancel     OperationMetrics
	SlotLookup OperationMetrics
	List       OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	metrics Metrics
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	memory := flag.Bool("memory", false, "run against an in-process server on an in-memory store")
	flag.Parse()

	cfg := loadConfig()
	cfg.Memory = *memory
	if err := validateConfig(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	log.Printf("simulator starting: duration=%s workers=%d booking=%.2f cancel=%.2f read=%.2f memory=%t",
		cfg.Duration, cfg.Workers, cfg.BookingRatio, cfg.CancelRatio, cfg.ReadRatio, cfg.Memory)

	if cfg.Memory {
		baseURL, shutdown, err := startInMemory(cfg.PatientLimit)
		if err != nil {
			log.Fatalf("in-memory stack: %v", err)
		}
		defer shutdown()
		cfg.APIBaseURL = baseURL
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	dataPool, err := sim.loadDataPool(ctx)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	sim.pool = dataPool
	log.Printf("loaded: %d patients, %d specialist/specialty pairs", len(dataPool.Patients), len(dataPool.Offers))

	sim.Run()
	sim.PrintReport()

	if err := sim.verify(context.Background()); err != nil {
		log.Printf("verification failed: %v", err)
		os.Exit(1)
	}
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.4),
		PatientLimit: getInt("SIM_PATIENT_LIMIT", 15),
		Hotspot:      getInt("SIM_HOTSPOT", 3),
	}

	// Normalize ratios
	total := cfg.BookingRatio + cfg.CancelRatio + cfg.ReadRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.CancelRatio /= total
		cfg.ReadRatio /= total
	}

	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return errors.New("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return errors.New("SIM_DURATION must be > 0")
	}
	if cfg.PatientLimit <= 0 {
		return errors.New("SIM_PATIENT_LIMIT must be > 0")
	}
	if cfg.Hotspot <= 0 {
		return errors.New("SIM_HOTSPOT must be > 0")
	}
	return nil
}

// call sends a JSON request and decodes a 2xx JSON answer into out. The status is returned
// even when the request failed at the HTTP level.
func (s *Simulator) call(ctx context.Context, method, path, token string, body, out any) (int, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rd)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	return resp.StatusCode, json.NewDecoder(resp.Body).Decode(out)
}

// signIn retries while the auth rate limiter answers 429.
func (s *Simulator) signIn(ctx context.Context, email string) (string, error) {
	for attempt := 0; attempt < 20; attempt++ {
		var tok api.SignInResponse
		status, err := s.call(ctx, http.MethodPost, "/auth/signin", "", api.SignInRequest{Email: email, Password: seedPassword}, &tok)
		if err != nil {
			return "", err
		}
		switch status {
		case http.StatusOK:
			return tok.AccessToken, nil
		case http.StatusTooManyRequests:
			time.Sleep(3 * time.Second)
		default:
			return "", fmt.Errorf("sign in %s: status %d", email, status)
		}
	}
	return "", fmt.Errorf("sign in %s: still rate limited", email)
}

func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	dataPool := &DataPool{}

	admin, err := s.signIn(ctx, "admin@clinica.test")
	if err != nil {
		return nil, fmt.Errorf("admin: %w", err)
	}
	dataPool.AdminToken = admin

	for i := 0; i < s.config.PatientLimit; i++ {
		tok, err := s.signIn(ctx, fmt.Sprintf("paciente%04d@clinica.test", i))
		if err != nil {
			if i == 0 {
				return nil, err
			}
			log.Printf("stopping at %d patients: %v", i, err)
			break
		}
		dataPool.Patients = append(dataPool.Patients, tok)
	}

	var specialists []user.Specialist
	if _, err := s.call(ctx, http.MethodGet, "/especialistas", "", nil, &specialists); err != nil {
		return nil, fmt.Errorf("load specialists: %w", err)
	}
	for _, sp := range specialists {
		for _, av := range sp.Availability {
			if len(av.Rules) > 0 {
				dataPool.Offers = append(dataPool.Offers, offer{SpecialistID: sp.ID, Specialty: av.Name})
			}
		}
	}

	if len(dataPool.Offers) == 0 {
		return nil, errors.New("no specialist has availability")
	}
	return dataPool, nil
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

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.CancelRatio:
				s.doCancel(ctx, rng)
			default:
				s.doList(ctx, rng)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	token := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	o := s.pool.Offers[rng.Intn(len(s.pool.Offers))]
	base := "/especialistas/" + o.SpecialistID + "/especialidades/" + url.PathEscape(o.Specialty)

	start := time.Now()
	var days []api.DayResponse
	status, err := s.call(ctx, http.MethodGet, base+"/dias", token, nil, &days)
	if err != nil || status != http.StatusOK || len(days) == 0 {
		s.metrics.SlotLookup.Record(time.Since(start), false, false)
		return
	}
	// the first days are where patients collide
	day := days[rng.Intn(min(2, len(days)))].Date

	var slots api.SlotsResponse
	status, err = s.call(ctx, http.MethodGet, base+"/horarios?fecha="+day, token, nil, &slots)
	s.metrics.SlotLookup.Record(time.Since(start), err == nil && status == http.StatusOK, false)
	if err != nil || status != http.StatusOK || len(slots.Slots) == 0 {
		return
	}
	slot := slots.Slots[rng.Intn(min(s.config.Hotspot, len(slots.Slots)))]

	start = time.Now()
	var appt appointment.Appointment
	status, err = s.call(ctx, http.MethodPost, "/turnos", token, api.CreateAppointmentRequest{
		SpecialistID: o.SpecialistID,
		Specialty:    o.Specialty,
		Date:         day,
		Slot:         slot,
	}, &appt)
	latency := time.Since(start)

	success := err == nil && status == http.StatusCreated
	// 422 means another booking landed between the lookup and the submit
	conflict := status == http.StatusConflict || status == http.StatusUnprocessableEntity
	if success {
		s.pool.AddAppointment(booked{ID: appt.ID, token: token})
	}
	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	b, ok := s.pool.GetRandomAppointment(rng)
	if !ok {
		return
	}

	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/turnos/"+b.ID+"/cancelar", b.token,
		api.CommentRequest{Comment: "cancelado por simulación"}, nil)
	s.metrics.Cancel.Record(time.Since(start), err == nil && status == http.StatusOK, status == http.StatusConflict)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand) {
	token := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/turnos?limit=20", token, nil, nil)
	s.metrics.List.Record(time.Since(start), err == nil && status == http.StatusOK, false)
}

// verify lists every live appointment as administrator and fails on two sharing a slot.
func (s *Simulator) verify(ctx context.Context) error {
	var list []appointment.Appointment
	status, err := s.call(ctx, http.MethodGet, "/turnos?estado=pendiente,aceptado,realizado,rechazado&limit=500", s.pool.AdminToken, nil, &list)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("list appointments: status %d", status)
	}

	seen := make(map[string]string, len(list))
	var dupes []string
	for _, a := range list {
		key := a.SpecialistID + "|" + a.Specialty + "|" + a.StartsAt.UTC().Format(time.RFC3339)
		if other, ok := seen[key]; ok {
			dupes = append(dupes, other+"/"+a.ID)
			continue
		}
		seen[key] = a.ID
	}

	fmt.Printf("Verification: %d live appointments checked, %d double bookings\n", len(list), len(dupes))
	if len(dupes) > 0 {
		return fmt.Errorf("double bookings: %s", strings.Join(dupes, ", "))
	}
	return nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Slot lookup", &s.metrics.SlotLookup)
	printOperationReport("List appointments", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, lo, hi, p50, p95 := om.Stats()

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
		avg.Round(time.Millisecond), lo.Round(time.Millisecond), hi.Round(time.Millisecond),
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
