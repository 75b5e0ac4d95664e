package api

import (
	"context"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

const checkTimeout = time.Second

// PostgresPinger is satisfied by *pgxpool.Pool.
type PostgresPinger interface {
	Ping(ctx context.Context) error
}

// RedisPinger is satisfied by any go-redis client.
type RedisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// dependency is one readiness probe. A failing critical dependency makes the service unready,
// any other failure only degrades it.
type dependency struct {
	name     string
	critical bool
	check    func(ctx context.Context) error
}

type HealthHandler struct {
	deps    []dependency
	env     string
	version string
}

// NewHealthHandler probes postgres (critical) and redis. Listings keep working without redis,
// bookings do not, so a redis outage reports "degraded".
func NewHealthHandler(pg PostgresPinger, rdb RedisPinger, env, version string) *HealthHandler {
	return &HealthHandler{
		deps: []dependency{
			{name: "postgres", critical: true, check: pg.Ping},
			{name: "redis", check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		env:     env,
		version: version,
	}
}

// WithCheck adds a non-critical probe, e.g. the image bucket.
func (h *HealthHandler) WithCheck(name string, check func(ctx context.Context) error) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, check: check})
	return h
}

type LivenessResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Env     string `json:"env,omitempty"`
}

type ReadinessResponse struct {
	Status       string            `json:"status"`
	Version      string            `json:"version,omitempty"`
	Env          string            `json:"env,omitempty"`
	Dependencies map[string]string `json:"dependencies"`
}

func (h *HealthHandler) Liveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, LivenessResponse{
		Status:  "ok",
		Version: h.version,
		Env:     h.env,
	})
}

func (h *HealthHandler) Readiness(w http.ResponseWriter, r *http.Request) {
	resp := ReadinessResponse{
		Status:       "ok",
		Version:      h.version,
		Env:          h.env,
		Dependencies: make(map[string]string, len(h.deps)),
	}

	var criticalDown, otherDown bool
	for _, d := range h.deps {
		ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
		err := d.check(ctx)
		cancel()

		if err == nil {
			resp.Dependencies[d.name] = "ok"
			continue
		}
		resp.Dependencies[d.name] = "down"
		if d.critical {
			criticalDown = true
		} else {
			otherDown = true
		}
	}

	code := http.StatusOK
	switch {
	case criticalDown:
		resp.Status = "error"
		code = http.StatusServiceUnavailable
	case otherDown:
		resp.Status = "degraded"
	}
	writeJSON(w, code, resp)
}
