// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

const (
	requestIdHeader = "X-Request-Id"

	// Limiters idle for this long are dropped on the next sweep
	limiterIdleTimeout = 10 * time.Minute
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// rateLimiter keeps a token bucket per client IP
type rateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*clientLimiter
	rate      rate.Limit
	burst     int
	logger    *slog.Logger
	lastSweep time.Time
}

func newRateLimiter(
	requestsPerSecond float64,
	burst int,
	logger *slog.Logger,
) *rateLimiter {
	return &rateLimiter{
		limiters:  make(map[string]*clientLimiter),
		rate:      rate.Limit(requestsPerSecond),
		burst:     burst,
		logger:    logger,
		lastSweep: time.Now(),
	}
}

// getLimiter returns the limiter for the given client key
func (rl *rateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	now := time.Now()
	if now.Sub(rl.lastSweep) > limiterIdleTimeout {
		for tmpKey, tmpLimiter := range rl.limiters {
			if now.Sub(tmpLimiter.lastSeen) > limiterIdleTimeout {
				delete(rl.limiters, tmpKey)
			}
		}
		rl.lastSweep = now
	}
	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{
			limiter: rate.NewLimiter(rl.rate, rl.burst),
		}
		rl.limiters[key] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// Handler rejects requests over the client's rate with 429
func (rl *rateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIp(r)
		if !rl.getLimiter(key).Allow() {
			rl.logger.Warn(
				"rate limit exceeded",
				"client", key,
				"path", r.URL.Path,
				"method", r.Method,
			)
			w.Header().Set("Retry-After", "1")
			writeError(
				w,
				http.StatusTooManyRequests,
				"Too Many Requests",
				"rate limit exceeded",
			)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientIp(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// requestIdMiddleware tags every request and response with a request ID,
// keeping one supplied by the client
func (a *Api) requestIdMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqId := r.Header.Get(requestIdHeader)
		if reqId == "" {
			reqId = uuid.NewString()
			r.Header.Set(requestIdHeader, reqId)
		}
		w.Header().Set(requestIdHeader, reqId)
		next.ServeHTTP(w, r)
	})
}

type apiMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newApiMetrics(promRegistry prometheus.Registerer) *apiMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &apiMetrics{
		requests: promautoFactory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tontip_api_requests_total",
				Help: "total API requests by route and status code",
			},
			[]string{"route", "code"},
		),
		duration: promautoFactory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tontip_api_request_duration_seconds",
				Help:    "API request latency by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// Unwrap exposes the underlying writer to http.ResponseController
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

func (a *Api) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unknown"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}
		// Hijacked connections cannot be wrapped
		if r.Header.Get("Upgrade") != "" {
			a.metrics.requests.WithLabelValues(route, "101").Inc()
			next.ServeHTTP(w, r)
			return
		}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)
		a.metrics.duration.WithLabelValues(route).Observe(
			time.Since(start).Seconds(),
		)
		a.metrics.requests.WithLabelValues(
			route,
			strconv.Itoa(rec.status),
		).Inc()
	})
}
