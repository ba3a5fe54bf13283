package ai

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"robot-service/internal/logger"
)

var (
	// ErrNoBackend means every configured backend was unavailable or
	// failed for this query.
	ErrNoBackend = errors.New("no reasoning backend available")

	// ErrBackendTimeout marks a per-attempt deadline expiry.
	ErrBackendTimeout = errors.New("reasoning backend timed out")
)

// BackendHandle pairs a backend with its circuit-breaker state. A
// failed attempt opens the breaker for the cooldown; the first success
// after the cooldown closes it again immediately.
type BackendHandle struct {
	backend          Backend
	unavailableUntil time.Time
	failures         int
}

// Router tries backends in configured order, local first. Each attempt
// is bounded by the attempt timeout, so Resolve returns within
// len(backends) * attemptTimeout in the worst case.
type Router struct {
	logger         *logger.Logger
	attemptTimeout time.Duration
	cooldown       time.Duration

	mu      sync.Mutex
	handles []*BackendHandle
}

func NewRouter(l *logger.Logger, attemptTimeout, cooldown time.Duration, backends ...Backend) *Router {
	r := &Router{
		logger:         l.WithTag("ai-router"),
		attemptTimeout: attemptTimeout,
		cooldown:       cooldown,
	}
	for _, b := range backends {
		r.handles = append(r.handles, &BackendHandle{backend: b})
	}
	return r
}

// Resolve runs the query against the first available backend. On
// failure it opens that backend's breaker and moves on; when nothing is
// left it returns ErrNoBackend.
func (r *Router) Resolve(ctx context.Context, query string) (Response, error) {
	now := time.Now()
	var lastErr error

	for _, h := range r.candidates(now) {
		text, err := r.attempt(ctx, h.backend, query)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				err = fmt.Errorf("%s: %w", h.backend.Name(), ErrBackendTimeout)
			}
			r.markFailed(h, err)
			lastErr = err

			if ctx.Err() != nil {
				// caller deadline or cancellation, no point trying the rest
				return Response{}, fmt.Errorf("query aborted: %w", ctx.Err())
			}
			continue
		}

		r.markAvailable(h)
		action := ParseAction(text)
		r.logger.Infof("Resolved query via %s (%s): action=%s", h.backend.Name(), h.backend.Kind(), action.Kind)
		return Response{Text: text, Action: action, Backend: h.backend.Name()}, nil
	}

	if lastErr != nil {
		return Response{}, fmt.Errorf("%w (last failure: %w)", ErrNoBackend, lastErr)
	}
	return Response{}, ErrNoBackend
}

// candidates returns the handles whose breakers are closed, in
// configured order.
func (r *Router) candidates(now time.Time) []*BackendHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*BackendHandle
	for _, h := range r.handles {
		if now.Before(h.unavailableUntil) {
			r.logger.Debugf("Skipping %s, unavailable for another %s",
				h.backend.Name(), time.Until(h.unavailableUntil).Round(time.Millisecond))
			continue
		}
		out = append(out, h)
	}
	return out
}

func (r *Router) attempt(ctx context.Context, b Backend, query string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
	defer cancel()
	return b.Query(attemptCtx, query)
}

func (r *Router) markFailed(h *BackendHandle, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h.failures++
	h.unavailableUntil = time.Now().Add(r.cooldown)
	r.logger.Warnf("Backend %s failed (%d total): %v", h.backend.Name(), h.failures, err)
}

func (r *Router) markAvailable(h *BackendHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !h.unavailableUntil.IsZero() {
		r.logger.Infof("Backend %s recovered", h.backend.Name())
	}
	h.unavailableUntil = time.Time{}
}
