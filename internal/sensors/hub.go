package sensors

import (
	"context"
	"sync/atomic"
	"time"

	"robot-service/internal/hardware"
	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// DegradedFunc is invoked once when a sensor crosses the consecutive
// invalid-read threshold, and again only after it has recovered first.
type DegradedFunc func(id types.SensorID, consecutive int)

// Hub polls every sensor channel on a fixed interval and publishes the
// combined snapshot atomically. Consumers always see a complete cycle,
// never a half-updated one.
type Hub struct {
	reader        hardware.SensorReader
	logger        *logger.Logger
	interval      time.Duration
	freshness     time.Duration
	degradedAfter int
	onDegraded    DegradedFunc

	latest      atomic.Value // types.SensorSnapshot
	invalidRuns map[types.SensorID]int
	degraded    map[types.SensorID]bool
}

func New(reader hardware.SensorReader, l *logger.Logger, interval, freshness time.Duration, degradedAfter int) *Hub {
	h := &Hub{
		reader:        reader,
		logger:        l.WithTag("sensors"),
		interval:      interval,
		freshness:     freshness,
		degradedAfter: degradedAfter,
		invalidRuns:   make(map[types.SensorID]int),
		degraded:      make(map[types.SensorID]bool),
	}
	h.latest.Store(types.SensorSnapshot{})
	return h
}

// OnDegraded registers the degradation callback. Must be called before Run.
func (h *Hub) OnDegraded(fn DegradedFunc) {
	h.onDegraded = fn
}

// Run polls until the context is cancelled. The first cycle runs
// immediately so consumers do not wait a full interval for data.
func (h *Hub) Run(ctx context.Context) error {
	h.logger.Infof("Starting sensor poll loop, interval %s", h.interval)

	h.poll(time.Now())
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Infof("Sensor poll loop stopped")
			return ctx.Err()
		case now := <-ticker.C:
			h.poll(now)
		}
	}
}

func (h *Hub) poll(now time.Time) {
	readings := make(map[types.SensorID]types.Reading, len(types.AllSensors))

	for _, id := range types.AllSensors {
		value, unit, err := h.reader.Read(id)
		if err != nil {
			readings[id] = types.Reading{Timestamp: now, Valid: false}
			h.markInvalid(id, err)
			continue
		}
		readings[id] = types.Reading{Value: value, Unit: unit, Timestamp: now, Valid: true}
		if h.invalidRuns[id] > 0 {
			h.logger.Infof("Sensor %s recovered after %d invalid reads", id, h.invalidRuns[id])
		}
		h.invalidRuns[id] = 0
		h.degraded[id] = false
	}

	h.latest.Store(types.SensorSnapshot{Readings: readings, Taken: now})
}

func (h *Hub) markInvalid(id types.SensorID, err error) {
	h.invalidRuns[id]++
	h.logger.Debugf("Invalid read from %s (%d consecutive): %v", id, h.invalidRuns[id], err)

	if h.invalidRuns[id] >= h.degradedAfter && !h.degraded[id] {
		h.degraded[id] = true
		h.logger.Warnf("Sensor %s degraded after %d consecutive invalid reads", id, h.invalidRuns[id])
		if h.onDegraded != nil {
			h.onDegraded(id, h.invalidRuns[id])
		}
	}
}

// Latest returns the most recent snapshot. A snapshot older than the
// freshness window is returned with every reading invalidated so
// consumers fall back to their conservative paths.
func (h *Hub) Latest() types.SensorSnapshot {
	snap := h.latest.Load().(types.SensorSnapshot)
	if snap.Taken.IsZero() || time.Since(snap.Taken) <= h.freshness {
		return snap
	}

	stale := types.SensorSnapshot{
		Readings: make(map[types.SensorID]types.Reading, len(snap.Readings)),
		Taken:    snap.Taken,
	}
	for id, r := range snap.Readings {
		r.Valid = false
		stale.Readings[id] = r
	}
	return stale
}
