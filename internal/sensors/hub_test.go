package sensors

import (
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"robot-service/internal/logger"
	"robot-service/internal/types"
)

// Mock SensorReader with per-channel failure control
type fakeReader struct {
	mu      sync.Mutex
	values  map[types.SensorID]float64
	failing map[types.SensorID]bool
}

func newFakeReader() *fakeReader {
	return &fakeReader{
		values: map[types.SensorID]float64{
			types.SensorFront:       1.5,
			types.SensorLeft:        1.5,
			types.SensorRight:       1.5,
			types.SensorGas:         50,
			types.SensorTemperature: 22,
			types.SensorHumidity:    45,
		},
		failing: make(map[types.SensorID]bool),
	}
}

func (r *fakeReader) Read(id types.SensorID) (float64, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing[id] {
		return 0, "", errors.New("read failed")
	}
	return r.values[id], "m", nil
}

func (r *fakeReader) setFailing(id types.SensorID, failing bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failing[id] = failing
}

func testHub(reader *fakeReader, freshness time.Duration) *Hub {
	l := logger.NewLogger(log.New(io.Discard, "", 0), logger.LogLevelNone)
	return New(reader, l, 10*time.Millisecond, freshness, 3)
}

func TestPollPublishesCompleteSnapshot(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, time.Second)

	now := time.Now()
	h.poll(now)

	snap := h.Latest()
	if len(snap.Readings) != len(types.AllSensors) {
		t.Fatalf("Expected %d readings, got %d", len(types.AllSensors), len(snap.Readings))
	}
	if !snap.Taken.Equal(now) {
		t.Errorf("Expected snapshot taken at poll time")
	}

	front, ok := snap.Clearance(types.SensorFront)
	if !ok || front != 1.5 {
		t.Errorf("Expected front clearance 1.5, got %.2f (ok=%v)", front, ok)
	}
}

func TestFailedReadMarkedInvalid(t *testing.T) {
	reader := newFakeReader()
	reader.setFailing(types.SensorFront, true)
	h := testHub(reader, time.Second)

	h.poll(time.Now())

	snap := h.Latest()
	if _, ok := snap.Clearance(types.SensorFront); ok {
		t.Error("Expected the failed channel to read as invalid")
	}
	// other channels are unaffected
	if _, ok := snap.Clearance(types.SensorLeft); !ok {
		t.Error("Expected the healthy channels to stay valid")
	}
}

func TestDegradedFiresOncePerEpisode(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, time.Second)

	var (
		mu    sync.Mutex
		fired []int
	)
	h.OnDegraded(func(id types.SensorID, consecutive int) {
		if id != types.SensorGas {
			t.Errorf("Unexpected degraded sensor: %s", id)
		}
		mu.Lock()
		fired = append(fired, consecutive)
		mu.Unlock()
	})

	reader.setFailing(types.SensorGas, true)
	now := time.Now()
	for i := 0; i < 6; i++ {
		h.poll(now.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	mu.Lock()
	count := len(fired)
	mu.Unlock()
	if count != 1 {
		t.Fatalf("Expected exactly one degraded callback, got %d", count)
	}
	if fired[0] != 3 {
		t.Errorf("Expected the callback at the third consecutive failure, got %d", fired[0])
	}
}

func TestDegradedFiresAgainAfterRecovery(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, time.Second)

	var (
		mu    sync.Mutex
		count int
	)
	h.OnDegraded(func(id types.SensorID, consecutive int) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	now := time.Now()
	reader.setFailing(types.SensorGas, true)
	for i := 0; i < 4; i++ {
		h.poll(now.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	// recover, then fail again
	reader.setFailing(types.SensorGas, false)
	h.poll(now.Add(50 * time.Millisecond))

	reader.setFailing(types.SensorGas, true)
	for i := 6; i < 10; i++ {
		h.poll(now.Add(time.Duration(i) * 10 * time.Millisecond))
	}

	mu.Lock()
	defer mu.Unlock()
	if count != 2 {
		t.Errorf("Expected a second degraded episode after recovery, got %d callbacks", count)
	}
}

func TestLatestInvalidatesStaleSnapshot(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, 50*time.Millisecond)

	h.poll(time.Now().Add(-time.Second))

	snap := h.Latest()
	if _, ok := snap.Clearance(types.SensorFront); ok {
		t.Error("Expected every reading invalidated in a stale snapshot")
	}
	for id, r := range snap.Readings {
		if r.Valid {
			t.Errorf("Reading %s still valid in a stale snapshot", id)
		}
	}
}

func TestLatestFreshSnapshotStaysValid(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, time.Second)

	h.poll(time.Now())

	snap := h.Latest()
	if _, ok := snap.Clearance(types.SensorFront); !ok {
		t.Error("Expected a fresh snapshot to keep its readings valid")
	}
}

func TestLatestBeforeFirstPoll(t *testing.T) {
	reader := newFakeReader()
	h := testHub(reader, time.Second)

	snap := h.Latest()
	if len(snap.Readings) != 0 {
		t.Errorf("Expected an empty snapshot before the first poll, got %d readings", len(snap.Readings))
	}
	if _, ok := snap.Clearance(types.SensorFront); ok {
		t.Error("Expected no clearance from an empty snapshot")
	}
}
