package anomaly

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"logwatch-backend/internal/storage"
)

type fakeLogs struct {
	mu      sync.Mutex
	current int
	history []storage.LogRecord
	err     error
	counts  int
}

func (f *fakeLogs) CountLogs(_ context.Context, filter storage.LogFilter) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts++
	if f.err != nil {
		return 0, f.err
	}
	return f.current, nil
}

func (f *fakeLogs) FindLogs(_ context.Context, _ storage.LogFilter, _ storage.LogOrder, _, _ int) ([]storage.LogRecord, error) {
	return f.history, nil
}

func (f *fakeLogs) countCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts
}

type fakeStore struct {
	created []storage.Anomaly
	items   map[string]storage.Anomaly
}

func (f *fakeStore) CreateAnomaly(_ context.Context, a storage.Anomaly) (storage.Anomaly, error) {
	a.ID = "anomaly-1"
	f.created = append(f.created, a)
	return a, nil
}

func (f *fakeStore) UpdateAnomaly(_ context.Context, id string, patch storage.AnomalyPatch) (storage.Anomaly, error) {
	current, ok := f.items[id]
	if !ok {
		return storage.Anomaly{}, storage.ErrNotFound
	}
	return patch.Apply(current), nil
}

func (f *fakeStore) ListAnomalies(context.Context) ([]storage.Anomaly, error) {
	return f.created, nil
}

type fakePublisher struct {
	subjects []string
}

func (f *fakePublisher) Publish(subject string, _ any) error {
	f.subjects = append(f.subjects, subject)
	return nil
}

var testNow = time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)

func newTestDetector(logs *fakeLogs, store *fakeStore) *Detector {
	d := NewDetector(logs, store, slog.New(slog.NewTextHandler(io.Discard, nil)), Options{})
	d.now = func() time.Time { return testNow }
	return d
}

// oneErrorPerPastHour produces a single record in each of buckets 1..23.
func oneErrorPerPastHour() []storage.LogRecord {
	records := make([]storage.LogRecord, 0, 23)
	for hour := 1; hour < 24; hour++ {
		records = append(records, storage.LogRecord{
			Type:      storage.LogTypeError,
			Timestamp: testNow.Add(-time.Duration(hour)*time.Hour - 10*time.Minute),
		})
	}
	return records
}

func TestCheckRecordsSpike(t *testing.T) {
	store := &fakeStore{}
	publisher := &fakePublisher{}
	d := newTestDetector(&fakeLogs{current: 5, history: oneErrorPerPastHour()}, store)
	d.SetPublisher(publisher)

	anomaly, err := d.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anomaly == nil || len(store.created) != 1 {
		t.Fatalf("expected one anomaly")
	}
	got := store.created[0]
	if got.Threshold != 3 || got.Average24hCount != 1 || got.CurrentHourCount != 5 {
		t.Fatalf("unexpected anomaly values: %+v", got)
	}
	if got.Type != storage.AnomalyErrorSpike || got.ProjectID != DefaultProjectID || !got.DetectedAt.Equal(testNow) {
		t.Fatalf("unexpected anomaly metadata: %+v", got)
	}
	if len(publisher.subjects) != 1 || publisher.subjects[0] != EventSubject {
		t.Fatalf("expected anomaly to be published, got %v", publisher.subjects)
	}
}

func TestCheckBelowThreshold(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(&fakeLogs{current: 2, history: oneErrorPerPastHour()}, store)
	anomaly, err := d.Check(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if anomaly != nil || len(store.created) != 0 {
		t.Fatalf("expected no anomaly")
	}
}

func TestCheckAtThresholdDoesNotTrigger(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(&fakeLogs{current: 3, history: oneErrorPerPastHour()}, store)
	if _, err := d.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("comparison must be strict")
	}
}

// Zero baseline keeps the literal comparison: a single error after silence triggers.
func TestCheckZeroBaselineTriggersOnAnyError(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(&fakeLogs{current: 1}, store)
	if _, err := d.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 1 || store.created[0].Threshold != 0 {
		t.Fatalf("expected anomaly with zero threshold, got %+v", store.created)
	}

	store = &fakeStore{}
	d = newTestDetector(&fakeLogs{current: 0}, store)
	if _, err := d.Check(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no anomaly when there are no errors at all")
	}
}

func TestCheckPropagatesQueryFailure(t *testing.T) {
	storeErr := errors.New("db down")
	store := &fakeStore{}
	d := newTestDetector(&fakeLogs{err: storeErr}, store)
	if _, err := d.Check(context.Background()); !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if len(store.created) != 0 {
		t.Fatalf("no anomaly expected on failure")
	}
}

func TestHourlyBucketsDiscardsOutOfRange(t *testing.T) {
	records := []storage.LogRecord{
		{Timestamp: testNow.Add(-10 * time.Minute)},
		{Timestamp: testNow.Add(-90 * time.Minute)},
		{Timestamp: testNow.Add(-24 * time.Hour)},
		{Timestamp: testNow.Add(-30 * time.Hour)},
		{Timestamp: testNow.Add(5 * time.Minute)},
	}
	buckets := HourlyBuckets(testNow, records)
	if buckets[0] != 1 || buckets[1] != 1 {
		t.Fatalf("unexpected buckets: %v", buckets)
	}
	total := 0
	for _, c := range buckets {
		total += c
	}
	if total != 2 {
		t.Fatalf("expected out-of-range records to be discarded, got total %d", total)
	}
}

func TestBaselineExcludesCurrentHour(t *testing.T) {
	var buckets [24]int
	buckets[0] = 100
	buckets[5] = 46
	if got := Baseline(buckets); got != 2 {
		t.Fatalf("expected 2, got %v", got)
	}
}

func TestPeriodicCheckLifecycle(t *testing.T) {
	logs := &fakeLogs{}
	d := newTestDetector(logs, &fakeStore{})
	d.StopPeriodicCheck()
	if !d.StartPeriodicCheck() {
		t.Fatalf("expected start")
	}
	if d.StartPeriodicCheck() {
		t.Fatalf("expected second start to be a no-op")
	}
	deadline := time.Now().Add(2 * time.Second)
	for logs.countCalls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if logs.countCalls() != 1 {
		t.Fatalf("expected one immediate check, got %d", logs.countCalls())
	}
	d.StopPeriodicCheck()
	if d.Running() {
		t.Fatalf("expected stopped")
	}
}

func TestUpdateAnomalyNotFound(t *testing.T) {
	d := newTestDetector(&fakeLogs{}, &fakeStore{items: map[string]storage.Anomaly{}})
	if _, err := d.UpdateAnomaly(context.Background(), "missing", storage.AnomalyPatch{}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateAnomalyDefaults(t *testing.T) {
	store := &fakeStore{}
	d := newTestDetector(&fakeLogs{}, store)
	created, err := d.CreateAnomaly(context.Background(), storage.Anomaly{CurrentHourCount: 4})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created.Type != storage.AnomalyErrorSpike || created.ProjectID != DefaultProjectID || !created.DetectedAt.Equal(testNow) {
		t.Fatalf("defaults not applied: %+v", created)
	}
}
