package trader

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/pmoerman/quadbot/internal/domain"
)

type memStore struct {
	mu      sync.Mutex
	paths   []domain.Path
	expired int
}

func (s *memStore) Create(_ context.Context, p domain.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paths = append(s.paths, p)
	return nil
}

func (s *memStore) Update(_ context.Context, p domain.Path) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.paths {
		if s.paths[i].ID == p.ID {
			s.paths[i] = p
			return nil
		}
	}
	return domain.ErrNotFound
}

func (s *memStore) GetByID(_ context.Context, id string) (domain.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.paths {
		if s.paths[i].ID == id {
			return s.paths[i], nil
		}
	}
	return domain.Path{}, domain.ErrNotFound
}

func (s *memStore) List(context.Context) ([]domain.Path, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Path, len(s.paths))
	copy(out, s.paths)
	return out, nil
}

func (s *memStore) Delete(context.Context, string) error { return nil }

func (s *memStore) Expire(context.Context, time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expired++
	return 0, nil
}

// fakeRunner records which paths it was handed and marks them done.
type fakeRunner struct {
	mu     sync.Mutex
	ran    []string
	status domain.Status
	block  chan struct{} // when set, Run waits here to expose concurrency
}

func (r *fakeRunner) Run(_ context.Context, p *domain.Path) error {
	r.mu.Lock()
	r.ran = append(r.ran, p.ID)
	r.mu.Unlock()
	if r.block != nil {
		<-r.block
	}
	status := r.status
	if status == "" {
		status = domain.StatusDone
	}
	p.Status = status
	return nil
}

func (r *fakeRunner) ranIDs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.ran...)
}

type fakePauses struct {
	active map[domain.LegKey]struct{}
}

func (p *fakePauses) Active(context.Context) (map[domain.LegKey]struct{}, error) {
	if p.active == nil {
		return map[domain.LegKey]struct{}{}, nil
	}
	return p.active, nil
}

type fakeAlerter struct {
	mu      sync.Mutex
	alerted []string
}

func (a *fakeAlerter) PathUnrecoverable(_ context.Context, p *domain.Path) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.alerted = append(a.alerted, p.ID)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func pathOn(id, exchange, market1, coin1, market2, coin3 string, status domain.Status) domain.Path {
	return domain.Path{
		ID:       id,
		Exchange: exchange,
		Status:   status,
		Legs: [4]domain.Leg{
			{Market: market1, Coin: coin1},
			{Market: market2, Coin: coin1},
			{Market: market2, Coin: coin3},
			{Market: market1, Coin: coin3},
		},
	}
}

func TestRunOnceSkipsTerminalExecutingAndPaused(t *testing.T) {
	store := &memStore{paths: []domain.Path{
		pathOn("done", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusDone),
		pathOn("runnable", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
		pathOn("busy", "alfa", "ETH", "XMR", "USD", "DOGE", domain.StatusStart),
		pathOn("paused", "bravo", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
	}}
	store.paths[2].Executing = true
	runner := &fakeRunner{}
	pauses := &fakePauses{active: map[domain.LegKey]struct{}{
		{Exchange: "bravo", Market: "USDT", Coin: "LTC"}: {},
	}}
	tr := New(store, runner, pauses, &fakeAlerter{}, testLogger())

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	ran := runner.ranIDs()
	if len(ran) != 1 || ran[0] != "runnable" {
		t.Errorf("ran = %v, want [runnable]", ran)
	}
	if store.expired != 1 {
		t.Errorf("expire calls = %d, want 1", store.expired)
	}
}

// Two paths over the same books cannot run in one round: the older one
// claims the legs, the newer one waits for a later round.
func TestRunOnceClashGoesToOlderPath(t *testing.T) {
	store := &memStore{paths: []domain.Path{
		pathOn("older", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
		pathOn("newer", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
		pathOn("unrelated", "alfa", "ETH", "DOGE", "USD", "XRP", domain.StatusBare),
	}}
	runner := &fakeRunner{}
	tr := New(store, runner, &fakePauses{}, &fakeAlerter{}, testLogger())

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	ran := runner.ranIDs()
	if len(ran) != 2 {
		t.Fatalf("ran = %v, want older and unrelated", ran)
	}
	for _, id := range ran {
		if id == "newer" {
			t.Error("clashing newer path ran in the same round")
		}
	}
}

// A skipped path still blocks everything behind it that shares its books.
func TestRunOnceSkippedPathStillClaimsLegs(t *testing.T) {
	store := &memStore{paths: []domain.Path{
		pathOn("busy", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusStart),
		pathOn("follower", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
	}}
	store.paths[0].Executing = true
	runner := &fakeRunner{}
	tr := New(store, runner, &fakePauses{}, &fakeAlerter{}, testLogger())

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(runner.ranIDs()) != 0 {
		t.Errorf("ran = %v, want none", runner.ranIDs())
	}
}

func TestRunOnceConcurrencyBound(t *testing.T) {
	var paths []domain.Path
	// Ten non-clashing paths on distinct routes.
	routes := [][4]string{
		{"BTC", "A1", "USDT", "A2"}, {"BTC", "B1", "USDT", "B2"},
		{"BTC", "C1", "USDT", "C2"}, {"BTC", "D1", "USDT", "D2"},
		{"BTC", "E1", "USDT", "E2"}, {"BTC", "F1", "USDT", "F2"},
		{"BTC", "G1", "USDT", "G2"}, {"BTC", "H1", "USDT", "H2"},
		{"BTC", "I1", "USDT", "I2"}, {"BTC", "J1", "USDT", "J2"},
	}
	for _, r := range routes {
		paths = append(paths, pathOn(r[1], "alfa", r[0], r[1], r[2], r[3], domain.StatusBare))
	}
	store := &memStore{paths: paths}
	runner := &fakeRunner{block: make(chan struct{})}
	tr := New(store, runner, &fakePauses{}, &fakeAlerter{}, testLogger())

	done := make(chan error, 1)
	go func() { done <- tr.RunOnce(context.Background()) }()

	// Wait for the round to launch what it will launch, then release.
	time.Sleep(100 * time.Millisecond)
	started := len(runner.ranIDs())
	close(runner.block)
	if err := <-done; err != nil {
		t.Fatalf("RunOnce: %v", err)
	}

	if started != DefaultMaxConcurrent {
		t.Errorf("started = %d, want %d", started, DefaultMaxConcurrent)
	}
}

func TestRunOnceAlertsUnrecoverable(t *testing.T) {
	store := &memStore{paths: []domain.Path{
		pathOn("doomed", "alfa", "BTC", "XMR", "USDT", "LTC", domain.StatusBare),
	}}
	runner := &fakeRunner{status: domain.StatusUnrecoverable}
	alerter := &fakeAlerter{}
	tr := New(store, runner, &fakePauses{}, alerter, testLogger())

	if err := tr.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(alerter.alerted) != 1 || alerter.alerted[0] != "doomed" {
		t.Errorf("alerted = %v, want [doomed]", alerter.alerted)
	}
}
