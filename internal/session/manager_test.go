package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("de")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Language != "de" || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
}

func TestManagerEnsureReusesActiveSession(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("en")

	same := m.Ensure(s.ID, "en")
	if same.ID != s.ID {
		t.Fatalf("Ensure should reuse the existing session")
	}

	fresh := m.Ensure("", "zh")
	if fresh.ID == s.ID || fresh.Language != "zh" {
		t.Fatalf("Ensure(\"\") should create a new session, got %+v", fresh)
	}
}

func TestSetLanguageHookFiresOnlyOnChange(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("en")

	var mu sync.Mutex
	var calls []string
	m.SetLanguageChangeHook(func(_, language string) {
		mu.Lock()
		calls = append(calls, language)
		mu.Unlock()
	})

	changed, err := m.SetLanguage(s.ID, "de")
	if err != nil || !changed {
		t.Fatalf("SetLanguage(de) = (%v, %v), want (true, nil)", changed, err)
	}
	changed, err = m.SetLanguage(s.ID, "de")
	if err != nil || changed {
		t.Fatalf("repeat SetLanguage(de) = (%v, %v), want (false, nil)", changed, err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(calls) != 1 || calls[0] != "de" {
		t.Fatalf("hook calls = %v, want exactly one for the actual change", calls)
	}
}

func TestSubmitSerializesRuns(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("en")

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = m.Submit(context.Background(), s.ID, func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mu.Unlock()

				time.Sleep(10 * time.Millisecond)

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	if maxRunning != 1 {
		t.Fatalf("maxRunning = %d, want 1 (runs must be serialized)", maxRunning)
	}
}

func TestSubmitSupersedeCancelsInFlightRun(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("en")

	firstStarted := make(chan struct{})
	firstErr := make(chan error, 1)

	go func() {
		firstErr <- m.Submit(context.Background(), s.ID, func(ctx context.Context) error {
			close(firstStarted)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return errors.New("first run was never cancelled")
			}
		})
	}()

	<-firstStarted
	err := m.Submit(context.Background(), s.ID, func(ctx context.Context) error {
		return nil
	})
	if err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("first run error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("first run did not finish after being superseded")
	}
}

func TestSubmitSupersededRunNeverReturnsSuccess(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("en")

	firstStarted := make(chan struct{})
	firstErr := make(chan error, 1)

	go func() {
		firstErr <- m.Submit(context.Background(), s.ID, func(ctx context.Context) error {
			close(firstStarted)
			// Finish cleanly only after the cancel lands; the run's
			// success must still not reach the superseded caller.
			<-ctx.Done()
			return nil
		})
	}()

	<-firstStarted
	if err := m.Submit(context.Background(), s.ID, func(ctx context.Context) error {
		return nil
	}); err != nil {
		t.Fatalf("second Submit() error = %v", err)
	}

	select {
	case err := <-firstErr:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("superseded Submit() error = %v, want context.Canceled", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("superseded Submit did not return")
	}
}

func TestSubmitUnknownSession(t *testing.T) {
	m := NewManager(time.Minute)
	err := m.Submit(context.Background(), "missing", func(ctx context.Context) error { return nil })
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Submit(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	expired := make(chan string, 1)
	m.SetExpireHook(func(s *Session) { expired <- s.ID })
	s := m.Create("en")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	select {
	case id := <-expired:
		if id != s.ID {
			t.Fatalf("expired session = %q, want %q", id, s.ID)
		}
	case <-time.After(time.Second):
		t.Fatalf("janitor never expired the idle session")
	}
}

func TestManagerJanitorRemovesEndedSessions(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("en")
	if _, err := m.End(s.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	deadline := time.Now().Add(time.Second)
	for {
		if _, err := m.Get(s.ID); errors.Is(err, ErrNotFound) {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("ended session was never removed from the registry")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
