package infra

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

type fakeCounter struct {
	dec   domain.Decision
	err   error
	calls int
}

func (f *fakeCounter) Allow(context.Context, domain.Key, domain.Policy, time.Time) (domain.Decision, error) {
	f.calls++
	return f.dec, f.err
}

func TestFailoverStore_UsesPrimaryWhenHealthy(t *testing.T) {
	primary := &fakeCounter{dec: domain.Decision{Allowed: true, Remaining: 7}}
	fallback := &fakeCounter{dec: domain.Decision{Allowed: true, Remaining: 1}}
	s := NewFailoverStore(primary, fallback)

	dec, err := s.Allow(context.Background(), "k", domain.Policy{Limit: 10, Window: time.Minute}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dec.Remaining != 7 {
		t.Fatalf("expected primary decision, got %+v", dec)
	}
	if fallback.calls != 0 {
		t.Fatalf("expected fallback untouched, got %d calls", fallback.calls)
	}
}

func TestFailoverStore_FallsBackOnPrimaryError(t *testing.T) {
	primary := &fakeCounter{err: errors.New("connection refused")}
	fallback := &fakeCounter{dec: domain.Decision{Allowed: true, Remaining: 1}}

	var buf bytes.Buffer
	s := NewFailoverStore(primary, fallback, WithFailoverLogger(log.New(&buf, "", 0)))

	dec, err := s.Allow(context.Background(), "k", domain.Policy{Limit: 10, Window: time.Minute}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Allowed || dec.Remaining != 1 {
		t.Fatalf("expected fallback decision, got %+v", dec)
	}
	if !strings.Contains(buf.String(), "falling back to local") {
		t.Fatalf("expected degradation log, got %q", buf.String())
	}
}

func TestFailoverStore_ThrottlesDegradationLog(t *testing.T) {
	primary := &fakeCounter{err: errors.New("timeout")}
	fallback := &fakeCounter{dec: domain.Decision{Allowed: true}}

	var buf bytes.Buffer
	s := NewFailoverStore(primary, fallback, WithFailoverLogger(log.New(&buf, "", 0)))

	ctx := context.Background()
	pol := domain.Policy{Limit: 10, Window: time.Minute}
	for i := 0; i < 5; i++ {
		s.Allow(ctx, "k", pol, time.Now())
	}

	if got := strings.Count(buf.String(), "falling back"); got != 1 {
		t.Fatalf("expected a single throttled log line, got %d", got)
	}
	if fallback.calls != 5 {
		t.Fatalf("expected every call to reach the fallback, got %d", fallback.calls)
	}
}

func TestFailoverStore_NoFallbackPropagatesError(t *testing.T) {
	primary := &fakeCounter{err: errors.New("boom")}
	s := NewFailoverStore(primary, nil)

	_, err := s.Allow(context.Background(), "k", domain.Policy{Limit: 1, Window: time.Minute}, time.Now())
	if err == nil {
		t.Fatalf("expected error when there is no fallback")
	}
}
