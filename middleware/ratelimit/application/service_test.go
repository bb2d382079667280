package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"ratelimit-gateway/middleware/ratelimit/domain"
)

// fakeCounter grava a última chamada para as assertivas inspecionarem
// qual chave e política o Service resolveu.
type fakeCounter struct {
	dec    domain.Decision
	err    error
	calls  int
	gotKey domain.Key
	gotPol domain.Policy
}

func (f *fakeCounter) Allow(_ context.Context, key domain.Key, p domain.Policy, _ time.Time) (domain.Decision, error) {
	f.calls++
	f.gotKey = key
	f.gotPol = p
	return f.dec, f.err
}

func TestService_Decide_DefaultPolicyAndScope(t *testing.T) {
	fc := &fakeCounter{dec: domain.Decision{Allowed: true, Limit: 10, Remaining: 9}}
	svc := Service{
		Store:   fc,
		Default: domain.Policy{Limit: 10, Window: time.Minute},
	}

	dec := svc.Decide(context.Background(), "1.2.3.4", "/qualquer/rota", time.Now())
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
	if dec.Scope != DefaultScope {
		t.Fatalf("expected scope %q, got %q", DefaultScope, dec.Scope)
	}
	if fc.calls != 1 {
		t.Fatalf("expected 1 store call, got %d", fc.calls)
	}
	if want := domain.Key("default:1.2.3.4"); fc.gotKey != want {
		t.Fatalf("expected key %q, got %q", want, fc.gotKey)
	}
	if fc.gotPol.Limit != 10 || fc.gotPol.Window != time.Minute {
		t.Fatalf("expected default policy, got %+v", fc.gotPol)
	}
}

func TestService_Decide_RulePolicyScopesKey(t *testing.T) {
	fc := &fakeCounter{dec: domain.Decision{Allowed: true, Limit: 5, Remaining: 4}}
	svc := Service{
		Store:   fc,
		Default: domain.Policy{Limit: 100, Window: time.Minute},
		Rules: []domain.Rule{
			{Pattern: "/api/auth/*", Policy: domain.Policy{Limit: 5, Window: time.Minute}},
		},
	}

	dec := svc.Decide(context.Background(), "1.2.3.4", "/api/auth/login", time.Now())
	if want := domain.Key("/api/auth/*:1.2.3.4"); fc.gotKey != want {
		t.Fatalf("expected key %q, got %q", want, fc.gotKey)
	}
	if fc.gotPol.Limit != 5 {
		t.Fatalf("expected rule policy limit 5, got %d", fc.gotPol.Limit)
	}
	if dec.Scope != "/api/auth/*" {
		t.Fatalf("expected decision scoped to the rule, got %q", dec.Scope)
	}

	// Rota fora da regra volta para a política default e escopo default.
	svc.Decide(context.Background(), "1.2.3.4", "/api/messages", time.Now())
	if want := domain.Key("default:1.2.3.4"); fc.gotKey != want {
		t.Fatalf("expected key %q, got %q", want, fc.gotKey)
	}
	if fc.gotPol.Limit != 100 {
		t.Fatalf("expected default policy limit 100, got %d", fc.gotPol.Limit)
	}
}

func TestService_Decide_FailsOpenOnStoreError(t *testing.T) {
	fc := &fakeCounter{err: errors.New("backend indisponível")}
	svc := Service{
		Store:   fc,
		Default: domain.Policy{Limit: 3, Window: time.Minute},
	}

	now := time.Now()
	dec := svc.Decide(context.Background(), "k", "/x", now)
	if !dec.Allowed {
		t.Fatalf("expected fail-open on store error")
	}
	if dec.Limit != 3 || dec.Remaining != 3 {
		t.Fatalf("expected open decision with full quota, got %+v", dec)
	}
	if dec.RetryAfter != 0 {
		t.Fatalf("expected RetryAfter=0 when allowed, got %s", dec.RetryAfter)
	}
}

func TestService_Decide_AllowsWhenNoStore(t *testing.T) {
	svc := Service{Default: domain.Policy{Limit: 10, Window: time.Minute}}
	dec := svc.Decide(context.Background(), "k", "/x", time.Now())
	if !dec.Allowed {
		t.Fatalf("expected allowed")
	}
}

func TestService_Decide_ZeroLimitSkipsStore(t *testing.T) {
	fc := &fakeCounter{}
	svc := Service{Store: fc}

	dec := svc.Decide(context.Background(), "k", "/x", time.Now())
	if !dec.Allowed {
		t.Fatalf("expected allowed when no policy is configured")
	}
	if fc.calls != 0 {
		t.Fatalf("expected store untouched, got %d calls", fc.calls)
	}
}
