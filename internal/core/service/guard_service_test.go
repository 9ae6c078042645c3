package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

type guardFixture struct {
	guard     *GuardService
	store     *SessionStore
	directory *stubDirectory
	revoked   *Revocations
	bypass    *BypassTokens
}

func newGuardFixture(t *testing.T, directory *stubDirectory, timeout time.Duration) *guardFixture {
	t.Helper()
	store := NewSessionStore(newFakeScope(), newFakeScope(), zerolog.Nop())
	revoked := NewRevocations()
	bypass := NewBypassTokens()
	guard := NewGuardService(store, directory, revoked, bypass, timeout, zerolog.Nop())
	guard.SetReady()
	return &guardFixture{guard: guard, store: store, directory: directory, revoked: revoked, bypass: bypass}
}

func (f *guardFixture) seed(t *testing.T, key string, session *domain.Session) {
	t.Helper()
	if err := f.store.Write(context.Background(), key, session, false); err != nil {
		t.Fatalf("seed session: %v", err)
	}
}

func TestGuard_LoadingUntilReady(t *testing.T) {
	store := NewSessionStore(newFakeScope(), newFakeScope(), zerolog.Nop())
	guard := NewGuardService(store, &stubDirectory{}, NewRevocations(), NewBypassTokens(), 0, zerolog.Nop())

	decision := guard.Evaluate(context.Background(), ports.GuardInput{Path: "/setor/ti"})
	if decision.State != ports.StateLoading {
		t.Fatalf("state = %q, want loading", decision.State)
	}

	guard.SetReady()
	decision = guard.Evaluate(context.Background(), ports.GuardInput{Path: "/setor/ti"})
	if decision.State != ports.StateRedirectLogin {
		t.Fatalf("state after ready = %q, want redirect_login", decision.State)
	}
}

func TestGuard_RedirectPreservesRequestedPath(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Path: "/setor/ti/admin/chamados?status=aberto"})
	if decision.State != ports.StateRedirectLogin {
		t.Fatalf("state = %q, want redirect_login", decision.State)
	}
	want := "/login?redirect=%2Fsetor%2Fti%2Fadmin%2Fchamados%3Fstatus%3Daberto"
	if decision.RedirectTo != want {
		t.Fatalf("redirect = %q, want %q", decision.RedirectTo, want)
	}
}

func TestGuard_BypassTokenIsOneShot(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)
	token := f.bypass.Mint()

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Path: "/dashboard", BypassToken: token})
	if decision.State != ports.StateAllowed {
		t.Fatalf("first redemption: state = %q, want allowed", decision.State)
	}

	decision = f.guard.Evaluate(context.Background(), ports.GuardInput{Path: "/dashboard", BypassToken: token})
	if decision.State != ports.StateRedirectLogin {
		t.Fatalf("second redemption: state = %q, want redirect_login", decision.State)
	}
}

func TestGuard_NonSectorPathNeedsOnlyASession(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)
	f.seed(t, "k1", testSession())

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/dashboard"})
	if decision.State != ports.StateAllowed {
		t.Fatalf("state = %q, want allowed", decision.State)
	}
}

func TestGuard_AdministratorBypassesEverySectorCheck(t *testing.T) {
	directory := &stubDirectory{
		hasSectorFn: func(context.Context, string, string) (bool, error) {
			t.Fatalf("administrator must not trigger a remote check")
			return false, nil
		},
	}
	f := newGuardFixture(t, directory, 0)

	admin := testSession()
	admin.AccessLevel = domain.LevelAdministrator
	admin.Sectors = []string{}
	f.seed(t, "k1", admin)

	for _, path := range []string{"/setor/compras", "/setor/ti/admin/chamados", "/setor/desconhecido"} {
		decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: path})
		if decision.State != ports.StateAllowed {
			t.Fatalf("path %q: state = %q, want allowed", path, decision.State)
		}
	}
}

func TestGuard_AdminSubtreeDeniedToStandardUsers(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)
	f.seed(t, "k1", testSession()) // holds "Setor de TI"

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/ti/admin/chamados"})
	if decision.State != ports.StateDenied || decision.RedirectTo != "/access-denied" {
		t.Fatalf("decision = %+v, want denied", decision)
	}
}

func TestGuard_UnknownSlugDenied(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)
	f.seed(t, "k1", testSession())

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/desconhecido"})
	if decision.State != ports.StateDenied {
		t.Fatalf("state = %q, want denied", decision.State)
	}
}

func TestGuard_RemoteCheckDecidesWhenAvailable(t *testing.T) {
	var gotSlug string
	directory := &stubDirectory{
		hasSectorFn: func(_ context.Context, userID, slug string) (bool, error) {
			gotSlug = slug
			return slug == "ti", nil
		},
	}
	f := newGuardFixture(t, directory, 0)
	f.seed(t, "k1", testSession())

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/ti?tab=1"})
	if decision.State != ports.StateAllowed || !decision.RemoteChecked {
		t.Fatalf("decision = %+v, want remote-checked allow", decision)
	}
	if gotSlug != "ti" {
		t.Fatalf("query must be stripped before slug extraction, got %q", gotSlug)
	}

	decision = f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/compras"})
	if decision.State != ports.StateDenied || !decision.RemoteChecked {
		t.Fatalf("decision = %+v, want remote-checked deny", decision)
	}
}

func TestGuard_TimeoutFallsBackToCachedSectors(t *testing.T) {
	directory := &stubDirectory{
		hasSectorFn: func(ctx context.Context, userID, slug string) (bool, error) {
			<-ctx.Done()
			return false, ctx.Err()
		},
	}
	f := newGuardFixture(t, directory, 30*time.Millisecond)

	session := testSession()
	session.Sectors = []string{"Setor de Compras"}
	f.seed(t, "k1", session)

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/compras"})
	if decision.State != ports.StateAllowed || decision.RemoteChecked {
		t.Fatalf("decision = %+v, want local-fallback allow", decision)
	}

	decision = f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/marketing"})
	if decision.State != ports.StateDenied || decision.RemoteChecked {
		t.Fatalf("decision = %+v, want local-fallback deny", decision)
	}
}

func TestGuard_BackendErrorFallsBackToCachedSectors(t *testing.T) {
	directory := &stubDirectory{
		hasSectorFn: func(context.Context, string, string) (bool, error) {
			return false, domain.ErrBackendUnavailable
		},
	}
	f := newGuardFixture(t, directory, 0)
	f.seed(t, "k1", testSession()) // holds "Setor de TI"

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/ti"})
	if decision.State != ports.StateAllowed || decision.RemoteChecked {
		t.Fatalf("decision = %+v, want local-fallback allow", decision)
	}
}

func TestGuard_RevocationWinsOverStoredSession(t *testing.T) {
	f := newGuardFixture(t, &stubDirectory{}, 0)
	f.seed(t, "k1", testSession())

	f.revoked.Revoke("7", time.Now().UTC())

	decision := f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: "/setor/ti/admin/chamados"})
	if decision.State != ports.StateRedirectLogin {
		t.Fatalf("state = %q, want redirect_login", decision.State)
	}
	if s, _ := f.store.Read(context.Background(), "k1"); s != nil {
		t.Fatalf("revoked session must be cleared from the store")
	}
}

func TestGuard_ConcurrentEvaluationsAreIndependent(t *testing.T) {
	directory := &stubDirectory{
		hasSectorFn: func(ctx context.Context, _, slug string) (bool, error) {
			if slug == "compras" {
				// The slower check must not contaminate the fast one.
				select {
				case <-time.After(50 * time.Millisecond):
				case <-ctx.Done():
				}
				return false, nil
			}
			return true, nil
		},
	}
	f := newGuardFixture(t, directory, time.Second)
	f.seed(t, "k1", testSession())

	var wg sync.WaitGroup
	decisions := make([]ports.GuardDecision, 2)
	for i, path := range []string{"/setor/compras", "/setor/ti"} {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			decisions[i] = f.guard.Evaluate(context.Background(), ports.GuardInput{Key: "k1", Path: path})
		}(i, path)
	}
	wg.Wait()

	if decisions[0].State != ports.StateDenied {
		t.Fatalf("slow path decision = %+v, want denied", decisions[0])
	}
	if decisions[1].State != ports.StateAllowed {
		t.Fatalf("fast path decision = %+v, want allowed", decisions[1])
	}
}
