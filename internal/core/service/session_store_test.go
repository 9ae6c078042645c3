package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/core/domain"
)

// fakeScope is an in-memory RecordScope. TTLs are recorded but not enforced;
// expiry behaviour is driven through the record payloads instead.
type fakeScope struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	failSet bool
}

func newFakeScope() *fakeScope {
	return &fakeScope{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeScope) Get(_ context.Context, key string) ([]byte, error) {
	raw, ok := f.data[key]
	if !ok {
		return nil, nil
	}
	return raw, nil
}

func (f *fakeScope) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.failSet {
		return errors.New("storage down")
	}
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeScope) Delete(_ context.Context, key string) error {
	delete(f.data, key)
	delete(f.ttls, key)
	return nil
}

func testSession() *domain.Session {
	return &domain.Session{
		UserID:      "7",
		Email:       "ana@evoque.fit",
		DisplayName: "Ana Souza",
		AccessLevel: domain.LevelStandard,
		Sectors:     []string{"Setor de TI"},
		LoginAt:     time.Now().UTC().Add(-time.Minute),
	}
}

func TestSessionStore_WriteReadRoundTrip(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	if err := store.Write(ctx, "k1", testSession(), false); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if volatile.ttls["k1"] != domain.ShortTTL {
		t.Fatalf("expected short ttl, got %v", volatile.ttls["k1"])
	}
	if _, ok := durable.data["k1"]; ok {
		t.Fatalf("durable scope must be cleared by a volatile write")
	}

	got, err := store.Read(ctx, "k1")
	if err != nil || got == nil {
		t.Fatalf("read failed: session=%v err=%v", got, err)
	}
	if got.Email != "ana@evoque.fit" || got.AccessLevel != domain.LevelStandard {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionStore_ScopesAreExclusive(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	if err := store.Write(ctx, "k1", testSession(), false); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Write(ctx, "k1", testSession(), true); err != nil {
		t.Fatalf("persistent write failed: %v", err)
	}

	if _, ok := volatile.data["k1"]; ok {
		t.Fatalf("volatile scope must be cleared by a persistent write")
	}
	if durable.ttls["k1"] != domain.LongTTL {
		t.Fatalf("expected long ttl, got %v", durable.ttls["k1"])
	}

	persistent, err := store.Persistent(ctx, "k1")
	if err != nil || !persistent {
		t.Fatalf("Persistent = (%v, %v), want (true, nil)", persistent, err)
	}
}

func TestSessionStore_ReadClearsExpired(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	record := domain.Record{
		Session:   *testSession(),
		ExpiresAt: time.Now().UTC().Add(-time.Second),
	}
	raw, _ := json.Marshal(record)
	durable.data["stale"] = raw

	got, err := store.Read(ctx, "stale")
	if err != nil || got != nil {
		t.Fatalf("expected no session, got %v err=%v", got, err)
	}
	if _, ok := durable.data["stale"]; ok {
		t.Fatalf("expired record must be deleted on read")
	}
}

func TestSessionStore_LegacyRecordWindow(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	fresh := *testSession()
	fresh.LoginAt = time.Now().UTC().Add(-time.Hour)
	raw, _ := json.Marshal(domain.Record{Session: fresh})
	volatile.data["legacy-fresh"] = raw

	if got, _ := store.Read(ctx, "legacy-fresh"); got == nil {
		t.Fatalf("legacy record inside the window must still be readable")
	}

	old := *testSession()
	old.LoginAt = time.Now().UTC().Add(-25 * time.Hour)
	raw, _ = json.Marshal(domain.Record{Session: old})
	volatile.data["legacy-old"] = raw

	if got, _ := store.Read(ctx, "legacy-old"); got != nil {
		t.Fatalf("legacy record past the window must be treated as expired")
	}
	if _, ok := volatile.data["legacy-old"]; ok {
		t.Fatalf("stale legacy record must be deleted on read")
	}
}

func TestSessionStore_MalformedClearedSilently(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	volatile.data["junk"] = []byte("{not json")
	durable.data["thin"] = []byte(`{"email":"x@y.z"}`)

	for _, key := range []string{"junk", "thin"} {
		got, err := store.Read(ctx, key)
		if err != nil || got != nil {
			t.Fatalf("key %q: expected no session, got %v err=%v", key, got, err)
		}
	}
	if len(volatile.data) != 0 || len(durable.data) != 0 {
		t.Fatalf("malformed records must be cleared from their scope")
	}
}

func TestSessionStore_UnknownFieldsDropped(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	record := map[string]any{
		"user_id":      "7",
		"email":        "ana@evoque.fit",
		"display_name": "Ana Souza",
		"login_at":     time.Now().UTC().Format(time.RFC3339),
		"expires_at":   time.Now().UTC().Add(time.Hour).Format(time.RFC3339),
		"avatar_url":   "https://cdn.example/x.png",
	}
	raw, _ := json.Marshal(record)
	volatile.data["k1"] = raw

	got, err := store.Read(ctx, "k1")
	if err != nil || got == nil {
		t.Fatalf("read failed: %v %v", got, err)
	}
	if got.Email != "ana@evoque.fit" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestSessionStore_WriteFailureDegrades(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	durable.failSet = true
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	if err := store.Write(ctx, "k1", testSession(), true); err != nil {
		t.Fatalf("storage failure must not propagate, got %v", err)
	}
	if got, _ := store.Read(ctx, "k1"); got != nil {
		t.Fatalf("failed write must leave no session behind")
	}
}

func TestSessionStore_WriteRejectsInvalidSession(t *testing.T) {
	store := NewSessionStore(newFakeScope(), newFakeScope(), zerolog.Nop())

	bad := &domain.Session{Email: "x@y.z"}
	if err := store.Write(context.Background(), "k1", bad, false); !errors.Is(err, domain.ErrSessionMalformed) {
		t.Fatalf("expected ErrSessionMalformed, got %v", err)
	}
}

func TestSessionStore_ClearUser(t *testing.T) {
	volatile, durable := newFakeScope(), newFakeScope()
	store := NewSessionStore(volatile, durable, zerolog.Nop())
	ctx := context.Background()

	if err := store.Write(ctx, "k1", testSession(), false); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := store.Write(ctx, "k2", testSession(), true); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if keys := store.KeysForUser("7"); len(keys) != 2 {
		t.Fatalf("expected 2 indexed keys, got %v", keys)
	}

	if err := store.ClearUser(ctx, "7"); err != nil {
		t.Fatalf("clear user failed: %v", err)
	}
	if keys := store.KeysForUser("7"); len(keys) != 0 {
		t.Fatalf("index must be empty after ClearUser, got %v", keys)
	}
	if len(volatile.data) != 0 || len(durable.data) != 0 {
		t.Fatalf("both scopes must be empty after ClearUser")
	}
}

func TestSessionStore_ClearIsIdempotent(t *testing.T) {
	store := NewSessionStore(newFakeScope(), newFakeScope(), zerolog.Nop())
	ctx := context.Background()

	if err := store.Clear(ctx, "absent"); err != nil {
		t.Fatalf("clearing an absent key must be a no-op, got %v", err)
	}
	if err := store.Clear(ctx, "absent"); err != nil {
		t.Fatalf("second clear must also succeed, got %v", err)
	}
}
