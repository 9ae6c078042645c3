package queue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/evoquefitness/access-gateway/internal/core/ports"
)

type captureRepo struct {
	mu     sync.Mutex
	events []ports.AuthEventInput
	seen   chan struct{}
}

func newCaptureRepo() *captureRepo {
	return &captureRepo{seen: make(chan struct{}, 64)}
}

func (r *captureRepo) Insert(_ context.Context, event *ports.AuthEventInput) error {
	r.mu.Lock()
	r.events = append(r.events, *event)
	r.mu.Unlock()
	r.seen <- struct{}{}
	return nil
}

func (r *captureRepo) wait(t *testing.T, n int) []ports.AuthEventInput {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d of %d events arrived", i, n)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ports.AuthEventInput, len(r.events))
	copy(out, r.events)
	return out
}

func TestAuditDispatcher_DeliversEvents(t *testing.T) {
	repo := newCaptureRepo()
	d := NewAuditDispatcher(2, repo, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	d.Record(ports.AuthEventInput{UserID: "7", Kind: "login"})
	d.Record(ports.AuthEventInput{UserID: "9", Kind: "revoked"})

	events := repo.wait(t, 2)
	kinds := map[string]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
	}
	if !kinds["login"] || !kinds["revoked"] {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestAuditDispatcher_PerUserOrdering(t *testing.T) {
	repo := newCaptureRepo()
	d := NewAuditDispatcher(4, repo, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	sequence := []string{"login", "refresh", "logout"}
	for _, kind := range sequence {
		d.Record(ports.AuthEventInput{UserID: "7", Kind: kind})
	}

	events := repo.wait(t, len(sequence))
	for i, kind := range sequence {
		if events[i].Kind != kind {
			t.Fatalf("events out of order: %+v", events)
		}
	}
}

func TestAuditDispatcher_RecordNeverBlocks(t *testing.T) {
	repo := newCaptureRepo()
	d := NewAuditDispatcher(1, repo, zerolog.Nop())
	// Not started: the shard fills up and further records must drop, not hang.

	done := make(chan struct{})
	go func() {
		for i := 0; i < channelBuffer+10; i++ {
			d.Record(ports.AuthEventInput{UserID: "7", Kind: "login"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Record blocked on a full shard")
	}
}
