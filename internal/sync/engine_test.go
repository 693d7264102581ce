package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mboard/photoboard/internal/gphotos"
)

// gatedProvider blocks inside ListMediaItems until released, so tests can
// hold a pass open while poking at the engine from outside.
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
}

func newGatedProvider() *gatedProvider {
	return &gatedProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (g *gatedProvider) ListMediaItems(ctx context.Context, _ string) ([]gphotos.MediaItem, error) {
	g.started <- struct{}{}
	select {
	case <-g.release:
		return nil, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (g *gatedProvider) Download(_ context.Context, item gphotos.MediaItem) ([]byte, error) {
	return []byte("content-" + item.ID), nil
}

// --- Scenario 1: RunOnce performs a full pass --------------------------------

func TestEngine_RunOnce_PerformsPass(t *testing.T) {
	provider := newMockProvider(newMediaItem("a", "Elder A", "v1"))
	cache := newMockCache()
	engine := NewEngine(newTestSyncer(provider, cache), time.Hour, testLogger)

	stats, err := engine.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Added != 1 {
		t.Errorf("Added = %d, want 1", stats.Added)
	}
	if cache.get("a") == nil {
		t.Error("photo a not cached after RunOnce")
	}
}

// --- Scenario 2: only one pass at a time -------------------------------------

func TestEngine_SingleFlight(t *testing.T) {
	provider := newGatedProvider()
	cache := newMockCache()
	engine := NewEngine(newTestSyncer(provider, cache), time.Hour, testLogger)

	done := make(chan error, 1)
	go func() {
		_, err := engine.RunOnce(context.Background())
		done <- err
	}()
	<-provider.started // first pass is now inside the listing call

	if _, err := engine.RunOnce(context.Background()); !errors.Is(err, ErrPassInProgress) {
		t.Errorf("concurrent RunOnce error = %v, want ErrPassInProgress", err)
	}
	if engine.TriggerSync() {
		t.Error("TriggerSync accepted while a pass is running")
	}

	close(provider.release)
	if err := <-done; err != nil {
		t.Errorf("blocked pass finished with error: %v", err)
	}
}

// --- Scenario 3: trigger requests coalesce -----------------------------------

func TestEngine_TriggerSync_Coalesces(t *testing.T) {
	provider := newMockProvider()
	cache := newMockCache()
	engine := NewEngine(newTestSyncer(provider, cache), time.Hour, testLogger)

	if !engine.TriggerSync() {
		t.Error("first trigger rejected, want accepted")
	}
	if engine.TriggerSync() {
		t.Error("second trigger accepted, want coalesced")
	}
}

// --- Scenario 4: the loop polls and stops on cancellation --------------------

func TestEngine_Run_PollsAndStopsOnCancel(t *testing.T) {
	provider := newMockProvider(newMediaItem("a", "Elder A", "v1"))
	cache := newMockCache()
	engine := NewEngine(newTestSyncer(provider, cache), 10*time.Millisecond, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Wait for the immediate pass plus at least one timer-driven pass.
	deadline := time.After(2 * time.Second)
	for provider.calls() < 2 {
		select {
		case <-deadline:
			t.Fatalf("only %d passes after 2s, want at least 2", provider.calls())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

// --- Scenario 5: a trigger wakes the loop between ticks ----------------------

func TestEngine_Run_TriggerWakesLoop(t *testing.T) {
	provider := newGatedProvider()
	cache := newMockCache()
	engine := NewEngine(newTestSyncer(provider, cache), time.Hour, testLogger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- engine.Run(ctx) }()

	// Let the immediate startup pass through.
	<-provider.started
	close(provider.release)

	// The startup pass may still be committing; retry until the trigger
	// is accepted.
	deadline := time.After(2 * time.Second)
	for !engine.TriggerSync() {
		select {
		case <-deadline:
			t.Fatal("trigger never accepted")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// The trigger must start a second pass well before the hour tick.
	select {
	case <-provider.started:
	case <-time.After(2 * time.Second):
		t.Fatal("triggered pass never started")
	}

	cancel()
	<-done
}
