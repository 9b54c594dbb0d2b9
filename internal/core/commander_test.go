package core

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mikey-austin/zonectl/pkg/hass"
)

type recordingDispatcher struct {
	mu    sync.Mutex
	calls []hass.ServiceCall
	fail  map[string]error
	done  chan struct{}
}

func (r *recordingDispatcher) CallService(ctx context.Context, call hass.ServiceCall) error {
	r.mu.Lock()
	r.calls = append(r.calls, call)
	r.mu.Unlock()
	if r.done != nil {
		r.done <- struct{}{}
	}
	return r.fail[call.EntityID()]
}

func (r *recordingDispatcher) recorded() []hass.ServiceCall {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]hass.ServiceCall(nil), r.calls...)
}

type stopEvent struct {
	stopped bool
}

func (s *stopEvent) StopPropagation() { s.stopped = true }

func TestCommanderSyncJoinsErrors(t *testing.T) {
	dispatcher := &recordingDispatcher{fail: map[string]error{"b": errors.New("boom")}}
	commander := Commander{Dispatcher: dispatcher}
	ev := &stopEvent{}

	calls := []hass.ServiceCall{
		{Domain: "media_player", Service: "volume_up", Data: map[string]any{"entity_id": "a"}},
		{Domain: "media_player", Service: "volume_up", Data: map[string]any{"entity_id": "b"}},
	}
	err := commander.Send(context.Background(), ev, calls)
	if err == nil {
		t.Fatalf("expected error")
	}
	if !ev.stopped {
		t.Fatalf("expected propagation stopped")
	}
	if len(dispatcher.recorded()) != 2 {
		t.Fatalf("expected every call dispatched")
	}
}

func TestCommanderAsyncDispatches(t *testing.T) {
	dispatcher := &recordingDispatcher{
		fail: map[string]error{"a": errors.New("ignored")},
		done: make(chan struct{}, 2),
	}
	commander := Commander{Dispatcher: dispatcher, Async: true, Timeout: time.Second}

	calls := []hass.ServiceCall{
		{Domain: "media_player", Service: "media_play", Data: map[string]any{"entity_id": "a"}},
		{Domain: "media_player", Service: "media_play", Data: map[string]any{"entity_id": "b"}},
	}
	if err := commander.Send(context.Background(), nil, calls); err != nil {
		t.Fatalf("async send: %v", err)
	}
	for i := 0; i < 2; i++ {
		select {
		case <-dispatcher.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for dispatch")
		}
	}
	if len(dispatcher.recorded()) != 2 {
		t.Fatalf("expected 2 calls")
	}
}

func TestCommanderNoCalls(t *testing.T) {
	ev := &stopEvent{}
	if err := (Commander{}).Send(context.Background(), ev, nil); err != nil {
		t.Fatalf("empty plan: %v", err)
	}
	if !ev.stopped {
		t.Fatalf("expected propagation stopped")
	}
}
