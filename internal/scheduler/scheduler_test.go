package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingBroadcaster struct{ n int32 }

func (b *countingBroadcaster) Broadcast(ctx context.Context) error {
	atomic.AddInt32(&b.n, 1)
	return nil
}

func TestStatsBroadcastRuns(t *testing.T) {
	s := New()
	b := &countingBroadcaster{}
	if err := s.AddStatsBroadcast("@every 1s", b); err != nil {
		t.Fatalf("AddStatsBroadcast: %v", err)
	}
	s.Start()
	defer s.Stop(context.Background())

	deadline := time.Now().Add(3 * time.Second)
	for atomic.LoadInt32(&b.n) == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if atomic.LoadInt32(&b.n) == 0 {
		t.Fatalf("broadcast never ran")
	}
}

func TestInvalidSchedule(t *testing.T) {
	if err := New().AddStatsBroadcast("every now and then", &countingBroadcaster{}); err == nil {
		t.Fatalf("AddStatsBroadcast accepted an invalid spec")
	}
}
