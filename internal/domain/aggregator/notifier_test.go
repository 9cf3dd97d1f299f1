package aggregator

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/edumarques81/stellar-metadata-aggregator/internal/domain/music"
)

// direct scheduler: run the flush on the timer goroutine.
func runNow(fn func()) { fn() }

func TestBatchCoalescesBurstIntoOneFlush(t *testing.T) {
	var flushes int32
	var mu sync.Mutex
	var got []*music.Song

	b := newEntityBatch(50*time.Millisecond,
		func(s *music.Song) string { return s.Ref },
		runNow,
		func(items []*music.Song) {
			atomic.AddInt32(&flushes, 1)
			mu.Lock()
			got = items
			mu.Unlock()
		})
	defer b.stop()

	refs := []string{"s1", "s2", "s3", "s4", "s5"}
	for _, ref := range refs {
		b.post(&music.Song{Ref: ref})
	}

	time.Sleep(120 * time.Millisecond)

	if n := atomic.LoadInt32(&flushes); n != 1 {
		t.Fatalf("expected 1 flush for a burst, got %d", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(got) != len(refs) {
		t.Fatalf("expected %d entities in batch, got %d", len(refs), len(got))
	}
	for i, ref := range refs {
		if got[i].Ref != ref {
			t.Errorf("batch order broken at %d: want %s got %s", i, ref, got[i].Ref)
		}
	}
}

func TestBatchDeduplicatesByRefKeepingOrder(t *testing.T) {
	var mu sync.Mutex
	var got []*music.Song

	b := newEntityBatch(50*time.Millisecond,
		func(s *music.Song) string { return s.Ref },
		runNow,
		func(items []*music.Song) {
			mu.Lock()
			got = items
			mu.Unlock()
		})
	defer b.stop()

	b.post(&music.Song{Ref: "s1", Title: "old"})
	b.post(&music.Song{Ref: "s2"})
	b.post(&music.Song{Ref: "s1", Title: "new"})

	time.Sleep(120 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected 2 deduplicated entities, got %d", len(got))
	}
	if got[0].Ref != "s1" || got[1].Ref != "s2" {
		t.Errorf("first-append order not kept: %v, %v", got[0].Ref, got[1].Ref)
	}
	if got[0].Title != "new" {
		t.Error("duplicate post should carry the latest snapshot")
	}
}

func TestBatchTimerRestartsOnAppend(t *testing.T) {
	var flushes int32

	b := newEntityBatch(60*time.Millisecond,
		func(s *music.Song) string { return s.Ref },
		runNow,
		func([]*music.Song) { atomic.AddInt32(&flushes, 1) })
	defer b.stop()

	// Keep posting faster than the window; nothing may flush meanwhile.
	for i := 0; i < 5; i++ {
		b.post(&music.Song{Ref: "s1"})
		time.Sleep(20 * time.Millisecond)
	}
	if n := atomic.LoadInt32(&flushes); n != 0 {
		t.Fatalf("flush fired while updates kept arriving: %d", n)
	}

	time.Sleep(120 * time.Millisecond)
	if n := atomic.LoadInt32(&flushes); n != 1 {
		t.Errorf("expected exactly 1 flush after quiet period, got %d", n)
	}
}

func TestBatchSeparateWindowsFlushIndependently(t *testing.T) {
	var flushes int32

	b := newEntityBatch(40*time.Millisecond,
		func(s *music.Song) string { return s.Ref },
		runNow,
		func([]*music.Song) { atomic.AddInt32(&flushes, 1) })
	defer b.stop()

	b.post(&music.Song{Ref: "s1"})
	time.Sleep(100 * time.Millisecond)
	b.post(&music.Song{Ref: "s2"})
	time.Sleep(100 * time.Millisecond)

	if n := atomic.LoadInt32(&flushes); n != 2 {
		t.Errorf("expected 2 flushes for separate bursts, got %d", n)
	}
}

func TestBatchStopPreventsDelivery(t *testing.T) {
	var flushes int32

	b := newEntityBatch(40*time.Millisecond,
		func(s *music.Song) string { return s.Ref },
		runNow,
		func([]*music.Song) { atomic.AddInt32(&flushes, 1) })

	b.post(&music.Song{Ref: "s1"})
	b.stop()
	b.post(&music.Song{Ref: "s2"})

	time.Sleep(100 * time.Millisecond)
	if n := atomic.LoadInt32(&flushes); n != 0 {
		t.Errorf("expected no flush after stop, got %d", n)
	}
}
