package rooms

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedule_CollapsesBurst(t *testing.T) {
	var writes atomic.Int32
	p := NewPersister(30*time.Millisecond, func(roomID string) {
		writes.Add(1)
	})

	for i := 0; i < 20; i++ {
		p.Schedule("room-1")
	}

	time.Sleep(100 * time.Millisecond)
	if got := writes.Load(); got != 1 {
		t.Errorf("Expected 1 write for a burst, got %d", got)
	}
}

func TestSchedule_IndependentRooms(t *testing.T) {
	var mu sync.Mutex
	written := make(map[string]int)
	p := NewPersister(20*time.Millisecond, func(roomID string) {
		mu.Lock()
		written[roomID]++
		mu.Unlock()
	})

	p.Schedule("room-a")
	p.Schedule("room-b")
	p.Schedule("room-a")

	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if written["room-a"] != 1 || written["room-b"] != 1 {
		t.Errorf("Expected one write per room, got %v", written)
	}
}

func TestSchedule_SeparateWindowsFireSeparately(t *testing.T) {
	var writes atomic.Int32
	p := NewPersister(20*time.Millisecond, func(roomID string) {
		writes.Add(1)
	})

	p.Schedule("room-1")
	time.Sleep(60 * time.Millisecond)
	p.Schedule("room-1")
	time.Sleep(60 * time.Millisecond)

	if got := writes.Load(); got != 2 {
		t.Errorf("Expected 2 writes for 2 separate windows, got %d", got)
	}
}

func TestSchedule_RearmsDuringWrite(t *testing.T) {
	var writes atomic.Int32
	writeStarted := make(chan struct{})
	writeRelease := make(chan struct{})

	p := NewPersister(10*time.Millisecond, func(roomID string) {
		if writes.Add(1) == 1 {
			close(writeStarted)
			<-writeRelease
		}
	})

	p.Schedule("room-1")
	<-writeStarted

	// This call lands while the first write is in flight; it must not
	// start an overlapping write, only re-arm a fresh window.
	p.Schedule("room-1")
	if got := writes.Load(); got != 1 {
		t.Fatalf("A second write overlapped the first: %d writes", got)
	}
	close(writeRelease)

	deadline := time.Now().Add(time.Second)
	for writes.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := writes.Load(); got != 2 {
		t.Errorf("Expected the re-armed window to fire once, got %d writes", got)
	}
}

func TestFlushAll_FiresPendingWritesImmediately(t *testing.T) {
	var mu sync.Mutex
	written := make(map[string]int)
	p := NewPersister(time.Hour, func(roomID string) {
		mu.Lock()
		written[roomID]++
		mu.Unlock()
	})

	p.Schedule("room-a")
	p.Schedule("room-b")
	p.FlushAll()

	mu.Lock()
	defer mu.Unlock()
	if written["room-a"] != 1 || written["room-b"] != 1 {
		t.Errorf("Expected flush to write both rooms, got %v", written)
	}
}

func TestFlushAll_NothingPending(t *testing.T) {
	var writes atomic.Int32
	p := NewPersister(time.Hour, func(roomID string) {
		writes.Add(1)
	})

	p.FlushAll()
	if got := writes.Load(); got != 0 {
		t.Errorf("Expected no writes, got %d", got)
	}
}
