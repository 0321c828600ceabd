package capture

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingSink struct {
	mu     sync.Mutex
	frames [][]byte
	gate   chan struct{}
}

func (s *recordingSink) SendBinary(data []byte) int {
	if s.gate != nil {
		<-s.gate
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = append(s.frames, data)
	return 1
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func frame(b byte) Frame {
	return Frame{Width: 1, Height: 1, Pix: []byte{b, b, b, b}}
}

func TestSubmitBlocksUntilDrained(t *testing.T) {
	r := NewRelay(&recordingSink{})
	ctx := context.Background()

	if err := r.Submit(ctx, frame(1)); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	second := make(chan error, 1)
	go func() { second <- r.Submit(ctx, frame(2)) }()

	select {
	case <-second:
		t.Fatal("second Submit returned before the first frame was taken")
	case <-time.After(30 * time.Millisecond):
	}

	f, err := r.Next(ctx)
	if err != nil || f.Pix[0] != 1 {
		t.Fatalf("Next = %v, %v; want frame 1", f.Pix, err)
	}
	select {
	case err := <-second:
		if err != nil {
			t.Fatalf("second Submit: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("second Submit still blocked after drain")
	}

	f, err = r.Next(ctx)
	if err != nil || f.Pix[0] != 2 {
		t.Fatalf("Next = %v, %v; want frame 2", f.Pix, err)
	}
}

func TestNextNeverRepeatsAFrame(t *testing.T) {
	r := NewRelay(&recordingSink{})
	r.Submit(context.Background(), frame(1))
	if _, err := r.Next(context.Background()); err != nil {
		t.Fatalf("Next: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := r.Next(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("second Next err = %v, want DeadlineExceeded", err)
	}
}

func TestSubmitHonoursContext(t *testing.T) {
	r := NewRelay(&recordingSink{})
	r.Submit(context.Background(), frame(1))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.Submit(ctx, frame(2)); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want Canceled", err)
	}
	if f, err := r.Next(context.Background()); err != nil || f.Pix[0] != 1 {
		t.Fatalf("Next = %v, %v; want frame 1", f.Pix, err)
	}
}

func TestRunDeliversFrames(t *testing.T) {
	sink := &recordingSink{}
	r := NewRelay(sink)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	for i := byte(1); i <= 5; i++ {
		if err := r.Submit(ctx, frame(i)); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}

	deadline := time.Now().Add(3 * time.Second)
	for sink.count() < 5 {
		if time.Now().After(deadline) {
			t.Fatalf("delivered %d frames, want 5", sink.count())
		}
		time.Sleep(time.Millisecond)
	}
	sink.mu.Lock()
	for i, f := range sink.frames {
		if f[0] != byte(i+1) {
			t.Errorf("frame %d = %d, want %d", i, f[0], i+1)
		}
	}
	sink.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestSlowSendFreesSlotFirst(t *testing.T) {
	sink := &recordingSink{gate: make(chan struct{})}
	r := NewRelay(sink)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	r.Submit(ctx, frame(1))
	// frame 1 is stuck in SendBinary; the slot must still accept frame 2.
	submitted := make(chan struct{})
	go func() {
		r.Submit(ctx, frame(2))
		close(submitted)
	}()
	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("slot not freed while a send was in progress")
	}
	close(sink.gate)
}
