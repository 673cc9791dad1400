package device

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Errors reported by HostSim.
var (
	ErrOutOfMemory   = errors.New("device out of memory")
	ErrInjectedFault = errors.New("injected transfer fault")
	ErrForeignMemory = errors.New("memory belongs to another backend")
)

// HostSimConfig configures the simulated accelerator.
type HostSimConfig struct {
	MaxBytes int64         // Device memory capacity (0 = unlimited).
	Latency  time.Duration // Added to every transfer.
	Async    bool          // Whether StartUpload/StartDownload run on their own goroutine.
}

// DefaultHostSimConfig returns an unlimited, zero-latency, asynchronous simulator.
func DefaultHostSimConfig() HostSimConfig {
	return HostSimConfig{Async: true}
}

// HostSim is a Backend whose "device memory" is a separate host arena.
// It stands in for an accelerator in tests and on machines without one, and
// can be told to fail transfers.
type HostSim struct {
	cfg       HostSimConfig
	live      atomic.Int64
	faults    atomic.Int32
	uploads   atomic.Int64
	downloads atomic.Int64
}

// HostSimStats reports simulator activity.
type HostSimStats struct {
	LiveBytes int64
	Uploads   int64
	Downloads int64
}

type simMemory struct {
	owner *HostSim
	data  []byte
	freed atomic.Bool
}

func (m *simMemory) Size() int { return len(m.data) }

// NewHostSim creates a simulator with the given configuration.
func NewHostSim(cfg HostSimConfig) *HostSim {
	return &HostSim{cfg: cfg}
}

// Name returns the backend name.
func (s *HostSim) Name() string { return "hostsim" }

// FailNext makes the next n transfers fail with ErrInjectedFault.
func (s *HostSim) FailNext(n int) { s.faults.Store(int32(n)) }

// Stats returns a snapshot of simulator activity.
func (s *HostSim) Stats() HostSimStats {
	return HostSimStats{
		LiveBytes: s.live.Load(),
		Uploads:   s.uploads.Load(),
		Downloads: s.downloads.Load(),
	}
}

// Alloc reserves size bytes of simulated device memory.
func (s *HostSim) Alloc(size int) (Memory, error) {
	if size < 0 {
		return nil, fmt.Errorf("hostsim: negative size %d", size)
	}
	for {
		cur := s.live.Load()
		next := cur + int64(size)
		if s.cfg.MaxBytes > 0 && next > s.cfg.MaxBytes {
			return nil, fmt.Errorf("hostsim: %d bytes requested, %d of %d in use: %w", size, cur, s.cfg.MaxBytes, ErrOutOfMemory)
		}
		if s.live.CompareAndSwap(cur, next) {
			break
		}
	}
	return &simMemory{owner: s, data: make([]byte, size)}, nil
}

// Free returns memory to the simulator.
func (s *HostSim) Free(m Memory) error {
	sm, err := s.own(m)
	if err != nil {
		return err
	}
	if !sm.freed.CompareAndSwap(false, true) {
		return fmt.Errorf("hostsim: double free of %d bytes", len(sm.data))
	}
	s.live.Add(-int64(len(sm.data)))
	return nil
}

// Upload copies src into device memory.
func (s *HostSim) Upload(ctx context.Context, dst Memory, src []byte) error {
	sm, err := s.begin(ctx, dst, len(src))
	if err != nil {
		return err
	}
	copy(sm.data, src)
	s.uploads.Add(1)
	return nil
}

// Download copies device memory into dst.
func (s *HostSim) Download(ctx context.Context, dst []byte, src Memory) error {
	sm, err := s.begin(ctx, src, len(dst))
	if err != nil {
		return err
	}
	copy(dst, sm.data)
	s.downloads.Add(1)
	return nil
}

// StartUpload issues Upload and returns without waiting when the simulator is asynchronous.
func (s *HostSim) StartUpload(dst Memory, src []byte) *Transfer {
	return s.start("upload", func() error { return s.Upload(context.Background(), dst, src) })
}

// StartDownload issues Download and returns without waiting when the simulator is asynchronous.
func (s *HostSim) StartDownload(dst []byte, src Memory) *Transfer {
	return s.start("download", func() error { return s.Download(context.Background(), dst, src) })
}

func (s *HostSim) start(op string, copyFn func() error) *Transfer {
	t := NewTransfer(op)
	if !s.cfg.Async {
		t.Complete(copyFn())
		return t
	}
	go func() {
		t.Complete(copyFn())
	}()
	return t
}

// begin validates a transfer of n bytes against m, applies latency and injected faults.
func (s *HostSim) begin(ctx context.Context, m Memory, n int) (*simMemory, error) {
	sm, err := s.own(m)
	if err != nil {
		return nil, err
	}
	if sm.freed.Load() {
		return nil, errors.New("hostsim: transfer on freed memory")
	}
	if n != len(sm.data) {
		return nil, fmt.Errorf("hostsim: transfer of %d bytes into %d bytes of device memory", n, len(sm.data))
	}
	if s.cfg.Latency > 0 {
		timer := time.NewTimer(s.cfg.Latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	for {
		f := s.faults.Load()
		if f <= 0 {
			return sm, nil
		}
		if s.faults.CompareAndSwap(f, f-1) {
			return nil, ErrInjectedFault
		}
	}
}

func (s *HostSim) own(m Memory) (*simMemory, error) {
	sm, ok := m.(*simMemory)
	if !ok || sm.owner != s {
		return nil, ErrForeignMemory
	}
	return sm, nil
}
