// Package device keeps a host buffer coherent with a copy in accelerator memory.
package device

import (
	"context"
	"fmt"

	"k8s.io/klog/v2"

	"github.com/born-ml/ndbuf/internal/tensor"
)

// State records which side of a Mirror holds current data.
type State int

// Coherence states.
const (
	HostCurrent   State = iota // Host is authoritative; device is stale.
	DeviceCurrent              // Device is authoritative; host is stale.
	BothCurrent                // Both copies hold the same data.
	BothStale                  // Neither copy is trusted.
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case HostCurrent:
		return "host-current"
	case DeviceCurrent:
		return "device-current"
	case BothCurrent:
		return "both-current"
	case BothStale:
		return "both-stale"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// HostValid reports whether the host copy may be read.
func (s State) HostValid() bool { return s == HostCurrent || s == BothCurrent }

// DeviceValid reports whether the device copy may be read.
func (s State) DeviceValid() bool { return s == DeviceCurrent || s == BothCurrent }

// Memory is a block of device memory owned by a Backend.
type Memory interface {
	// Size returns the usable size in bytes.
	Size() int
}

// Backend moves bytes between host memory and one accelerator.
type Backend interface {
	Name() string
	Alloc(size int) (Memory, error)
	Upload(ctx context.Context, dst Memory, src []byte) error
	Download(ctx context.Context, dst []byte, src Memory) error
	Free(m Memory) error
}

// AsyncBackend is a Backend that can issue copies without waiting for them.
// The returned transfer is completed by the backend.
type AsyncBackend interface {
	Backend
	StartUpload(dst Memory, src []byte) *Transfer
	StartDownload(dst []byte, src Memory) *Transfer
}

// Mirror pairs a host buffer with device memory of the same byte size and tracks
// which copy is current.
//
// A Mirror is not safe for concurrent use; callers serialize access the same way
// they serialize writes to the host buffer.
type Mirror struct {
	host     *tensor.Buffer
	backend  Backend
	mem      Memory
	state    State
	epoch    uint64 // Bumped by every Mark* and Invalidate.
	released bool
}

// NewMirror allocates device memory for host on backend. The mirror holds its own
// reference on host's storage and starts in the HostCurrent state.
func NewMirror(host *tensor.Buffer, backend Backend) (*Mirror, error) {
	if host.DType() == tensor.String {
		return nil, tensor.Errorf("mirror", tensor.ErrUnsupportedConversion, "string buffers have no device representation")
	}
	mem, err := backend.Alloc(host.ByteSize())
	if err != nil {
		return nil, tensor.WrapError("mirror", tensor.ErrAllocation, fmt.Errorf("%s: %w", backend.Name(), err))
	}
	klog.V(4).Infof("mirror: allocated %d bytes on %s", host.ByteSize(), backend.Name())
	return &Mirror{
		host:    host.Share(),
		backend: backend,
		mem:     mem,
		state:   HostCurrent,
	}, nil
}

// Host returns the host buffer. Its contents are only meaningful when
// State().HostValid().
func (m *Mirror) Host() *tensor.Buffer { return m.host }

// Memory returns the device memory handle.
func (m *Mirror) Memory() Memory { return m.mem }

// Backend returns the backend that owns the device memory.
func (m *Mirror) Backend() Backend { return m.backend }

// State returns the current coherence state.
func (m *Mirror) State() State { return m.state }

// EnsureHostCurrent copies device data to the host when only the device is
// current. It is a no-op in every other state, BothStale included.
func (m *Mirror) EnsureHostCurrent(ctx context.Context) error {
	if m.state != DeviceCurrent {
		return nil
	}
	klog.V(4).Infof("mirror: download %d bytes from %s", m.host.ByteSize(), m.backend.Name())
	if err := m.backend.Download(ctx, m.host.Bytes(), m.mem); err != nil {
		return tensor.WrapError("download", tensor.ErrTransfer, err)
	}
	m.state = BothCurrent
	return nil
}

// EnsureDeviceCurrent copies host data to the device when only the host is
// current. It is a no-op in every other state, BothStale included.
func (m *Mirror) EnsureDeviceCurrent(ctx context.Context) error {
	if m.state != HostCurrent {
		return nil
	}
	klog.V(4).Infof("mirror: upload %d bytes to %s", m.host.ByteSize(), m.backend.Name())
	if err := m.backend.Upload(ctx, m.mem, m.host.Bytes()); err != nil {
		return tensor.WrapError("upload", tensor.ErrTransfer, err)
	}
	m.state = BothCurrent
	return nil
}

// EnsureHostCurrentAsync is EnsureHostCurrent without blocking on the copy.
// The state becomes BothCurrent when the returned transfer is awaited
// successfully; the host buffer must not be read before then.
func (m *Mirror) EnsureHostCurrentAsync(ctx context.Context) *Transfer {
	if m.state != DeviceCurrent {
		return completed("download", nil)
	}
	klog.V(4).Infof("mirror: async download %d bytes from %s", m.host.ByteSize(), m.backend.Name())
	var t *Transfer
	if ab, ok := m.backend.(AsyncBackend); ok {
		t = ab.StartDownload(m.host.Bytes(), m.mem)
	} else {
		t = completed("download", m.backend.Download(ctx, m.host.Bytes(), m.mem))
	}
	t.apply = m.advance()
	return t
}

// EnsureDeviceCurrentAsync is EnsureDeviceCurrent without blocking on the copy.
// The host buffer must not be written until the returned transfer is awaited.
func (m *Mirror) EnsureDeviceCurrentAsync(ctx context.Context) *Transfer {
	if m.state != HostCurrent {
		return completed("upload", nil)
	}
	klog.V(4).Infof("mirror: async upload %d bytes to %s", m.host.ByteSize(), m.backend.Name())
	var t *Transfer
	if ab, ok := m.backend.(AsyncBackend); ok {
		t = ab.StartUpload(m.mem, m.host.Bytes())
	} else {
		t = completed("upload", m.backend.Upload(ctx, m.mem, m.host.Bytes()))
	}
	t.apply = m.advance()
	return t
}

// advance returns the state update for a copy issued now.
// A mark made while the copy was in flight wins over the copy.
func (m *Mirror) advance() func() {
	epoch := m.epoch
	return func() {
		if m.epoch == epoch {
			m.state = BothCurrent
		}
	}
}

func (m *Mirror) mark(s State) {
	m.state = s
	m.epoch++
}

// MarkHostWritten records that the host copy was modified.
func (m *Mirror) MarkHostWritten() { m.mark(HostCurrent) }

// MarkDeviceWritten records that the device copy was modified.
func (m *Mirror) MarkDeviceWritten() { m.mark(DeviceCurrent) }

// Invalidate records that neither copy can be trusted.
func (m *Mirror) Invalidate() { m.mark(BothStale) }

// Release frees the device memory and drops the host reference.
// Releasing twice is a no-op.
func (m *Mirror) Release() {
	if m.released {
		return
	}
	m.released = true
	if err := m.backend.Free(m.mem); err != nil {
		klog.Warningf("mirror: failed to free %d bytes on %s: %v", m.mem.Size(), m.backend.Name(), err)
	}
	m.host.Release()
}

// String returns a human-readable description of the mirror.
func (m *Mirror) String() string {
	return fmt.Sprintf("Mirror[%s](%d bytes on %s, %s)", m.host.DType(), m.host.ByteSize(), m.backend.Name(), m.state)
}
