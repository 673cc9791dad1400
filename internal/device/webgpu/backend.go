//go:build windows

// Package webgpu implements device.Backend on a WebGPU adapter.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
package webgpu

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"k8s.io/klog/v2"

	"github.com/born-ml/ndbuf/internal/device"
)

// copyAlignment is the granularity of buffer-to-buffer copies.
const copyAlignment = 4

// storageUsage is the usage of device memory handed out by Alloc.
const storageUsage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst

// Backend moves host buffers to and from WebGPU storage buffers.
type Backend struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	// Device info
	adapterInfo *wgpu.AdapterInfo

	// The queue is shared; transfers are serialized.
	mu sync.Mutex

	// Memory tracking
	memoryStats struct {
		totalAllocatedBytes uint64
		peakMemoryBytes     uint64
		activeBuffers       int64
		mu                  sync.RWMutex
	}
}

var _ device.Backend = (*Backend)(nil)

// gpuMemory is a storage buffer padded to copyAlignment.
type gpuMemory struct {
	buffer *wgpu.Buffer
	size   int
	padded uint64
}

func (m *gpuMemory) Size() int { return m.size }

// New creates a new WebGPU backend.
// Returns an error if WebGPU is not available or initialization fails.
func New() (backend *Backend, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			backend = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	adapterInfo := adapter.GetInfo()

	dev, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", deviceErr)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.New("webgpu: failed to get queue")
	}

	return &Backend{
		instance:    instance,
		adapter:     adapter,
		device:      dev,
		queue:       queue,
		adapterInfo: &adapterInfo,
	}, nil
}

// IsAvailable checks if WebGPU is available on this system.
func IsAvailable() (available bool) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			available = false
		}
	}()

	instance := wgpu.CreateInstance(nil)
	defer instance.Release()

	adapter, err := instance.RequestAdapter(nil)
	if err != nil {
		return false
	}
	adapter.Release()

	return true
}

// Name returns the backend name.
func (b *Backend) Name() string {
	if b.adapterInfo != nil {
		return fmt.Sprintf("WebGPU (%s %s)", b.adapterInfo.Name, b.adapterInfo.VendorName)
	}
	return "WebGPU"
}

// AdapterInfo returns information about the GPU adapter.
func (b *Backend) AdapterInfo() *wgpu.AdapterInfo {
	return b.adapterInfo
}

// Alloc creates a storage buffer of at least size bytes.
func (b *Backend) Alloc(size int) (device.Memory, error) {
	if size < 0 {
		return nil, fmt.Errorf("webgpu: negative size %d", size)
	}
	padded := alignUp(uint64(size))
	buffer := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: storageUsage,
		Size:  padded,
	})
	if buffer == nil {
		return nil, fmt.Errorf("webgpu: failed to create %d byte buffer", padded)
	}
	b.trackBufferAllocation(padded)
	return &gpuMemory{buffer: buffer, size: size, padded: padded}, nil
}

// Free releases the storage buffer.
func (b *Backend) Free(m device.Memory) error {
	gm, err := own(m)
	if err != nil {
		return err
	}
	gm.buffer.Release()
	b.trackBufferRelease(gm.padded)
	return nil
}

// Upload writes src into dst through a staging buffer mapped at creation.
func (b *Backend) Upload(ctx context.Context, dst device.Memory, src []byte) error {
	gm, err := own(dst)
	if err != nil {
		return err
	}
	if len(src) != gm.size {
		return fmt.Errorf("webgpu: upload of %d bytes into %d bytes of device memory", len(src), gm.size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if gm.size == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageMapWrite | wgpu.BufferUsageCopySrc,
		Size:             gm.padded,
		MappedAtCreation: wgpu.True,
	})
	defer staging.Release()

	mappedPtr := staging.GetMappedRange(0, gm.padded)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), gm.padded)
	copy(mappedSlice, src)
	staging.Unmap()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, gm.buffer, 0, gm.padded)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	klog.V(4).Infof("webgpu: uploaded %d bytes", gm.size)
	return nil
}

// Download reads src into dst through a MapRead staging buffer.
func (b *Backend) Download(ctx context.Context, dst []byte, src device.Memory) error {
	gm, err := own(src)
	if err != nil {
		return err
	}
	if len(dst) != gm.size {
		return fmt.Errorf("webgpu: download of %d bytes from %d bytes of device memory", len(dst), gm.size)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if gm.size == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staging := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  gm.padded,
	})
	defer staging.Release()

	encoder := b.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(gm.buffer, 0, staging, 0, gm.padded)
	cmdBuffer := encoder.Finish(nil)
	b.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(b.device, wgpu.MapModeRead, 0, gm.padded); err != nil {
		return fmt.Errorf("webgpu: failed to map staging buffer: %w", err)
	}
	mappedPtr := staging.GetMappedRange(0, gm.padded)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), gm.padded)
	copy(dst, mappedSlice)
	staging.Unmap()

	klog.V(4).Infof("webgpu: downloaded %d bytes", gm.size)
	return nil
}

// Release releases all WebGPU resources.
// Must be called when the backend is no longer needed.
func (b *Backend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}

// MemoryStats represents GPU memory usage statistics.
type MemoryStats struct {
	// Bytes currently allocated
	TotalAllocatedBytes uint64
	// Peak memory usage in bytes
	PeakMemoryBytes uint64
	// Number of currently active buffers
	ActiveBuffers int64
}

// MemoryStats returns current GPU memory usage statistics.
func (b *Backend) MemoryStats() MemoryStats {
	b.memoryStats.mu.RLock()
	defer b.memoryStats.mu.RUnlock()
	return MemoryStats{
		TotalAllocatedBytes: b.memoryStats.totalAllocatedBytes,
		PeakMemoryBytes:     b.memoryStats.peakMemoryBytes,
		ActiveBuffers:       b.memoryStats.activeBuffers,
	}
}

// trackBufferAllocation records a buffer allocation in memory statistics.
func (b *Backend) trackBufferAllocation(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	b.memoryStats.totalAllocatedBytes += size
	b.memoryStats.activeBuffers++
	if b.memoryStats.totalAllocatedBytes > b.memoryStats.peakMemoryBytes {
		b.memoryStats.peakMemoryBytes = b.memoryStats.totalAllocatedBytes
	}
}

// trackBufferRelease records a buffer release in memory statistics.
func (b *Backend) trackBufferRelease(size uint64) {
	b.memoryStats.mu.Lock()
	defer b.memoryStats.mu.Unlock()

	if b.memoryStats.totalAllocatedBytes >= size {
		b.memoryStats.totalAllocatedBytes -= size
	}
	b.memoryStats.activeBuffers--
}

func own(m device.Memory) (*gpuMemory, error) {
	gm, ok := m.(*gpuMemory)
	if !ok {
		return nil, fmt.Errorf("webgpu: %T is not WebGPU memory", m)
	}
	return gm, nil
}

// alignUp rounds size up to copyAlignment, with a minimum of one unit.
func alignUp(size uint64) uint64 {
	return max((size+copyAlignment-1)&^(copyAlignment-1), copyAlignment)
}
