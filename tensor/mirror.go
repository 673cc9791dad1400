// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import (
	"github.com/born-ml/ndbuf/internal/device"
)

// Mirror keeps a host Buffer coherent with a copy in accelerator memory.
type Mirror = device.Mirror

// MirrorState is the coherence state of a Mirror.
type MirrorState = device.State

// Coherence states.
const (
	HostCurrent   MirrorState = device.HostCurrent
	DeviceCurrent MirrorState = device.DeviceCurrent
	BothCurrent   MirrorState = device.BothCurrent
	BothStale     MirrorState = device.BothStale
)

// DeviceBackend is the interface implemented by accelerator memory providers.
type DeviceBackend = device.Backend

// Transfer is an asynchronous copy between host and device.
type Transfer = device.Transfer

// NewMirror allocates device memory for host on backend; the host copy is current.
//
// Example:
//
//	sim := tensor.NewHostSim(tensor.DefaultHostSimConfig())
//	m, err := tensor.NewMirror(buf, sim)
//	if err != nil {
//	    return err
//	}
//	defer m.Release()
//	err = m.EnsureDeviceCurrent(ctx)
func NewMirror(host *Buffer, backend DeviceBackend) (*Mirror, error) {
	return device.NewMirror(host, backend)
}

// HostSimConfig configures the in-process device simulator.
type HostSimConfig = device.HostSimConfig

// DefaultHostSimConfig returns an unlimited simulator with asynchronous transfers.
func DefaultHostSimConfig() HostSimConfig {
	return device.DefaultHostSimConfig()
}

// NewHostSim creates a device backend that keeps "device" memory on the Go heap.
func NewHostSim(cfg HostSimConfig) *device.HostSim {
	return device.NewHostSim(cfg)
}
