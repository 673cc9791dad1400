//go:build windows

package main

import (
	"fmt"

	"github.com/born-ml/ndbuf/internal/device/webgpu"
)

func webgpuStatus() string {
	backend, err := webgpu.New()
	if err != nil {
		return fmt.Sprintf("not available (%v)", err)
	}
	defer backend.Release()
	return "available: " + backend.Name()
}
