//go:build !windows

package main

import "runtime"

func webgpuStatus() string {
	return "not supported on " + runtime.GOOS
}
