package main

import (
	"runtime"

	"golang.org/x/sys/cpu"
)

// cpuFeatures lists the vector extensions relevant to element conversion and copies.
func cpuFeatures() []string {
	var out []string
	add := func(name string, ok bool) {
		if ok {
			out = append(out, name)
		}
	}
	switch runtime.GOARCH {
	case "amd64", "386":
		add("SSE4.1", cpu.X86.HasSSE41)
		add("SSE4.2", cpu.X86.HasSSE42)
		add("AVX", cpu.X86.HasAVX)
		add("AVX2", cpu.X86.HasAVX2)
		add("FMA", cpu.X86.HasFMA)
		add("AVX512F", cpu.X86.HasAVX512F)
		add("AVX512BF16", cpu.X86.HasAVX512BF16)
	case "arm64":
		add("NEON", cpu.ARM64.HasASIMD)
		add("FP16", cpu.ARM64.HasFPHP && cpu.ARM64.HasASIMDHP)
		add("SVE", cpu.ARM64.HasSVE)
	}
	return out
}
