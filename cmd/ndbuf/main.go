// Package main provides the ndbuf CLI.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"

	"k8s.io/klog/v2"

	"github.com/born-ml/ndbuf/internal/serialization"
	"github.com/born-ml/ndbuf/internal/tensor"
)

const version = "v0.1.0-dev"

var errUsage = errors.New("usage")

func main() {
	klog.InitFlags(nil)
	flag.Usage = func() { usage(os.Stderr) }
	flag.Parse()
	defer klog.Flush()

	if err := run(flag.Args(), os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "ndbuf: %v\n", err)
		os.Exit(1)
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "ndbuf %s - typed buffers, strided views and COO sorting\n\n", version)
	fmt.Fprintln(w, "Usage: ndbuf [klog flags] <command> [args]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  version              Show version")
	fmt.Fprintln(w, "  info                 Show data types, CPU features and WebGPU availability")
	fmt.Fprintln(w, "  inspect <file>       List the tensors and metadata of a safetensors file")
	fmt.Fprintln(w, "  sortcoo <in> <out>   Sort the indices of a COO set file")
}

// run executes one command, writing its report to w.
func run(args []string, w io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch cmd, rest := args[0], args[1:]; cmd {
	case "version":
		fmt.Fprintf(w, "ndbuf %s\n", version)
		return nil
	case "info":
		info(w)
		return nil
	case "inspect":
		if len(rest) != 1 {
			return errUsage
		}
		return inspect(rest[0], w)
	case "sortcoo":
		if len(rest) != 2 {
			return errUsage
		}
		return sortCOO(rest[0], rest[1], w)
	default:
		return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
	}
}

func info(w io.Writer) {
	fmt.Fprintf(w, "ndbuf %s (%s/%s, %d CPUs)\n\n", version, runtime.GOOS, runtime.GOARCH, runtime.NumCPU())

	fmt.Fprintln(w, "Data types:")
	for _, dt := range tensor.DataTypes() {
		fmt.Fprintf(w, "  %-9s %2d bytes\n", dt, dt.Size())
	}

	fmt.Fprintln(w, "\nCPU features:")
	features := cpuFeatures()
	if len(features) == 0 {
		fmt.Fprintln(w, "  none detected")
	}
	for _, f := range features {
		fmt.Fprintf(w, "  %s\n", f)
	}

	fmt.Fprintf(w, "\nWebGPU: %s\n", webgpuStatus())
}

func inspect(path string, w io.Writer) error {
	//nolint:gosec // G304: File path comes from the command line
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := serialization.Load(f, serialization.MaxHeaderSize)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer st.Release()

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return err
	}
	digest, err := serialization.Digest(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	fmt.Fprintf(w, "%s: %d tensors (sha256 %s)\n", path, len(st.Entries), digest)
	for _, e := range st.Entries {
		fmt.Fprintf(w, "  %-24s %-9s %v\n", e.Name, e.View.DType(), e.View.Shape())
	}
	if len(st.Metadata) > 0 {
		fmt.Fprintln(w, "Metadata:")
		keys := make([]string, 0, len(st.Metadata))
		for k := range st.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "  %s = %s\n", k, st.Metadata[k])
		}
	}
	return nil
}

func sortCOO(in, out string, w io.Writer) error {
	//nolint:gosec // G304: File path comes from the command line
	src, err := os.Open(in)
	if err != nil {
		return err
	}
	c, err := serialization.LoadCOO(src, serialization.MaxHeaderSize)
	src.Close()
	if err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}
	defer c.Release()

	if c.IsSorted() {
		klog.V(1).Infof("%s is already sorted", in)
	} else if err := c.Sort(); err != nil {
		return fmt.Errorf("%s: %w", in, err)
	}

	//nolint:gosec // G304: File path comes from the command line
	dst, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := serialization.SaveCOO(dst, c, nil); err != nil {
		dst.Close()
		return fmt.Errorf("%s: %w", out, err)
	}
	if err := dst.Close(); err != nil {
		return err
	}
	fmt.Fprintf(w, "sorted %d entries of %s into %s\n", c.NNZ(), c.String(), out)
	return nil
}
