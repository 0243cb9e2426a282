package tensor

import (
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/klauspost/cpuid/v2"
)

// ErrUnsupportedDevice is returned for any device other than the CPU.
var ErrUnsupportedDevice = errors.New("tensor: unsupported device")

// DeviceCPU is the only backend: gonum's pure-Go BLAS.
const DeviceCPU = "cpu"

// Context is the compute context threaded through a run. All device
// selection happens here and nowhere else.
type Context struct {
	Device string
}

// NewContext validates the device name. An empty name selects the CPU.
func NewContext(device string) (*Context, error) {
	d := strings.ToLower(strings.TrimSpace(device))
	if d == "" {
		d = DeviceCPU
	}
	if d != DeviceCPU {
		return nil, fmt.Errorf("%w: %q (only %q is available)", ErrUnsupportedDevice, device, DeviceCPU)
	}
	return &Context{Device: d}, nil
}

// Describe returns a one-line description of the host backing the context.
func (c *Context) Describe() string {
	var feats []string
	for _, f := range []struct {
		id   cpuid.FeatureID
		name string
	}{
		{cpuid.SSE4, "sse4.1"},
		{cpuid.AVX, "avx"},
		{cpuid.AVX2, "avx2"},
		{cpuid.FMA3, "fma3"},
		{cpuid.AVX512F, "avx512f"},
		{cpuid.ASIMD, "asimd"},
	} {
		if cpuid.CPU.Supports(f.id) {
			feats = append(feats, f.name)
		}
	}
	brand := cpuid.CPU.BrandName
	if brand == "" {
		brand = runtime.GOARCH
	}
	return fmt.Sprintf("device=%s cpu=%q cores=%d/%d features=[%s]",
		c.Device, brand, cpuid.CPU.PhysicalCores, cpuid.CPU.LogicalCores, strings.Join(feats, ","))
}
