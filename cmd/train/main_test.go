package main

import (
	"bytes"
	"flag"
	"testing"

	"mibound/tensor"
	"mibound/utils"

	"github.com/stretchr/testify/require"
)

func TestFlagOverridesSingleEstimator(t *testing.T) {
	require.NoError(t, flag.Set("iterations", "7"))
	t.Cleanup(func() { require.NoError(t, flag.Set("iterations", "0")) })

	o := flagOverrides([]string{"nwj"})
	require.Equal(t, "nwj", o.Estimator)
	require.Equal(t, 7, o.Iterations)

	cfg := utils.DefaultConfig()
	cfg.ApplyOverrides(o)
	require.Equal(t, "nwj", cfg.Estimation.Estimator)
	require.Equal(t, 7, cfg.Optimization.Iterations)
}

func TestFlagOverridesEstimatorList(t *testing.T) {
	o := flagOverrides([]string{"infonce", "smile"})
	require.Empty(t, o.Estimator)
	require.Empty(t, flagOverrides(nil).Estimator)

	cfg := utils.DefaultConfig()
	cfg.ApplyOverrides(o)
	require.Equal(t, "infonce", cfg.Estimation.Estimator)
}

func TestBannerShowsDevice(t *testing.T) {
	compute, err := tensor.NewContext("")
	require.NoError(t, err)
	cfg := utils.DefaultConfig()
	cfg.Estimation.Baseline = "learned"

	var buf bytes.Buffer
	printBanner(&buf, cfg, compute, []string{"tuba"})
	out := buf.String()
	require.Contains(t, out, "Device:        "+compute.Describe())
	require.Contains(t, out, "learned (hidden 512, layers 2)")
	require.Contains(t, out, "Estimators:    tuba")
}
