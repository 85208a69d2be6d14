/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package daemon

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/flexptp/timersync/sim"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

func newTestDaemon(t *testing.T) (*Daemon, *sim.Bench) {
	cfg := DefaultConfig()
	cfg.AutoStart = false
	cfg.MonitoringPort = 0
	cfg.ControlAddress = "localhost:0"
	cfg.MetricsInterval = 10 * time.Millisecond

	bcfg := sim.DefaultConfig()
	bcfg.Start = timestamp.New(1000, 300000000)
	bench, err := sim.NewBench(bcfg)
	require.NoError(t, err)
	d, err := New(cfg, &simBackend{bench: bench, interval: time.Millisecond})
	require.NoError(t, err)
	bench.Attach(d.Driver())
	return d, bench
}

func TestNewBadLockExpr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LockExpr = "jitter < 1"
	b, err := newSimBackend(cfg)
	require.NoError(t, err)
	_, err = New(cfg, b)
	require.Error(t, err)
}

func TestCollect(t *testing.T) {
	d, bench := newTestDaemon(t)

	d.collect()
	require.Empty(t, d.Stats().GetStats())
	require.Equal(t, int64(0), d.Stats().GetCounters()[CounterRunning])

	require.NoError(t, d.Driver().Start())
	for i := 0; i < 31; i++ {
		require.NoError(t, bench.Step())
		d.collect()
	}

	st := d.Stats().GetStats()
	require.Len(t, st, 1)
	require.Equal(t, 0, st[0].Timer)
	require.Equal(t, "LOCKED", st[0].State)
	require.True(t, st[0].Locked)
	require.Empty(t, st[0].LockError)

	c := d.Stats().GetCounters()
	require.Equal(t, int64(1), c[CounterRunning])
	require.Equal(t, int64(1), c[CounterLockedTimers])
	require.Equal(t, int64(31), c["timersync.samples"])
	require.Equal(t, int64(1), c["timersync.jumps"])
	require.Equal(t, int64(0), c[CounterCapturesDropped])

	// stopping resets the windows
	require.NoError(t, d.Driver().Stop())
	d.collect()
	require.Empty(t, d.Stats().GetStats())
	require.Equal(t, 0, d.windows[0].Len())
}

func TestCollectOncePerSample(t *testing.T) {
	d, bench := newTestDaemon(t)
	require.NoError(t, d.Driver().Start())

	// jump, then the skipped settling cycle
	require.NoError(t, bench.Step())
	d.collect()
	d.collect()
	require.Equal(t, 1, d.windows[0].Len())
	require.NoError(t, bench.Step())
	d.collect()
	require.Equal(t, 1, d.windows[0].Len())

	for i := 0; i < 5; i++ {
		require.NoError(t, bench.Step())
		d.collect()
		d.collect()
		d.collect()
	}
	require.Equal(t, 6, d.windows[0].Len())
	require.Equal(t, uint64(7), d.fed[0])

	// several samples between ticks add only the latest error
	require.NoError(t, bench.Run(3))
	d.collect()
	require.Equal(t, 7, d.windows[0].Len())
	require.Equal(t, uint64(10), d.fed[0])
}

func TestConsumeCaptures(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go d.consumeCaptures(ctx)

	for i := 0; i < maxRecentCaptures+4; i++ {
		d.sink.Capture(timersync.CaptureEvent{Timer: 0, Channel: 1, Timestamp: timestamp.New(int64(i), 0)})
	}
	require.Eventually(t, func() bool {
		c := d.RecentCaptures()
		return len(c) == maxRecentCaptures && c[len(c)-1].Timestamp.Sec == maxRecentCaptures+3
	}, time.Second, time.Millisecond)
	require.Equal(t, int64(4), d.RecentCaptures()[0].Timestamp.Sec)
}

func TestRun(t *testing.T) {
	d, _ := newTestDaemon(t)
	d.cfg.AutoStart = true
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return d.Stats().GetCounters()["timersync.samples"] > 3
	}, 5*time.Second, 10*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	require.False(t, d.Driver().Running())
}
