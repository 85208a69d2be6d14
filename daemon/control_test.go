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
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

func newTestClient(t *testing.T) (*Client, *Daemon, func() error) {
	d, bench := newTestDaemon(t)
	srv := httptest.NewServer(d.ControlHandler())
	t.Cleanup(srv.Close)
	step := func() error {
		return bench.Run(31)
	}
	return NewClient(strings.TrimPrefix(srv.URL, "http://")), d, step
}

func TestControlStartStop(t *testing.T) {
	c, d, step := newTestClient(t)

	st, err := c.Status()
	require.NoError(t, err)
	require.False(t, st.Running)
	require.Empty(t, st.Timers)

	require.NoError(t, c.Start())
	require.True(t, d.Driver().Running())
	require.ErrorContains(t, c.Start(), timersync.ErrRunning.Error())

	require.NoError(t, step())
	d.collect()
	st, err = c.Status()
	require.NoError(t, err)
	require.True(t, st.Running)
	require.Len(t, st.Timers, 1)
	require.Equal(t, "LOCKED", st.Timers[0].State)
	require.Equal(t, servo.DefaultNominalPeriod, st.Timers[0].Period)
	require.Equal(t, int64(31), st.Counters[timersync.CounterSamples])

	require.NoError(t, c.Stop())
	require.False(t, d.Driver().Running())
	require.ErrorContains(t, c.Stop(), timersync.ErrNotRunning.Error())
}

func TestControlConflictCode(t *testing.T) {
	c, _, _ := newTestClient(t)
	resp, err := http.Post(c.base+"/stop", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusConflict, resp.StatusCode)

	resp, err = http.Get(c.base + "/start")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestControlGains(t *testing.T) {
	c, d, _ := newTestClient(t)

	g, err := c.Gains()
	require.NoError(t, err)
	require.Equal(t, servo.DefaultGains(), g)

	g, err = c.SetGains(0.5, 0.25)
	require.NoError(t, err)
	require.Equal(t, servo.Gains{Kp: 0.5, Kd: 0.25}, g)
	require.Equal(t, g, d.Driver().Gains())

	resp, err := http.Post(c.base+"/gains", "application/json", strings.NewReader(`{"kp": "fast"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, servo.Gains{Kp: 0.5, Kd: 0.25}, d.Driver().Gains())
}

func TestControlCompare(t *testing.T) {
	c, d, _ := newTestClient(t)
	bench := d.backend.(*simBackend).bench

	require.NoError(t, c.SetCompareValue(0, 2, 1000))
	require.Equal(t, uint32(1000), bench.Timer(0).Compare(2))

	require.ErrorContains(t, c.SetCompareValue(3, 0, 1), timersync.ErrBadTimer.Error())
	require.ErrorContains(t, c.SetCompareValue(0, timersync.NumChannels, 1), timersync.ErrBadChannel.Error())
}

func TestControlCaptures(t *testing.T) {
	c, d, _ := newTestClient(t)

	res, err := c.Captures()
	require.NoError(t, err)
	require.Empty(t, res)

	ev := timersync.CaptureEvent{Timer: 0, Channel: 3, Timestamp: timestamp.New(1001, 5)}
	d.captures = append(d.captures, ev)
	res, err = c.Captures()
	require.NoError(t, err)
	require.Equal(t, []timersync.CaptureEvent{ev}, res)
}
