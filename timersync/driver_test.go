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

package timersync

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timestamp"
)

// backPeriod makes the mocked period register behave like a real one
func backPeriod(tim *MockTimerDevice, initial uint32) *uint32 {
	p := initial
	tim.EXPECT().SetPeriod(gomock.Any()).Do(func(v uint32) { p = v }).AnyTimes()
	tim.EXPECT().Period().DoAndReturn(func() uint32 { return p }).AnyTimes()
	return &p
}

// backQueue makes the mocked aux timestamp queue serve entries from q
func backQueue(ref *MockReferenceClock, q *[]AuxTimestamp) {
	ref.EXPECT().PendingTimestamps().DoAndReturn(func() int { return len(*q) }).AnyTimes()
	ref.EXPECT().ReadTimestamp().DoAndReturn(func() (AuxTimestamp, bool) {
		if len(*q) == 0 {
			return AuxTimestamp{}, false
		}
		ts := (*q)[0]
		*q = (*q)[1:]
		return ts, true
	}).AnyTimes()
	ref.EXPECT().ClearTimestamps().Do(func() { *q = nil }).AnyTimes()
}

func newStartedDriver(t *testing.T, n int) (*Driver, *MockReferenceClock, []*MockTimerDevice, *[]AuxTimestamp) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)
	q := &[]AuxTimestamp{}
	backQueue(ref, q)
	ref.EXPECT().EnableAuxChannel(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ref.EXPECT().RateAdjustment().Return(servo.DefaultMaxAddend).AnyTimes()

	timers := []TimerDevice{}
	mocks := []*MockTimerDevice{}
	for range n {
		tim := NewMockTimerDevice(ctrl)
		backPeriod(tim, 0)
		tim.EXPECT().Enable().Return(nil).AnyTimes()
		tim.EXPECT().Disable().Return(nil).AnyTimes()
		timers = append(timers, tim)
		mocks = append(mocks, tim)
	}
	d, err := New(DefaultConfig(), ref, nil, timers...)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	return d, ref, mocks, q
}

func TestNew(t *testing.T) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)

	_, err := New(DefaultConfig(), ref, nil)
	require.Error(t, err)

	timers := []TimerDevice{}
	for range MaxTimers + 1 {
		timers = append(timers, NewMockTimerDevice(ctrl))
	}
	_, err = New(DefaultConfig(), ref, nil, timers...)
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.Gains.Kd = math.NaN()
	_, err = New(cfg, ref, nil, timers[0])
	require.ErrorIs(t, err, ErrBadGains)

	d, err := New(DefaultConfig(), ref, nil, timers[0])
	require.NoError(t, err)
	require.False(t, d.Running())
	require.Nil(t, d.Status())
	require.Equal(t, servo.DefaultGains(), d.Gains())
}

func TestStartStop(t *testing.T) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)
	tim := NewMockTimerDevice(ctrl)

	d, err := New(DefaultConfig(), ref, nil, tim)
	require.NoError(t, err)

	gomock.InOrder(
		ref.EXPECT().ClearTimestamps(),
		tim.EXPECT().SetPeriod(servo.DefaultNominalPeriod),
		ref.EXPECT().EnableAuxChannel(0, true).Return(nil),
		tim.EXPECT().Enable().Return(nil),
	)
	require.NoError(t, d.Start())
	require.True(t, d.Running())
	require.ErrorIs(t, d.Start(), ErrRunning)

	require.Equal(t, []TimerStatus{{Timer: 0, Period: servo.DefaultNominalPeriod, State: "INIT"}}, d.Status())

	gomock.InOrder(
		tim.EXPECT().Disable().Return(nil),
		ref.EXPECT().EnableAuxChannel(0, false).Return(nil),
		ref.EXPECT().ClearTimestamps(),
	)
	require.NoError(t, d.Stop())
	require.False(t, d.Running())
	require.ErrorIs(t, d.Stop(), ErrNotRunning)
}

func TestStartEnableFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)
	tim := NewMockTimerDevice(ctrl)

	d, err := New(DefaultConfig(), ref, nil, tim)
	require.NoError(t, err)

	gomock.InOrder(
		ref.EXPECT().ClearTimestamps(),
		tim.EXPECT().SetPeriod(servo.DefaultNominalPeriod),
		ref.EXPECT().EnableAuxChannel(0, true).Return(nil),
		tim.EXPECT().Enable().Return(fmt.Errorf("no clock")),
		tim.EXPECT().Disable().Return(nil),
		ref.EXPECT().EnableAuxChannel(0, false).Return(nil),
		ref.EXPECT().ClearTimestamps(),
	)
	require.ErrorContains(t, d.Start(), "no clock")
	require.False(t, d.Running())
}

func TestStopReportsErrors(t *testing.T) {
	d, _, _, _ := newStartedDriver(t, 1)
	failing := NewMockTimerDevice(gomock.NewController(t))
	failing.EXPECT().Disable().Return(fmt.Errorf("stuck"))
	d.timers = []TimerDevice{failing}
	require.ErrorContains(t, d.Stop(), "stuck")
	require.False(t, d.Running())
}

func TestSetGains(t *testing.T) {
	d, _, _, _ := newStartedDriver(t, 1)
	require.NoError(t, d.SetGains(0.1, 0.2))
	require.Equal(t, servo.Gains{Kp: 0.1, Kd: 0.2}, d.Gains())
	require.ErrorIs(t, d.SetGains(math.Inf(1), 0), ErrBadGains)
	require.ErrorIs(t, d.SetGains(0, math.NaN()), ErrBadGains)
	require.Equal(t, servo.Gains{Kp: 0.1, Kd: 0.2}, d.Gains())
}

func TestSetCompareValue(t *testing.T) {
	d, _, mocks, _ := newStartedDriver(t, 1)
	mocks[0].EXPECT().SetCompare(0, uint32(1234))
	require.NoError(t, d.SetCompareValue(0, 0, 1234))
	require.ErrorIs(t, d.SetCompareValue(0, NumChannels, 1), ErrBadChannel)
	require.ErrorIs(t, d.SetCompareValue(0, -1, 1), ErrBadChannel)
	require.ErrorIs(t, d.SetCompareValue(1, 0, 1), ErrBadTimer)
}

func TestStopStartResetsState(t *testing.T) {
	d, _, _, q := newStartedDriver(t, 1)

	// coarse jump leaves a pending skip cycle behind
	*q = append(*q, AuxTimestamp{Sec: 10, Nsec: 3000000, Channels: 1})
	d.OnRollover()
	st := d.session.Load().controllers[0].Snapshot()
	require.Equal(t, uint8(1), st.SkipCycles)
	require.Equal(t, timestamp.Timestamp{Sec: 10, Nsec: 3000000}, st.History[0])

	// queued but never drained timestamps are dropped by Stop
	*q = append(*q, AuxTimestamp{Sec: 11, Nsec: 1000, Channels: 1})
	require.NoError(t, d.Stop())
	require.Empty(t, *q)
	require.NoError(t, d.Start())
	require.Equal(t, servo.ControllerState{Period: servo.DefaultNominalPeriod}, d.session.Load().controllers[0].Snapshot())

	*q = append(*q, AuxTimestamp{Sec: 12, Nsec: 1000, Channels: 1})
	d.OnRollover()
	require.Equal(t, "LOCKED", d.Status()[0].State)
	st = d.session.Load().controllers[0].Snapshot()
	require.Equal(t, uint8(0), st.SkipCycles)
	require.Equal(t, [2]int64{1000, 0}, st.ErrorHistory)
	require.Equal(t, [2]timestamp.Timestamp{{Sec: 12, Nsec: 1000}, {}}, st.History)
}

func TestStopWaitsForInterrupt(t *testing.T) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)
	tim := NewMockTimerDevice(ctrl)
	period := backPeriod(tim, 0)
	tim.EXPECT().Enable().Return(nil).AnyTimes()
	tim.EXPECT().Disable().Return(nil).AnyTimes()
	ref.EXPECT().EnableAuxChannel(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()
	ref.EXPECT().RateAdjustment().Return(servo.DefaultMaxAddend).AnyTimes()

	// aux queue whose next read can be held until release is closed
	var mu sync.Mutex
	var q []AuxTimestamp
	holdNext := false
	entered := make(chan struct{})
	release := make(chan struct{})
	ref.EXPECT().PendingTimestamps().DoAndReturn(func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(q)
	}).AnyTimes()
	ref.EXPECT().ReadTimestamp().DoAndReturn(func() (AuxTimestamp, bool) {
		mu.Lock()
		hold := holdNext
		holdNext = false
		mu.Unlock()
		if hold {
			close(entered)
			<-release
		}
		mu.Lock()
		defer mu.Unlock()
		if len(q) == 0 {
			return AuxTimestamp{}, false
		}
		ts := q[0]
		q = q[1:]
		return ts, true
	}).AnyTimes()
	ref.EXPECT().ClearTimestamps().Do(func() {
		mu.Lock()
		defer mu.Unlock()
		q = nil
	}).AnyTimes()
	push := func(ts AuxTimestamp, hold bool) {
		mu.Lock()
		defer mu.Unlock()
		q = append(q, ts)
		holdNext = hold
	}

	d, err := New(DefaultConfig(), ref, nil, tim)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	push(AuxTimestamp{Sec: 1, Nsec: 1000, Channels: 1}, false)
	d.OnRollover()
	require.Equal(t, servo.DefaultNominalPeriod-20, *period)

	// an interrupt of the old session is still running when Stop is called
	push(AuxTimestamp{Sec: 2, Nsec: 1500, Channels: 1}, true)
	irqDone := make(chan struct{})
	go func() {
		d.OnRollover()
		close(irqDone)
	}()
	<-entered
	stopped := make(chan error, 1)
	go func() {
		stopped <- d.Stop()
	}()
	require.Never(t, func() bool { return len(stopped) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	close(release)
	<-irqDone
	require.NoError(t, <-stopped)

	// nothing of the old session survives the restart
	require.NoError(t, d.Start())
	require.Equal(t, servo.DefaultNominalPeriod, *period)
	require.Equal(t, servo.ControllerState{Period: servo.DefaultNominalPeriod}, d.session.Load().controllers[0].Snapshot())

	push(AuxTimestamp{Sec: 3, Nsec: 100, Channels: 1}, false)
	d.OnRollover()
	require.Equal(t, servo.DefaultNominalPeriod-2, *period)
	require.Equal(t, timestamp.Timestamp{Sec: 3, Nsec: 100}, d.session.Load().controllers[0].Snapshot().History[0])
	require.Equal(t, uint64(1), d.Status()[0].Samples)
}
