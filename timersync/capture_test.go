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
	"testing"

	log "github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timestamp"
)

func TestTicksToNanos(t *testing.T) {
	require.Equal(t, int64(500000000), TicksToNanos(100000000, servo.DefaultNominalPeriod))
	require.Equal(t, int64(0), TicksToNanos(0, servo.DefaultNominalPeriod))
	require.Equal(t, int64(5), TicksToNanos(1, servo.DefaultNominalPeriod))
	require.Equal(t, int64(500000000), TicksToNanos(0x80000000, servo.MaxPeriod))
}

func newCaptureDriver(t *testing.T, sink CaptureSink) (*Driver, *MockReferenceClock, *MockTimerDevice) {
	ctrl := gomock.NewController(t)
	ref := NewMockReferenceClock(ctrl)
	tim := NewMockTimerDevice(ctrl)
	ref.EXPECT().ClearTimestamps().AnyTimes()
	ref.EXPECT().EnableAuxChannel(0, true).Return(nil)
	tim.EXPECT().Enable().Return(nil)
	backPeriod(tim, 0)

	d, err := New(DefaultConfig(), ref, sink, tim)
	require.NoError(t, err)
	require.NoError(t, d.Start())
	return d, ref, tim
}

func TestOnCapture(t *testing.T) {
	sink := NewChanSink(4)
	d, ref, tim := newCaptureDriver(t, sink)

	// edge at .5s, reference already .6s into the same second
	tim.EXPECT().Capture(2).Return(uint32(100000000))
	ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 100, Nsec: 600000000}, nil)
	d.OnCapture(0, 2)
	require.Equal(t, CaptureEvent{Timer: 0, Channel: 2, Timestamp: timestamp.Timestamp{Sec: 100, Nsec: 500000000}}, <-sink.C)

	// reference second rolled over after the edge
	tim.EXPECT().Capture(0).Return(uint32(100000000))
	ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 101, Nsec: 400000000}, nil)
	d.OnCapture(0, 0)
	require.Equal(t, CaptureEvent{Timer: 0, Channel: 0, Timestamp: timestamp.Timestamp{Sec: 100, Nsec: 500000000}}, <-sink.C)

	// equal nanoseconds count as a rollover
	tim.EXPECT().Capture(0).Return(uint32(100000000))
	ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 101, Nsec: 500000000}, nil)
	d.OnCapture(0, 0)
	require.Equal(t, int64(100), (<-sink.C).Timestamp.Sec)

	require.Equal(t, uint64(3), d.Counters().Captures.Load())
}

func TestOnCaptureTimeFailure(t *testing.T) {
	d, ref, tim := newCaptureDriver(t, nil)
	tim.EXPECT().Capture(1).Return(uint32(5))
	ref.EXPECT().Time().Return(timestamp.Timestamp{}, fmt.Errorf("gone"))
	hook := logtest.NewGlobal()
	defer hook.Reset()
	d.OnCapture(0, 1)
	require.Equal(t, log.WarnLevel, hook.LastEntry().Level)
	require.Equal(t, "reading reference time: gone", hook.LastEntry().Message)
	require.Equal(t, uint64(1), d.Counters().CaptureFaults.Load())
	require.Equal(t, uint64(0), d.Counters().Captures.Load())
}

func TestHandleIRQ(t *testing.T) {
	sink := NewChanSink(4)
	d, ref, tim := newCaptureDriver(t, sink)

	gomock.InOrder(
		tim.EXPECT().Flags().Return(FlagUpdate|FlagCC2|FlagCC4),
		tim.EXPECT().ClearFlags(FlagUpdate),
		ref.EXPECT().PendingTimestamps().Return(1),
		ref.EXPECT().ReadTimestamp().Return(AuxTimestamp{Sec: 7, Nsec: 300, Channels: 1}, true),
		ref.EXPECT().PendingTimestamps().Return(0),
		tim.EXPECT().ClearFlags(FlagCC2),
		tim.EXPECT().Capture(1).Return(uint32(0)),
		ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 8, Nsec: 100}, nil),
		tim.EXPECT().ClearFlags(FlagCC4),
		tim.EXPECT().Capture(3).Return(uint32(0)),
		ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 8, Nsec: 200}, nil),
	)
	d.HandleIRQ(0)

	require.Equal(t, uint64(1), d.Counters().Locked.Load())
	require.Equal(t, 1, (<-sink.C).Channel)
	require.Equal(t, 3, (<-sink.C).Channel)
}

func TestHandleIRQCaptureOnly(t *testing.T) {
	d, ref, tim := newCaptureDriver(t, nil)
	gomock.InOrder(
		tim.EXPECT().Flags().Return(FlagCC1),
		tim.EXPECT().ClearFlags(FlagCC1),
		tim.EXPECT().Capture(0).Return(uint32(10)),
		ref.EXPECT().Time().Return(timestamp.Timestamp{Sec: 8, Nsec: 100}, nil),
	)
	d.HandleIRQ(0)
	require.Equal(t, uint64(0), d.Counters().Samples.Load())
	require.Equal(t, uint64(1), d.Counters().Captures.Load())
}

func TestHandleIRQUnknownTimer(t *testing.T) {
	d, _, _ := newCaptureDriver(t, nil)
	require.NotPanics(t, func() {
		d.HandleIRQ(1)
		d.HandleIRQ(-1)
	})
	require.Equal(t, uint64(2), d.Counters().BadIRQs.Load())
	require.Equal(t, int64(2), d.Counters().Map()[CounterBadIRQs])
}

func TestChanSinkDrops(t *testing.T) {
	sink := NewChanSink(1)
	sink.Capture(CaptureEvent{Channel: 0})
	sink.Capture(CaptureEvent{Channel: 1})
	require.Equal(t, uint64(1), sink.Dropped())
	require.Equal(t, 0, (<-sink.C).Channel)
}
