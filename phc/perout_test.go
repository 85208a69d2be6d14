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

package phc

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/timersync"
	"github.com/flexptp/timersync/timestamp"
)

const tickHz = 200e6

func TestPeroutTimerEnable(t *testing.T) {
	dev := newFakeDevice()
	dev.now = timestamp.New(100, 700000000)
	tim := NewPeroutTimer(dev, 1, tickHz, servo.DefaultNominalPeriod)

	// setting the period of a stopped output doesn't touch the device
	tim.SetPeriod(servo.DefaultNominalPeriod)
	require.Empty(t, dev.perouts)

	require.NoError(t, tim.Enable())
	require.Equal(t, []unix.PtpPeroutRequest{{
		StartOrPhase: unix.PtpClockTime{Sec: 102},
		Period:       unix.PtpClockTime{Sec: 1},
		Index:        1,
	}}, dev.perouts)
	require.Equal(t, timestamp.New(102, 0), tim.NextEdge())

	require.NoError(t, tim.Disable())
	require.Equal(t, unix.PtpPeroutRequest{Index: 1}, dev.perouts[1])
}

func TestPeroutTimerRollover(t *testing.T) {
	dev := newFakeDevice()
	dev.now = timestamp.New(100, 0)
	tim := NewPeroutTimer(dev, 0, tickHz, servo.DefaultNominalPeriod)
	require.NoError(t, tim.Enable())

	tim.Rollover()
	require.Equal(t, timersync.FlagUpdate, tim.Flags())
	require.Equal(t, timestamp.New(103, 0), tim.NextEdge())
	tim.ClearFlags(timersync.FlagUpdate)
	require.Equal(t, timersync.IRQFlags(0), tim.Flags())

	// 10 ticks shorter period reschedules the next edge 50ns earlier
	tim.SetPeriod(servo.DefaultNominalPeriod - 10)
	require.Equal(t, uint32(servo.DefaultNominalPeriod-10), tim.Period())
	last := dev.perouts[len(dev.perouts)-1]
	require.Equal(t, unix.PtpClockTime{Sec: 102, Nsec: 999999950}, last.StartOrPhase)
	require.Equal(t, unix.PtpClockTime{Sec: 0, Nsec: 999999950}, last.Period)
	require.Equal(t, timestamp.New(102, 999999950), tim.NextEdge())
}

func TestPeroutTimerDutyCycle(t *testing.T) {
	dev := newFakeDevice()
	dev.now = timestamp.New(100, 0)
	tim := NewPeroutTimer(dev, 0, tickHz, servo.DefaultNominalPeriod)
	require.NoError(t, tim.Enable())

	tim.SetCompare(0, 20000000)
	last := dev.perouts[len(dev.perouts)-1]
	require.Equal(t, uint32(ptpPeroutDutyCycle), last.Flags)
	require.Equal(t, unix.PtpClockTime{Nsec: 100000000}, last.On)

	dev.noDuty = true
	tim.SetCompare(0, 30000000)
	last = dev.perouts[len(dev.perouts)-1]
	require.Equal(t, uint32(0), last.Flags)
	require.Equal(t, unix.PtpClockTime{}, last.On)

	// other channels are stored only
	n := len(dev.perouts)
	tim.SetCompare(2, 5)
	require.Len(t, dev.perouts, n)
	require.Equal(t, uint32(0), tim.Capture(2))
}

func TestPeroutTimerRolloverDisabled(t *testing.T) {
	tim := NewPeroutTimer(newFakeDevice(), 0, tickHz, servo.DefaultNominalPeriod)
	tim.Rollover()
	require.Equal(t, timersync.IRQFlags(0), tim.Flags())
}
