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

package clock

import (
	"fmt"
	"math"

	"golang.org/x/sys/unix"
)

// PPBToTimexPPM is what we use to conver PPB to PPM.
// man clock_adjtime(2):
// In struct timex, freq, ppsfreq, and stabil are ppm (parts per million) with a 16-bit fractional part.
// To covert value where 2^16=65536 is 1 ppm to ppb or back, we need this multiplier
const PPBToTimexPPM = 65.536

// MaxAddend is the full scale of a 32-bit addend register
const MaxAddend uint64 = 0xFFFFFFFF

// DefaultMaxFreqPPB is used when the clock doesn't report its tolerance
const DefaultMaxFreqPPB = 500000.0

// FrequencyPPB reads clock frequency in PPB
func FrequencyPPB(clockid int32) (freqPPB float64, state int, err error) {
	tx := &unix.Timex{}
	state, err = unix.ClockAdjtime(clockid, tx)
	// man(2) clock_adjtime
	freqPPB = float64(tx.Freq) / PPBToTimexPPM
	return freqPPB, state, err
}

// MaxFreqPPB returns maximum frequency adjustment supported by the clock
func MaxFreqPPB(clockid int32) (freqPPB float64, state int, err error) {
	tx := &unix.Timex{}
	state, err = unix.ClockAdjtime(clockid, tx)
	if err != nil {
		return 0.0, state, err
	}
	freqPPB = float64(tx.Tolerance) / PPBToTimexPPM
	if freqPPB == 0 {
		freqPPB = DefaultMaxFreqPPB
	}
	return freqPPB, state, nil
}

// CheckedFrequencyPPB is FrequencyPPB which also fails if clock state isn't TIME_OK
func CheckedFrequencyPPB(clockid int32) (float64, error) {
	freqPPB, state, err := FrequencyPPB(clockid)
	if err != nil {
		return 0, err
	}
	if state != unix.TIME_OK {
		return freqPPB, fmt.Errorf("clock %d state %d is not TIME_OK", clockid, state)
	}
	return freqPPB, nil
}

// AddendFromPPB converts frequency adjustment into an addend value
func AddendFromPPB(freqPPB float64) uint64 {
	addend := math.Round(float64(MaxAddend) * (1 + freqPPB/1e9))
	if addend < 1 {
		return 1
	}
	return uint64(addend)
}

// PPBFromAddend converts an addend value back to frequency adjustment
func PPBFromAddend(addend uint64) float64 {
	return (float64(addend)/float64(MaxAddend) - 1) * 1e9
}
