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

/*
Package timestamp implements the fixed-point (seconds, nanoseconds) time
values exchanged between the reference clock, the timer and the servo.
*/
package timestamp

import (
	"fmt"
	"time"
)

// NanosPerSecond is the number of nanoseconds in one second
const NanosPerSecond int64 = 1000000000

// Timestamp is a time value split into whole seconds and nanoseconds.
// A normalized Timestamp always has 0 <= Nsec < NanosPerSecond.
type Timestamp struct {
	Sec  int64 `json:"sec"`
	Nsec int64 `json:"nsec"`
}

// New returns a normalized Timestamp
func New(sec, nsec int64) Timestamp {
	return Timestamp{Sec: sec, Nsec: nsec}.Normalize()
}

// FromTime converts time.Time to Timestamp
func FromTime(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int64(t.Nanosecond())}
}

// Normalize moves whole seconds out of Nsec so that 0 <= Nsec < 1e9.
// Negative nanoseconds borrow from Sec.
func (t Timestamp) Normalize() Timestamp {
	if t.Nsec >= NanosPerSecond || t.Nsec <= -NanosPerSecond {
		t.Sec += t.Nsec / NanosPerSecond
		t.Nsec %= NanosPerSecond
	}
	if t.Nsec < 0 {
		t.Nsec += NanosPerSecond
		t.Sec--
	}
	return t
}

// Sub returns normalized t - u
func (t Timestamp) Sub(u Timestamp) Timestamp {
	return Timestamp{Sec: t.Sec - u.Sec, Nsec: t.Nsec - u.Nsec}.Normalize()
}

// Add returns normalized t + u
func (t Timestamp) Add(u Timestamp) Timestamp {
	return Timestamp{Sec: t.Sec + u.Sec, Nsec: t.Nsec + u.Nsec}.Normalize()
}

// IsZero reports whether t is the zero Timestamp
func (t Timestamp) IsZero() bool {
	return t.Sec == 0 && t.Nsec == 0
}

// Nanoseconds returns t as a single nanosecond count. It overflows for
// values further than ~292 years from zero.
func (t Timestamp) Nanoseconds() int64 {
	return t.Sec*NanosPerSecond + t.Nsec
}

// Duration returns t as time.Duration
func (t Timestamp) Duration() time.Duration {
	return time.Duration(t.Nanoseconds())
}

// Time converts t to time.Time
func (t Timestamp) Time() time.Time {
	return time.Unix(t.Sec, t.Nsec)
}

func (t Timestamp) String() string {
	n := t.Normalize()
	return fmt.Sprintf("%d.%09d", n.Sec, n.Nsec)
}
