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
	"sync/atomic"
)

// DiscardSink drops all capture events
type DiscardSink struct{}

// Capture implements CaptureSink
func (DiscardSink) Capture(CaptureEvent) {}

// ChanSink delivers capture events over a buffered channel.
// Events are dropped when the channel is full.
type ChanSink struct {
	C       chan CaptureEvent
	dropped atomic.Uint64
}

// NewChanSink returns ChanSink buffering up to size events
func NewChanSink(size int) *ChanSink {
	return &ChanSink{C: make(chan CaptureEvent, size)}
}

// Capture implements CaptureSink
func (s *ChanSink) Capture(ev CaptureEvent) {
	select {
	case s.C <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Dropped returns number of events lost to a full channel
func (s *ChanSink) Dropped() uint64 {
	return s.dropped.Load()
}
