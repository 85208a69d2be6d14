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
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/flexptp/timersync/hostendian"
)

// Missing from sys/unix package, defined in Linux include/uapi/linux/ptp_clock.h
const (
	ptpEnableFeature   = 1 << 0
	ptpRisingEdge      = 1 << 1
	ptpFallingEdge     = 1 << 2
	ptpPeroutDutyCycle = 1 << 1
	// size of struct ptp_extts_event
	eventSize = 32
)

// decodeEvent parses one struct ptp_extts_event
func decodeEvent(b []byte) (unix.PtpExttsEvent, error) {
	if len(b) < eventSize {
		return unix.PtpExttsEvent{}, fmt.Errorf("short extts event: %d bytes", len(b))
	}
	return unix.PtpExttsEvent{
		T: unix.PtpClockTime{
			Sec:  int64(hostendian.Order.Uint64(b[0:8])),
			Nsec: hostendian.Order.Uint32(b[8:12]),
		},
		Index: hostendian.Order.Uint32(b[16:20]),
		Flags: hostendian.Order.Uint32(b[20:24]),
	}, nil
}
