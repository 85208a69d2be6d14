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
Package phc implements timersync devices on top of Linux PTP hardware clocks.

Reference is a reference clock backed by a PHC: its time comes from
clock_gettime on the PHC dynamic clock id, its rate adjustment is the PHC
frequency reported by clock_adjtime, and its aux timestamp queue is fed by
the kernel external timestamp (EXTTS) event stream of /dev/ptpN.

PeroutTimer drives a PHC periodic output (PEROUT) as a disciplined timer.
*/
package phc

import (
	"errors"
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/flexptp/timersync/clock"
	"github.com/flexptp/timersync/timestamp"
)

// FDToClockID converts a file descriptor of a PHC device to a dynamic clock id
func FDToClockID(fd uintptr) int32 {
	return int32((int(^fd) << 3) | 3)
}

// IfaceInfo uses SIOCETHTOOL ioctl to get information for the give nic, i.e. eth0.
func IfaceInfo(iface string) (*unix.EthtoolTsInfo, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to create socket for ioctl: %w", err)
	}
	defer unix.Close(fd)
	info, err := unix.IoctlGetEthtoolTsInfo(fd, iface)
	if err != nil {
		return nil, fmt.Errorf("failed get phc ID: %w", err)
	}
	return info, nil
}

// DeviceFromIface returns a path to a PHC device from a network interface
func DeviceFromIface(iface string) (string, error) {
	if _, err := net.InterfaceByName(iface); err != nil {
		return "", fmt.Errorf("%s interface is not found", iface)
	}
	info, err := IfaceInfo(iface)
	if err != nil {
		return "", err
	}
	if info.Phc_index < 0 {
		return "", fmt.Errorf("no PHC support for %s", iface)
	}
	return fmt.Sprintf("/dev/ptp%d", info.Phc_index), nil
}

// Device is an open PHC character device
type Device struct {
	path string
	fd   int
}

// Open opens a PHC device for reading events and issuing ioctls.
// Reads never block.
func Open(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return &Device{path: path, fd: fd}, nil
}

// Close closes the device
func (d *Device) Close() error {
	return unix.Close(d.fd)
}

// Path returns the device path
func (d *Device) Path() string {
	return d.path
}

// ClockID returns the dynamic clock id of the device
func (d *Device) ClockID() int32 {
	return FDToClockID(uintptr(d.fd))
}

// Time returns current PHC time
func (d *Device) Time() (timestamp.Timestamp, error) {
	var ts unix.Timespec
	if err := unix.ClockGettime(d.ClockID(), &ts); err != nil {
		return timestamp.Timestamp{}, fmt.Errorf("failed clock_gettime on %s: %w", d.path, err)
	}
	return timestamp.Timestamp{Sec: int64(ts.Sec), Nsec: int64(ts.Nsec)}, nil
}

// FrequencyPPB returns PHC frequency adjustment in PPB
func (d *Device) FrequencyPPB() (float64, error) {
	freqPPB, err := clock.CheckedFrequencyPPB(d.ClockID())
	if err != nil {
		return freqPPB, fmt.Errorf("%s: %w", d.path, err)
	}
	return freqPPB, nil
}

// Caps returns PHC capabilities
func (d *Device) Caps() (*unix.PtpClockCaps, error) {
	return unix.IoctlPtpClockGetcaps(d.fd)
}

// SetPinFunc assigns a function and a channel to a programmable pin
func (d *Device) SetPinFunc(pin uint, fn uint32, ch uint) error {
	pd := &unix.PtpPinDesc{
		Index: uint32(pin),
		Func:  fn,
		Chan:  uint32(ch),
	}
	if err := unix.IoctlPtpPinSetfunc(d.fd, pd); err != nil {
		return fmt.Errorf("%s: setting pin %d function %d: %w", d.path, pin, fn, err)
	}
	return nil
}

// Extts enables or disables external timestamping on channel index
func (d *Device) Extts(index uint, flags uint32) error {
	req := &unix.PtpExttsRequest{
		Index: uint32(index),
		Flags: flags,
	}
	if err := unix.IoctlPtpExttsRequest(d.fd, req); err != nil {
		return fmt.Errorf("%s: extts request on channel %d: %w", d.path, index, err)
	}
	return nil
}

// Perout configures periodic output
func (d *Device) Perout(req *unix.PtpPeroutRequest) error {
	return unix.IoctlPtpPeroutRequest(d.fd, req)
}

// ReadEvents reads whole EXTTS events into buf. It returns 0 when no event is queued.
func (d *Device) ReadEvents(buf []byte) (int, error) {
	n, err := unix.Read(d.fd, buf)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading events from %s: %w", d.path, err)
	}
	return n, nil
}
