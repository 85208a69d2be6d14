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

package stats

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/process"
)

var procStartTime = time.Now()

// runtimeSample holds the monotonic counters rates are computed from
type runtimeSample struct {
	gcCount     uint64
	gcPauseNS   uint64
	switches    bool
	voluntary   uint64
	involuntary uint64
}

// SysStats reports memory, GC, context switch and scheduler stats of the
// daemon process
type SysStats struct {
	prev *runtimeSample
}

// setRate adds the change of a monotonic counter over interval and its per-second rate
func setRate(name string, counts map[string]int64, cur, prev uint64, interval time.Duration) {
	secs := uint64(interval.Seconds())
	if prev > cur || secs == 0 {
		return
	}
	delta := cur - prev
	counts[fmt.Sprintf("%s.sum.%d", name, secs)] = int64(delta)
	counts[fmt.Sprintf("%s.rate.%d", name, secs)] = int64(delta / secs)
}

// CollectRuntimeStats returns process and Go runtime gauges, plus rates
// since the previous call
func (s *SysStats) CollectRuntimeStats(interval time.Duration) (map[string]int64, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	res := map[string]int64{
		"process.uptime": int64(time.Since(procStartTime).Seconds()),
	}
	cur := &runtimeSample{}

	if pct, err := proc.Percent(0); err == nil {
		res[fmt.Sprintf("process.cpu_pct.avg.%d", int(interval.Seconds()))] = int64(pct * 100)
	}
	if mem, err := proc.MemoryInfo(); err == nil {
		res["process.rss"] = int64(mem.RSS)
	}
	if fds, err := proc.NumFDs(); err == nil {
		res["process.num_fds"] = int64(fds)
	}
	if threads, err := proc.NumThreads(); err == nil {
		res["process.num_threads"] = int64(threads)
	}
	if sw, err := proc.NumCtxSwitches(); err == nil {
		cur.switches = true
		cur.voluntary = uint64(sw.Voluntary)
		cur.involuntary = uint64(sw.Involuntary)
		res["process.ctx_switches.voluntary"] = sw.Voluntary
		res["process.ctx_switches.involuntary"] = sw.Involuntary
	}

	m := &runtime.MemStats{}
	runtime.ReadMemStats(m)
	cur.gcCount = uint64(m.NumGC)
	cur.gcPauseNS = m.PauseTotalNs
	res["runtime.cpu.goroutines"] = int64(runtime.NumGoroutine())
	res["runtime.cpu.gomaxprocs"] = int64(runtime.GOMAXPROCS(0))
	res["runtime.mem.heap.alloc"] = int64(m.HeapAlloc)
	res["runtime.mem.gc.count"] = int64(m.NumGC)

	if prev := s.prev; prev != nil {
		setRate("runtime.gc.count", res, cur.gcCount, prev.gcCount, interval)
		setRate("runtime.gc.pause_ns", res, cur.gcPauseNS, prev.gcPauseNS, interval)
		if cur.switches && prev.switches {
			setRate("process.ctx_switches.voluntary", res, cur.voluntary, prev.voluntary, interval)
			setRate("process.ctx_switches.involuntary", res, cur.involuntary, prev.involuntary, interval)
		}
	}
	s.prev = cur
	return res, nil
}
