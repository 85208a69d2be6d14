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
Package daemon runs timersync as a service: it wires a backend to the
driver, serves monitoring and control HTTP endpoints and collects metrics.
*/
package daemon

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	sddaemon "github.com/coreos/go-systemd/daemon"
	"github.com/davecgh/go-spew/spew"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/stats"
	"github.com/flexptp/timersync/timersync"
)

// maxRecentCaptures is how many capture events the control API reports
const maxRecentCaptures = 16

// extra counter keys
const (
	CounterRunning         = "timersync.running"
	CounterCapturesDropped = "timersync.captures_dropped"
	CounterLockedTimers    = "timersync.locked_timers"
)

// Daemon is the timersync service
type Daemon struct {
	cfg     *Config
	backend Backend
	driver  *timersync.Driver
	sink    *timersync.ChanSink

	stats   *stats.Server
	prom    *stats.PrometheusExporter
	sys     stats.SysStats
	lock    *stats.LockDetector
	windows []*stats.Window
	// per-timer sample count last fed to windows
	fed []uint64

	capMu    sync.Mutex
	captures []timersync.CaptureEvent
}

// New wires the driver to backend
func New(cfg *Config, backend Backend) (*Daemon, error) {
	lock, err := stats.NewLockDetector(cfg.LockExpr)
	if err != nil {
		return nil, err
	}
	sink := timersync.NewChanSink(cfg.CaptureBuffer)
	driver, err := timersync.New(cfg.DriverConfig(), backend.Reference(), sink, backend.Timers()...)
	if err != nil {
		return nil, err
	}
	d := &Daemon{
		cfg:     cfg,
		backend: backend,
		driver:  driver,
		sink:    sink,
		stats:   stats.NewServer(),
		prom:    stats.NewPrometheusExporter(),
		lock:    lock,
		windows: make([]*stats.Window, len(backend.Timers())),
		fed:     make([]uint64, len(backend.Timers())),
	}
	for i := range d.windows {
		d.windows[i] = stats.NewWindow(cfg.WindowSize)
	}
	return d, nil
}

// Driver returns the timersync driver
func (d *Daemon) Driver() *timersync.Driver {
	return d.driver
}

// Stats returns the stats server
func (d *Daemon) Stats() *stats.Server {
	return d.stats
}

// MonitoringHandler serves JSON stats on / and /counters and Prometheus metrics on /metrics
func (d *Daemon) MonitoringHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", d.prom.Handler())
	mux.Handle("/", d.stats.Handler())
	return mux
}

// Run makes things run, continuously
func (d *Daemon) Run(ctx context.Context) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		return d.backend.Run(ctx, d.driver)
	})
	eg.Go(func() error {
		d.consumeCaptures(ctx)
		return nil
	})
	eg.Go(func() error {
		d.runCollector(ctx)
		return nil
	})
	eg.Go(func() error {
		return serve(ctx, fmt.Sprintf(":%d", d.cfg.MonitoringPort), d.MonitoringHandler())
	})
	eg.Go(func() error {
		return serve(ctx, d.cfg.ControlAddress, d.ControlHandler())
	})

	if d.cfg.AutoStart {
		if err := d.driver.Start(); err != nil {
			log.Errorf("failed to start timersync: %v", err)
		}
	}
	if ok, err := sddaemon.SdNotify(false, sddaemon.SdNotifyReady); err != nil {
		log.Warningf("failed to notify systemd: %v", err)
	} else if ok {
		log.Debug("notified systemd")
	}

	err := eg.Wait()
	if d.driver.Running() {
		if serr := d.driver.Stop(); serr != nil {
			log.Errorf("failed to stop timersync: %v", serr)
		}
	}
	if cerr := d.backend.Close(); cerr != nil {
		log.Errorf("failed to close backend: %v", cerr)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("Starting http server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving on %s: %w", addr, err)
	}
	return nil
}

func (d *Daemon) consumeCaptures(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-d.sink.C:
			log.Infof("timer %d CH%d capture at %s", ev.Timer, ev.Channel+1, ev.Timestamp)
			d.capMu.Lock()
			d.captures = append(d.captures, ev)
			if len(d.captures) > maxRecentCaptures {
				d.captures = d.captures[len(d.captures)-maxRecentCaptures:]
			}
			d.capMu.Unlock()
		}
	}
}

// RecentCaptures returns the latest capture events, oldest first
func (d *Daemon) RecentCaptures() []timersync.CaptureEvent {
	d.capMu.Lock()
	defer d.capMu.Unlock()
	return append([]timersync.CaptureEvent{}, d.captures...)
}

func (d *Daemon) runCollector(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.collect()
		}
	}
}

// collect refreshes counters, timer stats and Prometheus gauges
func (d *Daemon) collect() {
	d.stats.SetCounters(d.driver.Counters().Map())
	d.stats.SetCounter(CounterCapturesDropped, int64(d.sink.Dropped()))
	running := int64(0)
	if d.driver.Running() {
		running = 1
	}
	d.stats.SetCounter(CounterRunning, running)

	if sys, err := d.sys.CollectRuntimeStats(d.cfg.MetricsInterval); err != nil {
		log.Warningf("failed to get system metrics %s", err)
	} else {
		d.stats.SetCounters(sys)
	}

	status := d.driver.Status()
	if status == nil {
		for i, w := range d.windows {
			w.Reset()
			d.fed[i] = 0
		}
	}
	st := make(stats.Stats, 0, len(status))
	lockedTimers := int64(0)
	for _, s := range status {
		w := d.windows[s.Timer]
		// one window entry per servo sample, skipped cycles compute no error
		if s.Samples != d.fed[s.Timer] {
			d.fed[s.Timer] = s.Samples
			if s.State != servo.StateSkip.String() {
				w.Add(float64(s.LastError))
			}
		}
		stat := &stats.Stat{
			Timer:       s.Timer,
			State:       s.State,
			Period:      s.Period,
			LastError:   s.LastError,
			ErrorMean:   w.Mean(),
			ErrorStddev: w.Stddev(),
		}
		locked, err := d.lock.Locked(w)
		if err != nil {
			stat.LockError = err.Error()
		}
		stat.Locked = locked
		if locked {
			lockedTimers++
		}
		st = append(st, stat)
	}
	d.stats.SetStats(st)
	d.stats.SetCounter(CounterLockedTimers, lockedTimers)
	d.prom.Update(d.stats.GetCounters())
	if log.IsLevelEnabled(log.DebugLevel) {
		log.Debugf("timer status: %s", spew.Sdump(status))
	}
}
