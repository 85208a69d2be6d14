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

package daemon

import (
	"fmt"
	"math"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	yaml "gopkg.in/yaml.v2"

	"github.com/flexptp/timersync/phc"
	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/sim"
	"github.com/flexptp/timersync/stats"
	"github.com/flexptp/timersync/timersync"
)

// supported backends
const (
	BackendSim = "sim"
	BackendPHC = "phc"
)

// SimConfig describes the simulated hardware of the sim backend
type SimConfig struct {
	OscillatorPPB float64   `yaml:"oscillator_ppb"` // error of the oscillator shared by timers and reference
	TimerPPB      []float64 `yaml:"timer_ppb"`      // additional error per timer, one entry per timer
	Compensate    bool      `yaml:"compensate"`     // reference addend cancels the oscillator error
	JitterNS      float64   `yaml:"jitter_ns"`      // aux timestamp noise amplitude
	Speedup       float64   `yaml:"speedup"`        // how many interrupts are simulated per wall clock second
	Seed          int64     `yaml:"seed"`
}

// PHCConfig describes the PHC backend
type PHCConfig struct {
	Iface        string        `yaml:"iface"`         // network card whose PHC is the reference
	Device       string        `yaml:"device"`        // reference PHC device, takes precedence over iface
	TimerDevice  string        `yaml:"timer_device"`  // PHC with the periodic outputs, defaults to the reference
	Outputs      []uint        `yaml:"outputs"`       // periodic output index per timer
	Edge         string        `yaml:"edge"`          // rising, falling or both
	PollInterval time.Duration `yaml:"poll_interval"` // how often EXTTS events are polled
}

// Config specifies timersync daemon run options
type Config struct {
	Backend         string        `yaml:"backend"`
	NominalPeriod   uint32        `yaml:"nominal_period"`
	TickHz          float64       `yaml:"tick_hz"`
	Kp              float64       `yaml:"kp"`
	Kd              float64       `yaml:"kd"`
	AutoStart       bool          `yaml:"auto_start"`
	MonitoringPort  int           `yaml:"monitoring_port"`
	ControlAddress  string        `yaml:"control_address"`
	MetricsInterval time.Duration `yaml:"metrics_interval"`
	LockExpr        string        `yaml:"lock_expr"`
	WindowSize      int           `yaml:"window_size"`
	CaptureBuffer   int           `yaml:"capture_buffer"`
	Sim             SimConfig     `yaml:"sim"`
	PHC             PHCConfig     `yaml:"phc"`
}

// DefaultConfig returns Config initialized with default values
func DefaultConfig() *Config {
	return &Config{
		Backend:         BackendSim,
		NominalPeriod:   servo.DefaultNominalPeriod,
		TickHz:          sim.DefaultTickHz,
		Kp:              servo.DefaultKp,
		Kd:              servo.DefaultKd,
		AutoStart:       true,
		MonitoringPort:  4270,
		ControlAddress:  "localhost:4271",
		MetricsInterval: time.Second,
		LockExpr:        stats.DefaultLockExpr,
		WindowSize:      60,
		CaptureBuffer:   64,
		Sim: SimConfig{
			TimerPPB:   []float64{0},
			Compensate: true,
			Speedup:    1,
		},
		PHC: PHCConfig{
			Iface:        "eth0",
			Outputs:      []uint{0},
			Edge:         "rising",
			PollInterval: 10 * time.Millisecond,
		},
	}
}

// Timers returns how many timers the configured backend disciplines
func (c *Config) Timers() int {
	if c.Backend == BackendPHC {
		return len(c.PHC.Outputs)
	}
	return len(c.Sim.TimerPPB)
}

// DriverConfig returns timersync driver configuration
func (c *Config) DriverConfig() timersync.Config {
	cfg := timersync.DefaultConfig()
	cfg.Servo.NominalPeriod = c.NominalPeriod
	cfg.Gains = servo.Gains{Kp: c.Kp, Kd: c.Kd}
	return cfg
}

// Validate config is sane
func (c *Config) Validate() error {
	if c.Backend != BackendSim && c.Backend != BackendPHC {
		return fmt.Errorf("backend must be either %q or %q", BackendSim, BackendPHC)
	}
	if n := c.Timers(); n == 0 || n > timersync.MaxTimers {
		return fmt.Errorf("between 1 and %d timers must be configured, got %d", timersync.MaxTimers, n)
	}
	if c.NominalPeriod == 0 {
		return fmt.Errorf("nominal_period must be greater than zero")
	}
	if c.TickHz <= 0 {
		return fmt.Errorf("tick_hz must be greater than zero")
	}
	for _, v := range []float64{c.Kp, c.Kd} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("kp and kd must be finite")
		}
	}
	if c.MonitoringPort < 0 {
		return fmt.Errorf("monitoring_port must be 0 or positive")
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("metrics_interval must be greater than zero")
	}
	if c.WindowSize <= 0 {
		return fmt.Errorf("window_size must be greater than zero")
	}
	if c.CaptureBuffer <= 0 {
		return fmt.Errorf("capture_buffer must be greater than zero")
	}
	if _, err := stats.NewLockDetector(c.LockExpr); err != nil {
		return fmt.Errorf("invalid lock_expr: %w", err)
	}
	switch c.Backend {
	case BackendSim:
		if c.Sim.Speedup <= 0 {
			return fmt.Errorf("sim speedup must be greater than zero")
		}
		if c.Sim.JitterNS < 0 {
			return fmt.Errorf("sim jitter_ns must be 0 or positive")
		}
	case BackendPHC:
		if c.PHC.Device == "" && c.PHC.Iface == "" {
			return fmt.Errorf("phc device or iface must be specified")
		}
		if _, err := phc.ParseEdge(c.PHC.Edge); err != nil {
			return fmt.Errorf("invalid phc config: %w", err)
		}
		if c.PHC.PollInterval <= 0 {
			return fmt.Errorf("phc poll_interval must be greater than zero")
		}
	}
	return nil
}

// ReadConfig reads config from the file
func ReadConfig(path string) (*Config, error) {
	c := DefaultConfig()
	cData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	err = yaml.UnmarshalStrict(cData, &c)
	if err != nil {
		return nil, err
	}

	return c, nil
}

// PrepareConfig prepares final version of config based on defaults, CLI flags and on-disk config, and validates resulting config
func PrepareConfig(cfgPath string, backend string, monitoringPort int, controlAddress string, setFlags map[string]bool) (*Config, error) {
	cfg := DefaultConfig()
	var err error
	warn := func(name string) {
		log.Warningf("overriding %s from CLI flag", name)
	}
	if cfgPath != "" {
		cfg, err = ReadConfig(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("reading config from %q: %w", cfgPath, err)
		}
	}
	if setFlags["backend"] {
		warn("backend")
		cfg.Backend = backend
	}
	if setFlags["monitoringport"] {
		warn("monitoringPort")
		cfg.MonitoringPort = monitoringPort
	}
	if setFlags["control"] {
		warn("control")
		cfg.ControlAddress = controlAddress
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	log.Debugf("config: %+v", cfg)
	return cfg, nil
}
