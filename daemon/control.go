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
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/flexptp/timersync/servo"
	"github.com/flexptp/timersync/stats"
	"github.com/flexptp/timersync/timersync"
)

// Controller is the task-level API exposed over HTTP
type Controller interface {
	Start() error
	Stop() error
	Running() bool
	SetGains(kp, kd float64) error
	Gains() servo.Gains
	SetCompareValue(timer, ch int, ticks uint32) error
	Status() []timersync.TimerStatus
}

// CompareRequest sets an output compare value
type CompareRequest struct {
	Timer   int    `json:"timer"`
	Channel int    `json:"channel"`
	Value   uint32 `json:"value"`
}

// Status is the response of the status endpoint
type Status struct {
	Running  bool                    `json:"running"`
	Gains    servo.Gains             `json:"gains"`
	Timers   []timersync.TimerStatus `json:"timers"`
	Counters stats.Counters          `json:"counters"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type controlServer struct {
	ctl      Controller
	counters func() stats.Counters
	captures func() []timersync.CaptureEvent
}

// ControlHandler serves the control API of the daemon
func (d *Daemon) ControlHandler() http.Handler {
	return NewControlHandler(d.driver, d.stats.GetCounters, d.RecentCaptures)
}

// NewControlHandler returns http.Handler exposing ctl
func NewControlHandler(ctl Controller, counters func() stats.Counters, captures func() []timersync.CaptureEvent) http.Handler {
	s := &controlServer{ctl: ctl, counters: counters, captures: captures}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /gains", s.handleGetGains)
	mux.HandleFunc("POST /gains", s.handleSetGains)
	mux.HandleFunc("POST /start", s.handleStart)
	mux.HandleFunc("POST /stop", s.handleStop)
	mux.HandleFunc("POST /compare", s.handleCompare)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /captures", s.handleCaptures)
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("failed to reply: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, timersync.ErrRunning), errors.Is(err, timersync.ErrNotRunning):
		code = http.StatusConflict
	case errors.Is(err, timersync.ErrBadGains), errors.Is(err, timersync.ErrBadTimer), errors.Is(err, timersync.ErrBadChannel):
		code = http.StatusBadRequest
	}
	writeJSON(w, code, errorResponse{Error: err.Error()})
}

func (s *controlServer) handleGetGains(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.ctl.Gains())
}

func (s *controlServer) handleSetGains(w http.ResponseWriter, r *http.Request) {
	var g servo.Gains
	if err := json.NewDecoder(r.Body).Decode(&g); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.ctl.SetGains(g.Kp, g.Kd); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.ctl.Gains())
}

func (s *controlServer) handleStart(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctl.Start(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *controlServer) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.ctl.Stop(); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *controlServer) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req CompareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if err := s.ctl.SetCompareValue(req.Timer, req.Channel, req.Value); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *controlServer) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := Status{
		Running: s.ctl.Running(),
		Gains:   s.ctl.Gains(),
		Timers:  s.ctl.Status(),
	}
	if s.counters != nil {
		st.Counters = s.counters()
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *controlServer) handleCaptures(w http.ResponseWriter, _ *http.Request) {
	res := []timersync.CaptureEvent{}
	if s.captures != nil {
		res = append(res, s.captures()...)
	}
	writeJSON(w, http.StatusOK, res)
}

// Client talks to the control API of a running daemon
type Client struct {
	base string
	http *http.Client
}

// NewClient returns Client for the daemon listening on addr
func NewClient(addr string) *Client {
	return &Client{
		base: "http://" + addr,
		http: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) do(method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e errorResponse
		if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
			return fmt.Errorf("%s %s: %s", method, path, resp.Status)
		}
		return fmt.Errorf("%s %s: %s", method, path, e.Error)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Start starts the servo
func (c *Client) Start() error {
	return c.do(http.MethodPost, "/start", nil, nil)
}

// Stop stops the servo
func (c *Client) Stop() error {
	return c.do(http.MethodPost, "/stop", nil, nil)
}

// Gains returns the active servo gains
func (c *Client) Gains() (servo.Gains, error) {
	var g servo.Gains
	err := c.do(http.MethodGet, "/gains", nil, &g)
	return g, err
}

// SetGains replaces the servo gains
func (c *Client) SetGains(kp, kd float64) (servo.Gains, error) {
	var g servo.Gains
	err := c.do(http.MethodPost, "/gains", servo.Gains{Kp: kp, Kd: kd}, &g)
	return g, err
}

// SetCompareValue programs an output compare register
func (c *Client) SetCompareValue(timer, ch int, value uint32) error {
	return c.do(http.MethodPost, "/compare", CompareRequest{Timer: timer, Channel: ch, Value: value}, nil)
}

// Status returns daemon status
func (c *Client) Status() (*Status, error) {
	st := &Status{}
	if err := c.do(http.MethodGet, "/status", nil, st); err != nil {
		return nil, err
	}
	return st, nil
}

// Captures returns the most recent capture events
func (c *Client) Captures() ([]timersync.CaptureEvent, error) {
	var res []timersync.CaptureEvent
	err := c.do(http.MethodGet, "/captures", nil, &res)
	return res, err
}
