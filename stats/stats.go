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
Package stats exposes timersync counters and per-timer servo statistics
over HTTP as JSON and in Prometheus format.
*/
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stat is a monitoring view of one disciplined timer
type Stat struct {
	Timer       int     `json:"timer"`
	State       string  `json:"state"`
	Period      uint32  `json:"period"`
	LastError   int64   `json:"last_error_ns"`
	ErrorMean   float64 `json:"error_mean_ns"`
	ErrorStddev float64 `json:"error_stddev_ns"`
	Locked      bool    `json:"locked"`
	LockError   string  `json:"lock_error,omitempty"`
}

// Stats is a list of Stat sorted by timer
type Stats []*Stat

func (s Stats) Len() int           { return len(s) }
func (s Stats) Less(i, j int) bool { return s[i].Timer < s[j].Timer }
func (s Stats) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }

// Counters is various counters exported by timersync
type Counters map[string]int64

// Server holds counters and timer stats reported over http
type Server struct {
	mux      sync.Mutex
	counters Counters
	timers   Stats
}

// NewServer returns an empty Server
func NewServer() *Server {
	return &Server{counters: Counters{}}
}

// UpdateCounterBy will increment counter
func (s *Server) UpdateCounterBy(key string, count int64) {
	s.mux.Lock()
	s.counters[key] += count
	s.mux.Unlock()
}

// SetCounter will set a counter to the provided value.
func (s *Server) SetCounter(key string, val int64) {
	s.mux.Lock()
	s.counters[key] = val
	s.mux.Unlock()
}

// SetCounters sets all counters of m
func (s *Server) SetCounters(m map[string]int64) {
	s.mux.Lock()
	for k, v := range m {
		s.counters[k] = v
	}
	s.mux.Unlock()
}

// GetCounters returns a copy of counters
func (s *Server) GetCounters() Counters {
	ret := make(Counters)
	s.mux.Lock()
	for key, val := range s.counters {
		ret[key] = val
	}
	s.mux.Unlock()
	return ret
}

// Reset all the values of counters
func (s *Server) Reset() {
	s.mux.Lock()
	for k := range s.counters {
		s.counters[k] = 0
	}
	s.mux.Unlock()
}

// SetStats replaces timer stats
func (s *Server) SetStats(st Stats) {
	st = append(Stats{}, st...)
	sort.Sort(st)
	s.mux.Lock()
	s.timers = st
	s.mux.Unlock()
}

// GetStats returns timer stats
func (s *Server) GetStats() Stats {
	s.mux.Lock()
	defer s.mux.Unlock()
	return append(Stats{}, s.timers...)
}

// Handler returns http handler serving stats on / and counters on /counters
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleStats)
	mux.HandleFunc("/counters", s.handleCounters)
	return mux
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	st := s.GetStats()
	if st == nil {
		st = Stats{}
	}
	writeJSON(w, st)
}

func (s *Server) handleCounters(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.GetCounters())
}

func writeJSON(w http.ResponseWriter, v any) {
	js, err := json.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(js); err != nil {
		log.Errorf("Failed to reply: %v", err)
	}
}

func fetch(url string, v any) error {
	c := http.Client{
		Timeout: time.Second * 2,
	}
	resp, err := c.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: %s", url, resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// FetchStats returns timer stats fetched from the url
func FetchStats(url string) (Stats, error) {
	var s Stats
	err := fetch(url, &s)
	return s, err
}

// FetchCounters returns counters map fetched from the url
func FetchCounters(url string) (Counters, error) {
	counters := make(Counters)
	err := fetch(fmt.Sprintf("%s/counters", url), &counters)
	return counters, err
}
