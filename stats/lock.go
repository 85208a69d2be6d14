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
	"math"

	"github.com/Knetic/govaluate"
	"github.com/eclesh/welford"
)

// LockHelp describes lock expressions, used by flags and config docs
const LockHelp = `Lock expression is evaluated with govaluate, see https://github.com/Knetic/govaluate/blob/master/MANUAL.md
supported variables:
  phase (list of last phase errors, in ns, newest first)
  samples (number of phase errors collected)
supported functions:
  abs(value) - absolute value of single float64
  mean(values, number) - mean of the newest 'number' values
  stddev(values, number) - standard deviation of the newest 'number' values
  maxabs(values, number) - largest absolute value among the newest 'number' values`

// DefaultLockExpr considers a timer locked after 10 quiet samples
const DefaultLockExpr = "samples >= 10 && abs(mean(phase, 10)) < 100 && maxabs(phase, 10) < 500"

// Window keeps the last phase errors of a timer, newest first
type Window struct {
	size   int
	values []float64
}

// NewWindow returns a Window holding up to size values
func NewWindow(size int) *Window {
	if size <= 0 {
		size = 1
	}
	return &Window{size: size, values: make([]float64, 0, size)}
}

// Add stores the newest value, evicting the oldest one when full
func (w *Window) Add(v float64) {
	if len(w.values) < w.size {
		w.values = append(w.values, 0)
	}
	copy(w.values[1:], w.values)
	w.values[0] = v
}

// Values returns stored values, newest first
func (w *Window) Values() []float64 {
	return append([]float64{}, w.values...)
}

// Len returns the number of stored values
func (w *Window) Len() int {
	return len(w.values)
}

// Reset drops all values
func (w *Window) Reset() {
	w.values = w.values[:0]
}

// Mean of stored values
func (w *Window) Mean() float64 {
	return summarize(w.values).Mean()
}

// Stddev of stored values
func (w *Window) Stddev() float64 {
	return summarize(w.values).Stddev()
}

func summarize(input []float64) *welford.Stats {
	s := welford.New()
	for _, v := range input {
		s.Add(v)
	}
	return s
}

func newest(args []interface{}, name string) ([]float64, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("%s: wrong number of arguments: want 2, got %d", name, len(args))
	}
	vals, ok := args[0].([]float64)
	if !ok {
		return nil, fmt.Errorf("%s: first argument must be a list", name)
	}
	n, ok := args[1].(float64)
	if !ok {
		return nil, fmt.Errorf("%s: second argument must be a number", name)
	}
	if n < 0 || math.IsNaN(n) {
		return nil, fmt.Errorf("%s: sample count must not be negative, got %v", name, n)
	}
	if int(n) < len(vals) {
		return vals[:int(n)], nil
	}
	return vals, nil
}

// all the functions we support in expressions
var functions = map[string]govaluate.ExpressionFunction{
	"abs": func(args ...interface{}) (interface{}, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("abs: wrong number of arguments: want 1, got %d", len(args))
		}
		val, ok := args[0].(float64)
		if !ok {
			return nil, fmt.Errorf("abs: argument must be a number")
		}
		return math.Abs(val), nil
	},
	"mean": func(args ...interface{}) (interface{}, error) {
		vals, err := newest(args, "mean")
		if err != nil {
			return nil, err
		}
		return summarize(vals).Mean(), nil
	},
	"stddev": func(args ...interface{}) (interface{}, error) {
		vals, err := newest(args, "stddev")
		if err != nil {
			return nil, err
		}
		return summarize(vals).Stddev(), nil
	},
	"maxabs": func(args ...interface{}) (interface{}, error) {
		vals, err := newest(args, "maxabs")
		if err != nil {
			return nil, err
		}
		res := 0.0
		for _, v := range vals {
			res = math.Max(res, math.Abs(v))
		}
		return res, nil
	},
}

var supportedVariables = map[string]bool{
	"phase":   true,
	"samples": true,
}

// LockDetector decides whether a timer is locked from its phase error window
type LockDetector struct {
	Expr string
	expr *govaluate.EvaluableExpression
}

// NewLockDetector parses and checks a lock expression
func NewLockDetector(exprStr string) (*LockDetector, error) {
	expr, err := govaluate.NewEvaluableExpressionWithFunctions(exprStr, functions)
	if err != nil {
		return nil, fmt.Errorf("parsing lock expression: %w", err)
	}
	for _, v := range expr.Vars() {
		if !supportedVariables[v] {
			return nil, fmt.Errorf("unsupported variable %q", v)
		}
	}
	return &LockDetector{Expr: exprStr, expr: expr}, nil
}

// Locked evaluates the expression over w
func (l *LockDetector) Locked(w *Window) (bool, error) {
	res, err := l.expr.Evaluate(map[string]interface{}{
		"phase":   w.Values(),
		"samples": float64(w.Len()),
	})
	if err != nil {
		return false, fmt.Errorf("evaluating %q: %w", l.Expr, err)
	}
	locked, ok := res.(bool)
	if !ok {
		return false, fmt.Errorf("lock expression %q returned %v, not a boolean", l.Expr, res)
	}
	return locked, nil
}
