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
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWindow(t *testing.T) {
	w := NewWindow(3)
	require.Equal(t, 0, w.Len())
	w.Add(1)
	w.Add(2)
	w.Add(3)
	w.Add(4)
	require.Equal(t, []float64{4, 3, 2}, w.Values())
	require.Equal(t, 3.0, w.Mean())
	require.InDelta(t, 1.0, w.Stddev(), 1e-9)

	w.Reset()
	require.Equal(t, 0, w.Len())
	require.Equal(t, []float64{}, w.Values())
}

func TestLockDetector(t *testing.T) {
	l, err := NewLockDetector(DefaultLockExpr)
	require.NoError(t, err)

	w := NewWindow(20)
	for i := 0; i < 9; i++ {
		w.Add(5)
	}
	locked, err := l.Locked(w)
	require.NoError(t, err)
	require.False(t, locked)

	w.Add(-5)
	locked, err = l.Locked(w)
	require.NoError(t, err)
	require.True(t, locked)

	w.Add(600)
	locked, err = l.Locked(w)
	require.NoError(t, err)
	require.False(t, locked)
}

func TestLockDetectorFunctions(t *testing.T) {
	w := NewWindow(4)
	for _, v := range []float64{-8, 2, 4, 6} {
		w.Add(v)
	}
	// newest first: 6 4 2 -8
	for expr, want := range map[string]bool{
		"mean(phase, 2) == 5":     true,
		"mean(phase, 100) == 1":   true,
		"maxabs(phase, 3) == 6":   true,
		"maxabs(phase, 4) == 8":   true,
		"abs(-3) == 3":            true,
		"stddev(phase, 2) > 1.41": true,
		"samples == 4":            true,
		"samples > 4":             false,
	} {
		l, err := NewLockDetector(expr)
		require.NoError(t, err, expr)
		got, err := l.Locked(w)
		require.NoError(t, err, expr)
		require.Equal(t, want, got, expr)
	}
}

func TestLockDetectorErrors(t *testing.T) {
	_, err := NewLockDetector("offset < 10")
	require.Error(t, err)

	_, err = NewLockDetector("mean(phase,")
	require.Error(t, err)

	l, err := NewLockDetector("mean(phase, 10)")
	require.NoError(t, err)
	_, err = l.Locked(NewWindow(1))
	require.Error(t, err)

	l, err = NewLockDetector("mean(phase) > 1")
	require.NoError(t, err)
	_, err = l.Locked(NewWindow(1))
	require.Error(t, err)
}

func TestLockDetectorNegativeCount(t *testing.T) {
	w := NewWindow(4)
	w.Add(1)
	for _, expr := range []string{"mean(phase, -1) < 10", "maxabs(phase, 0 - 3) < 10", "stddev(phase, -2) < 10"} {
		l, err := NewLockDetector(expr)
		require.NoError(t, err)
		require.NotPanics(t, func() {
			_, err = l.Locked(w)
		}, expr)
		require.ErrorContains(t, err, "sample count must not be negative", expr)
	}
}
