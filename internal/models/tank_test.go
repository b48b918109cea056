package models

import (
	"errors"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTankValidation(t *testing.T) {
	_, err := NewTank("t", "T", 0, 0)
	assert.True(t, errors.Is(err, ErrInvalidCapacity))

	_, err = NewTank("t", "T", -5, 0)
	assert.True(t, errors.Is(err, ErrInvalidCapacity))

	_, err = NewTank("t", "T", 100, 101)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = NewTank("t", "T", 100, -1)
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	tank, err := NewTank("t", "T", 100, 100)
	require.NoError(t, err)
	assert.Equal(t, 1.0, tank.Level())
}

func TestTankClampedAddRemove(t *testing.T) {
	tank, err := NewTank("a", "Tank A", 100, 99.5)
	require.NoError(t, err)

	added := tank.Add(0.6)
	assert.InDelta(t, 0.5, added, 1e-9)
	assert.Equal(t, 100.0, tank.Amount())
	assert.Zero(t, tank.Add(1))

	tank, err = NewTank("b", "Tank B", 100, 0.4)
	require.NoError(t, err)
	removed := tank.Remove(0.6)
	assert.InDelta(t, 0.4, removed, 1e-9)
	assert.Equal(t, 0.0, tank.Amount())
	assert.Zero(t, tank.Remove(1))
}

func TestTankNegativeRequestsAreNoops(t *testing.T) {
	tank, err := NewTank("a", "Tank A", 100, 50)
	require.NoError(t, err)

	assert.Zero(t, tank.Add(-3))
	assert.Zero(t, tank.Remove(-3))
	assert.Equal(t, 50.0, tank.Amount())
}

func TestTankNaNRequestsAreNoops(t *testing.T) {
	tank, err := NewTank("a", "Tank A", 100, 50)
	require.NoError(t, err)

	assert.Zero(t, tank.Add(math.NaN()))
	assert.Zero(t, tank.Remove(math.NaN()))
	assert.Equal(t, 50.0, tank.Amount())
}

func TestTankTolerance(t *testing.T) {
	cases := []struct {
		amount      float64
		empty, full bool
	}{
		{0, true, false},
		{0.1, true, false},
		{0.2, false, false},
		{50, false, false},
		{99.8, false, false},
		{99.95, false, true},
		{100, false, true},
	}
	for _, tc := range cases {
		tank, err := NewTank("x", "X", 100, tc.amount)
		require.NoError(t, err)
		assert.Equal(t, tc.empty, tank.IsEmpty(), "empty at %v", tc.amount)
		assert.Equal(t, tc.full, tank.IsFull(), "full at %v", tc.amount)
	}
}

func TestTankFillAndDrain(t *testing.T) {
	tank, err := NewTank("main", "Main Tank", 300, 200)
	require.NoError(t, err)

	tank.Fill()
	assert.Equal(t, 300.0, tank.Amount())
	assert.Equal(t, 100.0, tank.Percent())
	assert.True(t, tank.IsFull())

	tank.Drain()
	assert.Equal(t, Epsilon, tank.Amount())
	assert.True(t, tank.IsEmpty())

	small, err := NewTank("tiny", "Tiny", 0.05, 0.05)
	require.NoError(t, err)
	small.Drain()
	assert.Equal(t, 0.05, small.Amount())
}

func TestTankCloneIsIndependent(t *testing.T) {
	tank, err := NewTank("a", "Tank A", 100, 10)
	require.NoError(t, err)
	clone := tank.Clone()
	clone.Add(20)

	assert.Equal(t, 10.0, tank.Amount())
	assert.Equal(t, 30.0, clone.Amount())
}

func TestTankBoundsProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("add and remove keep the amount within capacity", prop.ForAll(
		func(capacity float64, ops []float64) bool {
			tank, err := NewTank("p", "P", capacity, capacity/2)
			if err != nil {
				return false
			}
			for _, op := range ops {
				before := tank.Amount()
				if op >= 0 {
					added := tank.Add(op)
					if added < 0 || added > op || tank.Amount() != before+added && tank.Amount() != capacity {
						return false
					}
				} else {
					removed := tank.Remove(-op)
					if removed < 0 || removed > -op {
						return false
					}
				}
				if tank.Amount() < 0 || tank.Amount() > capacity {
					return false
				}
			}
			return true
		},
		gen.Float64Range(1, 1000),
		gen.SliceOf(gen.Float64Range(-50, 50)),
	))

	properties.TestingRun(t)
}
