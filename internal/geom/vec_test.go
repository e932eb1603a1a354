package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVecArithmetic(t *testing.T) {
	t.Parallel()

	a := Vec2{X: 3, Y: 4}
	b := Vec2{X: 1, Y: -2}

	assert.Equal(t, Vec2{X: 4, Y: 2}, a.Add(b))
	assert.Equal(t, Vec2{X: 2, Y: 6}, a.Sub(b))
	assert.Equal(t, Vec2{X: 6, Y: 8}, a.Scale(2))
	assert.InDelta(t, 5.0, a.Norm(), 1e-12)
	assert.InDelta(t, 40.0, a.DistSquared(b), 1e-12)
}

func TestVecUnit(t *testing.T) {
	t.Parallel()

	t.Run("unit vector has length one", func(t *testing.T) {
		t.Parallel()
		u := Vec2{X: 3, Y: 4}.Unit()
		assert.InDelta(t, 1.0, u.Norm(), 1e-12)
		assert.InDelta(t, 0.6, u.X, 1e-12)
		assert.InDelta(t, 0.8, u.Y, 1e-12)
	})

	t.Run("zero vector stays zero", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t, Vec2{}, Vec2{}.Unit())
	})
}

func TestVecIsFinite(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		v    Vec2
		want bool
	}{
		{"finite", Vec2{X: 1.5, Y: -2.5}, true},
		{"zero", Vec2{}, true},
		{"nan x", Vec2{X: math.NaN(), Y: 0}, false},
		{"nan y", Vec2{X: 0, Y: math.NaN()}, false},
		{"pos inf", Vec2{X: math.Inf(1), Y: 0}, false},
		{"neg inf", Vec2{X: 0, Y: math.Inf(-1)}, false},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, tc.v.IsFinite())
		})
	}
}
