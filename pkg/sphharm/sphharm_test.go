package sphharm

import (
	"math"
	"testing"

	"shac/pkg/ambisonic"
)

func TestSN3DOmniIsOne(t *testing.T) {
	table := NewTable(3, ambisonic.SN3D)

	thetas := []float64{0, math.Pi / 4, math.Pi, -math.Pi / 2}
	phis := []float64{0, math.Pi / 4, -math.Pi / 3}

	for _, theta := range thetas {
		for _, phi := range phis {
			got := table.Y(0, 0, theta, phi)
			if math.Abs(got-1) > 1e-9 {
				t.Errorf("Y(0,0,%v,%v) = %v, want 1", theta, phi, got)
			}
		}
	}
}

func TestN3DIsScaledSN3D(t *testing.T) {
	sn3d := NewTable(3, ambisonic.SN3D)
	n3d := NewTable(3, ambisonic.N3D)

	theta, phi := 0.7, 0.3

	for l := 0; l <= 3; l++ {
		for m := -l; m <= l; m++ {
			want := math.Sqrt(float64(2*l+1)) * sn3d.Y(l, m, theta, phi)
			got := n3d.Y(l, m, theta, phi)
			if math.Abs(got-want) > 1e-6*math.Max(1, math.Abs(want)) {
				t.Errorf("Y_N3D(%d,%d) = %v, want %v", l, m, got, want)
			}
		}
	}
}

func TestEncodeCoeffsMatchesY(t *testing.T) {
	table := NewTable(2, ambisonic.SN3D)
	dst := make([]float32, ambisonic.Channels(2))
	table.EncodeCoeffs(0.4, 0.1, dst)

	for k := range dst {
		l, m := ambisonic.Degree(k)
		want := float32(table.Y(l, m, 0.4, 0.1))
		if dst[k] != want {
			t.Errorf("EncodeCoeffs[%d] = %v, want %v", k, dst[k], want)
		}
	}
}

func TestInvalidOrderPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic for an out-of-range order")
		}
	}()
	NewTable(8, ambisonic.SN3D)
}
