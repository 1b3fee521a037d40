package rotator

import (
	"math"
	"testing"

	"shac/pkg/ambisonic"
)

func bufferFromVector(order int, v []float32) *ambisonic.Buffer {
	buf := ambisonic.NewBuffer(1, ambisonic.Channels(order))
	copy(buf.Frame(0), v)
	return buf
}

func vectorNorm(v []float32) float64 {
	sum := 0.0
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func TestYawInvarianceOfW(t *testing.T) {
	r := New(3, ambisonic.SN3D)
	n := ambisonic.Channels(3)

	v := make([]float32, n)
	v[0] = 1
	v[2] = 0.3
	v[3] = -0.4

	buf := bufferFromVector(3, v)
	r.Apply(buf, 1.234, 0)

	w := buf.At(0, 0)
	if math.Abs(float64(w)-1) > 1e-4 {
		t.Errorf("channel W after yaw-only rotation = %v, want 1", w)
	}
}

func TestRotationPreservesNorm(t *testing.T) {
	r := New(3, ambisonic.SN3D)
	n := ambisonic.Channels(3)

	v := make([]float32, n)
	for k := range v {
		v[k] = float32(k+1) * 0.1
	}

	want := vectorNorm(v)

	buf := bufferFromVector(3, v)
	r.Apply(buf, 0.9, 0.4)

	got := vectorNorm(buf.Frame(0))
	if math.Abs(got-want) > 1e-3*want {
		t.Errorf("rotated norm = %v, want %v", got, want)
	}
}

func TestRotationComposition(t *testing.T) {
	r := New(3, ambisonic.SN3D)
	n := ambisonic.Channels(3)

	v := make([]float32, n)
	for k := range v {
		v[k] = float32(n-k) * 0.05
	}

	a, b := 0.4, 0.7

	bufSeq := bufferFromVector(3, v)
	r.Apply(bufSeq, a, 0)
	r.Apply(bufSeq, b, 0)

	bufSum := bufferFromVector(3, v)
	r.Apply(bufSum, a+b, 0)

	seq := bufSeq.Frame(0)
	sum := bufSum.Frame(0)

	for k := range seq {
		if math.Abs(float64(seq[k]-sum[k])) > 1e-2 {
			t.Errorf("channel %d: R(a)R(b) = %v, R(a+b) = %v", k, seq[k], sum[k])
		}
	}
}

func TestMatrixForCaches(t *testing.T) {
	r := New(2, ambisonic.SN3D)
	m1 := r.MatrixFor(0.1, 0.2)
	m2 := r.MatrixFor(0.1, 0.2)
	if m1 != m2 {
		t.Error("MatrixFor should return the cached matrix on a repeat lookup")
	}
}

func TestOrderZeroIsIdentity(t *testing.T) {
	r := New(0, ambisonic.SN3D)
	buf := ambisonic.NewBuffer(1, 1)
	buf.Set(0, 0, 1)
	r.Apply(buf, 1.5, -0.8)
	if buf.At(0, 0) != 1 {
		t.Errorf("order-0 channel changed under rotation: %v", buf.At(0, 0))
	}
}

func BenchmarkRotatorApply(b *testing.B) {
	const order = 3
	r := New(order, ambisonic.SN3D)
	n := ambisonic.Channels(order)

	buf := ambisonic.NewBuffer(512, n)
	for s := 0; s < buf.Samples; s++ {
		frame := buf.Frame(s)
		for k := range frame {
			frame[k] = float32(k+1) * 0.01
		}
	}

	b.ResetTimer()

	for range b.N {
		r.Apply(buf, 0.7, 0.2)
	}
}

func BenchmarkMatrixForCacheHit(b *testing.B) {
	const order = 3
	r := New(order, ambisonic.SN3D)
	r.MatrixFor(0.7, 0.2) // prime the cache

	b.ResetTimer()

	for range b.N {
		r.MatrixFor(0.7, 0.2)
	}
}
