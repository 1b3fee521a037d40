// Package sphharm evaluates real-valued spherical harmonics used to encode
// and rotate ambisonic fields: Associated Legendre recurrences for the
// polar part, a real trig factor for the azimuthal part, and a
// per-normalization-scheme scalar. The basis takes +Z as its pole axis
// (see coord.Vec3.Harmonic), so order-1 SN3D coefficients reduce to the
// unit direction cosines in ACN order.
//
// A Table precomputes factorials and normalization coefficients once for a
// given (order, normalization) pair and reuses them for every evaluation,
// since recomputing factorials per sample would dominate the cost of a
// realtime encode or decode.
package sphharm

import (
	"fmt"
	"math"

	"shac/pkg/ambisonic"
)

// Table holds the precomputed normalization factors for one ambisonic
// order and normalization scheme. It is cheap to evaluate Y against
// repeatedly and holds no per-call state, so a single Table can be shared
// by an encoder and any number of decoders for the same order.
type Table struct {
	order int
	norm  ambisonic.Normalization
	// normFactor[l][m+l] = N(l,m) for the table's normalization scheme.
	normFactor [][]float64
}

// NewTable precomputes normalization factors for orders 0..order under
// norm. It panics if order is out of the supported range or norm is not
// a recognized scheme — both are programming errors the caller must
// prevent rather than handle at runtime.
func NewTable(order int, norm ambisonic.Normalization) *Table {
	if order < 0 || order > ambisonic.MaxOrder {
		panic(fmt.Sprintf("sphharm: order %d out of range [0,%d]", order, ambisonic.MaxOrder))
	}
	if !norm.Valid() {
		panic(fmt.Sprintf("sphharm: invalid normalization %v", norm))
	}

	t := &Table{
		order:      order,
		norm:       norm,
		normFactor: make([][]float64, order+1),
	}

	for l := 0; l <= order; l++ {
		t.normFactor[l] = make([]float64, 2*l+1)
		for m := -l; m <= l; m++ {
			t.normFactor[l][m+l] = normFactorSN3D(l, m)
			if norm == ambisonic.N3D {
				t.normFactor[l][m+l] *= math.Sqrt(float64(2*l + 1))
			}
		}
	}

	return t
}

// Order returns the maximum degree this table was built for.
func (t *Table) Order() int { return t.order }

// Normalization returns the scheme this table was built for.
func (t *Table) Normalization() ambisonic.Normalization { return t.norm }

// Y evaluates the real spherical harmonic Y_l^m at colatitude theta
// (0 = +Z/front, pi = behind) and azimuth phi (angle in the X-Y plane
// from +X toward +Y), the pair coord.Vec3.Harmonic produces. l and m
// must satisfy 0 <= l <= t.Order() and -l <= m <= l; violating this is
// a programming error with no runtime recovery.
func (t *Table) Y(l, m int, theta, phi float64) float64 {
	legendre := associatedLegendre(l, iabs(m), math.Cos(theta))
	trig := trigFactor(m, phi)
	return t.normFactor[l][m+l] * legendre * trig
}

// EncodeCoeffs fills dst[0:(order+1)^2] with Y(l,m,theta,phi) for every
// ACN channel, in ACN order. dst must have length >= ambisonic.Channels(order).
func (t *Table) EncodeCoeffs(theta, phi float64, dst []float32) {
	n := ambisonic.Channels(t.order)
	for k := 0; k < n; k++ {
		l, m := ambisonic.Degree(k)
		dst[k] = float32(t.Y(l, m, theta, phi))
	}
}

// normFactorSN3D computes N(l,m) = sqrt((2-delta_{m,0}) * (l-|m|)! / (l+|m|)!).
func normFactorSN3D(l, m int) float64 {
	am := iabs(m)
	delta := 0.0
	if m == 0 {
		delta = 1.0
	}
	return math.Sqrt((2.0 - delta) * factorialRatio(l-am, l+am))
}

// factorialRatio computes lo! / hi! for 0 <= lo <= hi by dividing by each
// factor in (lo, hi] in turn, without forming either factorial.
func factorialRatio(lo, hi int) float64 {
	result := 1.0
	for i := lo + 1; i <= hi; i++ {
		result /= float64(i)
	}
	return result
}

// associatedLegendre evaluates P_l^m(x) (m >= 0) via the standard
// three-term recurrence. The seed omits the Condon-Shortley
// phase; normFactorSN3D's (2-delta_{m,0}) term is the basis's sole
// doubling factor for m != 0, so folding the sign in here too would
// double-count it.
func associatedLegendre(l, m int, x float64) float64 {
	pmm := 1.0
	if m > 0 {
		somx2 := math.Sqrt((1 - x) * (1 + x))
		fact := 1.0
		for i := 1; i <= m; i++ {
			pmm *= fact * somx2
			fact += 2
		}
	}

	if l == m {
		return pmm
	}

	pmmp1 := x * float64(2*m+1) * pmm
	if l == m+1 {
		return pmmp1
	}

	pll := 0.0
	for ll := m + 2; ll <= l; ll++ {
		pll = (x*float64(2*ll-1)*pmmp1 - float64(ll+m-1)*pmm) / float64(ll-m)
		pmm = pmmp1
		pmmp1 = pll
	}

	return pll
}

// trigFactor returns the real-form trig factor T(m, phi). The
// sqrt(2) doubling for m != 0 lives in normFactorSN3D, not here, so this
// stays plain cos/sin.
func trigFactor(m int, phi float64) float64 {
	switch {
	case m > 0:
		return math.Cos(float64(m) * phi)
	case m < 0:
		return math.Sin(float64(-m) * phi)
	default:
		return 1.0
	}
}

func iabs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
