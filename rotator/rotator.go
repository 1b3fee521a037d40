// Package rotator builds and applies per-order ambisonic rotation
// matrices driven by listener yaw/pitch. Each order l owns an
// independent (2l+1)x(2l+1) real matrix; order 0 (the omnidirectional W
// channel) is always the identity, since a fully symmetric point source
// is unaffected by rotation.
//
// Rotation matrices are derived numerically from the defining identity
// of a spherical-harmonic representation matrix, Y_l(Rx) = R_l * Y_l(x):
// a fixed, well-spread set of sample directions is evaluated against the
// unrotated and rotated bases, and R_l is recovered as the least-squares
// solution B = R_l * A. This sidesteps hand-deriving the Ivanic–Ruedenberg
// recursion while producing the same Wigner-D matrices up to numerical
// precision.
package rotator

import (
	"container/list"
	"math"
	"sync"

	"gonum.org/v1/gonum/mat"

	"shac/pkg/ambisonic"
	"shac/pkg/coord"
	"shac/pkg/sphharm"
)

// QuantumDegrees is the cache key's angular resolution: (yaw, pitch)
// pairs are quantized to this many degrees before a cache lookup.
const QuantumDegrees = 1.0

// DefaultCacheSize is the LRU cache's default entry bound.
const DefaultCacheSize = 1024

// Matrix is an immutable set of per-order rotation blocks for one
// (yaw, pitch) pair. It is safe for concurrent use by multiple readers.
type Matrix struct {
	order  int
	blocks []*mat.Dense // blocks[l] is (2l+1)x(2l+1), nil-safe via identity for l=0
}

// Apply rotates buf in place: every frame's ACN coefficient vector is
// replaced block-wise by R_l * v for each order l. Linear in the number
// of samples, and allocates nothing beyond a small
// fixed-size stack scratch buffer bounded by the largest block width.
func (m *Matrix) Apply(buf *ambisonic.Buffer) {
	var scratch [2*ambisonic.MaxOrder + 1]float64

	for s := 0; s < buf.Samples; s++ {
		frame := buf.Frame(s)
		for l := 0; l <= m.order; l++ {
			lo := l * l
			width := 2*l + 1
			block := m.blocks[l]
			sub := frame[lo : lo+width]

			tmp := scratch[:width]
			for i := 0; i < width; i++ {
				sum := 0.0
				row := block.RawRowView(i)
				for j := 0; j < width; j++ {
					sum += row[j] * float64(sub[j])
				}
				tmp[i] = sum
			}
			for i := 0; i < width; i++ {
				sub[i] = float32(tmp[i])
			}
		}
	}
}

// Rotator builds, caches, and applies rotation matrices for one
// ambisonic order and normalization scheme. A Rotator instance owns its
// own cache rather than sharing process-wide state, so multiple
// concurrent decoders at different orders never interfere.
type Rotator struct {
	order int
	table *sphharm.Table

	// directions are fixed sample points used to solve for each order's
	// rotation block; more than the minimum (2l+1) for the top order to
	// keep the least-squares solve well conditioned.
	directions []coord.Vec3
	basis      [][]float64 // basis[k] = Y_k(directions[i]) for all i, k=ACN index

	mu        sync.Mutex
	cache     *lruCache
	missCount int64
}

// New creates a Rotator for the given order and normalization scheme.
func New(order int, norm ambisonic.Normalization) *Rotator {
	table := sphharm.NewTable(order, norm)
	dirs := fibonacciSphereDirections(sampleCount(order))

	n := ambisonic.Channels(order)
	basis := make([][]float64, n)
	for k := 0; k < n; k++ {
		l, m := ambisonic.Degree(k)
		basis[k] = make([]float64, len(dirs))
		for i, d := range dirs {
			theta, phi := d.Harmonic()
			basis[k][i] = table.Y(l, m, theta, phi)
		}
	}

	return &Rotator{
		order:      order,
		table:      table,
		directions: dirs,
		basis:      basis,
		cache:      newLRUCache(DefaultCacheSize),
	}
}

// sampleCount picks enough sample directions to keep the per-order
// least-squares solve well conditioned even at the top supported order.
func sampleCount(order int) int {
	n := 6 * ambisonic.Channels(order)
	if n < 64 {
		return 64
	}
	return n
}

// Apply rotates buf in place by (yaw, pitch), using a cached matrix on
// hit or building and inserting one on miss. On cache miss the matrix is
// computed inline: the solve is cheap enough at the supported orders
// that a cache miss never needs to be handled off the calling goroutine.
func (r *Rotator) Apply(buf *ambisonic.Buffer, yaw, pitch float64) {
	m := r.MatrixFor(yaw, pitch)
	m.Apply(buf)
}

// MatrixFor returns the rotation matrix for (yaw, pitch), consulting and
// populating the quantized-angle LRU cache.
func (r *Rotator) MatrixFor(yaw, pitch float64) *Matrix {
	k := quantize(yaw, pitch)

	r.mu.Lock()
	if m, ok := r.cache.get(k); ok {
		r.mu.Unlock()
		return m
	}
	r.mu.Unlock()

	m := r.build(yaw, pitch)

	r.mu.Lock()
	r.missCount++
	r.cache.put(k, m)
	r.mu.Unlock()

	return m
}

// CacheMisses returns the number of rotation-matrix cache misses since
// the Rotator was created, for a decoder's instrumentation to expose.
func (r *Rotator) CacheMisses() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.missCount
}

// build computes a fresh Matrix for (yaw, pitch) via the projection
// technique described in the package doc comment.
func (r *Rotator) build(yaw, pitch float64) *Matrix {
	rot3 := rotation3(yaw, pitch)

	rotated := make([]coord.Vec3, len(r.directions))
	for i, d := range r.directions {
		rotated[i] = rot3.apply(d)
	}

	blocks := make([]*mat.Dense, r.order+1)
	blocks[0] = mat.NewDense(1, 1, []float64{1}) // order 0 is always identity

	for l := 1; l <= r.order; l++ {
		width := 2*l + 1
		lo := l * l
		nSamples := len(r.directions)

		a := mat.NewDense(width, nSamples, nil)
		b := mat.NewDense(width, nSamples, nil)

		for row := 0; row < width; row++ {
			k := lo + row
			_, m := ambisonic.Degree(k)
			for i := 0; i < nSamples; i++ {
				theta, phi := rotated[i].Harmonic()
				a.Set(row, i, r.basis[k][i])
				b.Set(row, i, r.table.Y(l, m, theta, phi))
			}
		}

		blocks[l] = solveRotationBlock(a, b)
	}

	return &Matrix{order: r.order, blocks: blocks}
}

// solveRotationBlock recovers R satisfying B = R*A in the least-squares
// sense via the normal equations (A*A^T) * R^T = (B*A^T)^T.
func solveRotationBlock(a, b *mat.Dense) *mat.Dense {
	width, _ := a.Dims()

	var aat, bat mat.Dense
	aat.Mul(a, a.T())
	bat.Mul(b, a.T())

	var rt mat.Dense
	if err := rt.Solve(&aat, bat.T()); err != nil {
		// Degenerate sample set (should not happen for the fixed
		// direction sets this package builds); fall back to identity
		// rather than propagating a panic into the realtime path.
		ident := mat.NewDense(width, width, nil)
		for i := 0; i < width; i++ {
			ident.Set(i, i, 1)
		}
		return ident
	}

	r := mat.NewDense(width, width, nil)
	for i := 0; i < width; i++ {
		for j := 0; j < width; j++ {
			r.Set(i, j, rt.At(j, i))
		}
	}
	return r
}

// mat3 is a plain 3x3 rotation matrix, used only to rotate the fixed
// sample directions when building a Matrix; this is offline work done
// once per cache miss, not on the realtime per-sample path.
type mat3 [3][3]float64

func (m mat3) apply(v coord.Vec3) coord.Vec3 {
	return coord.Vec3{
		X: m[0][0]*v.X + m[0][1]*v.Y + m[0][2]*v.Z,
		Y: m[1][0]*v.X + m[1][1]*v.Y + m[1][2]*v.Z,
		Z: m[2][0]*v.X + m[2][1]*v.Y + m[2][2]*v.Z,
	}
}

// rotation3 builds the combined yaw-then-pitch rotation matrix: yaw
// about the world +Y axis (azimuth increases toward +X), followed by
// pitch about the yawed frame's local +X axis (elevation increases
// looking up), matching pose.Pose's yaw/pitch convention.
func rotation3(yaw, pitch float64) mat3 {
	cy, sy := math.Cos(yaw), math.Sin(yaw)
	cp, sp := math.Cos(pitch), math.Sin(pitch)

	ry := mat3{
		{cy, 0, sy},
		{0, 1, 0},
		{-sy, 0, cy},
	}
	rx := mat3{
		{1, 0, 0},
		{0, cp, sp},
		{0, -sp, cp},
	}

	return mulMat3(ry, rx)
}

func mulMat3(a, b mat3) mat3 {
	var r mat3
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			sum := 0.0
			for k := 0; k < 3; k++ {
				sum += a[i][k] * b[k][j]
			}
			r[i][j] = sum
		}
	}
	return r
}

// fibonacciSphereDirections returns n directions spread evenly over the
// unit sphere via the Fibonacci lattice, giving the rotation projection
// a well-conditioned, deterministic sample set independent of any
// particular listener orientation.
func fibonacciSphereDirections(n int) []coord.Vec3 {
	dirs := make([]coord.Vec3, n)
	goldenAngle := math.Pi * (3 - math.Sqrt(5))

	for i := 0; i < n; i++ {
		y := 1 - 2*float64(i)/float64(n-1)
		radius := math.Sqrt(1 - y*y)
		theta := goldenAngle * float64(i)

		x := math.Cos(theta) * radius
		z := math.Sin(theta) * radius

		dirs[i] = coord.Vec3{X: x, Y: y, Z: z}
	}

	return dirs
}

type cacheKey struct {
	yawBin, pitchBin int32
}

func quantize(yaw, pitch float64) cacheKey {
	const binsPerDegree = 1.0 / (math.Pi / 180 * QuantumDegrees)
	return cacheKey{
		yawBin:   int32(math.Round(yaw * binsPerDegree)),
		pitchBin: int32(math.Round(pitch * binsPerDegree)),
	}
}

// lruCache is a small bounded least-recently-used cache of rotation
// matrices keyed by quantized angle.
type lruCache struct {
	capacity int
	items    map[cacheKey]*list.Element
	order    *list.List // front = most recently used
}

type lruEntry struct {
	key   cacheKey
	value *Matrix
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		items:    make(map[cacheKey]*list.Element, capacity),
		order:    list.New(),
	}
}

func (c *lruCache) get(k cacheKey) (*Matrix, bool) {
	el, ok := c.items[k]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).value, true
}

func (c *lruCache) put(k cacheKey, m *Matrix) {
	if el, ok := c.items[k]; ok {
		el.Value.(*lruEntry).value = m
		c.order.MoveToFront(el)
		return
	}

	el := c.order.PushFront(&lruEntry{key: k, value: m})
	c.items[k] = el

	for c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.order.Remove(oldest)
		delete(c.items, oldest.Value.(*lruEntry).key)
	}
}
