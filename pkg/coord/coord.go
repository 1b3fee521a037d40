// Package coord converts the container's right-handed Cartesian source
// positions to the azimuth/elevation/distance form and to the
// colatitude/azimuth pair the spherical harmonic encoder consumes. There
// is no conversion back to Cartesian.
package coord

import "math"

// Epsilon is the distance floor used to avoid division by zero at the
// origin.
const Epsilon = 1e-9

// Vec3 is a Cartesian position in meters: +X right, +Y up, +Z front.
type Vec3 struct {
	X, Y, Z float64
}

// Spherical is the azimuth/elevation/distance form ToSpherical converts to.
// Azimuth is in radians, 0 = front (+Z), increasing toward +X (right).
// Elevation is in radians, 0 = horizon, +pi/2 = up.
type Spherical struct {
	Azimuth, Elevation, Distance float64
}

// ToSpherical converts a Cartesian position to azimuth/elevation/distance.
// When Distance < Epsilon, azimuth and elevation are undefined, and
// this returns the zero direction (0, 0) with the true (near-zero) distance;
// callers that need to log the degenerate case should check v.Near(Epsilon).
func ToSpherical(v Vec3) Spherical {
	distance := math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
	if distance < Epsilon {
		return Spherical{Azimuth: 0, Elevation: 0, Distance: distance}
	}

	azimuth := math.Atan2(v.X, v.Z)
	ratio := v.Y / math.Max(distance, Epsilon)
	elevation := math.Asin(clamp(ratio, -1, 1))

	return Spherical{Azimuth: azimuth, Elevation: elevation, Distance: distance}
}

// Harmonic returns the colatitude/azimuth pair the spherical-harmonic
// basis in pkg/sphharm evaluates against: colatitude is the angle from
// +Z (0 = front, pi = behind), azimuth is the angle in the X-Y plane
// measured from +X toward +Y. This differs from ToSpherical's
// front/horizon convention because the harmonic basis needs +Z as its
// pole axis, not +Y; near the origin it returns (0, 0).
func (v Vec3) Harmonic() (colatitude, azimuth float64) {
	r := v.Length()
	if r < Epsilon {
		return 0, 0
	}
	return math.Acos(clamp(v.Z/r, -1, 1)), math.Atan2(v.Y, v.X)
}

// Near reports whether v's distance from the origin is below eps.
func (v Vec3) Near(eps float64) bool {
	return v.X*v.X+v.Y*v.Y+v.Z*v.Z < eps*eps
}

// Sub returns v - o, the vector from o to v.
func (v Vec3) Sub(o Vec3) Vec3 {
	return Vec3{X: v.X - o.X, Y: v.Y - o.Y, Z: v.Z - o.Z}
}

// Length returns the Euclidean norm of v.
func (v Vec3) Length() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y + v.Z*v.Z)
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
