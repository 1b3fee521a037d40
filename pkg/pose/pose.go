// Package pose carries the listener's position and orientation from the
// navigation thread to the realtime audio thread. The transport
// publishes a complete pose atomically so the audio thread never
// observes a torn read of mixed fields, and the read side never blocks
// or allocates.
package pose

import (
	"sync/atomic"

	"shac/pkg/coord"
)

// Pose is the listener's position and orientation: position in meters,
// yaw (azimuth around +Y) and pitch (elevation around local +X after
// yaw) in radians.
type Pose struct {
	Position   coord.Vec3
	Yaw, Pitch float64
}

// Publisher is a single-producer/single-consumer pose slot. The writer
// (navigation/UI thread) calls Publish; the reader (audio thread) calls
// Snapshot once per block. Both sides are lock-free: Publish swaps in a
// freshly allocated immutable Pose via an atomic pointer store, so a
// concurrent Snapshot either sees the old pose or the new one in full,
// never a mix of old and new fields — there is no seqlock retry loop to
// get wrong, and no lock for the audio thread to contend on.
type Publisher struct {
	current atomic.Pointer[Pose]
}

// NewPublisher creates a Publisher whose first snapshot is initial.
func NewPublisher(initial Pose) *Publisher {
	p := &Publisher{}
	p.current.Store(&initial)
	return p
}

// Publish atomically installs pose as the current snapshot. Safe to call
// from the navigation/UI thread at any rate; does not block the reader.
func (p *Publisher) Publish(pose Pose) {
	p.current.Store(&pose)
}

// Snapshot returns the most recently published pose. Safe to call from
// the realtime audio thread: it never blocks and never allocates beyond
// the pointer load itself. The pose returned is used for the whole of
// the current block; changes published mid-block take effect no earlier
// than the next Snapshot call.
func (p *Publisher) Snapshot() Pose {
	return *p.current.Load()
}
