package ambisonic

import "testing"

func TestACNBijection(t *testing.T) {
	const order = 7
	seen := make(map[int]bool)

	for l := 0; l <= order; l++ {
		for m := -l; m <= l; m++ {
			k := ACN(l, m)
			if k < 0 || k >= Channels(order) {
				t.Fatalf("ACN(%d,%d) = %d out of range [0,%d)", l, m, k, Channels(order))
			}
			if seen[k] {
				t.Fatalf("ACN(%d,%d) = %d collides with an earlier (l,m)", l, m, k)
			}
			seen[k] = true

			gotL, gotM := Degree(k)
			if gotL != l || gotM != m {
				t.Errorf("Degree(%d) = (%d,%d), want (%d,%d)", k, gotL, gotM, l, m)
			}
		}
	}

	if len(seen) != Channels(order) {
		t.Errorf("ACN covered %d of %d channels", len(seen), Channels(order))
	}
}

func TestChannels(t *testing.T) {
	cases := map[int]int{0: 1, 1: 4, 2: 9, 3: 16, 7: 64}
	for order, want := range cases {
		if got := Channels(order); got != want {
			t.Errorf("Channels(%d) = %d, want %d", order, got, want)
		}
	}
}

func TestBufferFrame(t *testing.T) {
	buf := NewBuffer(3, 4)
	buf.Set(1, 2, 5)

	frame := buf.Frame(1)
	if len(frame) != 4 {
		t.Fatalf("Frame length = %d, want 4", len(frame))
	}
	if frame[2] != 5 {
		t.Errorf("Frame(1)[2] = %v, want 5", frame[2])
	}
	if buf.At(1, 2) != 5 {
		t.Errorf("At(1,2) = %v, want 5", buf.At(1, 2))
	}

	frame[0] = 9
	if buf.At(1, 0) != 9 {
		t.Error("Frame should return a view, not a copy")
	}
}
