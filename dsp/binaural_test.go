package dsp

import (
	"math"
	"testing"

	"shac/pkg/ambisonic"
	"shac/pkg/hrtf"
)

func TestBinauralMatrixDecode(t *testing.T) {
	table := hrtf.NewMatrix(1, []float64{1, 0, 0, 0.5}, []float64{1, 0, 0, -0.5})
	b, err := NewBinaural(table, 4)
	if err != nil {
		t.Fatalf("NewBinaural: %v", err)
	}

	bus := &ambisonic.Buffer{Samples: 1, Channels: 4, Data: []float32{2, 0, 0, 4}}
	out := make([]float32, 2)
	b.Decode(bus, out)

	if math.Abs(float64(out[0])-4) > 1e-6 {
		t.Errorf("left = %v, want 4", out[0])
	}
	if math.Abs(float64(out[1])-0) > 1e-6 {
		t.Errorf("right = %v, want 0", out[1])
	}
}

func TestBinauralConvolverUnitImpulseIsIdentity(t *testing.T) {
	table := hrtf.NewConvolution(0, [][]float64{{1}}, [][]float64{{1}})
	b, err := NewBinaural(table, 4)
	if err != nil {
		t.Fatalf("NewBinaural: %v", err)
	}

	bus := &ambisonic.Buffer{Samples: 4, Channels: 1, Data: []float32{1, -0.5, 0.25, 0}}
	out := make([]float32, 8)
	b.Decode(bus, out)

	want := []float32{1, -0.5, 0.25, 0}
	for i, w := range want {
		if math.Abs(float64(out[2*i]-w)) > 1e-5 {
			t.Errorf("frame %d left = %v, want %v", i, out[2*i], w)
		}
		if math.Abs(float64(out[2*i+1]-w)) > 1e-5 {
			t.Errorf("frame %d right = %v, want %v", i, out[2*i+1], w)
		}
	}
}

func TestBinauralConvolverCarriesOverlapAcrossBlocks(t *testing.T) {
	table := hrtf.NewConvolution(0, [][]float64{{0, 1}}, [][]float64{{0, 1}})
	b, err := NewBinaural(table, 4)
	if err != nil {
		t.Fatalf("NewBinaural: %v", err)
	}

	bus1 := &ambisonic.Buffer{Samples: 4, Channels: 1, Data: []float32{1, 0, 0, 0}}
	out1 := make([]float32, 8)
	b.Decode(bus1, out1)

	wantBlock1 := []float32{0, 1, 0, 0}
	for i, w := range wantBlock1 {
		if math.Abs(float64(out1[2*i]-w)) > 1e-5 {
			t.Errorf("block1 frame %d = %v, want %v", i, out1[2*i], w)
		}
	}

	bus2 := &ambisonic.Buffer{Samples: 4, Channels: 1, Data: []float32{0, 0, 0, 0}}
	out2 := make([]float32, 8)
	b.Decode(bus2, out2)

	for i := 0; i < 4; i++ {
		if math.Abs(float64(out2[2*i])) > 1e-5 {
			t.Errorf("block2 frame %d = %v, want 0 (delayed tail already emitted)", i, out2[2*i])
		}
	}
}

func TestBinauralConvolverLongImpulseResponseNoWraparound(t *testing.T) {
	const blockSize = 8
	const irLen = 12 // deliberately longer than blockSize
	const delay = 10 // falls in the second block, exercising the carried tail

	ir := make([]float64, irLen)
	ir[delay] = 1

	table := hrtf.NewConvolution(0, [][]float64{ir}, [][]float64{ir})
	b, err := NewBinaural(table, blockSize)
	if err != nil {
		t.Fatalf("NewBinaural: %v", err)
	}

	block1 := make([]float32, blockSize)
	block1[0] = 1 // unit impulse at global sample 0
	block2 := make([]float32, blockSize)

	out1 := make([]float32, 2*blockSize)
	b.Decode(&ambisonic.Buffer{Samples: blockSize, Channels: 1, Data: block1}, out1)
	out2 := make([]float32, 2*blockSize)
	b.Decode(&ambisonic.Buffer{Samples: blockSize, Channels: 1, Data: block2}, out2)

	for s := 0; s < blockSize; s++ {
		global := s
		want := float32(0)
		if global == delay {
			want = 1
		}
		if math.Abs(float64(out1[2*s]-want)) > 1e-5 {
			t.Fatalf("block1 sample %d left = %v, want %v (fftSize < blockSize+irLen-1 aliases the output)", global, out1[2*s], want)
		}
	}
	for s := 0; s < blockSize; s++ {
		global := blockSize + s
		want := float32(0)
		if global == delay {
			want = 1
		}
		if math.Abs(float64(out2[2*s]-want)) > 1e-5 {
			t.Fatalf("block2 sample %d left = %v, want %v (fftSize < blockSize+irLen-1 aliases the output)", global, out2[2*s], want)
		}
	}
}

func BenchmarkBinauralMatrixDecode(b *testing.B) {
	const order = 3
	channels := ambisonic.Channels(order)
	left := make([]float64, channels)
	right := make([]float64, channels)
	for k := range left {
		left[k] = 1.0 / float64(k+1)
		right[k] = 1.0 / float64(channels-k)
	}

	table := hrtf.NewMatrix(order, left, right)
	const blockSize = 512
	bin, err := NewBinaural(table, blockSize)
	if err != nil {
		b.Fatalf("NewBinaural: %v", err)
	}

	bus := ambisonic.NewBuffer(blockSize, channels)
	for s := 0; s < blockSize; s++ {
		frame := bus.Frame(s)
		for k := range frame {
			frame[k] = float32(k+1) * 0.01
		}
	}
	out := make([]float32, 2*blockSize)

	b.ResetTimer()

	for range b.N {
		bin.Decode(bus, out)
	}
}

func BenchmarkBinauralConvolverDecode(b *testing.B) {
	const order = 1
	channels := ambisonic.Channels(order)
	const irLen = 256

	left := make([][]float64, channels)
	right := make([][]float64, channels)
	for k := 0; k < channels; k++ {
		left[k] = make([]float64, irLen)
		right[k] = make([]float64, irLen)
		left[k][k%irLen] = 1
		right[k][(k+1)%irLen] = 1
	}

	table := hrtf.NewConvolution(order, left, right)
	const blockSize = 512
	bin, err := NewBinaural(table, blockSize)
	if err != nil {
		b.Fatalf("NewBinaural: %v", err)
	}

	bus := ambisonic.NewBuffer(blockSize, channels)
	for s := 0; s < blockSize; s++ {
		frame := bus.Frame(s)
		for k := range frame {
			frame[k] = float32(k+1) * 0.01
		}
	}
	out := make([]float32, 2*blockSize)

	b.ResetTimer()

	for range b.N {
		bin.Decode(bus, out)
	}
}

func TestNewBinauralRejectsInvalidTable(t *testing.T) {
	table := &hrtf.Table{Order: 1, Channels: 3, Kind: hrtf.Matrix} // channel count doesn't match order
	if _, err := NewBinaural(table, 4); err == nil {
		t.Fatal("expected an error for an inconsistent hrtf table")
	}
}
