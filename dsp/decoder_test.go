package dsp

import (
	"math"
	"testing"

	"shac/pkg/ambisonic"
	"shac/pkg/coord"
	"shac/pkg/hrtf"
	"shac/pkg/pose"
	"shac/pkg/shacfile"
)

func openMatrixDecoder(t *testing.T, audio []float32, position coord.Vec3, blockSize int) (*Decoder, *pose.Publisher) {
	t.Helper()

	enc := NewEncoder(0, ambisonic.SN3D, false, 0)
	buf := enc.EncodeMono(audio, position)

	file := &shacfile.File{
		Header: shacfile.Header{
			Version:       shacfile.CurrentVersion,
			Order:         0,
			Channels:      1,
			SampleRate:    48000,
			BitDepth:      32,
			Samples:       uint32(len(audio)),
			LayerCount:    1,
			Normalization: shacfile.SN3D,
		},
		Layers: []shacfile.Layer{
			{
				ID: "src",
				Metadata: shacfile.Metadata{
					Position: [3]float64{position.X, position.Y, position.Z},
					Type:     "point",
					Gain:     1.0,
				},
				Audio: buf.Data,
			},
		},
	}

	table := hrtf.NewMatrix(0, []float64{1}, []float64{1})
	pub := pose.NewPublisher(pose.Pose{})

	dec, err := Open(file, table, pub, blockSize)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return dec, pub
}

func TestDecoderRoundTripPassthrough(t *testing.T) {
	audio := []float32{0.5, 0.25, -0.5, 0.125, 0.0, 1.0}
	dec, _ := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 4)

	out := make([]float32, 2*4)
	n, done := dec.ProduceBlock(out)
	if n != 4 || done {
		t.Fatalf("first block: n=%d done=%v, want 4,false", n, done)
	}
	for i := 0; i < n; i++ {
		want := audio[i]
		if math.Abs(float64(out[2*i]-want)) > 1e-5 || math.Abs(float64(out[2*i+1]-want)) > 1e-5 {
			t.Errorf("frame %d = (%v,%v), want (%v,%v)", i, out[2*i], out[2*i+1], want, want)
		}
	}

	n2, done2 := dec.ProduceBlock(out)
	if n2 != 2 || !done2 {
		t.Fatalf("final block: n=%d done=%v, want 2,true", n2, done2)
	}
	for i := 0; i < n2; i++ {
		want := audio[4+i]
		if math.Abs(float64(out[2*i]-want)) > 1e-5 {
			t.Errorf("final frame %d = %v, want %v", i, out[2*i], want)
		}
	}

	if !dec.Done() {
		t.Error("decoder should report done after consuming all samples")
	}

	n3, done3 := dec.ProduceBlock(out)
	if n3 != 0 || !done3 {
		t.Errorf("ProduceBlock after done = (%d,%v), want (0,true)", n3, done3)
	}
}

func TestDecoderShortFinalBlockOnly(t *testing.T) {
	audio := []float32{1, 1, 1}
	dec, _ := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 8)

	out := make([]float32, 2*8)
	n, done := dec.ProduceBlock(out)
	if n != 3 || !done {
		t.Fatalf("n=%d done=%v, want 3,true", n, done)
	}
}

func TestDecoderListenerAtSourceClampsGain(t *testing.T) {
	audio := []float32{1, 1}
	dec, _ := openMatrixDecoder(t, audio, coord.Vec3{}, 2)

	out := make([]float32, 4)
	n, _ := dec.ProduceBlock(out)
	if n != 2 {
		t.Fatalf("n = %d, want 2", n)
	}
	for i := 0; i < n; i++ {
		if math.Abs(float64(out[2*i])-1) > 1e-5 {
			t.Errorf("frame %d = %v, want 1 (clamped gain, not a divide-by-zero blowup)", i, out[2*i])
		}
	}
}

func TestDecoderDistantListenerAttenuates(t *testing.T) {
	audio := []float32{1, 1}
	dec, pub := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 2)
	pub.Publish(pose.Pose{Position: coord.Vec3{Z: -3}}) // 4m from the source

	out := make([]float32, 4)
	dec.ProduceBlock(out)
	if math.Abs(float64(out[0])-0.25) > 1e-5 {
		t.Errorf("frame 0 = %v, want 0.25 (1/4 distance gain)", out[0])
	}
}

func TestDecoderStatsTrackProgress(t *testing.T) {
	audio := []float32{1, 1, 1, 1, 1}
	dec, _ := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 2)

	out := make([]float32, 4)
	dec.ProduceBlock(out)
	dec.ProduceBlock(out)
	dec.ProduceBlock(out)

	stats := dec.Stats()
	if stats.BlocksProduced != 3 {
		t.Errorf("BlocksProduced = %d, want 3", stats.BlocksProduced)
	}
	if stats.SamplesEmitted != 5 {
		t.Errorf("SamplesEmitted = %d, want 5", stats.SamplesEmitted)
	}
	if stats.CursorPosition != 5 {
		t.Errorf("CursorPosition = %d, want 5", stats.CursorPosition)
	}
	if stats.FramesRemaining != 0 {
		t.Errorf("FramesRemaining = %d, want 0", stats.FramesRemaining)
	}
	if len(stats.LayerGains) != 1 || stats.LayerGains[0].Gain <= 0 {
		t.Errorf("LayerGains = %v, want one entry with a positive gain", stats.LayerGains)
	}
}

func TestDecoderStatsCacheMissesTracksRotator(t *testing.T) {
	audio := []float32{1, 1, 1, 1, 1}
	dec, pub := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 2)

	out := make([]float32, 4)
	dec.ProduceBlock(out)
	first := dec.Stats().CacheMisses
	if first == 0 {
		t.Fatalf("CacheMisses = 0 after the first block, want > 0 (the first pose is always a cache miss)")
	}

	pub.Publish(pose.Pose{Yaw: 2.5}) // a new angle the rotator hasn't cached
	dec.ProduceBlock(out)
	second := dec.Stats().CacheMisses
	if second <= first {
		t.Errorf("CacheMisses = %d after a new pose, want > %d", second, first)
	}
}

func TestDecoderResetRewindsCursor(t *testing.T) {
	audio := []float32{1, 1, 1, 1}
	dec, _ := openMatrixDecoder(t, audio, coord.Vec3{Z: 1}, 2)

	out := make([]float32, 4)
	dec.ProduceBlock(out)
	dec.ProduceBlock(out)
	if !dec.Done() {
		t.Fatal("expected decoder to be done before reset")
	}

	dec.Reset()
	if dec.Done() {
		t.Error("decoder should not be done right after Reset")
	}
	n, _ := dec.ProduceBlock(out)
	if n != 2 {
		t.Errorf("n after reset = %d, want 2", n)
	}
}

func TestOpenRejectsMismatchedHRTFChannels(t *testing.T) {
	audio := []float32{1}
	enc := NewEncoder(1, ambisonic.SN3D, false, 0)
	buf := enc.EncodeMono(audio, coord.Vec3{Z: 1})

	file := &shacfile.File{
		Header: shacfile.Header{
			Version: shacfile.CurrentVersion, Order: 1, Channels: 4,
			SampleRate: 48000, BitDepth: 32, Samples: 1, LayerCount: 1,
			Normalization: shacfile.SN3D,
		},
		Layers: []shacfile.Layer{{
			ID:       "src",
			Metadata: shacfile.Metadata{Position: [3]float64{0, 0, 1}, Type: "point", Gain: 1},
			Audio:    buf.Data,
		}},
	}

	table := hrtf.NewMatrix(0, []float64{1}, []float64{1}) // order 0, wrong channel count for an order-1 file
	pub := pose.NewPublisher(pose.Pose{})

	if _, err := Open(file, table, pub, 4); err == nil {
		t.Fatal("expected an error opening a decoder with mismatched HRTF channel count")
	}
}
