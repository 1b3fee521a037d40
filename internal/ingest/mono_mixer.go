package ingest

// MonoMixer wraps a multi-channel Source and averages its channels down
// to one, matching the averaging strategy of ik5-audpbx's MonoMixer. A
// mono source is passed through untouched.
type MonoMixer struct {
	src Source
	tmp []float32
}

// NewMonoMixer wraps src, which may already be mono.
func NewMonoMixer(src Source) *MonoMixer {
	return &MonoMixer{src: src, tmp: make([]float32, 4096)}
}

func (m *MonoMixer) SampleRate() int { return m.src.SampleRate() }
func (m *MonoMixer) Channels() int   { return 1 }
func (m *MonoMixer) Close() error    { return m.src.Close() }

func (m *MonoMixer) ReadSamples(dst []float32) (int, error) {
	if len(dst) == 0 {
		return 0, nil
	}
	if m.src.Channels() == 1 {
		return m.src.ReadSamples(dst)
	}

	channels := m.src.Channels()
	samplesNeeded := len(dst) * channels
	if cap(m.tmp) < samplesNeeded {
		m.tmp = make([]float32, samplesNeeded)
	}
	m.tmp = m.tmp[:samplesNeeded]

	n, err := m.src.ReadSamples(m.tmp)
	if n == 0 {
		return 0, err
	}
	frames := n / channels
	inv := float32(1.0) / float32(channels)

	for f := 0; f < frames; f++ {
		base := f * channels
		var sum float32
		for c := 0; c < channels; c++ {
			sum += m.tmp[base+c]
		}
		dst[f] = sum * inv
	}

	return frames, err
}
