// Command shac-decode renders a .shac container to a stereo WAV file
// from a single fixed listener pose. It is the offline counterpart to
// shac-nav's live, interactively-steered rendering.
//
// Usage:
//
//	shac-decode -in scene.shac -out mix.wav [options]
//
// Options:
//
//	-hrtf      Path to an HRTF library (.hrtf) supplying the binaural HRTF;
//	           omit to fall back to a simple built-in matrix decode
//	-listener  Listener pose as "x,y,z,yaw,pitch" (default "0,0,0,0,0")
//	-block     Render block size in samples (default 512)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	goaudio "github.com/go-audio/audio"
	govwav "github.com/go-audio/wav"

	"shac/dsp"
	"shac/pkg/coord"
	"shac/pkg/hrtf"
	"shac/pkg/pose"
	"shac/pkg/shacfile"
)

var (
	inPath      = flag.String("in", "", ".shac input file")
	outPath     = flag.String("out", "", "output WAV file")
	hrtfPath    = flag.String("hrtf", "", "HRTF library (.hrtf) supplying the binaural HRTF")
	listenerArg = flag.String("listener", "0,0,0,0,0", "listener pose as x,y,z,yaw,pitch")
	blockSize   = flag.Int("block", 512, "render block size in samples")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -in scene.shac -out mix.wav [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Renders a .shac container to a stereo WAV from a fixed listener pose.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *inPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("starting shac-decode", "in", *inPath, "out", *outPath, "hrtf", *hrtfPath)

	if err := run(); err != nil {
		slog.Error("shac-decode failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:forbidigo // critical error output to user
		os.Exit(1)
	}
}

func run() error {
	in, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *inPath, err)
	}
	defer in.Close()

	file, err := shacfile.Parse(in)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", *inPath, err)
	}

	order := int(file.Header.Order)
	table, err := loadTable(order)
	if err != nil {
		return err
	}

	listenerPose, err := parsePose(*listenerArg)
	if err != nil {
		return fmt.Errorf("listener pose: %w", err)
	}
	posePublisher := pose.NewPublisher(listenerPose)

	decoder, err := dsp.Open(file, table, posePublisher, *blockSize)
	if err != nil {
		return fmt.Errorf("opening decoder: %w", err)
	}
	slog.Info("decoder opened", "order", order, "sample_rate", file.Header.SampleRate, "layers", len(file.Layers), "hrtf_kind", table.Kind)

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *outPath, err)
	}
	defer out.Close()

	enc := govwav.NewEncoder(out, int(file.Header.SampleRate), 16, 2, 1)
	defer enc.Close()

	stereo := make([]float32, 2*(*blockSize))
	intData := make([]int, 2*(*blockSize))
	intBuf := &goaudio.IntBuffer{
		Format: &goaudio.Format{SampleRate: int(file.Header.SampleRate), NumChannels: 2},
		Data:   intData,
	}

	var framesWritten int64
	for {
		n, done := decoder.ProduceBlock(stereo)
		if n > 0 {
			intBuf.Data = intBuf.Data[:2*n]
			for i := 0; i < 2*n; i++ {
				intBuf.Data[i] = floatToInt16(stereo[i])
			}
			if err := enc.Write(intBuf); err != nil {
				return fmt.Errorf("writing frames: %w", err)
			}
			framesWritten += int64(n)
		}
		if done {
			break
		}
	}

	slog.Info("wrote frames", "frames", framesWritten, "path", *outPath)
	return nil
}

func loadTable(order int) (*hrtf.Table, error) {
	if *hrtfPath == "" {
		slog.Warn("no HRTF library given, falling back to the built-in matrix decode")
	}
	return hrtf.OpenProvider(*hrtfPath).Load(order)
}

func parsePose(s string) (pose.Pose, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 5 {
		return pose.Pose{}, fmt.Errorf("expected 5 comma-separated values x,y,z,yaw,pitch, got %d", len(parts))
	}

	vals := make([]float64, 5)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return pose.Pose{}, fmt.Errorf("value %d: %w", i, err)
		}
		vals[i] = v
	}

	return pose.Pose{
		Position: coord.Vec3{X: vals[0], Y: vals[1], Z: vals[2]},
		Yaw:      vals[3],
		Pitch:    vals[4],
	}, nil
}

func floatToInt16(v float32) int {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int(v * 32767)
}
