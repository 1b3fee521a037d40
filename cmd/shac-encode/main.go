// Command shac-encode ingests one or more mono-mixed audio files, each
// pinned at a 3D position, and writes them out as layers of a single
// .shac container.
//
// Usage:
//
//	shac-encode [options] <path=x,y,z> [path=x,y,z...]
//
// Options:
//
//	-order          Ambisonic order (default 1)
//	-rate           Output sample rate in Hz (default 48000)
//	-norm           Normalization scheme: sn3d or n3d (default sn3d)
//	-distance-gain  Apply 1/max(r,min-distance) gain at encode time
//	-min-distance   Distance-gain floor in meters (default 1.0)
//	-out            Output .shac file path (required)
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"shac/dsp"
	"shac/internal/ingest"
	ingestaiff "shac/internal/ingest/aiff"
	ingestmp3 "shac/internal/ingest/mp3"
	ingestvorbis "shac/internal/ingest/vorbis"
	ingestwav "shac/internal/ingest/wav"
	"shac/pkg/ambisonic"
	"shac/pkg/coord"
	"shac/pkg/shacfile"
)

var (
	order        = flag.Int("order", 1, "Ambisonic order")
	sampleRate   = flag.Int("rate", 48000, "Output sample rate in Hz")
	normName     = flag.String("norm", "sn3d", "Normalization scheme: sn3d or n3d")
	distanceGain = flag.Bool("distance-gain", false, "Apply 1/max(r,min-distance) gain at encode time")
	minDistance  = flag.Float64("min-distance", dsp.DefaultMinDistance, "Distance-gain floor in meters")
	outPath      = flag.String("out", "", "Output .shac file path")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <path=x,y,z> [path=x,y,z...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Encodes one or more positioned mono sources into a .shac container.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n  %s -out scene.shac voice.wav=0,0,1 ambience.ogg=-2,0,0\n", os.Args[0])
	}
	flag.Parse()

	if *outPath == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("starting shac-encode", "sources", flag.NArg(), "out", *outPath)

	if err := run(flag.Args()); err != nil {
		slog.Error("shac-encode failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:forbidigo // critical error output to user
		os.Exit(1)
	}
}

func run(specs []string) error {
	norm, err := parseNormalization(*normName)
	if err != nil {
		return err
	}

	registry := buildRegistry()
	encoder := dsp.NewEncoder(*order, norm, *distanceGain, *minDistance)

	writer, err := shacfile.New(*order, uint32(*sampleRate), shacfile.Normalization(norm))
	if err != nil {
		return fmt.Errorf("opening container writer: %w", err)
	}

	usedIDs := make(map[string]int)
	for i, spec := range specs {
		path, pos, err := parseSourceSpec(spec)
		if err != nil {
			return fmt.Errorf("source %d (%q): %w", i, spec, err)
		}

		audio, err := ingestFile(registry, path)
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		buf := encoder.EncodeMono(audio, pos)

		id := uniqueLayerID(path, usedIDs)
		meta := shacfile.Metadata{
			Position: [3]float64{pos.X, pos.Y, pos.Z},
			Type:     "point",
			Gain:     1.0,
		}
		if err := writer.AddLayer(id, len(audio), buf.Data, meta); err != nil {
			return fmt.Errorf("adding layer %s: %w", id, err)
		}

		slog.Info("encoded source", "path", path, "layer", id, "x", pos.X, "y", pos.Y, "z", pos.Z, "samples", len(audio))
	}

	out, err := os.Create(*outPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", *outPath, err)
	}
	defer out.Close()

	if err := writer.Write(out); err != nil {
		return fmt.Errorf("writing container: %w", err)
	}

	slog.Info("wrote container", "path", *outPath, "layers", len(specs))
	return nil
}

func buildRegistry() *ingest.Registry {
	reg := ingest.NewRegistry()
	reg.Register("wav", ingestwav.Decoder{})
	reg.Register("aif", ingestaiff.Decoder{})
	reg.Register("aiff", ingestaiff.Decoder{})
	reg.Register("mp3", ingestmp3.Decoder{})
	reg.Register("ogg", ingestvorbis.Decoder{})
	return reg
}

func ingestFile(reg *ingest.Registry, path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	src, err := reg.Decode(format, f)
	if err != nil {
		return nil, err
	}
	defer src.Close()

	mono := ingest.Source(src)
	if src.Channels() != 1 {
		mono = ingest.NewMonoMixer(src)
	}

	return ingest.ReadAll(mono)
}

func parseSourceSpec(spec string) (string, coord.Vec3, error) {
	idx := strings.LastIndex(spec, "=")
	if idx < 0 {
		return "", coord.Vec3{}, fmt.Errorf("expected <path>=<x>,<y>,<z>")
	}
	path := spec[:idx]
	coords := strings.Split(spec[idx+1:], ",")
	if len(coords) != 3 {
		return "", coord.Vec3{}, fmt.Errorf("expected 3 comma-separated coordinates, got %d", len(coords))
	}

	vals := make([]float64, 3)
	for i, c := range coords {
		v, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return "", coord.Vec3{}, fmt.Errorf("coordinate %d: %w", i, err)
		}
		vals[i] = v
	}

	return path, coord.Vec3{X: vals[0], Y: vals[1], Z: vals[2]}, nil
}

func uniqueLayerID(path string, used map[string]int) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if base == "" {
		base = "layer"
	}

	used[base]++
	if used[base] == 1 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, used[base])
}

func parseNormalization(name string) (ambisonic.Normalization, error) {
	switch strings.ToLower(name) {
	case "sn3d":
		return ambisonic.SN3D, nil
	case "n3d":
		return ambisonic.N3D, nil
	default:
		return 0, fmt.Errorf("unknown normalization %q, want sn3d or n3d", name)
	}
}
