// Command hrtf-pack packs a directory of mono AIFF impulse responses
// into a .hrtf library usable as an HRTF table by shac-decode and
// shac-nav's -hrtf flag.
//
// Each input file is one ear's impulse response for one ambisonic
// channel, named "ch<k>_L.aif" or "ch<k>_R.aif" where k is the ACN
// channel index.
//
// Usage:
//
//	hrtf-pack [options] <input-directory> <output-file>
//
// Options:
//
//	-recursive  Scan input directory recursively
//	-normalize  Normalize peak amplitude to -1.0dB
//	-verbose    Show progress, details, and f16 conversion quality
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	ingestaiff "shac/internal/ingest/aiff"
	"shac/pkg/f16"
	"shac/pkg/hrtf"
)

var (
	recursive = flag.Bool("recursive", false, "Scan input directory recursively")
	normalize = flag.Bool("normalize", false, "Normalize peak amplitude to -1.0dB")
	verbose   = flag.Bool("verbose", false, "Show progress, details, and f16 conversion quality")
)

var channelNamePattern = regexp.MustCompile(`^ch(\d+)_([LR])$`)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <input-directory> <output-file>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Packs ch<k>_L.aif / ch<k>_R.aif impulse responses into a .hrtf library.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExample:\n  %s -normalize ./kemar-irs ./kemar.hrtf\n", os.Args[0])
	}
	flag.Parse()

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("starting hrtf-pack", "input", flag.Arg(0), "output", flag.Arg(1))

	if err := run(flag.Arg(0), flag.Arg(1)); err != nil {
		slog.Error("hrtf-pack failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:forbidigo // critical error output to user
		os.Exit(1)
	}
}

func run(inputDir, outputFile string) error {
	files, err := findAIFFFiles(inputDir, *recursive)
	if err != nil {
		return fmt.Errorf("failed to scan directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no .aif files found in %s", inputDir)
	}

	slog.Info("found AIFF files", "count", len(files))
	if *verbose {
		fmt.Printf("Found %d AIFF files\n", len(files))
	}

	lib := hrtf.NewLibrary()

	for i, filePath := range files {
		if *verbose {
			fmt.Printf("[%d/%d] Processing: %s\n", i+1, len(files), filepath.Base(filePath))
		}

		entry, err := convertFile(filePath)
		if err != nil {
			slog.Warn("skipping IR file", "path", filePath, "err", err)
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", filePath, err)
			continue
		}
		lib.Add(entry)
	}

	if len(lib.Entries) == 0 {
		return errors.New("no files were successfully converted")
	}

	outFile, err := os.Create(outputFile)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer outFile.Close()

	if err := hrtf.WriteLibrary(outFile, lib); err != nil {
		return fmt.Errorf("failed to write library: %w", err)
	}

	if info, statErr := outFile.Stat(); statErr == nil && *verbose {
		fmt.Printf("\nLibrary written: %s\n", outputFile)
		fmt.Printf("  Entries: %d\n", len(lib.Entries))
		fmt.Printf("  Size: %.2f MB\n", float64(info.Size())/(1024*1024))
		slog.Info("library written", "path", outputFile, "entries", len(lib.Entries), "bytes", info.Size())
	} else {
		fmt.Printf("Created %s with %d entries\n", outputFile, len(lib.Entries))
		slog.Info("library written", "path", outputFile, "entries", len(lib.Entries))
	}

	return nil
}

func findAIFFFiles(dir string, recursive bool) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && path != dir && !recursive {
			return fs.SkipDir
		}
		if !d.IsDir() {
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".aif" || ext == ".aiff" {
				files = append(files, path)
			}
		}
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, err
	}
	return files, nil
}

func convertFile(filePath string) (*hrtf.Entry, error) {
	name := strings.TrimSuffix(filepath.Base(filePath), filepath.Ext(filePath))
	channel, ear, err := parseChannelEar(name)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	src, err := (ingestaiff.Decoder{}).Decode(f)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if src.Channels() != 1 {
		return nil, fmt.Errorf("IR %q: want a mono impulse response, got %d channels", name, src.Channels())
	}

	samples := make([]float32, 0, 1<<16)
	buf := make([]float32, 4096)
	for {
		n, err := src.ReadSamples(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if err != nil || n == 0 {
			break
		}
	}

	if *normalize {
		samples = normalizeAudio(samples)
	}

	if *verbose {
		quality := f16.AnalyzeConversionError(samples)
		fmt.Printf("    %s: channel %d ear %s, %d Hz, %d samples, f16 SNR %.1f dB\n",
			name, channel, ear, src.SampleRate(), len(samples), quality.SNR)
	}

	return &hrtf.Entry{
		Channel:    channel,
		Ear:        ear,
		SampleRate: float64(src.SampleRate()),
		Audio:      samples,
	}, nil
}

// parseChannelEar extracts the ACN channel index and ear from a file's
// base name, matching the "ch<k>_L"/"ch<k>_R" convention documented in
// this command's usage.
func parseChannelEar(name string) (channel int, ear hrtf.Ear, err error) {
	m := channelNamePattern.FindStringSubmatch(name)
	if m == nil {
		return 0, 0, fmt.Errorf("name %q does not match the required ch<k>_L/ch<k>_R convention", name)
	}

	channel, err = strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("name %q: invalid channel index: %w", name, err)
	}

	ear = hrtf.Left
	if m[2] == "R" {
		ear = hrtf.Right
	}
	return channel, ear, nil
}

// normalizeAudio normalizes audio to peak at -1.0dB.
func normalizeAudio(samples []float32) []float32 {
	var peak float32
	for _, s := range samples {
		abs := s
		if abs < 0 {
			abs = -abs
		}
		if abs > peak {
			peak = abs
		}
	}
	if peak == 0 {
		return samples
	}

	targetPeak := float32(math.Pow(10, -1.0/20.0))
	gain := targetPeak / peak

	result := make([]float32, len(samples))
	for i, s := range samples {
		result[i] = s * gain
	}
	return result
}
