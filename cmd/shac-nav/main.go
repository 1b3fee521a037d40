// Command shac-nav is an interactive terminal demo: it loads a .shac
// scene, renders it continuously at real-time pace while the listener
// pose is steered live from the keyboard, and displays running meters
// and pose telemetry. No audio device output: it exercises the decoder
// and navigation path only, per the core packages' no-device-I/O scope.
//
// Usage:
//
//	shac-nav -in scene.shac [options]
//
// Options:
//
//	-hrtf   Path to an HRTF library (.hrtf) supplying the binaural HRTF
//	-web    Serve pose/meter telemetry over WebSocket for a browser visualizer
//	-port   Port for -web (default 8080)
//	-block  Render block size in samples (default 512)
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nsf/termbox-go"

	"shac/dsp"
	"shac/internal/navweb"
	"shac/pkg/coord"
	"shac/pkg/hrtf"
	"shac/pkg/pose"
	"shac/pkg/shacfile"
)

const (
	colDef    = termbox.ColorDefault
	colWhite  = termbox.ColorWhite
	colGreen  = termbox.ColorGreen
	colYellow = termbox.ColorYellow
	colCyan   = termbox.ColorCyan
)

const (
	moveStep = 0.2  // meters per keypress
	yawStep  = 0.1  // radians per keypress
	pitchCap = 1.5  // radians, roughly +/-86 degrees
)

var (
	inPath    = flag.String("in", "", ".shac input file")
	hrtfPath  = flag.String("hrtf", "", "HRTF library (.hrtf) supplying the binaural HRTF")
	webEnable = flag.Bool("web", false, "serve pose/meter telemetry over WebSocket")
	webPort   = flag.Int("port", 8080, "port for -web")
	blockSize = flag.Int("block", 512, "render block size in samples")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s -in scene.shac [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Interactively navigates a .shac scene, rendering it live.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *inPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))
	slog.Info("starting shac-nav", "in", *inPath, "hrtf", *hrtfPath, "web", *webEnable)

	if err := run(); err != nil {
		slog.Error("shac-nav failed", "err", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err) //nolint:forbidigo // critical error output to user
		os.Exit(1)
	}
}

func run() error {
	in, err := os.Open(*inPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", *inPath, err)
	}
	file, err := shacfile.Parse(in)
	in.Close()
	if err != nil {
		return fmt.Errorf("parsing %s: %w", *inPath, err)
	}

	order := int(file.Header.Order)
	table, err := loadTable(order)
	if err != nil {
		return err
	}

	posePublisher := pose.NewPublisher(pose.Pose{})
	decoder, err := dsp.Open(file, table, posePublisher, *blockSize)
	if err != nil {
		return fmt.Errorf("opening decoder: %w", err)
	}
	slog.Info("decoder opened", "order", order, "sample_rate", file.Header.SampleRate, "layers", len(file.Layers))

	telemetry := &liveTelemetry{publisher: posePublisher, decoder: decoder}

	var webServer *navweb.Server
	if *webEnable {
		webServer = navweb.NewServer(telemetry, posePublisher, *webPort)
		go func() {
			if err := webServer.Start(); err != nil {
				slog.Error("web telemetry server stopped", "err", err)
				telemetry.setWebErr(err)
			}
		}()
		slog.Info("web telemetry serving", "port", *webPort)
	}

	stop := make(chan struct{})
	go renderLoop(decoder, int(file.Header.SampleRate), telemetry, stop)
	defer close(stop)

	runTUI(posePublisher, telemetry)

	if webServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = webServer.Shutdown(ctx)
	}
	return nil
}

func loadTable(order int) (*hrtf.Table, error) {
	if *hrtfPath == "" {
		slog.Warn("no HRTF library given, falling back to the built-in matrix decode")
	}
	return hrtf.OpenProvider(*hrtfPath).Load(order)
}

// liveTelemetry satisfies navweb.Telemetry and also holds the meter
// levels the TUI reads, bridged from the render goroutine without
// allocating or blocking the realtime path.
type liveTelemetry struct {
	publisher *pose.Publisher
	decoder   *dsp.Decoder

	peakL atomic.Uint32 // float32 bits
	peakR atomic.Uint32

	mu     sync.Mutex
	webErr error
}

func (t *liveTelemetry) Pose() pose.Pose  { return t.publisher.Snapshot() }
func (t *liveTelemetry) Stats() dsp.Stats { return t.decoder.Stats() }

func (t *liveTelemetry) setWebErr(err error) {
	t.mu.Lock()
	t.webErr = err
	t.mu.Unlock()
}

func (t *liveTelemetry) meters() (left, right float32) {
	return math.Float32frombits(t.peakL.Load()), math.Float32frombits(t.peakR.Load())
}

func (t *liveTelemetry) setMeters(left, right float32) {
	t.peakL.Store(math.Float32bits(left))
	t.peakR.Store(math.Float32bits(right))
}

// renderLoop pulls blocks from decoder at the stream's real-time rate so
// the live meters and browser visualizer reflect what a device-attached
// decoder would actually be doing, without opening any device.
func renderLoop(decoder *dsp.Decoder, sampleRate int, telemetry *liveTelemetry, stop <-chan struct{}) {
	stereo := make([]float32, 2*(*blockSize))
	period := time.Duration(float64(*blockSize) / float64(sampleRate) * float64(time.Second))
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n, done := decoder.ProduceBlock(stereo)
			if n > 0 {
				telemetry.setMeters(peakStride(stereo[:2*n], 0), peakStride(stereo[:2*n], 1))
			}
			if done {
				decoder.Reset()
			}
		}
	}
}

// peakStride returns the peak absolute value among samples[offset],
// samples[offset+2], samples[offset+4]... i.e. one interleaved channel
// of a stereo buffer.
func peakStride(samples []float32, offset int) float32 {
	var m float32
	for i := offset; i < len(samples); i += 2 {
		s := samples[i]
		if s < 0 {
			s = -s
		}
		if s > m {
			m = s
		}
	}
	return m
}

type tuiState struct {
	publisher *pose.Publisher
	telemetry *liveTelemetry
	current   pose.Pose
	exit      bool
}

func runTUI(publisher *pose.Publisher, telemetry *liveTelemetry) {
	if err := termbox.Init(); err != nil {
		fmt.Printf("Failed to initialize TUI: %v\n", err)
		return
	}
	defer termbox.Close()
	termbox.SetInputMode(termbox.InputEsc)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)

	state := &tuiState{publisher: publisher, telemetry: telemetry}

	eventQueue := make(chan termbox.Event)
	go func() {
		for {
			eventQueue <- termbox.PollEvent()
		}
	}()

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	draw(state)
	for !state.exit {
		select {
		case ev := <-eventQueue:
			switch ev.Type {
			case termbox.EventKey:
				handleKey(ev, state)
			case termbox.EventResize:
				draw(state)
			}
		case <-ticker.C:
			draw(state)
		case <-sigCh:
			state.exit = true
		}
	}
}

func handleKey(ev termbox.Event, s *tuiState) {
	if ev.Key == termbox.KeyEsc || ev.Ch == 'q' {
		s.exit = true
		return
	}

	p := s.current
	forward := coord.Vec3{X: math.Sin(p.Yaw), Y: 0, Z: math.Cos(p.Yaw)}
	right := coord.Vec3{X: math.Cos(p.Yaw), Y: 0, Z: -math.Sin(p.Yaw)}

	switch ev.Key {
	case termbox.KeyArrowUp:
		p.Position = addVec(p.Position, forward, moveStep)
	case termbox.KeyArrowDown:
		p.Position = addVec(p.Position, forward, -moveStep)
	case termbox.KeyCtrlA:
		p.Position = addVec(p.Position, right, -moveStep)
	case termbox.KeyCtrlD:
		p.Position = addVec(p.Position, right, moveStep)
	case termbox.KeyArrowLeft:
		p.Yaw -= yawStep
	case termbox.KeyArrowRight:
		p.Yaw += yawStep
	case termbox.KeyPgup:
		p.Pitch = clampPitch(p.Pitch + yawStep)
	case termbox.KeyPgdn:
		p.Pitch = clampPitch(p.Pitch - yawStep)
	}

	switch ev.Ch {
	case 'a':
		p.Position = addVec(p.Position, right, -moveStep)
	case 'd':
		p.Position = addVec(p.Position, right, moveStep)
	case 'r':
		p = pose.Pose{}
	}

	s.current = p
	s.publisher.Publish(p)
}

func addVec(v, dir coord.Vec3, step float64) coord.Vec3 {
	return coord.Vec3{X: v.X + dir.X*step, Y: v.Y + dir.Y*step, Z: v.Z + dir.Z*step}
}

func clampPitch(p float64) float64 {
	if p > pitchCap {
		return pitchCap
	}
	if p < -pitchCap {
		return -pitchCap
	}
	return p
}

func draw(state *tuiState) {
	_ = termbox.Clear(colDef, colDef)

	printTB(0, 0, colCyan, colDef, "SHAC Navigation Demo - Interactive Mode")
	printTB(0, 1, colWhite, colDef, "Arrows move/turn, PgUp/PgDn pitch, a/d strafe, r reset, q/Esc quit")
	printTB(0, 2, colDef, colDef, "----------------------------------------------------")

	p := state.current
	printTB(0, 4, colWhite, colDef, fmt.Sprintf("Position: (%.2f, %.2f, %.2f)", p.Position.X, p.Position.Y, p.Position.Z))
	printTB(0, 5, colWhite, colDef, fmt.Sprintf("Yaw: %.2f rad   Pitch: %.2f rad", p.Yaw, p.Pitch))

	stats := state.telemetry.Stats()
	printTB(0, 7, colYellow, colDef, "Stats:")
	printTB(2, 8, colDef, colDef, fmt.Sprintf("Blocks produced: %d", stats.BlocksProduced))
	printTB(2, 9, colDef, colDef, fmt.Sprintf("Samples emitted: %d", stats.SamplesEmitted))

	left, right := state.telemetry.meters()
	drawMeter(11, "Out L", linToDB(left), colGreen)
	drawMeter(12, "Out R", linToDB(right), colGreen)

	termbox.Flush()
}

func linToDB(l float32) float64 {
	if l <= 1e-9 {
		return -96.0
	}
	return 20 * math.Log10(float64(l))
}

func drawMeter(yPos int, label string, db float64, color termbox.Attribute) {
	const (
		barWidth = 60
		xPos     = 2
		minDB    = -96.0
		maxDB    = 6.0
	)

	if db < minDB {
		db = minDB
	}
	if db > maxDB {
		db = maxDB
	}

	ratio := (db - minDB) / (maxDB - minDB)
	filled := int(ratio * float64(barWidth))

	printTB(xPos, yPos, colDef, colDef, fmt.Sprintf("%s [%-6.1f dB] ", label, db))

	startX := xPos + 15
	for i := 0; i < barWidth; i++ {
		barChar := rune('░')
		if i < filled {
			barChar = '█'
		}
		termbox.SetCell(startX+i, yPos, barChar, color, colDef)
	}
}

func printTB(x, y int, fg, bg termbox.Attribute, msg string) {
	for _, c := range msg {
		termbox.SetCell(x, y, c, fg, bg)
		x++
	}
}
