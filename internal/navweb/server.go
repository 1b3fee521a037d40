package navweb

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"shac/dsp"
	"shac/pkg/coord"
	"shac/pkg/pose"
)

// Telemetry is the read side of the listener state a Server broadcasts:
// the navigation loop's current pose and the decoder's instrumentation
// snapshot, per dsp.Decoder.Stats.
type Telemetry interface {
	Pose() pose.Pose
	Stats() dsp.Stats
}

// message is the envelope every WebSocket frame uses in both directions.
type message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// posePayload mirrors pose.Pose for JSON transport.
type posePayload struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Yaw   float64 `json:"yaw"`
	Pitch float64 `json:"pitch"`
}

// metersPayload summarizes dsp.Stats for the visualizer's status line.
type metersPayload struct {
	BlocksProduced int64 `json:"blocksProduced"`
	SamplesEmitted int64 `json:"samplesEmitted"`
	CacheMisses    int64 `json:"cacheMisses"`
}

// Server hosts the nav-demo's WebSocket endpoint: it periodically
// broadcasts the listener's pose and decoder stats, and relays any
// "set_pose" command a client sends back into the shared pose.Publisher
// so a browser can steer the listener alongside the terminal UI.
type Server struct {
	telemetry     Telemetry
	posePublisher *pose.Publisher
	port          int
	hub           *Hub
	httpServer    *http.Server

	mu sync.Mutex
}

// NewServer builds a Server that broadcasts telemetry and accepts pose
// commands that get forwarded to posePublisher.
func NewServer(telemetry Telemetry, posePublisher *pose.Publisher, port int) *Server {
	return &Server{
		telemetry:     telemetry,
		posePublisher: posePublisher,
		port:          port,
		hub:           NewHub(),
	}
}

// Start runs the HTTP/WebSocket server until it fails or is shut down.
func (s *Server) Start() error {
	go s.hub.Run()
	go s.broadcastLoop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("nav web server starting", "port", s.port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

//nolint:gochecknoglobals
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("nav web: upgrade failed", "error", err)
		return
	}

	c := &client{hub: s.hub, conn: conn, send: make(chan []byte, 256)}
	s.hub.register <- c

	go c.writePump()
	c.readPump(func(data []byte) { s.handleClientMessage(data) })
}

func (s *Server) handleClientMessage(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		slog.Error("nav web: bad client message", "error", err)
		return
	}

	if msg.Type != "set_pose" {
		return
	}

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return
	}
	var p posePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		slog.Error("nav web: bad set_pose payload", "error", err)
		return
	}

	s.posePublisher.Publish(pose.Pose{
		Position: coord.Vec3{X: p.X, Y: p.Y, Z: p.Z},
		Yaw:      p.Yaw,
		Pitch:    p.Pitch,
	})
}

// broadcastLoop pushes pose+meter snapshots to every connected client at
// a fixed rate.
func (s *Server) broadcastLoop() {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if s.hub.ClientCount() == 0 {
			continue
		}

		cur := s.telemetry.Pose()
		stats := s.telemetry.Stats()

		msg := message{Type: "telemetry", Payload: struct {
			Pose   posePayload   `json:"pose"`
			Meters metersPayload `json:"meters"`
		}{
			Pose: posePayload{X: cur.Position.X, Y: cur.Position.Y, Z: cur.Position.Z, Yaw: cur.Yaw, Pitch: cur.Pitch},
			Meters: metersPayload{
				BlocksProduced: stats.BlocksProduced,
				SamplesEmitted: stats.SamplesEmitted,
				CacheMisses:    stats.CacheMisses,
			},
		}}

		data, err := json.Marshal(msg)
		if err != nil {
			continue
		}
		s.hub.Broadcast(data)
	}
}
