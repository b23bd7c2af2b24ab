package server

import (
	"context"
	"encoding/json"
	"io/fs"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/shaunagostinho/ld19-scope/internal/ld19"
	"github.com/shaunagostinho/ld19-scope/internal/scan"
	"github.com/shaunagostinho/ld19-scope/internal/view"
)

// Source is a scan buffer as seen by a consumer.
type Source interface {
	Snapshot() []ld19.Sample
	Stats() scan.Stats
}

// Sources wires the server to the reader side. A nil buffer disables that view.
type Sources struct {
	Cloud  Source
	Radar  Source
	Reader func() ld19.Stats
	Run    *ld19.RunFlag
}

const (
	viewCloud = "cloud"
	viewRadar = "radar"
)

// Server polls the scan buffers on its own ticker and broadcasts render
// frames to WebSocket clients. It keeps serving stale or empty frames if the
// reader has stopped.
type Server struct {
	cfg   *Config
	src   Sources
	webFS fs.FS

	clients   map[*wsClient]struct{}
	clientsMu sync.RWMutex

	upgrader websocket.Upgrader
}

type wsClient struct {
	id   uuid.UUID
	view string
	conn *websocket.Conn
	send chan []byte
}

// Frame is the JSON structure sent to WebSocket clients.
type Frame struct {
	Cloud *view.CloudFrame `json:"cloud,omitempty"`
	Radar *view.RadarFrame `json:"radar,omitempty"`
	Stamp int64            `json:"stamp"` // Unix ms
}

// StatsResponse is served at /api/stats.
type StatsResponse struct {
	Running bool        `json:"running"`
	Reader  ld19.Stats  `json:"reader"`
	Cloud   *scan.Stats `json:"cloud,omitempty"`
	Radar   *scan.Stats `json:"radar,omitempty"`
	Clients int         `json:"clients"`
}

// New creates a new Server.
func New(cfg *Config, src Sources, webFS fs.FS) *Server {
	return &Server{
		cfg:     cfg,
		src:     src,
		webFS:   webFS,
		clients: make(map[*wsClient]struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	if s.webFS != nil {
		mux.Handle("/", http.FileServer(http.FS(s.webFS)))
	}
	mux.HandleFunc("/ws/cloud", func(w http.ResponseWriter, r *http.Request) { s.handleWS(w, r, viewCloud) })
	mux.HandleFunc("/ws/radar", func(w http.ResponseWriter, r *http.Request) { s.handleWS(w, r, viewRadar) })
	mux.HandleFunc("/api/config", s.handleConfig)
	mux.HandleFunc("/api/stats", s.handleStats)
	return mux
}

// Run starts the HTTP server and the buffer polling loop.
func (s *Server) Run(ctx context.Context) error {
	go s.pollLoop(ctx)

	srv := &http.Server{
		Addr:    s.cfg.Server.ListenAddr,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx)
	}()

	log.Printf("[server] listening on %s", s.cfg.Server.ListenAddr)
	return srv.ListenAndServe()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request, name string) {
	src := s.source(name)
	if src == nil {
		http.Error(w, name+" view disabled", http.StatusNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		id:   uuid.New(),
		view: name,
		conn: conn,
		send: make(chan []byte, 64),
	}

	// Radar clients need the grid before the first sweep.
	if name == viewRadar {
		rv := s.cfg.RadarView()
		f := Frame{
			Radar: &view.RadarFrame{Size: rv.WindowSize, Points: []view.RadarPoint{}, Rings: view.Rings(rv)},
			Stamp: time.Now().UnixMilli(),
		}
		if data, err := json.Marshal(f); err == nil {
			client.send <- data
		}
	}

	s.clientsMu.Lock()
	s.clients[client] = struct{}{}
	total := len(s.clients)
	s.clientsMu.Unlock()

	log.Printf("[ws] %s client %s connected (%d total)", name, client.id, total)

	// Writer goroutine
	go func() {
		defer conn.Close()
		for msg := range client.send {
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				break
			}
		}
	}()

	// Reader goroutine (keep-alive / close detection)
	go func() {
		defer func() {
			s.clientsMu.Lock()
			delete(s.clients, client)
			total := len(s.clients)
			close(client.send)
			s.clientsMu.Unlock()
			log.Printf("[ws] %s client %s disconnected (%d total)", name, client.id, total)
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

func (s *Server) source(name string) Source {
	switch name {
	case viewCloud:
		return s.src.Cloud
	case viewRadar:
		return s.src.Radar
	}
	return nil
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := s.cfg.ToJSON()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	resp := StatsResponse{}
	if s.src.Run != nil {
		resp.Running = s.src.Run.Running()
	}
	if s.src.Reader != nil {
		resp.Reader = s.src.Reader()
	}
	if s.src.Cloud != nil {
		st := s.src.Cloud.Stats()
		resp.Cloud = &st
	}
	if s.src.Radar != nil {
		st := s.src.Radar.Stats()
		resp.Radar = &st
	}
	s.clientsMu.RLock()
	resp.Clients = len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// pollLoop snapshots both buffers at the broadcast rate. The radar buffer is
// drained every tick, whether or not anyone is watching.
func (s *Server) pollLoop(ctx context.Context) {
	hz := s.cfg.Server.BroadcastHz
	if hz <= 0 {
		hz = 30
	}
	ticker := time.NewTicker(time.Second / time.Duration(hz))
	defer ticker.Stop()

	rv := s.cfg.RadarView()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.src.Cloud != nil && s.hasClients(viewCloud) {
				f := view.Cloud(s.src.Cloud.Snapshot())
				s.broadcast(viewCloud, Frame{Cloud: &f, Stamp: time.Now().UnixMilli()})
			}
			if s.src.Radar != nil {
				samples := s.src.Radar.Snapshot()
				if len(samples) > 0 {
					f := view.Radar(rv, samples)
					s.broadcast(viewRadar, Frame{Radar: &f, Stamp: time.Now().UnixMilli()})
				}
			}
		}
	}
}

func (s *Server) hasClients(name string) bool {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	for c := range s.clients {
		if c.view == name {
			return true
		}
	}
	return false
}

func (s *Server) broadcast(name string, frame Frame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for client := range s.clients {
		if client.view != name {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Client too slow, skip
		}
	}
}
