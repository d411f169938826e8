// Package server hosts the websocket bridge between the orchestration
// core and the browser map shell. The shell is a thin ArcGIS/Chart.js
// renderer: all layer lifecycle, display mode, and query decisions are
// made server-side and pushed down as commands; the shell reports map
// readiness, clicks, and layer load outcomes back up.
package server

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/kestrelgeo/landview/api"
	"github.com/kestrelgeo/landview/config"
	"github.com/kestrelgeo/landview/errors"
	"github.com/kestrelgeo/landview/logger"
	"github.com/kestrelgeo/landview/view"
)

func initError(reason string) error {
	if reason == "" {
		reason = "map engine initialization failed"
	}
	return errors.Newf("%s", reason)
}

// Bridge accepts browser shell connections and runs one map session per
// client.
type Bridge struct {
	backend *api.Client
	cfg     *config.Config

	mu      sync.RWMutex
	clients map[*Client]bool

	register   chan *Client
	unregister chan *Client

	upgrader websocket.Upgrader

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewBridge creates a bridge serving sessions against the given backend.
func NewBridge(backend *api.Client, cfg *config.Config) *Bridge {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		backend:    backend,
		cfg:        cfg,
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			// The shell is served from this same process; same-origin only.
			CheckOrigin: func(r *http.Request) bool {
				return r.Header.Get("Origin") == "" || originMatchesHost(r)
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start runs the bridge on addr until Shutdown.
func (b *Bridge) Start(addr string) error {
	b.wg.Add(1)
	go b.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", b.handleWS)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	b.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Infow("Bridge listening", "addr", addr)
	if err := b.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return errors.Wrapf(err, "bridge failed on %s", addr)
	}
	return nil
}

// run owns the client registry.
func (b *Bridge) run() {
	defer b.wg.Done()
	for {
		select {
		case <-b.ctx.Done():
			return
		case c := <-b.register:
			b.handleRegister(c)
		case c := <-b.unregister:
			b.handleUnregister(c)
		}
	}
}

func (b *Bridge) handleRegister(c *Client) {
	b.mu.Lock()
	if len(b.clients) >= b.cfg.Server.MaxClients {
		b.mu.Unlock()
		logger.Warnw("Max clients reached, rejecting connection",
			"client_id", c.id,
			"max_clients", b.cfg.Server.MaxClients,
		)
		c.close()
		return
	}
	b.clients[c] = true
	total := len(b.clients)
	b.mu.Unlock()

	logger.Infow("Client connected", "client_id", c.id, "total_clients", total)
}

func (b *Bridge) handleUnregister(c *Client) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
	}
	total := len(b.clients)
	b.mu.Unlock()

	c.session.Teardown()
	c.close()

	logger.Infow("Client disconnected", "client_id", c.id, "total_clients", total)
}

// handleWS upgrades a connection and spins up its session.
func (b *Bridge) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnw("WebSocket upgrade failed", "error", err.Error())
		return
	}

	c := &Client{
		bridge:       b,
		conn:         conn,
		send:         make(chan *command, sendBufferSize),
		done:         make(chan struct{}),
		id:           uuid.New().String(),
		clickLimiter: rate.NewLimiter(rate.Limit(b.cfg.Server.ClickRatePerSec), 3),
	}

	c.engine = newWSEngine(c)
	c.session = view.NewSession(view.SessionConfig{
		Engine:       c.engine,
		Gate:         view.NewGate(),
		Source:       b.backend,
		Fetcher:      b.backend,
		Jobs:         b.backend,
		ChartFactory: &wsChartFactory{engine: c.engine},
		Status: func(level view.StatusLevel, message string) {
			c.sendCommand(&command{Type: cmdStatus, Level: string(level), Message: message})
		},
	})

	b.register <- c

	go c.writePump()
	go c.readPump()
}

// Sessions returns the sessions of every currently connected client.
func (b *Bridge) Sessions() []*view.Session {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*view.Session, 0, len(b.clients))
	for c := range b.clients {
		out = append(out, c.session)
	}
	return out
}

// Shutdown stops accepting connections and tears down every session.
func (b *Bridge) Shutdown(ctx context.Context) error {
	b.cancel()

	b.mu.Lock()
	clients := make([]*Client, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.clients = make(map[*Client]bool)
	b.mu.Unlock()

	for _, c := range clients {
		c.session.Teardown()
		c.close()
		c.conn.Close()
	}

	var err error
	if b.httpServer != nil {
		err = b.httpServer.Shutdown(ctx)
	}

	b.wg.Wait()
	logger.Infow("Bridge stopped")
	return err
}

func originMatchesHost(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}
