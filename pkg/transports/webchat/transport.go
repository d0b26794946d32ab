package webchat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/harunnryd/niaga/pkg/errorsx"
	"github.com/harunnryd/niaga/pkg/transports"
)

type Config struct {
	ServerAddr     string   `mapstructure:"server_addr"`
	Path           string   `mapstructure:"path"`
	AgentID        string   `mapstructure:"agent_id"`
	AllowAnyOrigin bool     `mapstructure:"allow_any_origin"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

func (c Config) withDefaults() Config {
	if c.ServerAddr == "" {
		c.ServerAddr = ":8081"
	}
	if c.Path == "" {
		c.Path = "/chat"
	}
	if !c.AllowAnyOrigin && len(c.AllowedOrigins) == 0 {
		c.AllowAnyOrigin = true
	}
	return c
}

// clientFrame is an inbound websocket payload.
type clientFrame struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// serverFrame is an outbound websocket payload.
type serverFrame struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Text      string `json:"text,omitempty"`
}

type client struct {
	conn   *websocket.Conn
	sendCh chan serverFrame
	done   chan struct{}
	once   sync.Once
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// Transport serves browser chat over a websocket. Each connection gets a
// fresh session ID announced in the first server frame.
type Transport struct {
	cfg      Config
	server   *http.Server
	upgrader websocket.Upgrader
	recvCh   chan transports.InboundMessage

	mu      sync.Mutex
	clients map[string]*client

	draining atomic.Bool
}

func New(cfg Config) *Transport {
	cfg = cfg.withDefaults()
	t := &Transport{
		cfg:     cfg,
		recvCh:  make(chan transports.InboundMessage, 256),
		clients: make(map[string]*client),
	}
	t.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     t.checkOrigin,
	}
	return t
}

func (t *Transport) Name() string { return "webchat" }

func (t *Transport) Recv() <-chan transports.InboundMessage { return t.recvCh }

func (t *Transport) ReadyFields() map[string]any {
	return map[string]any{"chat_path": t.cfg.Path, "addr": t.cfg.ServerAddr}
}

func (t *Transport) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	mux := http.NewServeMux()
	mux.Handle(t.cfg.Path, t)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	t.server = &http.Server{
		Addr:              t.cfg.ServerAddr,
		ReadHeaderTimeout: 5 * time.Second,
		Handler:           mux,
	}
	go func() {
		<-ctx.Done()
		_ = t.server.Close()
	}()
	go func() {
		if err := t.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("webchat_transport_server_error", "error", err.Error())
		}
	}()
	return nil
}

func (t *Transport) Stop() error {
	t.draining.Store(true)
	if t.server != nil {
		_ = t.server.Close()
	}
	t.mu.Lock()
	for _, c := range t.clients {
		c.close()
	}
	t.clients = make(map[string]*client)
	t.mu.Unlock()
	close(t.recvCh)
	return nil
}

func (t *Transport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if t.draining.Load() {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	sessionID := uuid.NewString()
	c := &client{
		conn:   conn,
		sendCh: make(chan serverFrame, 64),
		done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.clients[sessionID] = c
	t.mu.Unlock()

	go t.writePump(c)
	c.sendCh <- serverFrame{Type: "session", SessionID: sessionID}

	t.readLoop(sessionID, c)

	t.mu.Lock()
	delete(t.clients, sessionID)
	t.mu.Unlock()
	c.close()
}

func (t *Transport) readLoop(sessionID string, c *client) {
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var frame clientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			continue
		}
		if frame.Type != "message" || (frame.Text == "" && frame.ImageURL == "") {
			continue
		}
		msg := transports.InboundMessage{
			SessionID:  sessionID,
			AgentID:    t.cfg.AgentID,
			Text:       frame.Text,
			ImageRef:   frame.ImageURL,
			Channel:    "webchat",
			ReceivedAt: time.Now(),
		}
		select {
		case t.recvCh <- msg:
		default:
			slog.Warn("webchat_recv_dropped", "session_id", sessionID)
		}
	}
}

func (t *Transport) writePump(c *client) {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.WriteJSON(frame); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (t *Transport) Send(out transports.OutboundMessage) error {
	t.mu.Lock()
	c, ok := t.clients[out.SessionID]
	t.mu.Unlock()
	if !ok {
		return errorsx.New(errorsx.ReasonTransportSend, "no connected client for session")
	}
	select {
	case c.sendCh <- serverFrame{Type: "message", SessionID: out.SessionID, Text: out.Text}:
		return nil
	default:
		return errorsx.New(errorsx.ReasonTransportSend, "client send buffer full")
	}
}

func (t *Transport) checkOrigin(r *http.Request) bool {
	if t.cfg.AllowAnyOrigin {
		return true
	}
	origin := strings.TrimRight(strings.TrimSpace(r.Header.Get("Origin")), "/")
	if origin == "" {
		return true
	}
	for _, allowed := range t.cfg.AllowedOrigins {
		if strings.EqualFold(strings.TrimRight(strings.TrimSpace(allowed), "/"), origin) {
			return true
		}
	}
	return false
}
