package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"audioroute/internal/audio"
	applog "audioroute/internal/log"
)

// Client command types.
const (
	CommandSelect = "select"
	CommandAuto   = "auto"
)

// Command is a message sent by a client.
type Command struct {
	Type   string        `json:"type"`
	Device *audio.Device `json:"device,omitempty"`
}

// ErrorMessage is sent back to a client whose command failed.
type ErrorMessage struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// WebSocketTransport implements the Transport interface for WebSocket
// connections. New clients receive the latest message immediately, and
// client commands are forwarded to the Selector.
type WebSocketTransport struct {
	addr      string
	upgrader  websocket.Upgrader
	selector  Selector
	clients   map[*websocket.Conn]*sync.Mutex
	clientsMu sync.Mutex
	last      any
	broadcast chan any
	listener  net.Listener
	server    *http.Server
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates a WebSocketTransport and starts serving /ws
// on addr. selector may be nil, in which case commands are rejected.
func NewWebSocketTransport(addr string, selector Selector) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}
	wst := &WebSocketTransport{
		addr: ln.Addr().String(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Local control surface; any origin may connect.
			},
		},
		selector:  selector,
		clients:   make(map[*websocket.Conn]*sync.Mutex),
		broadcast: make(chan any, 256),
		listener:  ln,
		done:      make(chan struct{}),
	}

	wst.start()
	return wst, nil
}

// Addr returns the address the server is listening on.
func (wst *WebSocketTransport) Addr() string {
	return wst.addr
}

// start begins the WebSocket server
func (wst *WebSocketTransport) start() {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)

	wst.server = &http.Server{Handler: mux}

	go func() {
		applog.Infof("WebSocketTransport: Starting WebSocket server on %s", wst.addr)
		if err := wst.server.Serve(wst.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			applog.Errorf("WebSocketTransport: Server error: %v", err)
		}
	}()

	go wst.handleBroadcasts()
}

// handleWebSocket upgrades HTTP connections to WebSocket
func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		applog.Warnf("WebSocketTransport: Upgrade error: %v", err)
		return
	}

	writeMu := &sync.Mutex{}
	wst.clientsMu.Lock()
	wst.clients[conn] = writeMu
	total := len(wst.clients)
	last := wst.last
	wst.clientsMu.Unlock()
	applog.Infof("WebSocketTransport: Client connected, total: %d", total)

	if last != nil {
		wst.write(conn, writeMu, last)
	}

	go wst.readCommands(conn, writeMu)
}

// readCommands runs until the client goes away.
func (wst *WebSocketTransport) readCommands(conn *websocket.Conn, writeMu *sync.Mutex) {
	defer wst.drop(conn)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := wst.handleCommand(data); err != nil {
			applog.WithFields(applog.Fields{
				"function": "WebSocketTransport.readCommands",
				"remote":   conn.RemoteAddr().String(),
				"error":    err.Error(),
			}).Warn("Rejected client command")
			wst.write(conn, writeMu, ErrorMessage{Type: "error", Error: err.Error()})
		}
	}
}

func (wst *WebSocketTransport) handleCommand(data []byte) error {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return fmt.Errorf("malformed command: %w", err)
	}
	if wst.selector == nil {
		return fmt.Errorf("device selection is disabled")
	}
	switch cmd.Type {
	case CommandSelect:
		if cmd.Device == nil {
			return fmt.Errorf("select needs a device")
		}
		d := audio.NewDevice(cmd.Device.Type, cmd.Device.Name)
		return wst.selector.SelectDevice(&d)
	case CommandAuto:
		return wst.selector.SelectDevice(nil)
	default:
		return fmt.Errorf("unknown command %q", cmd.Type)
	}
}

func (wst *WebSocketTransport) write(conn *websocket.Conn, mu *sync.Mutex, data any) {
	mu.Lock()
	err := conn.WriteJSON(data)
	mu.Unlock()
	if err != nil {
		applog.Debugf("WebSocketTransport: Error sending to client: %v", err)
		wst.drop(conn)
	}
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[conn]
	delete(wst.clients, conn)
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	if ok {
		conn.Close()
		applog.Infof("WebSocketTransport: Client disconnected, total: %d", total)
	}
}

// handleBroadcasts sends messages to all connected clients
func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case data := <-wst.broadcast:
			wst.clientsMu.Lock()
			wst.last = data
			targets := make(map[*websocket.Conn]*sync.Mutex, len(wst.clients))
			for conn, mu := range wst.clients {
				targets[conn] = mu
			}
			wst.clientsMu.Unlock()

			for conn, mu := range targets {
				wst.write(conn, mu, data)
			}
		}
	}
}

// Send broadcasts data to all connected WebSocket clients. Messages are
// dropped when the queue is full.
func (wst *WebSocketTransport) Send(data any) error {
	select {
	case wst.broadcast <- data:
	default:
		applog.Warnf("WebSocketTransport: Broadcast queue full, dropping message")
	}
	return nil
}

// Close shuts down the WebSocket server
func (wst *WebSocketTransport) Close() error {
	var err error
	wst.closeOnce.Do(func() {
		applog.Infof("WebSocketTransport: Closing server")
		close(wst.done)

		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]*sync.Mutex)
		wst.clientsMu.Unlock()

		err = wst.server.Close()
	})
	return err
}

// Ensure WebSocketTransport satisfies the interface
var _ Transport = (*WebSocketTransport)(nil)
