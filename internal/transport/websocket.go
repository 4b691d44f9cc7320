// SPDX-License-Identifier: MIT
package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Hello is sent as JSON to every client when it connects. Row packets
// follow as binary messages.
type Hello struct {
	Width      int       `json:"width"`
	Height     int       `json:"height"`
	SampleRate int       `json:"sample_rate"`
	Columns    []float64 `json:"column_hz,omitempty"`
}

const writeWait = time.Second

// WebSocketTransport broadcasts row packets to every connected client. It
// is an http.Handler; mount it wherever the server wants it.
type WebSocketTransport struct {
	hello     Hello
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates the transport and starts its broadcaster.
func NewWebSocketTransport(hello Hello) *WebSocketTransport {
	wst := &WebSocketTransport{
		hello: hello,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan []byte, DefaultDepth),
		done:      make(chan struct{}),
	}
	go wst.handleBroadcasts()
	return wst
}

// ServeHTTP upgrades the request and registers the client.
func (wst *WebSocketTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("websocket: upgrade: %v", err)
		return
	}

	wst.clientsMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wst.hello); err != nil {
		wst.clientsMu.Unlock()
		log.Warnf("websocket: hello to %s: %v", conn.RemoteAddr(), err)
		conn.Close()
		return
	}
	wst.clients[conn] = true
	n := len(wst.clients)
	wst.clientsMu.Unlock()
	log.Infof("websocket: client %s connected, total: %d", conn.RemoteAddr(), n)

	// Clients only listen; a read error means they went away.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				wst.drop(conn)
				return
			}
		}
	}()
}

func (wst *WebSocketTransport) drop(conn *websocket.Conn) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	if wst.clients[conn] {
		delete(wst.clients, conn)
		conn.Close()
		log.Infof("websocket: client %s disconnected, total: %d", conn.RemoteAddr(), len(wst.clients))
	}
}

func (wst *WebSocketTransport) handleBroadcasts() {
	for {
		select {
		case <-wst.done:
			return
		case pkt := <-wst.broadcast:
			wst.clientsMu.Lock()
			for client := range wst.clients {
				client.SetWriteDeadline(time.Now().Add(writeWait))
				if err := client.WriteMessage(websocket.BinaryMessage, pkt); err != nil {
					log.Warnf("websocket: send to %s: %v", client.RemoteAddr(), err)
					client.Close()
					delete(wst.clients, client)
				}
			}
			wst.clientsMu.Unlock()
		}
	}
}

// Hello returns the message sent to new clients.
func (wst *WebSocketTransport) Hello() Hello {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return wst.hello
}

// SetHello replaces the message sent to clients that connect from now on.
func (wst *WebSocketTransport) SetHello(hello Hello) {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	wst.hello = hello
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Send queues a copy of packet for every client. Packets are dropped while
// the broadcaster is behind.
func (wst *WebSocketTransport) Send(packet []byte) error {
	if wst.Clients() == 0 {
		return nil
	}
	select {
	case wst.broadcast <- append([]byte(nil), packet...):
	default:
	}
	return nil
}

// Close disconnects every client and stops the broadcaster.
func (wst *WebSocketTransport) Close() error {
	wst.closeOnce.Do(func() {
		close(wst.done)
		wst.clientsMu.Lock()
		for client := range wst.clients {
			client.Close()
		}
		wst.clients = make(map[*websocket.Conn]bool)
		wst.clientsMu.Unlock()
	})
	return nil
}

var _ Transport = (*WebSocketTransport)(nil)
