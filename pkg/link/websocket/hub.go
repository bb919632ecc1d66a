// Package websocket implements a virtual bus over WebSocket.
//
// The Hub relays every message from one connection to all the others, so
// nodes in different processes (or hosts) share a bus the same way ports
// on a pipe.Hub do. Characters use the stream package encoding.
package websocket

import (
	"net/http"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// Hub is an http.Handler accepting WebSocket connections as bus nodes.
type Hub struct {
	lock  sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a Hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]struct{})}
}

// ServeHTTP implements http.Handler.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(h.serve).ServeHTTP(w, r)
}

// Len returns the number of connected nodes.
func (h *Hub) Len() int {
	h.lock.RLock()
	defer h.lock.RUnlock()
	return len(h.conns)
}

func (h *Hub) serve(conn *websocket.Conn) {
	conn.PayloadType = websocket.BinaryFrame
	h.lock.Lock()
	h.conns[conn] = struct{}{}
	h.lock.Unlock()
	glog.V(2).Infof("hub: node %s connected", conn.Request().RemoteAddr)

	defer func() {
		h.lock.Lock()
		delete(h.conns, conn)
		h.lock.Unlock()
		conn.Close()
		glog.V(2).Infof("hub: node %s disconnected", conn.Request().RemoteAddr)
	}()

	for {
		var msg []byte
		if err := websocket.Message.Receive(conn, &msg); err != nil {
			return
		}
		h.relay(conn, msg)
	}
}

func (h *Hub) relay(from *websocket.Conn, msg []byte) {
	h.lock.RLock()
	defer h.lock.RUnlock()
	for conn := range h.conns {
		if conn == from {
			continue
		}
		if err := websocket.Message.Send(conn, msg); err != nil {
			glog.Warningf("hub: relay to %s: %v", conn.Request().RemoteAddr, err)
		}
	}
}
