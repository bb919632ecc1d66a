package websocket

import (
	"net/url"

	"golang.org/x/net/websocket"

	"github.com/robotalks/rs485.go/pkg/link/stream"
	"github.com/robotalks/rs485.go/pkg/rs485"
)

// Link implements link.Link on a WebSocket connection to a Hub.
type Link struct {
	conn    *websocket.Conn
	pending []byte
}

// New wraps an established connection.
func New(conn *websocket.Conn) *Link {
	conn.PayloadType = websocket.BinaryFrame
	return &Link{conn: conn}
}

// Dial connects to the Hub at rawURL (ws:// or wss://).
func Dial(rawURL string) (*Link, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	origin := "http://" + u.Host + "/"
	if u.Scheme == "wss" {
		origin = "https://" + u.Host + "/"
	}
	conn, err := websocket.Dial(rawURL, "", origin)
	if err != nil {
		return nil, err
	}
	return New(conn), nil
}

// ReadChar implements link.Reader.
func (l *Link) ReadChar() (rs485.Char, error) {
	for len(l.pending) < stream.CharLen {
		var msg []byte
		if err := websocket.Message.Receive(l.conn, &msg); err != nil {
			return rs485.Char{}, err
		}
		l.pending = msg
	}
	c, err := stream.Decode(l.pending)
	l.pending = l.pending[stream.CharLen:]
	return c, err
}

// WriteChar implements link.Writer.
func (l *Link) WriteChar(c rs485.Char) error {
	b := stream.Encode(c)
	return websocket.Message.Send(l.conn, b[:])
}

// Close implements io.Closer.
func (l *Link) Close() error {
	return l.conn.Close()
}
