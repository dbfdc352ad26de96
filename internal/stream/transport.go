package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"forensicwatch/internal/model"
)

// Dialer opens the event stream for one job.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is a live event stream. ReadMessage blocks for the next frame and
// returns io.EOF when the peer closes the stream cleanly.
type Conn interface {
	ReadMessage() ([]byte, error)
	Close() error
}

// maxFrameBytes bounds a single frame; result payloads can be large.
const maxFrameBytes = 8 << 20

// WebsocketDialer dials the job stream over gorilla/websocket.
type WebsocketDialer struct {
	Dialer *websocket.Dialer
	Header http.Header
}

// NewWebsocketDialer returns a dialer with a bounded handshake.
func NewWebsocketDialer(header http.Header) *WebsocketDialer {
	return &WebsocketDialer{
		Dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		Header: header,
	}
}

// Dial implements Dialer.
func (d *WebsocketDialer) Dial(ctx context.Context, rawURL string) (Conn, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	conn, resp, err := dialer.DialContext(ctx, rawURL, d.Header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", rawURL, err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", rawURL, err)
	}
	conn.SetReadLimit(maxFrameBytes)
	return &wsConn{conn: conn}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil, io.EOF
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}

// isCleanClose reports whether err is the peer closing the stream normally.
func isCleanClose(err error) bool {
	return errors.Is(err, io.EOF)
}

// BuildURL returns the stream address for jobID. The scheme mirrors the
// server's: http becomes ws and https becomes wss.
func BuildURL(base *url.URL, jobID model.JobID) string {
	scheme := "ws"
	host := "localhost"
	if base != nil {
		switch strings.ToLower(base.Scheme) {
		case "https", "wss":
			scheme = "wss"
		}
		if base.Host != "" {
			host = base.Host
		}
	}
	p := "/ws/job/" + string(jobID)
	u := url.URL{
		Scheme:  scheme,
		Host:    host,
		Path:    p,
		RawPath: "/ws/job/" + url.PathEscape(string(jobID)),
	}
	return u.String()
}
