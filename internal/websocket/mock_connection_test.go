package websocket

import (
	"errors"
	"sync"
	"time"
)

// scriptedConn is an in-memory Connection for exercising the client pumps
// without a network. Reads come from a scripted queue and writes are
// captured for inspection.
type scriptedConn struct {
	mu sync.Mutex

	// writeHook overrides the default capture when set, so tests can
	// inject write failures.
	writeHook func(messageType int, data []byte) error
	writes    []frame

	reads   []frame
	readPos int

	closed bool

	readDeadline  time.Time
	writeDeadline time.Time
	readLimit     int64

	pongHandler  func(string) error
	pingHandler  func(string) error
	closeHandler func(code int, text string) error

	addr string
}

// frame is one scripted read or one captured write.
type frame struct {
	kind int
	data []byte
	err  error
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{addr: "198.51.100.7:41000"}
}

func (c *scriptedConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.New("connection closed")
	}
	if c.writeHook != nil {
		return c.writeHook(messageType, data)
	}
	c.writes = append(c.writes, frame{kind: messageType, data: data})
	return nil
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, nil, errors.New("connection closed")
	}
	if c.readPos >= len(c.reads) {
		return 0, nil, errors.New("script exhausted")
	}
	f := c.reads[c.readPos]
	c.readPos++
	return f.kind, f.data, f.err
}

func (c *scriptedConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *scriptedConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *scriptedConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *scriptedConn) SetReadLimit(limit int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readLimit = limit
}

func (c *scriptedConn) SetPongHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pongHandler = h
}

func (c *scriptedConn) SetPingHandler(h func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pingHandler = h
}

func (c *scriptedConn) SetCloseHandler(h func(code int, text string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeHandler = h
}

func (c *scriptedConn) RemoteAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.addr
}

// queueRead appends one frame for ReadMessage to serve.
func (c *scriptedConn) queueRead(messageType int, data []byte, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reads = append(c.reads, frame{kind: messageType, data: data, err: err})
}

// writtenFrames returns a copy of everything written so far.
func (c *scriptedConn) writtenFrames() []frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]frame, len(c.writes))
	copy(out, c.writes)
	return out
}

// state reads back the fields the client is expected to configure.
func (c *scriptedConn) state() (closed bool, readLimit int64, pongHandler func(string) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.readLimit, c.pongHandler
}
