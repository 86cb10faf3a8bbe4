package http

import (
	"bytes"
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"
)

// fakeConn records writes. Once bodyLimit payload bytes past the request
// header have been accepted it stops accepting data and every write blocks
// until its deadline, like a peer that stopped reading.
type fakeConn struct {
	mu            sync.Mutex
	buf           bytes.Buffer
	headerEnd     int
	bodyLimit     int
	writeErr      error
	writeDeadline time.Time
	readDeadline  time.Time
	response      string
	writes        int
	closed        bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{headerEnd: -1, bodyLimit: -1}
}

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	c.writes++
	if c.writeErr != nil {
		c.mu.Unlock()
		return 0, c.writeErr
	}
	if c.headerEnd < 0 || c.bodyLimit < 0 {
		c.buf.Write(p)
		if c.headerEnd < 0 {
			if i := bytes.Index(c.buf.Bytes(), []byte("\r\n\r\n")); i >= 0 {
				c.headerEnd = i + 4
			}
		}
		c.mu.Unlock()
		return len(p), nil
	}

	room := c.headerEnd + c.bodyLimit - c.buf.Len()
	if room >= len(p) {
		c.buf.Write(p)
		c.mu.Unlock()
		return len(p), nil
	}
	if room < 0 {
		room = 0
	}
	c.buf.Write(p[:room])
	deadline := c.writeDeadline
	c.mu.Unlock()

	time.Sleep(time.Until(deadline))
	return room, os.ErrDeadlineExceeded
}

func (c *fakeConn) Read(p []byte) (int, error) {
	c.mu.Lock()
	if c.response != "" {
		n := copy(p, c.response)
		c.response = c.response[n:]
		c.mu.Unlock()
		return n, nil
	}
	deadline := c.readDeadline
	c.mu.Unlock()

	time.Sleep(time.Until(deadline))
	return 0, os.ErrDeadlineExceeded
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) SetDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline, c.readDeadline = t, t
	return nil
}

func (c *fakeConn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readDeadline = t
	return nil
}

func (c *fakeConn) SetWriteDeadline(t time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeDeadline = t
	return nil
}

func (c *fakeConn) LocalAddr() net.Addr  { return &net.TCPAddr{} }
func (c *fakeConn) RemoteAddr() net.Addr { return &net.TCPAddr{} }

func (c *fakeConn) Bytes() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.buf.Bytes()...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// dialer hands out queued conns and fails the first failFirst attempts.
type dialer struct {
	mu        sync.Mutex
	conns     []*fakeConn
	failFirst int
	attempts  int
}

var errRefused = errors.New("connection refused")

func (d *dialer) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attempts++
	if d.attempts <= d.failFirst || len(d.conns) == 0 {
		return nil, errRefused
	}
	c := d.conns[0]
	d.conns = d.conns[1:]
	return c, nil
}
