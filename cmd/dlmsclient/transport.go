package main

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/dlms-go/dlmscosem/base"
	"go.uber.org/zap"
)

// tcpStream is a minimal base.Stream over a plain TCP socket. Each Read
// returns whatever one read of the socket yields; no message framing is
// added or removed, and io.EOF is only reported when the peer closes the
// connection. Real deployments plug in whatever transport their meter needs
// (TCP, serial HDLC, M-Bus); this is the stand-in that lets this CLI
// exercise the session against a DLMS/COSEM TCP gateway.
type tcpStream struct {
	host, port string
	timeout    time.Duration
	logger     *zap.SugaredLogger

	conn     net.Conn
	deadline time.Time
	maxBytes int64
	rx, tx   int64
}

func newTCPStream(host string, port int, timeout time.Duration) *tcpStream {
	return &tcpStream{host: host, port: strconv.Itoa(port), timeout: timeout}
}

func (t *tcpStream) Open() error {
	if t.conn != nil {
		return nil
	}
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(t.host, t.port), t.timeout)
	if err != nil {
		return fmt.Errorf("dlmsclient: dial %s:%s: %w", t.host, t.port, err)
	}
	t.conn = conn
	return nil
}

func (t *tcpStream) Disconnect() error {
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *tcpStream) Close() error {
	return t.Disconnect()
}

func (t *tcpStream) SetLogger(logger *zap.SugaredLogger) {
	t.logger = logger
}

func (t *tcpStream) SetDeadline(d time.Time) {
	t.deadline = d
	if t.conn != nil {
		_ = t.conn.SetDeadline(d)
	}
}

func (t *tcpStream) SetTimeout(d time.Duration) {
	t.timeout = d
}

func (t *tcpStream) SetMaxReceivedBytes(m int64) {
	t.maxBytes = m
	t.rx = 0
}

func (t *tcpStream) GetRxTxBytes() (int64, int64) {
	return t.rx, t.tx
}

func (t *tcpStream) Read(p []byte) (int, error) {
	if t.conn == nil {
		return 0, base.ErrNotOpened
	}
	if len(p) == 0 {
		return 0, base.ErrNothingToRead
	}
	n, err := t.conn.Read(p)
	t.rx += int64(n)
	if errors.Is(err, os.ErrDeadlineExceeded) {
		err = base.ErrCommunicationTimeout
	}
	if t.maxBytes > 0 && t.rx > t.maxBytes {
		return n, fmt.Errorf("dlmsclient: received %d bytes, exceeds limit %d", t.rx, t.maxBytes)
	}
	return n, err
}

func (t *tcpStream) Write(p []byte) error {
	if t.conn == nil {
		return base.ErrNotOpened
	}
	n, err := t.conn.Write(p)
	t.tx += int64(n)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return base.ErrCommunicationTimeout
		}
		return err
	}
	if n != len(p) {
		return fmt.Errorf("dlmsclient: short write (%d of %d bytes)", n, len(p))
	}
	return nil
}

var _ base.Stream = (*tcpStream)(nil)
