package main

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipeStream(t *testing.T) (*tcpStream, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	t.Cleanup(func() { _ = client.Close(); _ = server.Close() })
	return &tcpStream{host: "test", port: "1", timeout: time.Second, conn: client}, server
}

func TestTcpStream_ReadWriteTracksBytes(t *testing.T) {
	ts, server := pipeStream(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 5)
		n, err := server.Read(buf)
		require.NoError(t, err)
		_, _ = server.Write(buf[:n])
	}()

	require.NoError(t, ts.Write([]byte("hello")))
	buf := make([]byte, 5)
	n, err := ts.Read(buf)
	require.NoError(t, err)
	<-done

	assert.Equal(t, 5, n)
	rx, tx := ts.GetRxTxBytes()
	assert.Equal(t, int64(5), rx)
	assert.Equal(t, int64(5), tx)
}

func TestTcpStream_ReadBeforeOpen(t *testing.T) {
	ts := newTCPStream("host", 1, time.Second)
	_, err := ts.Read(make([]byte, 1))
	require.Error(t, err)
}

func TestTcpStream_WriteBeforeOpen(t *testing.T) {
	ts := newTCPStream("host", 1, time.Second)
	err := ts.Write([]byte("x"))
	require.Error(t, err)
}

func TestTcpStream_MaxReceivedBytesExceeded(t *testing.T) {
	ts, server := pipeStream(t)
	ts.SetMaxReceivedBytes(2)

	go func() { _, _ = server.Write([]byte("hello")) }()

	buf := make([]byte, 5)
	n, err := ts.Read(buf)
	require.Error(t, err)
	assert.True(t, n > 0)
}

func TestTcpStream_DisconnectIdempotent(t *testing.T) {
	ts, _ := pipeStream(t)
	require.NoError(t, ts.Disconnect())
	require.NoError(t, ts.Disconnect())
}

func TestTcpStream_SetDeadlineNoConn(t *testing.T) {
	ts := newTCPStream("host", 1, time.Second)
	ts.SetDeadline(time.Now().Add(time.Second))
}
