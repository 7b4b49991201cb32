package transport_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/transport"
)

func TestTCP_SendAndReceiveLoopback(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverDone := make(chan struct{})
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		_, _ = conn.Write(buf[:n])
	}()

	tr := transport.NewTCP(ln.Addr().String())

	var received []byte
	done := make(chan struct{})
	tr.SetInbound(func(chunk []byte) {
		received = append(received, chunk...)
		close(done)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Open(ctx))
	defer tr.Close()

	require.NoError(t, tr.Send([]byte("AT+CGATT=1\n")))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for echo")
	}

	assert.Equal(t, "AT+CGATT=1\n", string(received))
	<-serverDone
}

func TestTCP_SendBeforeOpenFails(t *testing.T) {
	tr := transport.NewTCP("127.0.0.1:1")
	err := tr.Send([]byte("x"))
	require.Error(t, err)
}

func TestTCP_OpenAssignsSessionID(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
	}()

	tr := transport.NewTCP(ln.Addr().String())
	assert.Empty(t, tr.SessionID())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, tr.Open(ctx))
	defer tr.Close()

	assert.NotEmpty(t, tr.SessionID())
}
