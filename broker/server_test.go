package broker

import (
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/brokerkit/config"
	"github.com/c360/brokerkit/settings"
	"github.com/c360/brokerkit/stomp"
)

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := config.Default()
	cfg.Acceptors = []config.AcceptorConfig{
		{Name: "test", Type: config.AcceptorTCP, Address: "127.0.0.1:0"},
	}

	repo := settings.NewAddressSettingsRepository()
	handler := NewCoreHandler(repo, nil, slog.Default())
	server := NewServer(cfg, handler, slog.Default(), nil)

	require.NoError(t, server.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, server.Stop())
	})

	addrs := server.Addrs()
	require.Len(t, addrs, 1)
	return server, addrs[0]
}

func readFrame(t *testing.T, conn net.Conn) *stomp.Frame {
	t.Helper()

	decoder := stomp.NewDecoder()
	buf := make([]byte, 4096)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		n, err := conn.Read(buf)
		require.NoError(t, err)
		frame, err := decoder.Decode(buf[:n])
		require.NoError(t, err)
		if frame != nil {
			return frame
		}
	}
}

func TestConnectHandshake(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(stomp.NewFrame(stomp.CommandConnect).
		SetHeader("login", "guest").Encode())
	require.NoError(t, err)

	frame := readFrame(t, conn)
	assert.Equal(t, stomp.CommandConnected, frame.Command)
	assert.NotEmpty(t, frame.Header("session"))
}

func TestSendWithReceipt(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write(stomp.NewFrame(stomp.CommandConnect).Encode())
	require.NoError(t, err)
	require.Equal(t, stomp.CommandConnected, readFrame(t, conn).Command)

	send := stomp.NewFrame(stomp.CommandSend).
		SetHeader(stomp.HeaderDestination, "orders.created").
		SetHeader(stomp.HeaderReceipt, "r-1")
	send.Body = []byte("payload")
	_, err = conn.Write(send.Encode())
	require.NoError(t, err)

	receipt := readFrame(t, conn)
	assert.Equal(t, stomp.CommandReceipt, receipt.Command)
	assert.Equal(t, "r-1", receipt.Header(stomp.HeaderReceiptID))
}

func TestMalformedFrameAnswersError(t *testing.T) {
	_, addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("GARBAGE\n\n\x00"))
	require.NoError(t, err)

	frame := readFrame(t, conn)
	assert.Equal(t, stomp.CommandError, frame.Command)
}

func TestConnectionCountTracksLifecycle(t *testing.T) {
	server, addr := startTestServer(t)

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)

	_, err = conn.Write(stomp.NewFrame(stomp.CommandConnect).Encode())
	require.NoError(t, err)
	readFrame(t, conn)
	assert.Equal(t, 1, server.ConnectionCount())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool {
		return server.ConnectionCount() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestStopIdempotent(t *testing.T) {
	cfg := config.Default()
	cfg.Acceptors = []config.AcceptorConfig{
		{Name: "test", Type: config.AcceptorTCP, Address: "127.0.0.1:0"},
	}
	server := NewServer(cfg, NewCoreHandler(settings.NewAddressSettingsRepository(), nil, slog.Default()), slog.Default(), nil)

	require.NoError(t, server.Start(context.Background()))
	require.NoError(t, server.Start(context.Background()), "double start is a no-op")
	require.NoError(t, server.Stop())
	require.NoError(t, server.Stop(), "double stop is a no-op")
}
