package broker

import (
	"errors"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/c360/brokerkit/metric"
	"github.com/c360/brokerkit/pkg/buffer"
	"github.com/c360/brokerkit/stomp"
)

// outboundQueueSize bounds frames waiting to be written to one client.
const outboundQueueSize = 256

// transport abstracts the byte stream under a connection: plain TCP or a
// WebSocket carrying binary messages.
type transport interface {
	// ReadChunk returns the next chunk of bytes off the wire.
	ReadChunk() ([]byte, error)

	// WriteBytes writes an encoded frame to the wire.
	WriteBytes(data []byte) error

	// Close tears the underlying connection down.
	Close() error

	// RemoteAddr describes the peer for logging.
	RemoteAddr() string
}

// tcpTransport reads raw chunks from a net.Conn.
type tcpTransport struct {
	conn net.Conn
	buf  [4096]byte
}

func (t *tcpTransport) ReadChunk() ([]byte, error) {
	n, err := t.conn.Read(t.buf[:])
	if err != nil {
		return nil, err
	}
	return t.buf[:n], nil
}

func (t *tcpTransport) WriteBytes(data []byte) error {
	_, err := t.conn.Write(data)
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// wsTransport treats each binary WebSocket message as one chunk.
type wsTransport struct {
	conn *websocket.Conn
}

func (t *wsTransport) ReadChunk() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return data, nil
}

func (t *wsTransport) WriteBytes(data []byte) error {
	return t.conn.WriteMessage(websocket.BinaryMessage, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// Connection is one client connection: a decoder fed from the transport and
// a writer goroutine draining the outbound queue.
type Connection struct {
	id        string
	transport transport
	decoder   *stomp.Decoder
	outbound  buffer.Buffer[[]byte]
	handler   FrameHandler
	logger    *slog.Logger
	metrics   *metric.Metrics

	closeOnce sync.Once
	closed    chan struct{}
	onClose   func(*Connection)
}

func newConnection(t transport, handler FrameHandler, logger *slog.Logger, metrics *metric.Metrics, onClose func(*Connection)) *Connection {
	id := uuid.NewString()
	return &Connection{
		id:        id,
		transport: t,
		decoder:   stomp.NewDecoder(),
		outbound:  buffer.NewBounded[[]byte](outboundQueueSize),
		handler:   handler,
		logger:    logger.With("connection", id, "remote", t.RemoteAddr()),
		metrics:   metrics,
		closed:    make(chan struct{}),
		onClose:   onClose,
	}
}

// ID returns the connection identifier.
func (c *Connection) ID() string {
	return c.id
}

// SendFrame queues a frame for delivery to the client.
func (c *Connection) SendFrame(frame *stomp.Frame) error {
	if c.metrics != nil {
		c.metrics.FramesSent.WithLabelValues(frame.Command).Inc()
	}
	return c.outbound.Write(frame.Encode())
}

// Close tears the connection down once; subsequent calls are no-ops.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.outbound.Close()
		_ = c.transport.Close()
		if c.onClose != nil {
			c.onClose(c)
		}
	})
}

// serve runs the reader and writer loops until the connection dies.
func (c *Connection) serve() {
	go c.writeLoop()
	c.readLoop()
}

func (c *Connection) readLoop() {
	defer c.Close()

	for {
		chunk, err := c.transport.ReadChunk()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.logger.Debug("connection read ended", "error", err)
			}
			return
		}

		for {
			frame, err := c.decoder.Decode(chunk)
			if err != nil {
				c.failDecode(err)
				return
			}
			if frame == nil {
				break
			}

			if c.metrics != nil {
				c.metrics.FramesDecoded.WithLabelValues(frame.Command).Inc()
			}
			if err := c.handler.OnFrame(c, frame); err != nil {
				c.logger.Warn("frame handling failed", "command", frame.Command, "error", err)
				c.sendErrorDirect(err.Error())
				return
			}

			// Drain further frames already buffered in the decoder
			chunk = nil
			if !c.decoder.HasBytes() {
				break
			}
		}
	}
}

// failDecode answers a framing violation with an ERROR frame and closes.
func (c *Connection) failDecode(err error) {
	var serr *stomp.Error
	code := "unknown"
	if errors.As(err, &serr) {
		code = serr.Code.String()
	}
	if c.metrics != nil {
		c.metrics.DecodeErrors.WithLabelValues(code).Inc()
	}
	c.logger.Warn("frame decode failed", "error", err)
	c.sendErrorDirect(err.Error())
	c.Close()
}

// sendErrorDirect bypasses the outbound queue so the terminal ERROR frame
// reaches the wire before the connection is torn down.
func (c *Connection) sendErrorDirect(message string) {
	frame := stomp.NewFrame(stomp.CommandError).SetHeader("message", message)
	if c.metrics != nil {
		c.metrics.FramesSent.WithLabelValues(frame.Command).Inc()
	}
	if err := c.transport.WriteBytes(frame.Encode()); err != nil {
		c.logger.Debug("could not deliver error frame", "error", err)
	}
}

func (c *Connection) writeLoop() {
	for {
		data, ok := c.outbound.ReadBlocking()
		if !ok {
			return
		}
		if err := c.transport.WriteBytes(data); err != nil {
			c.logger.Debug("connection write ended", "error", err)
			c.Close()
			return
		}
	}
}
