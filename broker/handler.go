package broker

import (
	"log/slog"

	"github.com/c360/brokerkit/journal"
	"github.com/c360/brokerkit/settings"
	"github.com/c360/brokerkit/stomp"
)

// FrameHandler receives every decoded frame. Returning an error answers the
// client with an ERROR frame and closes the connection.
type FrameHandler interface {
	OnFrame(conn *Connection, frame *stomp.Frame) error
}

// CoreHandler implements the minimal broker-side frame protocol: it answers
// connection handshakes, resolves per-address settings for SEND frames, and
// appends every SEND frame to the journal when a journal file is configured. Everything session-shaped is left
// to a higher layer replacing this handler.
type CoreHandler struct {
	settings settings.Repository[*settings.AddressSettings]
	journal  journal.SequentialFile
	logger   *slog.Logger
}

// NewCoreHandler creates the default frame handler. journalFile may be nil
// when persistence is disabled.
func NewCoreHandler(repo settings.Repository[*settings.AddressSettings], journalFile journal.SequentialFile, logger *slog.Logger) *CoreHandler {
	return &CoreHandler{
		settings: repo,
		journal:  journalFile,
		logger:   logger.With("component", "handler"),
	}
}

// OnFrame dispatches one decoded frame.
func (h *CoreHandler) OnFrame(conn *Connection, frame *stomp.Frame) error {
	switch frame.Command {
	case stomp.CommandConnect, stomp.CommandStomp:
		connected := stomp.NewFrame(stomp.CommandConnected).
			SetHeader("session", conn.ID())
		return conn.SendFrame(connected)

	case stomp.CommandDisconnect:
		err := h.acknowledge(conn, frame)
		conn.Close()
		return err

	case stomp.CommandSend:
		return h.handleSend(conn, frame)

	default:
		return h.acknowledge(conn, frame)
	}
}

// handleSend resolves the destination's settings and persists the frame.
func (h *CoreHandler) handleSend(conn *Connection, frame *stomp.Frame) error {
	destination := frame.Destination()
	resolved := h.settings.Match(destination)

	h.logger.Debug("send received",
		"destination", destination,
		"body_bytes", len(frame.Body),
		"full_policy", resolved.GetFullPolicy().String())

	if h.journal != nil {
		callback := journal.NewWaitCallback()
		if err := h.journal.Write(frame.Encode(), false, callback); err != nil {
			return err
		}
		if err := callback.Wait(); err != nil {
			return err
		}
	}

	return h.acknowledge(conn, frame)
}

// acknowledge answers a RECEIPT when the client asked for one.
func (h *CoreHandler) acknowledge(conn *Connection, frame *stomp.Frame) error {
	receipt := frame.Header(stomp.HeaderReceipt)
	if receipt == "" {
		return nil
	}
	return conn.SendFrame(stomp.NewFrame(stomp.CommandReceipt).
		SetHeader(stomp.HeaderReceiptID, receipt))
}
