package stomp

import (
	"bytes"
	"io"
	"strconv"
)

// Frame commands understood by the 1.0 decoder.
const (
	CommandAbort       = "ABORT"
	CommandAck         = "ACK"
	CommandBegin       = "BEGIN"
	CommandCommit      = "COMMIT"
	CommandConnect     = "CONNECT"
	CommandConnected   = "CONNECTED"
	CommandDisconnect  = "DISCONNECT"
	CommandError       = "ERROR"
	CommandMessage     = "MESSAGE"
	CommandReceipt     = "RECEIPT"
	CommandSend        = "SEND"
	CommandStomp       = "STOMP"
	CommandSubscribe   = "SUBSCRIBE"
	CommandUnsubscribe = "UNSUBSCRIBE"
)

// Well-known header names.
const (
	HeaderContentLength = "content-length"
	HeaderContentType   = "content-type"
	HeaderDestination   = "destination"
	HeaderReceipt       = "receipt"
	HeaderReceiptID     = "receipt-id"
)

// Frame is a single decoded wire message.
type Frame struct {
	Command string
	Headers map[string]string
	Body    []byte
}

// NewFrame creates a frame with an empty header map and no body.
func NewFrame(command string) *Frame {
	return &Frame{
		Command: command,
		Headers: make(map[string]string),
	}
}

// Header returns the named header value, empty when absent.
func (f *Frame) Header(name string) string {
	return f.Headers[name]
}

// SetHeader sets a header value and returns the frame for chaining.
func (f *Frame) SetHeader(name, value string) *Frame {
	f.Headers[name] = value
	return f
}

// Destination returns the destination header, empty when absent.
func (f *Frame) Destination() string {
	return f.Headers[HeaderDestination]
}

// Encode renders the frame in wire format: the command line, one line per
// header, a blank line, the body, and the terminating NUL. A content-length
// header is added for non-empty bodies so bodies containing NUL bytes
// survive a round trip.
func (f *Frame) Encode() []byte {
	var buf bytes.Buffer
	_ = f.EncodeTo(&buf)
	return buf.Bytes()
}

// EncodeTo writes the wire format of the frame to w.
func (f *Frame) EncodeTo(w io.Writer) error {
	var buf bytes.Buffer
	buf.WriteString(f.Command)
	buf.WriteByte('\n')

	_, hasLength := f.Headers[HeaderContentLength]
	for name, value := range f.Headers {
		buf.WriteString(name)
		buf.WriteByte(':')
		buf.WriteString(value)
		buf.WriteByte('\n')
	}
	if !hasLength && len(f.Body) > 0 {
		buf.WriteString(HeaderContentLength)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(len(f.Body)))
		buf.WriteByte('\n')
	}

	buf.WriteByte('\n')
	buf.Write(f.Body)
	buf.WriteByte(0)

	_, err := w.Write(buf.Bytes())
	return err
}
