package stomp

import (
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeAll(t *testing.T, d *Decoder, input []byte, chunkSize int) []*Frame {
	t.Helper()
	var frames []*Frame
	for start := 0; start < len(input); start += chunkSize {
		end := start + chunkSize
		if end > len(input) {
			end = len(input)
		}
		chunk := input[start:end]
		for {
			frame, err := d.Decode(chunk)
			require.NoError(t, err)
			if frame == nil {
				break
			}
			frames = append(frames, frame)
			// Drain any further frames already buffered
			chunk = nil
		}
	}
	return frames
}

func TestDecodeConnectFrame(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("CONNECT\nlogin:guest\npasscode:pw\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)

	assert.Equal(t, CommandConnect, frame.Command)
	assert.Equal(t, map[string]string{"login": "guest", "passcode": "pw"}, frame.Headers)
	assert.Empty(t, frame.Body)
}

func TestDecodeSendWithContentLength(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("SEND\ndestination:q\ncontent-length:5\n\nhello\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)

	assert.Equal(t, CommandSend, frame.Command)
	assert.Equal(t, "q", frame.Header(HeaderDestination))
	assert.Equal(t, "5", frame.Header(HeaderContentLength))
	assert.Equal(t, []byte("hello"), frame.Body)
}

func TestDecodeBodyTerminatedByFirstNul(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("SEND\ndestination:q\n\nhel\x00lo\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)

	assert.Equal(t, CommandSend, frame.Command)
	assert.Equal(t, []byte("hel"), frame.Body)

	// The remainder stays buffered for the next frame-start attempt,
	// which fails once enough bytes are present to dispatch.
	assert.True(t, d.HasBytes())
	_, err = d.Decode([]byte("X\n"))
	require.Error(t, err)
	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidCommand, serr.Code)
}

func TestDecodeFragmentedCommand(t *testing.T) {
	d := NewDecoder()

	frame, err := d.Decode([]byte("CONN"))
	require.NoError(t, err)
	assert.Nil(t, frame, "partial command is incomplete")

	frame, err = d.Decode([]byte("ECT\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, CommandConnect, frame.Command)
	assert.Empty(t, frame.Headers)
	assert.Empty(t, frame.Body)
}

func TestDecodeLeadingCRLFRejectedWithVersionSignal(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode([]byte("\r\nCONNECT\n\n\x00"))
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidEOLv10, serr.Code)
	assert.Equal(t, byte('\r'), serr.Byte)
}

func TestDecodeCommandCRLFRejectedWithVersionSignal(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode([]byte("CONNECT\r\n\n\x00"))
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidEOLv10, serr.Code)
	assert.Equal(t, byte('\r'), serr.Byte)
}

func TestDecodeTwoCarriageReturns(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode([]byte("\r\rCONNECT\n\n\x00"))
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeTwoCarriageReturns, serr.Code)
}

func TestDecodeBadCarriageReturn(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode([]byte("\rCONNECT\n\n\x00"))
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeBadCarriageReturns, serr.Code)
}

func TestDecodeLeadingNewLinesConsumed(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("\n\n\nCONNECT\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, CommandConnect, frame.Command)
}

func TestDecodeInvalidCommand(t *testing.T) {
	d := NewDecoder()
	_, err := d.Decode([]byte("WHAT\n\n\x00"))
	require.Error(t, err)

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, CodeInvalidCommand, serr.Code)
}

func TestDecodeAllCommands(t *testing.T) {
	commands := []string{
		CommandAbort, CommandAck, CommandBegin, CommandCommit,
		CommandConnect, CommandConnected, CommandDisconnect, CommandError,
		CommandMessage, CommandReceipt, CommandSend, CommandStomp,
		CommandSubscribe, CommandUnsubscribe,
	}

	for _, command := range commands {
		t.Run(command, func(t *testing.T) {
			d := NewDecoder()
			frame, err := d.Decode([]byte(command + "\n\n\x00"))
			require.NoError(t, err)
			require.NotNil(t, frame)
			assert.Equal(t, command, frame.Command)
		})
	}
}

func TestDecodeHeaderValueWhitespaceTrimmed(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("SEND\ndestination: \t  queue.a\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "queue.a", frame.Header(HeaderDestination))
}

func TestDecodeContentLengthBodyMayContainNul(t *testing.T) {
	d := NewDecoder()
	frame, err := d.Decode([]byte("SEND\ncontent-length:5\n\nhe\x00lo\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, []byte("he\x00lo"), frame.Body)
}

func TestDecodeBadContentLength(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"non-numeric", "five"},
		{"negative", "-5"},
		{"negative sentinel", "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder()
			_, err := d.Decode([]byte("SEND\ncontent-length:" + tt.value + "\n\nhello\x00"))
			require.Error(t, err)

			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, CodeInvalidHeader, serr.Code)
		})
	}
}

func TestDecodeArbitraryChunking(t *testing.T) {
	input := []byte("CONNECT\nlogin:guest\n\n\x00" +
		"SEND\ndestination:orders.created\ncontent-length:6\n\nabc\x00de\x00" +
		"DISCONNECT\n\n\x00")

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 16, len(input)} {
		d := NewDecoder()
		frames := decodeAll(t, d, input, chunkSize)
		require.Len(t, frames, 3, "chunk size %d", chunkSize)

		assert.Equal(t, CommandConnect, frames[0].Command)
		assert.Equal(t, CommandSend, frames[1].Command)
		assert.Equal(t, []byte("abc\x00de"), frames[1].Body)
		assert.Equal(t, CommandDisconnect, frames[2].Command)
	}
}

func TestDecodeStatePreservedMidHeaders(t *testing.T) {
	d := NewDecoder()

	frame, err := d.Decode([]byte("SEND\ndestination: "))
	require.NoError(t, err)
	assert.Nil(t, frame)
	assert.True(t, d.parsingHeaders())
	assert.True(t, d.trimmingValueWhitespace())

	frame, err = d.Decode([]byte("q\nreceipt:r1\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, "q", frame.Header(HeaderDestination))
	assert.Equal(t, "r1", frame.Header(HeaderReceipt))
	assert.False(t, d.parsingHeaders())
}

func TestDecodeLargeFrameGrowsBuffer(t *testing.T) {
	body := make([]byte, 64*1024)
	for i := range body {
		body[i] = byte('a' + i%26)
	}
	frame := NewFrame(CommandSend).SetHeader(HeaderDestination, "big")
	frame.Body = body

	d := NewDecoder()
	decoded := decodeAll(t, d, frame.Encode(), 4096)
	require.Len(t, decoded, 1)
	assert.Equal(t, body, decoded[0].Body)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := NewFrame(CommandSend).
		SetHeader(HeaderDestination, "orders.europe.created").
		SetHeader("custom", "value")
	original.Body = []byte("payload with \x00 embedded")

	for _, chunkSize := range []int{1, 3, 9, 1024} {
		d := NewDecoder()
		frames := decodeAll(t, d, original.Encode(), chunkSize)
		require.Len(t, frames, 1, "chunk size %d", chunkSize)

		decoded := frames[0]
		assert.Equal(t, original.Command, decoded.Command)
		assert.Equal(t, original.Body, decoded.Body)
		// The encoder adds content-length; everything else matches
		assert.Equal(t, original.Headers[HeaderDestination], decoded.Header(HeaderDestination))
		assert.Equal(t, original.Headers["custom"], decoded.Header("custom"))
		assert.Equal(t, strconv.Itoa(len(original.Body)), decoded.Header(HeaderContentLength))
	}
}

func TestDecodeSequentialFramesShareBuffer(t *testing.T) {
	d := NewDecoder()

	first, err := d.Decode([]byte("BEGIN\ntransaction:tx1\n\n\x00ACK\nmessage-id:m1\n\n\x00"))
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, CommandBegin, first.Command)

	// The second frame is already buffered
	second, err := d.Decode(nil)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, CommandAck, second.Command)
	assert.Equal(t, "m1", second.Header("message-id"))
	assert.False(t, d.HasBytes())
}

func TestFrameEncodeStable(t *testing.T) {
	frame := NewFrame(CommandReceipt).SetHeader(HeaderReceiptID, "42")

	d := NewDecoder()
	decoded, err := d.Decode(frame.Encode())
	require.NoError(t, err)
	require.NotNil(t, decoded)

	if diff := cmp.Diff(frame.Headers, decoded.Headers); diff != "" {
		t.Errorf("headers mismatch (-want +got):\n%s", diff)
	}
}
