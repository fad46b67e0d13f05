// Package stomp implements the version 1.0 wire framing of the STOMP
// messaging protocol: a command line, a block of NAME:VALUE headers, a blank
// line, and a body terminated by a NUL byte.
//
// The central type is Decoder, an incremental parser fed from the transport.
// Each Decode call appends the next chunk of bytes to an internal working
// buffer and either produces one complete Frame, reports that more bytes are
// needed, or fails with a typed *Error. Partial parse state survives across
// calls, so the transport can hand over bytes exactly as they arrive off the
// wire, fragmented arbitrarily.
//
// The decoder understands only the 1.0 end-of-line convention (a bare LF).
// CR LF line endings are legal in later protocol versions; on seeing one the
// decoder fails with CodeInvalidEOLv10 carrying the offending byte, a signal
// that a higher-version decoder could accept the input. The broker package
// has no such decoder: it answers this error, like every other decode
// failure, with an ERROR frame and closes the connection.
package stomp
