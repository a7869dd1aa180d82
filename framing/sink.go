// Package framing implements the MSRP chunk framer (RFC 4975 §7.3): the
// byte-stream state machine that recognizes chunk boundaries on a
// connection and hands parsed pieces to a Sink as they arrive.
package framing

import "github.com/gomsrp/msrp/message"

// FirstLine is the parsed request/response line of a chunk, before its
// headers are known.
type FirstLine struct {
	TransactionID string
	Method        string // empty for responses
	Code          int    // zero for requests
	Comment       string
}

// Sink receives framing events as a Framer recognizes them on a byte
// stream. Calls are made synchronously from within Framer.Feed, in the
// order chunks and their pieces appear on the wire.
type Sink interface {
	// ChunkStarted is called once a chunk's first line and full header
	// block have been parsed.
	ChunkStarted(first FirstLine, headers *message.Headers) error

	// BodyData delivers a slice of chunk body as it arrives; data is never
	// empty. final is true when the end-line arrived together with these
	// bytes. A bodyless chunk produces no BodyData calls, and when the
	// end-line arrives on its own the body completes without a final call
	// — ChunkEnded is the authoritative completion signal either way.
	BodyData(data []byte, final bool) error

	// ChunkEnded is called once the end-line and its continuation flag
	// have been recognized.
	ChunkEnded(cont message.ContFlag) error

	// IllegalData is called when the stream violates chunk framing (an
	// oversized header line, too many header lines, a malformed first
	// line, or a bad continuation flag after the end-line). The framer discards its state and resumes scanning after the
	// offending data.
	IllegalData(data []byte, reason error) error

	// ConnectionLost is called once, when the underlying connection ends
	// with err (nil for a clean close).
	ConnectionLost(err error)
}
