package message

import (
	"bytes"
	"fmt"
	"log/slog"

	"braces.dev/errtrace"

	"github.com/gomsrp/msrp/header"
	"github.com/gomsrp/msrp/internal/errorutil"
	"github.com/gomsrp/msrp/uri"
)

// ContFlag is the single-byte continuation flag terminating a chunk's
// end-line: '$' the message is complete, '#' it was aborted, '+' more
// chunks follow for the same message.
type ContFlag byte

const (
	ContComplete ContFlag = '$'
	ContAborted  ContFlag = '#'
	ContMore     ContFlag = '+'
)

// ErrInvalid is returned (wrapped) when a Message fails validation.
const ErrInvalid errorutil.Error = "message: invalid"

// ErrMissingHeader is returned (wrapped) by VerifyHeaders when a required
// header is absent.
const ErrMissingHeader errorutil.Error = "message: missing required header"

// Message is a single MSRP chunk (RFC 4975 §7): either a request (Method
// set) or a response (Code set, Comment optional), carrying ordered headers
// and an optional body fragment.
type Message struct {
	TransactionID string

	// Exactly one of Method or Code must be set; Comment is only valid
	// alongside Code.
	Method  string
	Code    int
	Comment string

	Headers *Headers
	Body    []byte
	Cont    ContFlag

	// cachedBlock memoizes the encoded "first-line + headers" block,
	// invalidated whenever Headers.Version() or TransactionID no longer
	// matches the values it was built from.
	cachedBlock   []byte
	cachedVersion int
	cachedTID     string
	cachedValid   bool
}

// New constructs a chunk from its first-line pieces, enforcing the identity
// invariants: exactly one of method and code, and a comment only alongside a
// code.
func New(transactionID, method string, code int, comment string) (*Message, error) {
	switch {
	case method == "" && code == 0:
		return nil, errtrace.Wrap(fmt.Errorf("%w: either method or code must be specified", ErrInvalid))
	case method != "" && code != 0:
		return nil, errtrace.Wrap(fmt.Errorf("%w: method and code cannot be both specified", ErrInvalid))
	case code == 0 && comment != "":
		return nil, errtrace.Wrap(fmt.Errorf("%w: comment is only valid alongside a code", ErrInvalid))
	}
	return &Message{
		TransactionID: transactionID,
		Method:        method,
		Code:          code,
		Comment:       comment,
		Headers:       NewHeaders(),
		Cont:          ContComplete,
	}, nil
}

// NewRequest constructs a request chunk.
func NewRequest(transactionID, method string) *Message {
	return &Message{
		TransactionID: transactionID,
		Method:        method,
		Headers:       NewHeaders(),
		Cont:          ContComplete,
	}
}

// NewResponse constructs a response chunk.
func NewResponse(transactionID string, code int, comment string) *Message {
	return &Message{
		TransactionID: transactionID,
		Code:          code,
		Comment:       comment,
		Headers:       NewHeaders(),
		Cont:          ContComplete,
	}
}

// IsRequest reports whether m is a request chunk.
func (m *Message) IsRequest() bool { return m.Method != "" }

// AddHeader appends a header built from its decoded value; the wire form is
// computed on demand via name's registered grammar.
func (m *Message) AddHeader(name string, value any) {
	m.Headers.Add(header.NewFromDecoded(name, value))
}

// ToPath returns the decoded To-Path header, or nil if absent.
func (m *Message) ToPath() ([]*uri.URI, error) { return m.uriListHeader(header.ToPath) }

// FromPath returns the decoded From-Path header, or nil if absent.
func (m *Message) FromPath() ([]*uri.URI, error) { return m.uriListHeader(header.FromPath) }

func (m *Message) uriListHeader(name string) ([]*uri.URI, error) {
	h, ok := m.Headers.Get(name)
	if !ok {
		return nil, nil
	}
	dec, err := h.Decoded()
	if err != nil {
		return nil, errtrace.Wrap(err)
	}
	list, _ := dec.([]*uri.URI)
	return list, nil
}

// VerifyHeaders checks the invariants RFC 4975 places on every chunk: both
// To-Path and From-Path present, and every header value decodable under its
// grammar. Decode errors that would otherwise surface lazily on first access
// surface here instead.
func (m *Message) VerifyHeaders() error {
	for _, required := range []string{header.ToPath, header.FromPath} {
		if !m.Headers.Has(required) {
			return errtrace.Wrap(fmt.Errorf("%w: %s", ErrMissingHeader, required))
		}
	}
	for _, name := range m.Headers.Names() {
		for _, h := range m.Headers.All(name) {
			if _, err := h.Decoded(); err != nil {
				return errtrace.Wrap(fmt.Errorf("%w: %w", ErrInvalid, err))
			}
		}
	}
	return nil
}

// Encode renders m into wire form: first line and headers in canonical
// order, each ending in CRLF; one more CRLF when Content-Type is present,
// delimiting headers from body; the body; and the end-line
// "\r\n-------<tid><flag>\r\n" carrying the continuation flag.
func (m *Message) Encode() ([]byte, error) {
	if (m.Method == "") == (m.Code == 0) {
		return nil, errtrace.Wrap(fmt.Errorf("%w: exactly one of Method or Code must be set", ErrInvalid))
	}
	block, err := m.headerBlock()
	if err != nil {
		return nil, errtrace.Wrap(err)
	}

	var buf bytes.Buffer
	buf.Write(block)
	if m.Headers.Has(header.ContentType) {
		buf.WriteString("\r\n")
	}
	buf.Write(m.Body)
	buf.WriteString("\r\n-------")
	buf.WriteString(m.TransactionID)
	buf.WriteByte(byte(m.Cont))
	buf.WriteString("\r\n")

	return buf.Bytes(), nil
}

// headerBlock returns the encoded first-line-plus-headers block, memoized
// against the header container's version and the current transaction id.
func (m *Message) headerBlock() ([]byte, error) {
	if m.cachedValid && m.cachedVersion == m.Headers.Version() && m.cachedTID == m.TransactionID {
		return m.cachedBlock, nil
	}

	var buf bytes.Buffer
	buf.WriteString("MSRP ")
	buf.WriteString(m.TransactionID)
	buf.WriteByte(' ')
	if m.IsRequest() {
		buf.WriteString(m.Method)
	} else {
		fmt.Fprintf(&buf, "%03d", m.Code)
		if m.Comment != "" {
			buf.WriteByte(' ')
			buf.WriteString(m.Comment)
		}
	}
	buf.WriteString("\r\n")

	for _, name := range m.Headers.Names() {
		for _, h := range m.Headers.All(name) {
			enc, err := h.Encoded()
			if err != nil {
				return nil, errtrace.Wrap(fmt.Errorf("%w: %w", ErrInvalid, err))
			}
			buf.WriteString(name)
			buf.WriteString(": ")
			buf.WriteString(enc)
			buf.WriteString("\r\n")
		}
	}

	m.cachedBlock = buf.Bytes()
	m.cachedVersion = m.Headers.Version()
	m.cachedTID = m.TransactionID
	m.cachedValid = true
	return m.cachedBlock, nil
}

// Size returns the body length in bytes.
func (m *Message) Size() int {
	return len(m.Body)
}

// Copy returns a deep copy of m. The copy starts with no memoized header
// block of its own, since Clone resets the header container's version
// counter.
func (m *Message) Copy() *Message {
	c := *m
	c.Headers = m.Headers.Clone()
	c.Body = append([]byte(nil), m.Body...)
	c.cachedValid = false
	return &c
}

// LogValue renders m for structured logging: transaction id, method/code,
// continuation flag and body size, without forcing header decode or copying
// the body — the Go analogue of MSRPData.__repr__ in the original
// implementation.
func (m *Message) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("tid", m.TransactionID),
		slog.Int("body_size", len(m.Body)),
		slog.String("cont", string(rune(m.Cont))),
	}
	if m.IsRequest() {
		attrs = append(attrs, slog.String("method", m.Method))
	} else {
		attrs = append(attrs, slog.Int("code", m.Code), slog.String("comment", m.Comment))
	}
	return slog.GroupValue(attrs...)
}
