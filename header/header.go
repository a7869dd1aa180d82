package header

import (
	"fmt"
	"strings"

	"braces.dev/errtrace"
)

// Level returns the canonical ordering bucket for name, mirroring
// HeaderOrderMapping in protocol.py: 0=To-Path, 1=From-Path, 2=misc,
// 3=Content-ID/Content-Description/Content-Disposition plus any other
// unrecognized "Content-*" header, 4=Content-Type. Any other unknown header
// defaults to level 2.
func Level(name string) int {
	switch name {
	case ToPath:
		return 0
	case FromPath:
		return 1
	case ContentID, ContentDescription, ContentDispositionName:
		return 3
	case ContentType:
		return 4
	}
	if strings.HasPrefix(name, "Content-") {
		return 3
	}
	return 2
}

// Header is a single MSRP header with lazily-cached encoded and decoded
// forms, mirroring the MSRPHeader property pair in protocol.py: mutating
// either form invalidates the other until it is recomputed on next access.
type Header struct {
	Name string

	grammar Grammar

	encoded      string
	encodedValid bool

	decoded      any
	decodedValid bool
}

// NewFromEncoded builds a Header from its raw wire value.
func NewFromEncoded(name, encoded string) *Header {
	return &Header{
		Name:         name,
		grammar:      GrammarFor(name),
		encoded:      encoded,
		encodedValid: true,
	}
}

// NewFromDecoded builds a Header from an already-decoded value.
func NewFromDecoded(name string, decoded any) *Header {
	return &Header{
		Name:         name,
		grammar:      GrammarFor(name),
		decoded:      decoded,
		decodedValid: true,
	}
}

// Encoded returns the header's wire-format value, encoding the decoded form
// on first access if the header was constructed from a decoded value.
func (h *Header) Encoded() (string, error) {
	if h.encodedValid {
		return h.encoded, nil
	}
	enc, err := h.grammar.Encode(h.decoded)
	if err != nil {
		return "", errtrace.Wrap(fmt.Errorf("%s header: %w", h.Name, err))
	}
	h.encoded = enc
	h.encodedValid = true
	return h.encoded, nil
}

// Decoded returns the header's parsed value, decoding the wire form on first
// access if the header was constructed from raw text.
func (h *Header) Decoded() (any, error) {
	if h.decodedValid {
		return h.decoded, nil
	}
	dec, err := h.grammar.Decode(h.encoded)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%s header: %w", h.Name, err))
	}
	h.decoded = dec
	h.decodedValid = true
	return h.decoded, nil
}

// SetDecoded replaces the decoded value, invalidating any cached encoded
// form. The value is checked against the grammar's declared type immediately
// — a mismatch fails here, not on some later Encoded call — by running it
// through the grammar's own encoder, the one place that knows the type.
func (h *Header) SetDecoded(decoded any) error {
	if _, err := h.grammar.Encode(decoded); err != nil {
		return errtrace.Wrap(fmt.Errorf("%s header: %w", h.Name, err))
	}
	h.decoded = decoded
	h.decodedValid = true
	h.encodedValid = false
	return nil
}

// SetEncoded replaces the raw wire value, invalidating any cached decoded
// form.
func (h *Header) SetEncoded(encoded string) {
	h.encoded = encoded
	h.encodedValid = true
	h.decodedValid = false
}

// Clone returns a copy of h whose setters do not affect h. A decoded value
// of slice or pointer type is shared with h, not copied.
func (h *Header) Clone() *Header {
	c := *h
	return &c
}
