// Package message implements the MSRP chunk model (RFC 4975 §7): header
// containers in canonical wire order and the Message type that ties a
// request/response first line, headers and body together.
package message

import (
	"slices"

	"github.com/gomsrp/msrp/header"
)

// Headers is an ordered multimap of header name to Header values, emitted on
// the wire in the canonical level order from header.Level — mirroring
// HeaderOrdering in protocol.py, which keeps To-Path first, From-Path
// second, Content-Type last, and everything else in between.
type Headers struct {
	names []string
	vals  map[string][]*header.Header

	// version increments on every Add/Set/Del, letting Message memoize its
	// serialized header block and know when to invalidate it (spec's
	// "modified flag" caching rule) without a separate dirty bit.
	version int
}

// NewHeaders returns an empty header container.
func NewHeaders() *Headers {
	return &Headers{vals: make(map[string][]*header.Header)}
}

// Add appends h under its own name, preserving insertion order among
// same-named headers.
func (hs *Headers) Add(h *header.Header) {
	if _, ok := hs.vals[h.Name]; !ok {
		hs.names = append(hs.names, h.Name)
	}
	hs.vals[h.Name] = append(hs.vals[h.Name], h)
	hs.version++
}

// Set replaces all headers named h.Name with h alone.
func (hs *Headers) Set(h *header.Header) {
	if _, ok := hs.vals[h.Name]; !ok {
		hs.names = append(hs.names, h.Name)
	}
	hs.vals[h.Name] = []*header.Header{h}
	hs.version++
}

// Get returns the first header named name, if any.
func (hs *Headers) Get(name string) (*header.Header, bool) {
	v := hs.vals[name]
	if len(v) == 0 {
		return nil, false
	}
	return v[0], true
}

// All returns every header named name, in insertion order.
func (hs *Headers) All(name string) []*header.Header {
	return hs.vals[name]
}

// Has reports whether any header named name is present.
func (hs *Headers) Has(name string) bool {
	return len(hs.vals[name]) > 0
}

// Del removes every header named name.
func (hs *Headers) Del(name string) {
	if _, ok := hs.vals[name]; !ok {
		return
	}
	delete(hs.vals, name)
	hs.names = slices.DeleteFunc(hs.names, func(n string) bool { return n == name })
	hs.version++
}

// Version returns a counter that increments on every Add/Set/Del, so a
// caller can detect whether a previously-observed serialization is stale.
func (hs *Headers) Version() int { return hs.version }

// Names returns the distinct header names in canonical wire order.
func (hs *Headers) Names() []string {
	out := slices.Clone(hs.names)
	slices.SortStableFunc(out, func(a, b string) int {
		return header.Level(a) - header.Level(b)
	})
	return out
}

// Len returns the number of distinct header names.
func (hs *Headers) Len() int { return len(hs.names) }

// Clone returns a deep copy of hs.
func (hs *Headers) Clone() *Headers {
	c := NewHeaders()
	for _, name := range hs.names {
		c.names = append(c.names, name)
		hdrs := make([]*header.Header, len(hs.vals[name]))
		for i, h := range hs.vals[name] {
			hdrs[i] = h.Clone()
		}
		c.vals[name] = hdrs
	}
	return c
}
