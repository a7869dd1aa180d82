package message_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gomsrp/msrp/header"
	"github.com/gomsrp/msrp/message"
	"github.com/gomsrp/msrp/uri"
)

func mustParseURI(t *testing.T, s string) *uri.URI {
	t.Helper()
	u, err := uri.Parse(s)
	if err != nil {
		t.Fatalf("uri.Parse(%q): %v", s, err)
	}
	return u
}

func fixtureRequest(t *testing.T) *message.Message {
	t.Helper()
	m := message.NewRequest("abc123", "SEND")
	m.AddHeader(header.ToPath, []*uri.URI{mustParseURI(t, "msrp://b.example:2855/sess2;tcp")})
	m.AddHeader(header.FromPath, []*uri.URI{mustParseURI(t, "msrp://a.example:2855/sess1;tcp")})
	m.AddHeader(header.MessageID, "12345")
	m.AddHeader(header.ContentType, "text/plain")
	m.Body = []byte("hello")
	return m
}

func TestEncodeShape(t *testing.T) {
	m := fixtureRequest(t)
	if err := m.VerifyHeaders(); err != nil {
		t.Fatalf("VerifyHeaders: %v", err)
	}
	out, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	s := string(out)
	if !strings.HasPrefix(s, "MSRP abc123 SEND\r\n") {
		t.Errorf("unexpected first line: %q", s)
	}
	if !strings.Contains(s, "To-Path: msrp://b.example:2855/sess2;tcp\r\n") {
		t.Errorf("missing To-Path line: %q", s)
	}
	wantOrder := []string{header.ToPath, header.FromPath, header.MessageID, header.ContentType}
	if diff := cmp.Diff(wantOrder, m.Headers.Names()); diff != "" {
		t.Errorf("canonical header order mismatch (-want +got):\n%s", diff)
	}
	if !strings.HasSuffix(s, "\r\n\r\nhello\r\n-------abc123$\r\n") {
		t.Errorf("unexpected body/end-line framing: %q", s)
	}
}

func TestEncodeBodyless(t *testing.T) {
	m := message.NewRequest("d93kswow", "SEND")
	m.AddHeader(header.ToPath, []*uri.URI{mustParseURI(t, "msrp://b.example:2855/sess2;tcp")})
	m.AddHeader(header.FromPath, []*uri.URI{mustParseURI(t, "msrp://a.example:2855/sess1;tcp")})
	out, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasSuffix(string(out), "sess1;tcp\r\n\r\n-------d93kswow$\r\n") {
		t.Errorf("unexpected bodyless framing: %q", out)
	}
}

func TestVerifyHeadersRequiresToPath(t *testing.T) {
	m := message.NewRequest("abc123", "SEND")
	m.AddHeader(header.FromPath, []*uri.URI{mustParseURI(t, "msrp://a.example:2855/sess1;tcp")})
	err := m.VerifyHeaders()
	if !errors.Is(err, message.ErrMissingHeader) {
		t.Errorf("VerifyHeaders = %v, want wrapping ErrMissingHeader", err)
	}
	if err == nil || !strings.Contains(err.Error(), header.ToPath) {
		t.Errorf("error should name the missing header: %v", err)
	}
}

func TestVerifyHeadersSurfacesLazyParseErrors(t *testing.T) {
	m := message.NewRequest("abc123", "SEND")
	m.Headers.Add(header.NewFromEncoded(header.ToPath, "msrp://b.example:2855/sess2;tcp"))
	m.Headers.Add(header.NewFromEncoded(header.FromPath, "msrp://a.example:2855/sess1;tcp"))
	m.Headers.Add(header.NewFromEncoded(header.ByteRangeName, "garbage"))
	if err := m.VerifyHeaders(); err == nil {
		t.Error("expected VerifyHeaders to surface the Byte-Range parse error")
	}
}

func TestResponseEncode(t *testing.T) {
	m := message.NewResponse("abc123", 200, "OK")
	m.AddHeader(header.ToPath, []*uri.URI{mustParseURI(t, "msrp://a.example:2855/sess1;tcp")})
	m.AddHeader(header.FromPath, []*uri.URI{mustParseURI(t, "msrp://b.example:2855/sess2;tcp")})
	out, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(out), "MSRP abc123 200 OK\r\n") {
		t.Errorf("unexpected first line: %q", out)
	}
}

func TestNewRejectsInvalidIdentity(t *testing.T) {
	if _, err := message.New("abc123", "SEND", 200, ""); err == nil {
		t.Error("expected error when both method and code are set")
	}
	if _, err := message.New("abc123", "", 0, ""); err == nil {
		t.Error("expected error when neither method nor code is set")
	}
	if _, err := message.New("abc123", "SEND", 0, "OK"); err == nil {
		t.Error("expected error for comment without code")
	}
	if _, err := message.New("abc123", "", 200, "OK"); err != nil {
		t.Errorf("New response: %v", err)
	}
}

func TestEncodeRejectsMethodAndCodeBothSet(t *testing.T) {
	m := message.NewRequest("abc123", "SEND")
	m.Code = 200
	if _, err := m.Encode(); err == nil {
		t.Error("expected error when both Method and Code are set")
	}
}

func TestHeaderBlockInvalidatedOnMutation(t *testing.T) {
	m := fixtureRequest(t)
	before, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	m.AddHeader(header.SuccessReportName, "yes")
	after, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.Contains(string(after), "Success-Report: yes\r\n") {
		t.Errorf("added header missing after re-encode: %q", after)
	}
	if string(before) == string(after) {
		t.Error("mutating headers must invalidate the memoized header block")
	}

	m.TransactionID = "zzz999"
	moved, err := m.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(string(moved), "MSRP zzz999 SEND\r\n") || !strings.HasSuffix(string(moved), "-------zzz999$\r\n") {
		t.Errorf("transaction id change not reflected: %q", moved)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	m := fixtureRequest(t)
	c := m.Copy()
	c.Body[0] = 'H'
	if m.Body[0] == 'H' {
		t.Error("Copy did not deep-copy Body")
	}
	c.AddHeader(header.MessageID, "99999")
	orig, _ := m.Headers.Get(header.MessageID)
	enc, err := orig.Encoded()
	if err != nil {
		t.Fatalf("Encoded: %v", err)
	}
	if enc != "12345" {
		t.Errorf("mutating the copy's headers changed the original: %q", enc)
	}
}

func TestPathAccessors(t *testing.T) {
	m := fixtureRequest(t)
	to, err := m.ToPath()
	if err != nil {
		t.Fatalf("ToPath: %v", err)
	}
	if len(to) != 1 || to[0].Host != "b.example" || to[0].SessionID != "sess2" {
		t.Errorf("ToPath = %v", to)
	}
	from, err := m.FromPath()
	if err != nil {
		t.Fatalf("FromPath: %v", err)
	}
	if len(from) != 1 || from[0].Host != "a.example" {
		t.Errorf("FromPath = %v", from)
	}
}
