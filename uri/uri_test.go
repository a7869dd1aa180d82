package uri_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/gomsrp/msrp/internal/ordered"
	"github.com/gomsrp/msrp/uri"
)

func TestParseScenario(t *testing.T) {
	u, err := uri.Parse("msrps://alice@host.example:9999/abc;tcp;foo=bar;baz=qux")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !u.UseTLS {
		t.Error("expected UseTLS true for msrps scheme")
	}
	if u.User != "alice" {
		t.Errorf("User = %q, want alice", u.User)
	}
	if u.Host != "host.example" {
		t.Errorf("Host = %q, want host.example", u.Host)
	}
	if u.Port != 9999 {
		t.Errorf("Port = %d, want 9999", u.Port)
	}
	if u.SessionID != "abc" {
		t.Errorf("SessionID = %q, want abc", u.SessionID)
	}
	if u.Transport != "tcp" {
		t.Errorf("Transport = %q, want tcp", u.Transport)
	}
	wantParams := []ordered.Pair{{Key: "foo", Value: "bar"}, {Key: "baz", Value: "qux"}}
	if diff := cmp.Diff(wantParams, u.Parameters.Pairs()); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}
	got := u.String()
	want := "msrps://alice@host.example:9999/abc;tcp;foo=bar;baz=qux"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestParseDefaults(t *testing.T) {
	u, err := uri.Parse("msrp://host.example;tcp")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if u.UseTLS {
		t.Error("expected UseTLS false for msrp scheme")
	}
	if u.Port != uri.DefaultPort {
		t.Errorf("Port = %d, want default %d", u.Port, uri.DefaultPort)
	}
	if u.SessionID == "" {
		t.Error("expected auto-generated session id")
	}
}

func TestParseRejectsNonTCPTransport(t *testing.T) {
	if _, err := uri.Parse("msrp://host.example;udp"); err == nil {
		t.Error("expected error for non-tcp transport")
	}
}

func TestEqualIgnoresUserAndParams(t *testing.T) {
	a, err := uri.Parse("msrp://alice@host.example:9999/abc;tcp;foo=bar")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b, err := uri.Parse("msrp://bob@HOST.EXAMPLE:9999/abc;TCP")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !a.Equal(b) {
		t.Error("expected a.Equal(b) per RFC 4975 §6.1 tuple")
	}
	if a.Key() != b.Key() {
		t.Errorf("Key() mismatch: %q vs %q", a.Key(), b.Key())
	}
}

func TestEqualDiffersBySessionID(t *testing.T) {
	a, _ := uri.Parse("msrp://host.example/abc;tcp")
	b, _ := uri.Parse("msrp://host.example/xyz;tcp")
	if a.Equal(b) {
		t.Error("expected different session ids to compare unequal")
	}
}

func TestNewGeneratesSessionID(t *testing.T) {
	u := uri.New("host.example", true)
	if u.SessionID == "" {
		t.Error("expected New to generate a session id")
	}
	if u.Port != uri.DefaultPort {
		t.Errorf("Port = %d, want default", u.Port)
	}
}
