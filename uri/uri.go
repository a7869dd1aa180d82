// Package uri implements the MSRP URI (RFC 4975 §6): parsing, rendering and
// the equality/hash semantics used to key sessions.
package uri

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"braces.dev/errtrace"

	"github.com/gomsrp/msrp/internal/errorutil"
	"github.com/gomsrp/msrp/internal/ordered"
	"github.com/gomsrp/msrp/internal/randutils"
	"github.com/gomsrp/msrp/internal/stringutils"
)

// DefaultPort is the port used when a URI does not specify one.
const DefaultPort = 2855

// ErrParse is returned (wrapped) when a URI string does not match the MSRP
// URI grammar.
const ErrParse errorutil.Error = "msrp: invalid uri"

// uriRe mirrors protocol.py's URI._uri_re: scheme "://" [user "@"] host
// [":" port] ["/" session_id] ";" transport [";" name "=" value]*
var uriRe = regexp.MustCompile(
	`^(?P<scheme>msrps?)://` +
		`(?:(?P<user>[^@/:]+)@)?` +
		`(?P<host>[^/:;]+)` +
		`(?::(?P<port>\d+))?` +
		`(?:/(?P<sessionID>[\w\-.]+))?` +
		`;(?P<transport>[\w.]+)` +
		`(?P<params>(?:;[^;=]+=[^;]*)*)$`,
)

var paramRe = regexp.MustCompile(`;([^;=]+)=([^;]*)`)

// URI is an MSRP URI as defined by RFC 4975 §6. The zero value is not valid;
// construct with Parse or New.
type URI struct {
	UseTLS      bool
	User        string
	Host        string
	Port        uint16
	SessionID   string
	Transport   string
	Parameters  *ordered.Map
	Credentials any
}

// New builds a URI with a freshly generated session ID and the default port
// and transport, the shape a local endpoint advertises for a new session.
func New(host string, useTLS bool) *URI {
	return &URI{
		UseTLS:    useTLS,
		Host:      host,
		Port:      DefaultPort,
		SessionID: randutils.SessionID(),
		Transport: "tcp",
	}
}

// ParseOptions configures optional Parse behavior. A nil *ParseOptions (or a
// zero-valued field) falls back to the package defaults.
type ParseOptions struct {
	// DefaultPort overrides DefaultPort if non-zero.
	DefaultPort uint16
}

func (o *ParseOptions) defaultPort() uint16 {
	if o == nil || o.DefaultPort == 0 {
		return DefaultPort
	}
	return o.DefaultPort
}

// Parse parses s as an MSRP URI. opts is optional; pass nothing for package
// defaults.
func Parse(s string, opts ...*ParseOptions) (*URI, error) {
	var o *ParseOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	defaultPort := o.defaultPort()

	m := uriRe.FindStringSubmatch(s)
	if m == nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %q", ErrParse, s))
	}
	names := uriRe.SubexpNames()
	groups := make(map[string]string, len(names))
	for i, name := range names {
		if name != "" {
			groups[name] = m[i]
		}
	}

	transport := groups["transport"]
	if !strings.EqualFold(transport, "tcp") {
		return nil, errtrace.Wrap(fmt.Errorf("%w: transport %q must be tcp", ErrParse, transport))
	}

	u := &URI{
		UseTLS:    strings.EqualFold(groups["scheme"], "msrps"),
		User:      groups["user"],
		Host:      groups["host"],
		Port:      defaultPort,
		SessionID: groups["sessionID"],
		Transport: "tcp",
	}
	if groups["port"] != "" {
		port, err := strconv.ParseUint(groups["port"], 10, 16)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: port %q: %w", ErrParse, groups["port"], err))
		}
		u.Port = uint16(port)
	}
	if u.SessionID == "" {
		u.SessionID = randutils.SessionID()
	}

	for _, pm := range paramRe.FindAllStringSubmatch(groups["params"], -1) {
		if u.Parameters == nil {
			u.Parameters = &ordered.Map{}
		}
		u.Parameters.Set(pm[1], pm[2])
	}
	return u, nil
}

// String renders u back into MSRP URI wire form.
func (u *URI) String() string {
	var b strings.Builder
	if u.UseTLS {
		b.WriteString("msrps://")
	} else {
		b.WriteString("msrp://")
	}
	if u.User != "" {
		b.WriteString(u.User)
		b.WriteByte('@')
	}
	b.WriteString(u.Host)
	if u.Port != 0 {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(int(u.Port)))
	}
	if u.SessionID != "" {
		b.WriteByte('/')
		b.WriteString(u.SessionID)
	}
	b.WriteByte(';')
	if u.Transport != "" {
		b.WriteString(u.Transport)
	} else {
		b.WriteString("tcp")
	}
	for _, p := range u.Parameters.Pairs() {
		b.WriteByte(';')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}
	return b.String()
}

func (u *URI) port() uint16 {
	if u.Port == 0 {
		return DefaultPort
	}
	return u.Port
}

// Equal reports whether u and other identify the same session per RFC 4975
// §6.1: (use_tls, lower(host), port, session_id, lower(transport)). User,
// parameters and credentials are deliberately excluded.
func (u *URI) Equal(other *URI) bool {
	if u == nil || other == nil {
		return u == other
	}
	return u.UseTLS == other.UseTLS &&
		strings.EqualFold(u.Host, other.Host) &&
		u.port() == other.port() &&
		u.SessionID == other.SessionID &&
		strings.EqualFold(u.Transport, other.Transport)
}

// Key returns a string that is equal for two URIs iff Equal reports true,
// suitable as a map key for session lookups.
func (u *URI) Key() string {
	return fmt.Sprintf("%t|%s|%d|%s|%s",
		u.UseTLS, stringutils.LCase(u.Host), u.port(), u.SessionID, stringutils.LCase(u.Transport))
}

// Clone returns a deep copy of u.
func (u *URI) Clone() *URI {
	if u == nil {
		return nil
	}
	c := *u
	c.Parameters = u.Parameters.Clone()
	return &c
}
