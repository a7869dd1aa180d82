package header

// Canonical header names, matching the tokens used on the wire.
const (
	ToPath                 = "To-Path"
	FromPath               = "From-Path"
	MessageID              = "Message-ID"
	SuccessReportName      = "Success-Report"
	FailureReportName      = "Failure-Report"
	ByteRangeName          = "Byte-Range"
	StatusName             = "Status"
	Expires                = "Expires"
	MinExpires             = "Min-Expires"
	MaxExpires             = "Max-Expires"
	UsePath                = "Use-Path"
	WWWAuthenticate        = "WWW-Authenticate"
	Authorization          = "Authorization"
	AuthenticationInfo     = "Authentication-Info"
	ContentType            = "Content-Type"
	ContentID              = "Content-ID"
	ContentDescription     = "Content-Description"
	ContentDispositionName = "Content-Disposition"
	UseNickname            = "Use-Nickname"
)

// registry maps known header names to their value grammar, mirroring
// protocol.py's MSRPHeaderMeta registry built from the header_name attribute
// of every MSRPHeader subclass.
var registry = map[string]Grammar{
	ToPath:                 URIList,
	FromPath:               URIList,
	MessageID:              Simple,
	SuccessReportName:      SuccessReport,
	FailureReportName:      FailureReport,
	ByteRangeName:          ByteRangeGrammar,
	StatusName:             StatusGrammar,
	Expires:                Integer,
	MinExpires:             Integer,
	MaxExpires:             Integer,
	UsePath:                URIList,
	WWWAuthenticate:        Digest,
	Authorization:          Digest,
	AuthenticationInfo:     ParameterList,
	ContentType:            Simple,
	ContentID:              Simple,
	ContentDescription:     Simple,
	ContentDispositionName: ContentDispositionGrammar,
	UseNickname:            Simple,
}

// GrammarFor returns the grammar registered for name, falling back to the
// identity Simple grammar for any unrecognized header — mirroring
// protocol.py's behavior of treating unknown headers as UTF8HeaderType. The
// registry itself is fixed at init and never mutated afterwards.
func GrammarFor(name string) Grammar {
	if g, ok := registry[name]; ok {
		return g
	}
	return Simple
}
