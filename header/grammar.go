// Package header implements MSRP header value grammars (RFC 4975 §7) and the
// dual encoded/decoded header value type used by message.Message.
package header

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"braces.dev/errtrace"

	"github.com/gomsrp/msrp/internal/errorutil"
	"github.com/gomsrp/msrp/internal/ordered"
	"github.com/gomsrp/msrp/internal/stringutils"
	"github.com/gomsrp/msrp/uri"
)

// ErrParse is wrapped and returned when a header value does not match its
// grammar.
const ErrParse errorutil.Error = "header: invalid value"

// Grammar encodes and decodes the value of one header kind. Decode returns a
// grammar-specific Go value; Encode accepts that same shape back.
type Grammar interface {
	Decode(encoded string) (any, error)
	Encode(decoded any) (string, error)
}

// simpleGrammar passes the value through unchanged; used for Simple and
// UTF8HeaderType in protocol.py (MSRP header values are already ASCII/UTF-8
// text with no further structure).
type simpleGrammar struct{}

func (simpleGrammar) Decode(encoded string) (any, error) { return encoded, nil }
func (simpleGrammar) Encode(decoded any) (string, error) {
	s, ok := decoded.(string)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected string, got %T", ErrParse, decoded))
	}
	return s, nil
}

// Simple is the identity grammar used by headers like Message-ID.
var Simple Grammar = simpleGrammar{}

// uriListGrammar decodes a space-separated list of MSRP URIs, as used by
// To-Path, From-Path and Use-Path. A single unparsable element fails the
// whole list.
type uriListGrammar struct{}

func (uriListGrammar) Decode(encoded string) (any, error) {
	parts := strings.Split(encoded, " ")
	list := make([]*uri.URI, 0, len(parts))
	for _, part := range parts {
		u, err := uri.Parse(part)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: %w", ErrParse, err))
		}
		list = append(list, u)
	}
	return list, nil
}

func (uriListGrammar) Encode(decoded any) (string, error) {
	list, ok := decoded.([]*uri.URI)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected []*uri.URI, got %T", ErrParse, decoded))
	}
	parts := make([]string, len(list))
	for i, u := range list {
		parts[i] = u.String()
	}
	return strings.Join(parts, " "), nil
}

// URIList is the grammar for space-separated URI lists.
var URIList Grammar = uriListGrammar{}

// integerGrammar decodes a base-10 integer, used by Expires/Min-Expires/Max-Expires.
type integerGrammar struct{}

func (integerGrammar) Decode(encoded string) (any, error) {
	n, err := strconv.Atoi(stringutils.TrimSP(encoded))
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %w", ErrParse, err))
	}
	return n, nil
}

func (integerGrammar) Encode(decoded any) (string, error) {
	n, ok := decoded.(int)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected int, got %T", ErrParse, decoded))
	}
	return strconv.Itoa(n), nil
}

// Integer is the grammar for plain decimal integers.
var Integer Grammar = integerGrammar{}

// limitedChoiceGrammar decodes one of a fixed set of tokens, used by
// Success-Report ("yes"/"no") and Failure-Report ("yes"/"no"/"partial").
type limitedChoiceGrammar struct {
	choices map[string]struct{}
}

// NewLimitedChoice builds a grammar that accepts exactly the given tokens,
// case-sensitively, mirroring LimitedChoiceHeaderType in protocol.py.
func NewLimitedChoice(choices ...string) Grammar {
	g := limitedChoiceGrammar{choices: make(map[string]struct{}, len(choices))}
	for _, c := range choices {
		g.choices[c] = struct{}{}
	}
	return g
}

func (g limitedChoiceGrammar) Decode(encoded string) (any, error) {
	if _, ok := g.choices[encoded]; !ok {
		return nil, errtrace.Wrap(fmt.Errorf("%w: %q not in allowed set", ErrParse, encoded))
	}
	return encoded, nil
}

func (g limitedChoiceGrammar) Encode(decoded any) (string, error) {
	s, ok := decoded.(string)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected string, got %T", ErrParse, decoded))
	}
	if _, ok := g.choices[s]; !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: %q not in allowed set", ErrParse, s))
	}
	return s, nil
}

// SuccessReport is the Success-Report grammar.
var SuccessReport = NewLimitedChoice("yes", "no")

// FailureReport is the Failure-Report grammar.
var FailureReport = NewLimitedChoice("yes", "no", "partial")

// ByteRange is the decoded form of a Byte-Range header: "start-end/total",
// where end or total may be unknown ("*"), mirroring protocol.py's ByteRange
// namedtuple.
type ByteRange struct {
	Start int // 1-based, per RFC 4975
	End   int // -1 means unknown ("*")
	Total int // -1 means unknown ("*")
}

type byteRangeGrammar struct{}

func (byteRangeGrammar) Decode(encoded string) (any, error) {
	rangePart, totalPart, ok := strings.Cut(encoded, "/")
	if !ok {
		return nil, errtrace.Wrap(fmt.Errorf("%w: missing '/' in byte range %q", ErrParse, encoded))
	}
	startPart, endPart, ok := strings.Cut(rangePart, "-")
	if !ok {
		return nil, errtrace.Wrap(fmt.Errorf("%w: missing '-' in byte range %q", ErrParse, encoded))
	}
	start, err := strconv.Atoi(startPart)
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: start: %w", ErrParse, err))
	}
	br := ByteRange{Start: start, End: -1, Total: -1}
	if endPart != "*" {
		end, err := strconv.Atoi(endPart)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: end: %w", ErrParse, err))
		}
		br.End = end
	}
	if totalPart != "*" {
		total, err := strconv.Atoi(totalPart)
		if err != nil {
			return nil, errtrace.Wrap(fmt.Errorf("%w: total: %w", ErrParse, err))
		}
		br.Total = total
	}
	return br, nil
}

func (byteRangeGrammar) Encode(decoded any) (string, error) {
	br, ok := decoded.(ByteRange)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected ByteRange, got %T", ErrParse, decoded))
	}
	end := "*"
	if br.End != -1 {
		end = strconv.Itoa(br.End)
	}
	total := "*"
	if br.Total != -1 {
		total = strconv.Itoa(br.Total)
	}
	return fmt.Sprintf("%d-%s/%s", br.Start, end, total), nil
}

// ByteRangeGrammar is the grammar for the Byte-Range header.
var ByteRangeGrammar Grammar = byteRangeGrammar{}

// Status is the decoded form of a Status header: "000 CCC [comment]". The
// "000" namespace is the only one defined and is implied.
type Status struct {
	Code    int
	Comment string
}

type statusGrammar struct{}

// statusRe enforces "000 CCC [comment]" exactly: the literal "000" namespace
// and a three-digit code, per RFC 4975 §7.1's Status header grammar.
var statusRe = regexp.MustCompile(`^000 (\d{3})(?: (.+))?$`)

func (statusGrammar) Decode(encoded string) (any, error) {
	m := statusRe.FindStringSubmatch(encoded)
	if m == nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: status %q", ErrParse, encoded))
	}
	code, err := strconv.Atoi(m[1])
	if err != nil {
		return nil, errtrace.Wrap(fmt.Errorf("%w: code: %w", ErrParse, err))
	}
	return Status{Code: code, Comment: m[2]}, nil
}

func (statusGrammar) Encode(decoded any) (string, error) {
	st, ok := decoded.(Status)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected Status, got %T", ErrParse, decoded))
	}
	if st.Comment == "" {
		return fmt.Sprintf("000 %03d", st.Code), nil
	}
	return fmt.Sprintf("000 %03d %s", st.Code, st.Comment), nil
}

// StatusGrammar is the grammar for the Status header.
var StatusGrammar Grammar = statusGrammar{}

// Params is an ordered set of name=value pairs shared by the
// Content-Disposition, ParameterList and Digest grammars.
type Params = ordered.Map

func parseParams(s string, sep byte) (*Params, error) {
	p := &Params{}
	for _, part := range splitTop(s, sep) {
		part = stringutils.TrimSP(part)
		if part == "" {
			continue
		}
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			return nil, errtrace.Wrap(fmt.Errorf("%w: parameter %q missing '='", ErrParse, part))
		}
		name = stringutils.TrimSP(name)
		value = stringutils.TrimSP(value)
		value = strings.TrimPrefix(value, `"`)
		value = strings.TrimSuffix(value, `"`)
		p.Set(name, value)
	}
	return p, nil
}

// splitTop splits on sep, ignoring occurrences inside double quotes.
func splitTop(s string, sep byte) []string {
	var parts []string
	var inQuotes bool
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '"':
			inQuotes = !inQuotes
		case sep:
			if !inQuotes {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	parts = append(parts, s[start:])
	return parts
}

func encodeParams(p *Params, sep string) string {
	parts := make([]string, 0, p.Len())
	for _, kv := range p.Pairs() {
		parts = append(parts, fmt.Sprintf(`%s="%s"`, kv.Key, kv.Value))
	}
	return strings.Join(parts, sep)
}

// parameterListGrammar decodes comma-separated name="value" pairs, used by
// the Authentication-Info header.
type parameterListGrammar struct{}

func (parameterListGrammar) Decode(encoded string) (any, error) { return parseParams(encoded, ',') }
func (parameterListGrammar) Encode(decoded any) (string, error) {
	p, ok := decoded.(*Params)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected *Params, got %T", ErrParse, decoded))
	}
	return encodeParams(p, ", "), nil
}

// ParameterList is the comma-separated name="value" grammar.
var ParameterList Grammar = parameterListGrammar{}

// ContentDisposition is the decoded form of the Content-Disposition header:
// a disposition type followed by ";"-separated name=value parameters.
type ContentDisposition struct {
	Type   string
	Params *Params
}

type contentDispositionGrammar struct{}

func (contentDispositionGrammar) Decode(encoded string) (any, error) {
	fields := splitTop(encoded, ';')
	if len(fields) == 0 || stringutils.TrimSP(fields[0]) == "" {
		return nil, errtrace.Wrap(fmt.Errorf("%w: empty content-disposition", ErrParse))
	}
	cd := ContentDisposition{Type: stringutils.TrimSP(fields[0])}
	if len(fields) > 1 {
		rest := strings.Join(fields[1:], ";")
		p, err := parseParams(rest, ';')
		if err != nil {
			return nil, errtrace.Wrap(err)
		}
		cd.Params = p
	}
	return cd, nil
}

func (contentDispositionGrammar) Encode(decoded any) (string, error) {
	cd, ok := decoded.(ContentDisposition)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected ContentDisposition, got %T", ErrParse, decoded))
	}
	if cd.Params.Len() == 0 {
		return cd.Type, nil
	}
	return cd.Type + "; " + encodeParams(cd.Params, "; "), nil
}

// ContentDispositionGrammar is the grammar for the Content-Disposition header.
var ContentDispositionGrammar Grammar = contentDispositionGrammar{}

// digestGrammar decodes a "Digest " prefix followed by a comma-separated
// parameter list, used by WWW-Authenticate and Authorization.
type digestGrammar struct{}

const digestPrefix = "Digest "

func (digestGrammar) Decode(encoded string) (any, error) {
	if !strings.HasPrefix(encoded, digestPrefix) {
		return nil, errtrace.Wrap(fmt.Errorf("%w: missing %q prefix", ErrParse, digestPrefix))
	}
	return parseParams(strings.TrimPrefix(encoded, digestPrefix), ',')
}

func (digestGrammar) Encode(decoded any) (string, error) {
	p, ok := decoded.(*Params)
	if !ok {
		return "", errtrace.Wrap(fmt.Errorf("%w: expected *Params, got %T", ErrParse, decoded))
	}
	return digestPrefix + encodeParams(p, ", "), nil
}

// Digest is the grammar for Digest-authentication-style header values.
var Digest Grammar = digestGrammar{}
