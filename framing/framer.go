package framing

import (
	"bytes"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"

	"braces.dev/errtrace"
	"github.com/qmuntal/stateless"

	"github.com/gomsrp/msrp/header"
	"github.com/gomsrp/msrp/internal/errorutil"
	"github.com/gomsrp/msrp/log"
	"github.com/gomsrp/msrp/message"
)

// MaxLineLength is the longest a single header (or first) line may be before
// the framer treats the chunk as illegal, matching MAX_LENGTH in
// protocol.py.
const MaxLineLength = 16384

// MaxHeaderLines is the most header lines a single chunk may carry before
// the framer treats the chunk as illegal, matching MAX_LINES in
// protocol.py.
const MaxHeaderLines = 64

// ErrFraming is wrapped into the reason passed to Sink.IllegalData for
// framing violations.
const ErrFraming errorutil.Error = "framing: protocol violation"

var firstLineRe = regexp.MustCompile(
	`^MSRP ([A-Za-z0-9][A-Za-z0-9.+%=-]{3,31}) (?:([A-Z_]+)|(\d{3})(?: (.+))?)$`,
)

type frameState string

const (
	stateIdle    frameState = "idle"
	stateHeaders frameState = "headers"
	stateBody    frameState = "body"
)

type frameTrigger string

const (
	triggerFirstLine frameTrigger = "firstLine"
	triggerBlankLine frameTrigger = "blankLine"
	triggerBodyless  frameTrigger = "bodyless"
	triggerChunkEnd  frameTrigger = "chunkEnd"
	triggerReset     frameTrigger = "reset"
)

// FramerOptions configures optional Framer behavior. A nil *FramerOptions (or
// a zero-valued field) falls back to the package defaults, following the
// teacher's small-options-struct constructor convention.
type FramerOptions struct {
	// Logger receives Debug/Warn lines as the framer tolerates lenient wire
	// syntax or discards a chunk. If nil, log.Noop is used.
	Logger *slog.Logger

	// MaxLineLength overrides MaxLineLength if non-zero.
	MaxLineLength int

	// MaxHeaderLines overrides MaxHeaderLines if non-zero.
	MaxHeaderLines int
}

func (o *FramerOptions) logger() *slog.Logger {
	if o == nil || o.Logger == nil {
		return log.Noop
	}
	return o.Logger
}

func (o *FramerOptions) maxLineLength() int {
	if o == nil || o.MaxLineLength == 0 {
		return MaxLineLength
	}
	return o.MaxLineLength
}

func (o *FramerOptions) maxHeaderLines() int {
	if o == nil || o.MaxHeaderLines == 0 {
		return MaxHeaderLines
	}
	return o.MaxHeaderLines
}

// Framer recognizes MSRP chunk boundaries in a byte stream and reports them
// to a Sink. It holds no knowledge of transport; callers feed it bytes as
// they are read off a connection.
type Framer struct {
	sink Sink
	log  *slog.Logger
	fsm  *stateless.StateMachine

	maxLineLength  int
	maxHeaderLines int

	buf []byte // unconsumed bytes in idle/headers mode

	first       FirstLine
	headers     *message.Headers
	headerCnt   int
	endMarker   []byte // "\r\n-------<tid>", set from the chunk's first line; its first occurrence in the body ends the chunk
	bodyBuf     []byte
	bodyStarted bool // a body byte has been delivered for the current chunk
}

// NewFramer returns a Framer reporting recognized chunks to sink. opts is
// optional; pass nothing for package defaults.
func NewFramer(sink Sink, opts ...*FramerOptions) *Framer {
	var o *FramerOptions
	if len(opts) > 0 {
		o = opts[0]
	}
	f := &Framer{
		sink:           sink,
		log:            o.logger(),
		maxLineLength:  o.maxLineLength(),
		maxHeaderLines: o.maxHeaderLines(),
	}
	f.fsm = stateless.NewStateMachine(stateIdle)
	f.fsm.Configure(stateIdle).
		Permit(triggerFirstLine, stateHeaders).
		Ignore(triggerReset)
	f.fsm.Configure(stateHeaders).
		Permit(triggerBlankLine, stateBody).
		Permit(triggerBodyless, stateIdle).
		Permit(triggerReset, stateIdle)
	f.fsm.Configure(stateBody).
		Permit(triggerChunkEnd, stateIdle).
		Permit(triggerReset, stateIdle)
	return f
}

func (f *Framer) mode() frameState {
	return f.fsm.MustState().(frameState)
}

// Feed processes newly-read bytes, invoking Sink methods for every chunk
// event they complete.
func (f *Framer) Feed(data []byte) error {
	f.buf = append(f.buf, data...)
	for {
		switch f.mode() {
		case stateIdle, stateHeaders:
			done, err := f.stepLine()
			if err != nil {
				return errtrace.Wrap(err)
			}
			if done {
				return nil
			}
		case stateBody:
			done, err := f.stepBody()
			if err != nil {
				return errtrace.Wrap(err)
			}
			if done {
				return nil
			}
		}
	}
}

// Close reports connection loss to the sink, classifying the transport error
// for the log so a timeout mid-chunk reads differently from a peer reset.
func (f *Framer) Close(err error) {
	switch {
	case err == nil:
	case errorutil.IsTimeoutErr(err):
		f.log.Warn("connection timed out", "error", err, "mid_chunk", f.mode() != stateIdle)
	case errorutil.IsTemporaryErr(err):
		f.log.Warn("connection lost on temporary error", "error", err, "mid_chunk", f.mode() != stateIdle)
	case errorutil.IsNetError(err):
		f.log.Warn("connection lost", "error", err, "mid_chunk", f.mode() != stateIdle)
	default:
		f.log.Warn("connection closed", "error", err, "mid_chunk", f.mode() != stateIdle)
	}
	f.sink.ConnectionLost(err)
}

// stepLine consumes at most one line from f.buf while in idle/headers mode.
// It returns done=true when there is not yet a full line to process.
func (f *Framer) stepLine() (bool, error) {
	idx := bytes.Index(f.buf, []byte("\r\n"))
	if idx == -1 {
		if len(f.buf) > f.maxLineLength {
			data := f.buf
			f.buf = nil
			return true, f.illegal(data, fmt.Errorf("%w: line exceeds %d bytes", ErrFraming, f.maxLineLength))
		}
		return true, nil
	}
	line := f.buf[:idx]
	f.buf = f.buf[idx+2:]
	if len(line) > f.maxLineLength {
		return false, f.illegal(line, fmt.Errorf("%w: line exceeds %d bytes", ErrFraming, f.maxLineLength))
	}

	if f.mode() == stateIdle {
		if len(line) == 0 {
			// Empty lines between chunks are ignored.
			return false, nil
		}
		return false, f.handleFirstLine(line)
	}
	return false, f.handleHeaderLine(line)
}

func (f *Framer) handleFirstLine(line []byte) error {
	m := firstLineRe.FindSubmatch(line)
	if m == nil {
		return f.illegal(line, fmt.Errorf("%w: malformed first line %q", ErrFraming, line))
	}
	f.first = FirstLine{TransactionID: string(m[1])}
	if len(m[2]) > 0 {
		f.first.Method = string(m[2])
		if bytes.IndexByte(m[2], '_') >= 0 {
			f.log.Debug("accepted method token containing '_'", "method", f.first.Method)
		}
	} else {
		code, err := strconv.Atoi(string(m[3]))
		if err != nil {
			return f.illegal(line, fmt.Errorf("%w: bad status code: %w", ErrFraming, err))
		}
		f.first.Code = code
		f.first.Comment = string(m[4])
	}
	f.headers = message.NewHeaders()
	f.headerCnt = 0
	f.endMarker = append([]byte("\r\n-------"), f.first.TransactionID...)
	f.bodyStarted = false
	return errtrace.Wrap(f.fsm.Fire(triggerFirstLine))
}

func (f *Framer) handleHeaderLine(line []byte) error {
	if len(line) == 0 {
		return errtrace.Wrap(f.finishHeaders(true))
	}
	if f.matchesEndLine(line) {
		// Bodyless chunk: the end-line appears directly in place of a
		// header line or the blank separator.
		return errtrace.Wrap(f.finishBodylessChunk(line))
	}
	f.headerCnt++
	if f.headerCnt > f.maxHeaderLines {
		return f.illegal(line, fmt.Errorf("%w: more than %d header lines", ErrFraming, f.maxHeaderLines))
	}
	name, value, ok := bytes.Cut(line, []byte(": "))
	if !ok {
		// protocol.py silently drops header lines lacking ": " rather than
		// treating them as illegal data.
		return nil
	}
	f.headers.Add(header.NewFromEncoded(string(name), string(value)))
	return nil
}

// matchesEndLine reports whether line is this chunk's end-line, i.e.
// "-------" + transaction-id + one of "$#+".
func (f *Framer) matchesEndLine(line []byte) bool {
	prefix := "-------" + f.first.TransactionID
	if len(line) != len(prefix)+1 || !bytes.HasPrefix(line, []byte(prefix)) {
		return false
	}
	return isContFlag(line[len(line)-1])
}

func (f *Framer) finishHeaders(expectBody bool) error {
	if err := f.sink.ChunkStarted(f.first, f.headers); err != nil {
		return errtrace.Wrap(err)
	}
	if !expectBody {
		return nil
	}
	return errtrace.Wrap(f.fsm.Fire(triggerBlankLine))
}

func (f *Framer) finishBodylessChunk(line []byte) error {
	if err := f.sink.ChunkStarted(f.first, f.headers); err != nil {
		return errtrace.Wrap(err)
	}
	cont := message.ContFlag(line[len(line)-1])
	if err := f.sink.ChunkEnded(cont); err != nil {
		return errtrace.Wrap(err)
	}
	return errtrace.Wrap(f.fsm.Fire(triggerBodyless))
}

// illegal surfaces the offending bytes to the sink, drops the chunk under
// construction and returns the framer to IDLE. Bytes already buffered beyond
// the offending ones are kept and parsed as a fresh stream.
func (f *Framer) illegal(data []byte, reason error) error {
	f.log.Warn("discarding chunk on illegal data", "reason", reason, "bytes", log.StringValue(data))
	err := f.sink.IllegalData(data, reason)
	f.bodyBuf = nil
	f.bodyStarted = false
	_ = f.fsm.Fire(triggerReset)
	return errtrace.Wrap(err)
}

// stepBody scans f.bodyBuf for the end-line, retaining any buffer suffix
// that may be a prefix of the end-line until the following bytes settle it,
// mirroring rawDataReceived's term_substrings scan in protocol.py. The
// retained straddle never exceeds len(endMarker)+2 bytes.
func (f *Framer) stepBody() (bool, error) {
	if len(f.buf) > 0 {
		f.bodyBuf = append(f.bodyBuf, f.buf...)
		f.buf = nil
	}

	// The end-line's leading CRLF doubles as the blank line that ended the
	// header block, so a chunk with an empty body shows the bare
	// "-------<tid>" at the very start of the body phase.
	if !f.bodyStarted {
		bare := f.endMarker[2:]
		switch {
		case len(f.bodyBuf) <= len(bare) && bytes.HasPrefix(bare, f.bodyBuf):
			// Could still become a bare end-line; wait for more bytes.
			return true, nil
		case bytes.HasPrefix(f.bodyBuf, bare) && isContFlag(f.bodyBuf[len(bare)]):
			return f.finishBody(0, len(bare))
		}
		// Anything else here is body content; scan for the full marker.
	}

	idx := bytes.Index(f.bodyBuf, f.endMarker)
	if idx == -1 {
		keep := f.straddleLen()
		if flush := f.bodyBuf[:len(f.bodyBuf)-keep]; len(flush) > 0 {
			if err := f.sink.BodyData(flush, false); err != nil {
				return true, errtrace.Wrap(err)
			}
			f.bodyStarted = true
			f.bodyBuf = append([]byte(nil), f.bodyBuf[len(f.bodyBuf)-keep:]...)
		}
		return true, nil
	}
	return f.finishBody(idx, len(f.endMarker))
}

func isContFlag(b byte) bool { return b == '$' || b == '#' || b == '+' }

// straddleLen returns the length of the longest f.bodyBuf suffix that is a
// proper prefix of the end-line marker, i.e. the bytes that cannot be
// classified until more data arrives.
func (f *Framer) straddleLen() int {
	limit := len(f.endMarker) - 1
	if len(f.bodyBuf) < limit {
		limit = len(f.bodyBuf)
	}
	for n := limit; n > 0; n-- {
		if bytes.HasSuffix(f.bodyBuf, f.endMarker[:n]) {
			return n
		}
	}
	return 0
}

// finishBody handles a located end-line marker: the body runs up to idx, the
// continuation flag follows the marker's markerLen bytes.
func (f *Framer) finishBody(idx, markerLen int) (bool, error) {
	if idx+markerLen >= len(f.bodyBuf) {
		// Flag byte hasn't arrived yet.
		if idx > 0 {
			if err := f.sink.BodyData(f.bodyBuf[:idx], false); err != nil {
				return true, errtrace.Wrap(err)
			}
			f.bodyStarted = true
			f.bodyBuf = append([]byte(nil), f.bodyBuf[idx:]...)
		}
		return true, nil
	}

	flag := f.bodyBuf[idx+markerLen]
	if !isContFlag(flag) {
		rest := append([]byte(nil), f.bodyBuf[idx+markerLen+1:]...)
		err := f.illegal(f.bodyBuf[idx:idx+markerLen+1],
			fmt.Errorf("%w: bad continuation flag %q", ErrFraming, flag))
		f.buf = rest
		return false, err
	}

	if idx > 0 {
		if err := f.sink.BodyData(f.bodyBuf[:idx], true); err != nil {
			return true, errtrace.Wrap(err)
		}
	}

	rest := f.bodyBuf[idx+markerLen+1:]
	rest = bytes.TrimPrefix(rest, []byte("\r\n"))
	f.bodyBuf = nil
	f.buf = append([]byte(nil), rest...)

	if err := f.sink.ChunkEnded(message.ContFlag(flag)); err != nil {
		return true, errtrace.Wrap(err)
	}
	if err := f.fsm.Fire(triggerChunkEnd); err != nil {
		return true, errtrace.Wrap(err)
	}
	return false, nil
}
