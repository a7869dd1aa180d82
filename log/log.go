// Package log provides the structured logging handlers used across the msrp
// packages: a formatter-wrapped slog.Logger with console, developer and noop
// variants. The core codec logs sparingly — a Debug line when it tolerates
// lenient wire syntax, a Warn line when it discards a chunk via illegal data.
package log

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/golang-cz/devslog"
	console "github.com/phsym/console-slog"
	slogformatter "github.com/samber/slog-formatter"

	"github.com/gomsrp/msrp/internal/constraints"
)

var newHandler = slogformatter.NewFormatterHandler(
	slogformatter.ErrorFormatter("error"),
)

// Def is the default console logger.
var Def = slog.New(newHandler(
	console.NewHandler(os.Stdout, &console.HandlerOptions{
		AddSource:  true,
		Level:      slog.LevelInfo,
		TimeFormat: time.RFC3339Nano,
	}),
))

// Dev is a verbose developer logger.
var Dev = slog.New(newHandler(
	devslog.NewHandler(os.Stdout, &devslog.Options{
		HandlerOptions: &slog.HandlerOptions{
			AddSource: true,
			Level:     slog.LevelDebug,
		},
		SortKeys:   true,
		TimeFormat: time.RFC3339Nano,
	}),
))

type noopHandler struct{}

func (noopHandler) Enabled(context.Context, slog.Level) bool { return false }

func (noopHandler) Handle(context.Context, slog.Record) error { return nil }

func (h noopHandler) WithAttrs([]slog.Attr) slog.Handler { return h }

func (h noopHandler) WithGroup(string) slog.Handler { return h }

// Noop discards everything; it is the default for code that does not accept
// a logger explicitly.
var Noop = slog.New(noopHandler{})

type fmtValue struct {
	v        any
	goSyntax bool
}

func (v fmtValue) LogValue() slog.Value {
	if v.goSyntax {
		return slog.StringValue(fmt.Sprintf("%#v", v.v))
	}
	return slog.StringValue(fmt.Sprintf("%+v", v.v))
}

// FmtValue returns a value logger that formats v using '%+v' or '%#v' syntax,
// deferring the formatting cost until the log record is actually emitted.
func FmtValue(v any, goSyntax bool) slog.LogValuer { return fmtValue{v, goSyntax} }

type stringValue[T constraints.Byteseq] struct{ v T }

func (v stringValue[T]) LogValue() slog.Value { return slog.StringValue(string(v.v)) }

// StringValue returns a value logger that renders v (a string or []byte
// flavor) as a plain string attribute.
func StringValue[T constraints.Byteseq](v T) slog.LogValuer { return stringValue[T]{v} }
