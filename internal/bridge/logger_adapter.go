package bridge

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/smazurov/capturebridge/internal/lifetime"
)

// MaxAdapterMessage bounds a message passed to the managed logger in bytes:
// a 255-byte buffer less its terminator.
const MaxAdapterMessage = 254

const (
	// DefaultLoggerField is the static field holding the managed logger.
	DefaultLoggerField = "sLog"
	// DefaultLoggerFieldSig is the managed type of DefaultLoggerField.
	DefaultLoggerFieldSig = "Lorg/jitsi/util/Logger;"

	levelMethodSig = "(Ljava/lang/Object;)V"
)

// LoggerAdapter writes leveled messages to the logger object stored in a
// static field of a managed class. When the logger cannot be resolved the
// message goes to stderr instead.
type LoggerAdapter struct {
	ctx       *Context
	className string
	field     string
	fieldSig  string
	fallback  io.Writer
}

// NewLoggerAdapter targets the sLog field of className.
func NewLoggerAdapter(ctx *Context, className string) *LoggerAdapter {
	return &LoggerAdapter{
		ctx:       ctx,
		className: className,
		field:     DefaultLoggerField,
		fieldSig:  DefaultLoggerFieldSig,
		fallback:  os.Stderr,
	}
}

// WithField overrides the static logger field and its type signature. Empty
// values keep the current ones.
func (l *LoggerAdapter) WithField(name, sig string) *LoggerAdapter {
	c := *l
	c.field = cmp.Or(name, c.field)
	c.fieldSig = cmp.Or(sig, c.fieldSig)
	return &c
}

func (l *LoggerAdapter) Debug(format string, args ...any) { l.logf("debug", format, args...) }
func (l *LoggerAdapter) Trace(format string, args ...any) { l.logf("trace", format, args...) }
func (l *LoggerAdapter) Info(format string, args ...any) { l.logf("info", format, args...) }
func (l *LoggerAdapter) Warn(format string, args ...any) { l.logf("warn", format, args...) }
func (l *LoggerAdapter) Error(format string, args ...any) { l.logf("error", format, args...) }

func (l *LoggerAdapter) logf(level, format string, args ...any) {
	l.log(level, truncateUTF8(fmt.Sprintf(format, args...), MaxAdapterMessage))
}

func (l *LoggerAdapter) log(level, msg string) {
	if err := l.call(level, msg); err != nil {
		fmt.Fprintf(l.fallback, "%v\n%s\n", err, msg)
	}
}

func (l *LoggerAdapter) call(level, msg string) error {
	att, err := l.ctx.Attach()
	if err != nil {
		return err
	}
	defer att.Release()
	env := att.Env()

	scope := lifetime.NewScope()
	defer scope.Close()
	local := func(r Ref) { scope.AddFunc(func() { env.DeleteLocalRef(r) }) }

	class, err := env.FindClass(l.className)
	if err != nil {
		return resolutionError(ResolveClass, l.className, "", err)
	}
	local(class)

	fid, err := env.StaticField(class, l.field, l.fieldSig)
	if err != nil {
		return resolutionError(ResolveStaticField, l.field, l.fieldSig, err)
	}
	logger, err := env.StaticObjectField(class, fid)
	if err != nil || logger == 0 {
		return resolutionError(ResolveStaticField, l.field, l.fieldSig, err)
	}
	local(logger)

	loggerClass, err := env.GetObjectClass(logger)
	if err != nil {
		return resolutionError(ResolveClass, l.fieldSig, "", err)
	}
	local(loggerClass)

	method, err := env.Method(loggerClass, level, levelMethodSig)
	if err != nil {
		return resolutionError(ResolveMethod, level, levelMethodSig, err)
	}

	str, err := env.NewString(msg)
	if err != nil {
		return err
	}
	local(str)

	return env.CallVoid(logger, method, RefArg(str))
}

// Handler returns an slog.Handler that writes records at or above level
// through the adapter.
func (l *LoggerAdapter) Handler(level slog.Leveler) slog.Handler {
	return &adapterHandler{adapter: l, level: level}
}

type adapterHandler struct {
	adapter *LoggerAdapter
	level   slog.Leveler
	attrs   []slog.Attr
	group   string
}

func (h *adapterHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *adapterHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)
	write := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		b.WriteByte(' ')
		if h.group != "" {
			b.WriteString(h.group)
			b.WriteByte('.')
		}
		b.WriteString(a.Key)
		b.WriteByte('=')
		b.WriteString(a.Value.String())
		return true
	}
	for _, a := range h.attrs {
		write(a)
	}
	r.Attrs(write)

	h.adapter.log(levelMethod(r.Level), truncateUTF8(b.String(), MaxAdapterMessage))
	return nil
}

func (h *adapterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := *h
	c.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &c
}

func (h *adapterHandler) WithGroup(name string) slog.Handler {
	c := *h
	if c.group != "" {
		name = c.group + "." + name
	}
	c.group = name
	return &c
}

// levelMethod maps an slog level to the managed logger's method name.
func levelMethod(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "error"
	case level >= slog.LevelWarn:
		return "warn"
	case level >= slog.LevelInfo:
		return "info"
	case level >= slog.LevelDebug:
		return "debug"
	default:
		return "trace"
	}
}
