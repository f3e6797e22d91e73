// Package gclog is a small leveled, contextual logger in the shape of
// ethereum-go-ethereum's log package (Lvl/Record/Logger/Handler),
// trimmed to what the collector's ambient logging needs: level
// filtering, key/value context inherited via New, and a caller-site
// capture for diagnostics. It intentionally drops that package's
// glog backend — this module has no use for glog's flag-driven
// verbosity, only a plain stream handler.
package gclog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/go-stack/stack"
)

// Lvl is a logging level, ordered most to least severe.
type Lvl int

const (
	LvlCrit Lvl = iota
	LvlError
	LvlWarn
	LvlInfo
	LvlDebug
	LvlTrace
)

func (l Lvl) String() string {
	switch l {
	case LvlTrace:
		return "trce"
	case LvlDebug:
		return "dbug"
	case LvlInfo:
		return "info"
	case LvlWarn:
		return "warn"
	case LvlError:
		return "eror"
	case LvlCrit:
		return "crit"
	default:
		return "????"
	}
}

// Record is what a Logger hands its Handler.
type Record struct {
	Time time.Time
	Lvl  Lvl
	Msg  string
	Ctx  []interface{}
	Call stack.Call
}

// Handler writes a Record somewhere.
type Handler interface {
	Log(r *Record) error
}

// Logger writes leveled, contextual log records.
type Logger interface {
	New(ctx ...interface{}) Logger
	SetHandler(h Handler)

	Trace(msg string, ctx ...interface{})
	Debug(msg string, ctx ...interface{})
	Info(msg string, ctx ...interface{})
	Warn(msg string, ctx ...interface{})
	Error(msg string, ctx ...interface{})
	Crit(msg string, ctx ...interface{})
}

type logger struct {
	ctx []interface{}
	h   *swapHandler
}

// swapHandler lets SetHandler replace the backend without requiring
// every descendant Logger (created via New) to be rewired — they all
// share one swapHandler pointer.
type swapHandler struct {
	mu sync.RWMutex
	h  Handler
}

func (s *swapHandler) Log(r *Record) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h.Log(r)
}

func (s *swapHandler) Swap(h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.h = h
}

// New creates a root Logger writing to stderr at LvlInfo.
func New(ctx ...interface{}) Logger {
	root := &logger{h: new(swapHandler)}
	root.h.Swap(LvlFilterHandler(LvlInfo, StreamHandler(os.Stderr, TerminalFormat())))
	if len(ctx) == 0 {
		return root
	}
	return &logger{ctx: normalize(ctx), h: root.h}
}

var rootOnce sync.Once
var rootLogger Logger

// Root returns the package-wide default logger.
func Root() Logger {
	rootOnce.Do(func() { rootLogger = New() })
	return rootLogger
}

func (l *logger) New(ctx ...interface{}) Logger {
	child := make([]interface{}, 0, len(l.ctx)+len(ctx))
	child = append(child, l.ctx...)
	child = append(child, normalize(ctx)...)
	return &logger{ctx: child, h: l.h}
}

func (l *logger) SetHandler(h Handler) { l.h.Swap(h) }

func (l *logger) write(lvl Lvl, msg string, ctx []interface{}) {
	all := make([]interface{}, 0, len(l.ctx)+len(ctx))
	all = append(all, l.ctx...)
	all = append(all, normalize(ctx)...)
	r := &Record{
		Time: time.Now(),
		Lvl:  lvl,
		Msg:  msg,
		Ctx:  all,
		Call: stack.Caller(2),
	}
	_ = l.h.Log(r)
}

func (l *logger) Trace(msg string, ctx ...interface{}) { l.write(LvlTrace, msg, ctx) }
func (l *logger) Debug(msg string, ctx ...interface{}) { l.write(LvlDebug, msg, ctx) }
func (l *logger) Info(msg string, ctx ...interface{})  { l.write(LvlInfo, msg, ctx) }
func (l *logger) Warn(msg string, ctx ...interface{})  { l.write(LvlWarn, msg, ctx) }
func (l *logger) Error(msg string, ctx ...interface{}) { l.write(LvlError, msg, ctx) }
func (l *logger) Crit(msg string, ctx ...interface{})  { l.write(LvlCrit, msg, ctx) }

func normalize(ctx []interface{}) []interface{} {
	if len(ctx)%2 != 0 {
		ctx = append(ctx, "MISSING_VALUE")
	}
	return ctx
}

// Format renders a Record to bytes.
type Format interface {
	Format(r *Record) []byte
}

type formatFunc func(*Record) []byte

func (f formatFunc) Format(r *Record) []byte { return f(r) }

// TerminalFormat renders "time lvl msg k=v k=v ... (file:line)".
func TerminalFormat() Format {
	return formatFunc(func(r *Record) []byte {
		b := new(fmtBuffer)
		fmt.Fprintf(b, "%s[%s] %-40s", r.Time.Format("15:04:05.000"), r.Lvl.String(), r.Msg)
		for i := 0; i+1 < len(r.Ctx); i += 2 {
			fmt.Fprintf(b, " %v=%v", r.Ctx[i], r.Ctx[i+1])
		}
		fmt.Fprintf(b, " (%v)\n", r.Call)
		return b.Bytes()
	})
}

type fmtBuffer struct{ buf []byte }

func (b *fmtBuffer) Write(p []byte) (int, error) { b.buf = append(b.buf, p...); return len(p), nil }
func (b *fmtBuffer) Bytes() []byte                { return b.buf }

type streamHandler struct {
	mu  sync.Mutex
	wr  io.Writer
	fmt Format
}

// StreamHandler writes every record to wr using fmtr.
func StreamHandler(wr io.Writer, fmtr Format) Handler {
	return &streamHandler{wr: wr, fmt: fmtr}
}

func (h *streamHandler) Log(r *Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.wr.Write(h.fmt.Format(r))
	return err
}

// DiscardHandler drops every record; useful for quiet test runs.
func DiscardHandler() Handler {
	return formatHandlerFunc(func(*Record) error { return nil })
}

type formatHandlerFunc func(*Record) error

func (f formatHandlerFunc) Log(r *Record) error { return f(r) }

// LvlFilterHandler drops records below the given level before handing
// the rest to next.
func LvlFilterHandler(maxLvl Lvl, next Handler) Handler {
	return formatHandlerFunc(func(r *Record) error {
		if r.Lvl > maxLvl {
			return nil
		}
		return next.Log(r)
	})
}
