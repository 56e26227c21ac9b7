package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ComponentKey is the field Setup reads per-component level overrides from.
const ComponentKey = "component"

// Options configures the process logger built by Setup.
type Options struct {
	// Level is the minimum level: trace, debug, info, warn or error.
	Level string
	// Format selects the console encoding, "text" or "json".
	Format string
	// Directory receives one log file per day. Empty disables file output.
	Directory string
	// MaxSizeMB rolls the day's file to a numbered backup once it grows past
	// this size. Zero means lumberjack's default of 100.
	MaxSizeMB int
	// MaxBackups caps the size-rolled backups kept per day. Zero keeps all.
	MaxBackups int
	// Overrides maps a component name to its own minimum level.
	Overrides map[string]string
	// Console defaults to os.Stderr.
	Console io.Writer

	now func() time.Time
}

// ParseLevel understands the slog level names plus "trace".
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return slog.LevelInfo, nil
	}
	if strings.EqualFold(s, "trace") {
		return LevelTrace, nil
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
	return lvl, nil
}

// Setup builds the process logger. The returned closer releases the log file
// and must be called on shutdown.
func Setup(opts Options) (ServiceLogger, io.Closer, error) {
	minLevel, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, nil, err
	}
	overrides := make(map[string]slog.Level, len(opts.Overrides))
	for component, raw := range opts.Overrides {
		lvl, err := ParseLevel(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("override %s: %w", component, err)
		}
		overrides[component] = lvl
	}

	console := opts.Console
	if console == nil {
		console = os.Stderr
	}
	handlerOpts := &slog.HandlerOptions{Level: LevelTrace}

	var consoleHandler slog.Handler
	switch strings.ToLower(opts.Format) {
	case "", "text":
		consoleHandler = slog.NewTextHandler(console, handlerOpts)
	case "json":
		consoleHandler = slog.NewJSONHandler(console, handlerOpts)
	default:
		return nil, nil, fmt.Errorf("logging: unknown format %q", opts.Format)
	}

	handlers := []slog.Handler{consoleHandler}
	var closer io.Closer = nopCloser{}
	if opts.Directory != "" {
		now := opts.now
		if now == nil {
			now = time.Now
		}
		if err := os.MkdirAll(opts.Directory, 0o755); err != nil {
			return nil, nil, fmt.Errorf("logging: create directory: %w", err)
		}
		file := &dailyFile{
			dir:        opts.Directory,
			prefix:     "shardwire",
			maxSizeMB:  opts.MaxSizeMB,
			maxBackups: opts.MaxBackups,
			now:        now,
		}
		handlers = append(handlers, slog.NewJSONHandler(file, handlerOpts))
		closer = file
	}

	root := &componentHandler{
		inner:     slogmulti.Fanout(handlers...),
		min:       minLevel,
		overrides: overrides,
	}
	return NewSlogServiceLogger(slog.New(root)), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// componentHandler filters records by level, using the override for the
// record's component when one is configured.
type componentHandler struct {
	inner     slog.Handler
	min       slog.Level
	overrides map[string]slog.Level
	component string
}

func (h *componentHandler) threshold(component string) slog.Level {
	if lvl, ok := h.overrides[component]; ok {
		return lvl
	}
	return h.min
}

func (h *componentHandler) Enabled(ctx context.Context, level slog.Level) bool {
	floor := h.threshold(h.component)
	if h.component == "" {
		for _, lvl := range h.overrides {
			floor = min(floor, lvl)
		}
	}
	return level >= floor && h.inner.Enabled(ctx, level)
}

func (h *componentHandler) Handle(ctx context.Context, r slog.Record) error {
	component := h.component
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == ComponentKey {
			component = a.Value.String()
			return false
		}
		return true
	})
	if r.Level < h.threshold(component) {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *componentHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	for _, a := range attrs {
		if a.Key == ComponentKey {
			next.component = a.Value.String()
		}
	}
	next.inner = h.inner.WithAttrs(attrs)
	return &next
}

func (h *componentHandler) WithGroup(name string) slog.Handler {
	next := *h
	next.inner = h.inner.WithGroup(name)
	return &next
}

// dailyFile writes to <dir>/<prefix>-YYYY-MM-DD.log through lumberjack,
// starting a new file when the date changes.
type dailyFile struct {
	dir        string
	prefix     string
	maxSizeMB  int
	maxBackups int
	now        func() time.Time

	mu  sync.Mutex
	day string
	out *lumberjack.Logger
}

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().Format(time.DateOnly)
	if d.out == nil || day != d.day {
		if d.out != nil {
			_ = d.out.Close()
		}
		d.out = &lumberjack.Logger{
			Filename:   filepath.Join(d.dir, fmt.Sprintf("%s-%s.log", d.prefix, day)),
			MaxSize:    d.maxSizeMB,
			MaxBackups: d.maxBackups,
			LocalTime:  true,
		}
		d.day = day
	}
	return d.out.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.out == nil {
		return nil
	}
	err := d.out.Close()
	d.out = nil
	return err
}
