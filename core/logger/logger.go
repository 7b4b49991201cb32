package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
)

// ContextExtractor pulls a structured attribute out of a context.Context,
// reporting whether one was found.
type ContextExtractor func(ctx context.Context) (slog.Attr, bool)

type options struct {
	level             slog.Level
	json              bool
	output            io.Writer
	attrs             []slog.Attr
	handlerOpts       *slog.HandlerOptions
	contextValues     map[string]string
	contextExtractors []ContextExtractor
	appName           string
}

// Option configures a logger built by New.
type Option func(*options)

// WithDevelopment configures a text-format, debug-level logger writing to
// stdout, tagged with appName.
func WithDevelopment(appName string) Option {
	return func(o *options) {
		o.appName = appName
		o.level = slog.LevelDebug
		o.json = false
		o.output = os.Stdout
	}
}

// WithProduction configures a JSON-format, info-level logger writing to
// stdout, tagged with appName.
func WithProduction(appName string) Option {
	return func(o *options) {
		o.appName = appName
		o.level = slog.LevelInfo
		o.json = true
		o.output = os.Stdout
	}
}

// WithStaging configures a JSON-format, info-level logger writing to
// stdout, tagged with appName — identical to WithProduction, named
// separately so call sites document intent.
func WithStaging(appName string) Option {
	return WithProduction(appName)
}

// WithLevel overrides the minimum log level.
func WithLevel(level slog.Level) Option {
	return func(o *options) { o.level = level }
}

// WithJSONFormatter selects JSON output instead of text.
func WithJSONFormatter() Option {
	return func(o *options) { o.json = true }
}

// WithOutput overrides the output writer (default os.Stdout).
func WithOutput(w io.Writer) Option {
	return func(o *options) { o.output = w }
}

// WithAttr attaches static attributes to every record the logger emits.
func WithAttr(attrs ...slog.Attr) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// WithContextValue registers a context.Value key to extract automatically
// and log under attrName on every *Context call.
func WithContextValue(key, attrName string) Option {
	return func(o *options) {
		if o.contextValues == nil {
			o.contextValues = make(map[string]string)
		}
		o.contextValues[key] = attrName
	}
}

// WithContextExtractors registers custom context-attribute extractors run
// on every *Context call, in order.
func WithContextExtractors(extractors ...ContextExtractor) Option {
	return func(o *options) { o.contextExtractors = append(o.contextExtractors, extractors...) }
}

// WithHandlerOptions overrides the underlying slog.HandlerOptions
// wholesale (AddSource, custom ReplaceAttr, ...).
func WithHandlerOptions(ho *slog.HandlerOptions) Option {
	return func(o *options) { o.handlerOpts = ho }
}

// New builds a *slog.Logger from the given options, applied in order.
func New(opts ...Option) *slog.Logger {
	o := &options{level: slog.LevelInfo, output: os.Stdout}
	for _, opt := range opts {
		opt(o)
	}

	ho := o.handlerOpts
	if ho == nil {
		ho = &slog.HandlerOptions{Level: o.level}
	} else if ho.Level == nil {
		ho.Level = o.level
	}

	var handler slog.Handler
	if o.json {
		handler = slog.NewJSONHandler(o.output, ho)
	} else {
		handler = slog.NewTextHandler(o.output, ho)
	}

	if len(o.contextValues) > 0 || len(o.contextExtractors) > 0 {
		handler = &contextHandler{
			Handler:           handler,
			contextValues:     o.contextValues,
			contextExtractors: o.contextExtractors,
		}
	}

	l := slog.New(handler)
	if o.appName != "" {
		l = l.With(slog.String("app", o.appName))
	}
	if len(o.attrs) > 0 {
		args := make([]any, len(o.attrs))
		for i, a := range o.attrs {
			args[i] = a
		}
		l = l.With(args...)
	}
	return l
}

// SetAsDefault installs l as slog's package-level default logger.
func SetAsDefault(l *slog.Logger) {
	slog.SetDefault(l)
}

// contextHandler decorates a slog.Handler, injecting attributes pulled
// from the record's context on every Handle call.
type contextHandler struct {
	slog.Handler
	contextValues     map[string]string
	contextExtractors []ContextExtractor
}

func (h *contextHandler) Handle(ctx context.Context, r slog.Record) error {
	for key, attrName := range h.contextValues {
		if v := ctx.Value(key); v != nil {
			r.AddAttrs(slog.Any(attrName, v))
		}
	}
	for _, extractor := range h.contextExtractors {
		if attr, ok := extractor(ctx); ok {
			r.AddAttrs(attr)
		}
	}
	return h.Handler.Handle(ctx, r)
}

func (h *contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &contextHandler{
		Handler:           h.Handler.WithAttrs(attrs),
		contextValues:     h.contextValues,
		contextExtractors: h.contextExtractors,
	}
}

func (h *contextHandler) WithGroup(name string) slog.Handler {
	return &contextHandler{
		Handler:           h.Handler.WithGroup(name),
		contextValues:     h.contextValues,
		contextExtractors: h.contextExtractors,
	}
}
