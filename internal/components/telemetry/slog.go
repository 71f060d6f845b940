package telemetry

import (
	"fmt"
	"io"
	"log/slog"
)

// NewLogger creates the process logger, verbose enables debug reports.
func NewLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// SlogAPI implements API on top of a *slog.Logger.
type SlogAPI struct {
	logger *slog.Logger
}

func NewSlogAPI(logger *slog.Logger) SlogAPI {
	return SlogAPI{logger: logger}
}

// params are numbered in the order they were given: params.0, params.1, ...
func (s SlogAPI) attrs(out []any, params []any) []any {
	for i, p := range params {
		if err, ok := p.(error); ok {
			p = err.Error()
		}
		out = append(out, fmt.Sprintf("params.%d", i), p)
	}
	return out
}

func (s SlogAPI) ReportBroken(id string, params ...any) {
	s.logger.Error("broken component", s.attrs([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportWarning(id string, params ...any) {
	s.logger.Warn("warning", s.attrs([]any{"id", id}, params)...)
}

func (s SlogAPI) ReportDebug(msg string, params ...any) {
	s.logger.Debug(msg, s.attrs(nil, params)...)
}

func (s SlogAPI) ReportCount(id string, count int64) {
	s.logger.Info("count", "id", id, "n", count)
}
