// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

const (
	FormatText  = "text"
	FormatJSONL = "jsonl"
)

const (
	timeFormat = "2006-01-02T15:04:05.000Z07:00"
)

// SimpleLogger writes one record per message.  Fields are written in sorted
// key order, and a message with an "err" field is logged at the error level.
type SimpleLogger struct {
	logger *slog.Logger
}

func (l *SimpleLogger) Log(msg string, fields ...map[string]interface{}) error {
	level := slog.LevelInfo
	keys := []string{}
	values := map[string]interface{}{}
	for _, m := range fields {
		for k, v := range m {
			if _, ok := values[k]; !ok {
				keys = append(keys, k)
			}
			values[k] = v
			if k == "err" {
				level = slog.LevelError
			}
		}
	}
	sort.Strings(keys)
	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		attrs = append(attrs, slog.Any(k, values[k]))
	}
	l.logger.LogAttrs(context.Background(), level, msg, attrs...)
	return nil
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}
	return false
}

// NewSimpleLogger returns a logger writing in the given format, either text or jsonl.
// Text output is colored only when written to a terminal.
func NewSimpleLogger(w io.Writer, format string) (*SimpleLogger, error) {
	var handler slog.Handler
	switch format {
	case FormatText, "":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: timeFormat,
			NoColor:    !isTerminal(w),
		})
	case FormatJSONL:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: slog.LevelDebug,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey && len(groups) == 0 {
					return slog.String(slog.TimeKey, a.Value.Time().UTC().Format(time.RFC3339Nano))
				}
				return a
			},
		})
	default:
		return nil, fmt.Errorf("unknown log format %q, expecting %q or %q", format, FormatText, FormatJSONL)
	}
	return &SimpleLogger{logger: slog.New(handler)}, nil
}
