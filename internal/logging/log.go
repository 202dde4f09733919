// SPDX-License-Identifier: AGPL-3.0-or-later
// cluster-controller - a distributed service-oriented middleware core
// Copyright (C) 2026 The cluster-controller contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package logging builds the process-wide slog.Logger from the
// configured level, tinting its output with tint, and optionally fans
// records out to a second handler for DLT-style log collection.
package logging

import (
	"context"
	"log/slog"
	"os"

	"github.com/joynr-go/cluster-controller/internal/config"
	"github.com/lmittmann/tint"
)

// New builds the default stdout/stderr slog.Logger for the given level.
// The configured level picks a single stream: WARN, ERROR and FATAL
// write to stderr, every other level to stdout, so at TRACE, DEBUG and
// INFO warnings and errors go to stdout as well.
func New(level config.LogLevel) *slog.Logger {
	return slog.New(newHandler(level))
}

// NewWithSink builds a logger that fans every record out to both the
// tinted stdout/stderr handler and sink, e.g. a DLT forwarder.
func NewWithSink(level config.LogLevel, sink slog.Handler) *slog.Logger {
	return slog.New(&multiHandler{handlers: []slog.Handler{newHandler(level), sink}})
}

func newHandler(level config.LogLevel) slog.Handler {
	switch level {
	case config.LogLevelTrace, config.LogLevelDebug:
		return tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelDebug})
	case config.LogLevelInfo:
		return tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo})
	case config.LogLevelWarn:
		return tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelWarn})
	case config.LogLevelError, config.LogLevelFatal:
		return tint.NewHandler(os.Stderr, &tint.Options{Level: slog.LevelError})
	default:
		return tint.NewHandler(os.Stdout, &tint.Options{Level: slog.LevelInfo})
	}
}

// multiHandler fans every record out to each wrapped handler in order,
// stopping at the first error. The stdlib gained slog.NewMultiHandler
// too late for the module's pinned Go toolchain, hence the hand roll.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, record slog.Record) error {
	for _, h := range m.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}
	return nil
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
