// Package logging configures the process-wide zerolog logger and the rotating
// HTTP access log.
package logging

import (
	"LogFlowSketcher/internal/config"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup points the global logger at the configured outputs. The returned
// closer releases the log file, if any.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level '%s': %w", cfg.Level, err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		file := newRotatingFile(cfg.File)
		out = zerolog.MultiLevelWriter(out, file)
		closer = file
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}

func newRotatingFile(filename string) *lumberjack.Logger {
	return &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// AccessLog writes one line per HTTP request to a rotating file. Lines are
// handed to a background goroutine so slow disks never stall a request.
type AccessLog struct {
	ch        chan []byte
	out       io.WriteCloser
	done      chan struct{}
	closeOnce sync.Once
}

// NewAccessLog starts an access log writing to filename. An empty filename
// yields a log that discards every line.
func NewAccessLog(filename string) *AccessLog {
	if filename == "" {
		return &AccessLog{}
	}
	return newAccessLog(newRotatingFile(filename))
}

func newAccessLog(out io.WriteCloser) *AccessLog {
	a := &AccessLog{
		ch:   make(chan []byte, 64),
		out:  out,
		done: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AccessLog) run() {
	defer close(a.done)
	for line := range a.ch {
		if len(line) == 0 {
			continue
		}
		// ensure a newline in logged message
		if _, err := a.out.Write(append(line, '\n')); err != nil {
			log.Warn().Err(err).Int("bytes", len(line)+1).Msg("could not write access log line")
		}
	}
}

// Write queues a single line. It must not be called after Close.
func (a *AccessLog) Write(line []byte) {
	if a == nil || a.ch == nil {
		return
	}
	a.ch <- line
}

// Close flushes the queued lines and closes the file.
func (a *AccessLog) Close() error {
	if a == nil || a.ch == nil {
		return nil
	}
	var err error
	a.closeOnce.Do(func() {
		close(a.ch)
		<-a.done
		err = a.out.Close()
	})
	return err
}
