// Package logging builds the log output shared by every component. Each
// component gets its own *log.Logger with a bracketed prefix such as
// "[sync] ".
package logging

import (
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options selects where logs go.
type Options struct {
	// File enables a rotating log file. Empty logs to stderr only.
	File string
	// Tee writes to stderr as well as File.
	Tee bool

	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Output is an opened log destination.
type Output struct {
	w    io.Writer
	file *lumberjack.Logger
}

// Open prepares the destination described by opts. stderr is used for
// console output; nil means os.Stderr.
func Open(opts Options, stderr io.Writer) (*Output, error) {
	if stderr == nil {
		stderr = os.Stderr
	}
	if opts.File == "" {
		return &Output{w: stderr}, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
		return nil, err
	}

	file := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
	}
	out := &Output{w: file, file: file}
	if opts.Tee {
		out.w = io.MultiWriter(stderr, file)
	}
	return out, nil
}

// Writer returns the underlying writer.
func (o *Output) Writer() io.Writer {
	return o.w
}

// Logger returns a logger for component, prefixed "[component] ".
func (o *Output) Logger(component string) *log.Logger {
	return log.New(o.w, "["+component+"] ", log.LstdFlags)
}

// Close flushes and closes the log file, if any.
func (o *Output) Close() error {
	if o.file == nil {
		return nil
	}
	return o.file.Close()
}
