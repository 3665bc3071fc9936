package file

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"iter"
	"os"
	"time"

	"logsentry/internal/logger"
	"logsentry/internal/transform/logline"
	"logsentry/pkg/models"
)

const maxLineSize = 4 * 1024 * 1024

// Error locates a read or parse failure.
type Error struct {
	Path string
	Line int // 0 when the file itself is at fault
	Err  error
}

func (e *Error) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Reader streams events from newline-delimited JSON files, one file after
// another. Blank lines and records without a timestamp are skipped. The first
// error stops the stream and is reported by Err.
type Reader struct {
	paths    []string
	location *time.Location
	err      error
	read     int
	skipped  int
}

// NewReader creates a reader over paths. Naive timestamps are read in loc,
// or UTC when loc is nil.
func NewReader(paths []string, loc *time.Location) *Reader {
	if loc == nil {
		loc = time.UTC
	}
	return &Reader{paths: paths, location: loc}
}

// Events yields events lazily. Stopping early leaves the current file closed.
func (r *Reader) Events() iter.Seq[models.Event] {
	return func(yield func(models.Event) bool) {
		for _, path := range r.paths {
			if !r.readFile(path, yield) {
				return
			}
		}
	}
}

func (r *Reader) readFile(path string, yield func(models.Event) bool) bool {
	f, err := os.Open(path)
	if err != nil {
		r.err = &Error{Path: path, Err: err}
		return false
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for sc.Scan() {
		line++
		data := bytes.TrimSpace(sc.Bytes())
		if len(data) == 0 {
			continue
		}
		ev, err := logline.ParseInLocation(data, path, r.location)
		if errors.Is(err, logline.ErrNoTimestamp) {
			r.skipped++
			logger.Debugf("Skipping %s:%d: %v", path, line, err)
			continue
		}
		if err != nil {
			r.err = &Error{Path: path, Line: line, Err: err}
			return false
		}
		r.read++
		if !yield(*ev) {
			return false
		}
	}
	if err := sc.Err(); err != nil {
		r.err = &Error{Path: path, Line: line + 1, Err: err}
		return false
	}
	return true
}

// Err returns the error that stopped the stream, if any.
func (r *Reader) Err() error {
	return r.err
}

// Read is the number of events yielded so far.
func (r *Reader) Read() int {
	return r.read
}

// Skipped is the number of records dropped for lacking a timestamp.
func (r *Reader) Skipped() int {
	return r.skipped
}
