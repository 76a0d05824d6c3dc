package persistence

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
)

// Log is an append-only file of frames. It is safe for concurrent use.
type Log struct {
	mu     sync.Mutex
	file   *os.File
	buf    *bufio.Writer
	fw     *FrameWriter
	path   string
	closed bool
}

// OpenLog opens or creates the log at path for appending.
func OpenLog(path string) (*Log, error) {
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open edge log: %w", err)
	}
	buf := bufio.NewWriter(file)
	return &Log{
		file: file,
		buf:  buf,
		fw:   NewFrameWriter(buf),
		path: path,
	}, nil
}

// Append buffers one frame. Call Flush or Sync to make it durable.
func (l *Log) Append(op OpCode, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return os.ErrClosed
	}
	return l.fw.WriteFrame(op, payload)
}

// Flush writes buffered frames to the OS.
func (l *Log) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	return l.buf.Flush()
}

// Sync flushes and fsyncs.
func (l *Log) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	if err := l.buf.Flush(); err != nil {
		return err
	}
	return l.file.Sync()
}

// Path returns the file path.
func (l *Log) Path() string {
	return l.path
}

// Close flushes and closes the file. It is idempotent.
func (l *Log) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	if err := l.buf.Flush(); err != nil {
		_ = l.file.Close()
		return err
	}
	return l.file.Close()
}

// Replay calls apply for every frame in the file at path, in order. A
// missing file replays nothing. A frame cut short at the end of the file is
// treated as the end of the log (torn final write) and reported through the
// truncated return value; any other corruption is an error.
func Replay(path string, apply func(Frame) error) (n int, truncated bool, err error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to open edge log: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	for {
		frame, err := ReadFrame(r)
		switch {
		case err == io.EOF:
			return n, false, nil
		case errors.Is(err, ErrIncompleteFrame):
			return n, true, nil
		case err != nil:
			return n, false, fmt.Errorf("edge log %s: frame %d: %w", path, n, err)
		}
		if err := apply(frame); err != nil {
			return n, false, fmt.Errorf("edge log %s: frame %d: %w", path, n, err)
		}
		n++
	}
}
