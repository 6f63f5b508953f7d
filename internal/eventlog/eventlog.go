// Package eventlog stores streams of normalized seat events so a session
// can be inspected or replayed later.
//
// A log starts with a short magic header, followed by records. Each record
// is a 4 byte big-endian length and a protobuf wire-format message.
package eventlog

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bnema/inputseat/internal/seat"
)

// maxRecordSize bounds a single record; larger lengths mean corruption
const maxRecordSize = 4096

var magic = []byte("ISEL\x00\x01")

var (
	ErrCorrupt = errors.New("event log corrupt")
	ErrClosed  = errors.New("event log closed")
)

// Writer appends records. It is safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
	buf    []byte
	closed bool
}

// NewWriter writes the header to w and returns a writer for it
func NewWriter(w io.Writer) (*Writer, error) {
	if _, err := w.Write(magic); err != nil {
		return nil, fmt.Errorf("failed to write header: %w", err)
	}
	return &Writer{w: w}, nil
}

// Create truncates or creates the file at path
func Create(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create event log: %w", err)
	}
	bw := bufio.NewWriter(f)
	w, err := NewWriter(bw)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	w.closer = &fileCloser{bw: bw, f: f}
	return w, nil
}

type fileCloser struct {
	bw *bufio.Writer
	f  *os.File
}

func (c *fileCloser) Close() error {
	if err := c.bw.Flush(); err != nil {
		_ = c.f.Close()
		return err
	}
	return c.f.Close()
}

// Write records a normalized event
func (w *Writer) Write(ev seat.Event) error {
	return w.WriteRecord(FromEvent(ev))
}

func (w *Writer) WriteRecord(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	w.buf = append(w.buf[:0], 0, 0, 0, 0)
	w.buf = r.marshal(w.buf)
	size := len(w.buf) - 4
	if size > maxRecordSize {
		return fmt.Errorf("record of %d bytes exceeds limit", size)
	}
	binary.BigEndian.PutUint32(w.buf, uint32(size))

	if _, err := w.w.Write(w.buf); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// Flush pushes buffered records to the underlying writer if it buffers
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if flusher, ok := w.w.(interface{ Flush() error }); ok {
		return flusher.Flush()
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}

// Reader reads records in order
type Reader struct {
	r      io.Reader
	closer io.Closer
	header bool
	buf    []byte
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Open opens the log at path
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return &Reader{r: bufio.NewReader(f), closer: f}, nil
}

// Next returns the next record, or io.EOF at a clean end of the log
func (r *Reader) Next() (Record, error) {
	if !r.header {
		hdr := make([]byte, len(magic))
		if _, err := io.ReadFull(r.r, hdr); err != nil {
			return Record{}, fmt.Errorf("%w: missing header", ErrCorrupt)
		}
		if string(hdr) != string(magic) {
			return Record{}, fmt.Errorf("%w: not an event log", ErrCorrupt)
		}
		r.header = true
	}

	var lengthBuf [4]byte
	if _, err := io.ReadFull(r.r, lengthBuf[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("%w: truncated length", ErrCorrupt)
	}
	size := binary.BigEndian.Uint32(lengthBuf[:])
	if size > maxRecordSize {
		return Record{}, fmt.Errorf("%w: record length %d", ErrCorrupt, size)
	}

	if cap(r.buf) < int(size) {
		r.buf = make([]byte, size)
	}
	r.buf = r.buf[:size]
	if _, err := io.ReadFull(r.r, r.buf); err != nil {
		return Record{}, fmt.Errorf("%w: truncated record", ErrCorrupt)
	}

	var rec Record
	if err := rec.unmarshal(r.buf); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return rec, nil
}

func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}
