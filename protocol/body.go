package protocol

import (
	stderrors "errors"
	"io"
)

// ProgressFunc reports body transfer progress. total is -1 when the length
// is not known in advance (chunked bodies and event streams).
type ProgressFunc func(transferred, total int64)

// TransferOptions tune a single SendBody or ReceiveBody call.
type TransferOptions struct {
	// PageSize overrides the protocol page size when positive.
	PageSize int
	Progress ProgressFunc
}

func (o TransferOptions) pageSize(fallback int) int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return fallback
}

func (o TransferOptions) report(transferred, total int64) {
	if o.Progress != nil {
		o.Progress(transferred, total)
	}
}

var errNegativeOffset = stderrors.New("protocol: seek to negative offset")

// MemorySink is a growable in-memory io.WriteSeeker. Writes past the end
// extend it; seeking back and writing again overwrites in place.
type MemorySink struct {
	buf []byte
	off int64
}

func (m *MemorySink) Write(p []byte) (int, error) {
	end := m.off + int64(len(p))
	if size := len(m.buf); end > int64(size) {
		if end > int64(cap(m.buf)) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			// a gap left by seeking past the end reads as zeros
			m.buf = m.buf[:end]
			clear(m.buf[size:])
		}
	}
	copy(m.buf[m.off:], p)
	m.off = end
	return len(p), nil
}

func (m *MemorySink) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = m.off
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return m.off, stderrors.New("protocol: invalid whence")
	}
	if base+offset < 0 {
		return m.off, errNegativeOffset
	}
	m.off = base + offset
	return m.off, nil
}

func (m *MemorySink) Bytes() []byte  { return m.buf }
func (m *MemorySink) String() string { return string(m.buf) }
func (m *MemorySink) Len() int       { return len(m.buf) }

// Reset empties the sink and rewinds it.
func (m *MemorySink) Reset() {
	m.buf = m.buf[:0]
	m.off = 0
}

type discard struct{}

func (discard) Write(p []byte) (int, error)                  { return len(p), nil }
func (discard) Seek(offset int64, whence int) (int64, error) { return 0, nil }

// Discard is a null sink. Redirect bodies are drained into it.
var Discard io.WriteSeeker = discard{}

// Remaining returns the number of bytes between the current position of s
// and its end, leaving the position unchanged.
func Remaining(s io.Seeker) (int64, error) {
	cur, err := s.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, err
	}
	end, err := s.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := s.Seek(cur, io.SeekStart); err != nil {
		return 0, err
	}
	return end - cur, nil
}
