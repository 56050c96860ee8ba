package protocol

import (
	"strings"

	"github.com/valyala/bytebufferpool"
)

// HeaderBuffer accumulates the header lines of exactly one message.
//
// BeginMessage marks a message boundary. The text of the finished message
// stays readable through Get and String until the next message is opened,
// either explicitly with Open or by the first Add/AddBlock after the boundary.
type HeaderBuffer struct {
	buf             *bytebufferpool.ByteBuffer
	beganNewMessage bool
}

// NewHeaderBuffer returns an empty buffer backed by the shared pool.
func NewHeaderBuffer() *HeaderBuffer {
	return &HeaderBuffer{buf: bytebufferpool.Get()}
}

func (h *HeaderBuffer) bytes() *bytebufferpool.ByteBuffer {
	if h.buf == nil {
		h.buf = bytebufferpool.Get()
	}
	return h.buf
}

// BeginMessage marks the end of the current message.
func (h *HeaderBuffer) BeginMessage() {
	h.beganNewMessage = true
}

// Open starts a new message, dropping the previous one if a boundary was marked.
func (h *HeaderBuffer) Open() {
	if h.beganNewMessage {
		h.bytes().Reset()
		h.beganNewMessage = false
	}
}

// Add appends "key: value\r\n".
func (h *HeaderBuffer) Add(key, value string) {
	h.Open()
	b := h.bytes()
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteString("\r\n")
}

// AddBlock appends a raw block of header lines. Lines may be separated by
// LF or CRLF; blank lines are dropped so the block can never end the head early.
func (h *HeaderBuffer) AddBlock(raw string) {
	h.Open()
	for _, line := range strings.Split(raw, "\n") {
		h.appendLine(line)
	}
}

// appendLine adds one line to the current message without opening a new one.
// Trailers received after a chunked body use it to extend the response head.
func (h *HeaderBuffer) appendLine(line string) {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return
	}
	b := h.bytes()
	b.WriteString(line)
	b.WriteString("\r\n")
}

// Get returns the trimmed value of the first line whose key matches key
// case-insensitively, or "" when there is none.
func (h *HeaderBuffer) Get(key string) string {
	value, _ := h.Lookup(key)
	return value
}

// Lookup is Get with a presence flag.
func (h *HeaderBuffer) Lookup(key string) (string, bool) {
	key = strings.TrimSpace(key)
	text := h.String()
	for text != "" {
		var line string
		line, text, _ = strings.Cut(text, "\n")
		k, v := splitHeaderLine(line)
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

// Pending returns the headers queued for the next outgoing message. After a
// boundary nothing is pending.
func (h *HeaderBuffer) Pending() string {
	if h.beganNewMessage {
		return ""
	}
	return h.String()
}

func (h *HeaderBuffer) String() string {
	if h.buf == nil {
		return ""
	}
	return h.buf.String()
}

func (h *HeaderBuffer) Len() int {
	if h.buf == nil {
		return 0
	}
	return h.buf.Len()
}

// Release hands the backing buffer back to the pool. The buffer stays usable
// and fetches a fresh one on the next write.
func (h *HeaderBuffer) Release() {
	if h.buf != nil {
		bytebufferpool.Put(h.buf)
		h.buf = nil
	}
	h.beganNewMessage = false
}

// WithoutHeader returns block with every line whose key equals key
// (case-insensitively) removed.
func WithoutHeader(block, key string) string {
	var sb strings.Builder
	for _, line := range strings.Split(block, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if k, _ := splitHeaderLine(line); strings.EqualFold(k, key) {
			continue
		}
		sb.WriteString(strings.TrimRight(line, "\r"))
		sb.WriteString("\r\n")
	}
	return sb.String()
}
