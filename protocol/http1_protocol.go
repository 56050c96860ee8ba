package protocol

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"

	httperrors "github.com/nczempin/httpc-engine/errors"
	"github.com/nczempin/httpc-engine/transport"
)

var (
	crlf          = []byte("\r\n")
	lastChunk     = []byte("0\r\n\r\n")
	eventStreamCT = "TEXT/EVENT-STREAM"
)

// Http1Protocol implements HTTP/1.1 framing over a transport. It owns the
// header buffer and the transfer state of the message in flight and is
// shared by the client and the server. It is not safe for concurrent use.
type Http1Protocol struct {
	transport transport.Transport
	reader    *bufio.Reader
	headers   *HeaderBuffer
	cfg       protocolConfig

	contentLength int64
	chunked       bool
	eventStream   bool
}

// NewHttp1Protocol creates a new HTTP/1.1 protocol handler
func NewHttp1Protocol(t transport.Transport, opts ...Option) *Http1Protocol {
	cfg := defaultProtocolConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	size := cfg.maxLineBytes
	if cfg.pageSize > size {
		size = cfg.pageSize
	}

	return &Http1Protocol{
		transport: t,
		reader:    bufio.NewReaderSize(t, size),
		headers:   NewHeaderBuffer(),
		cfg:       cfg,
	}
}

// Connect connects the transport to addr.
func (p *Http1Protocol) Connect(addr transport.Address) error {
	return p.transport.Connect(addr)
}

// Renew closes the current connection and drops any buffered input so the
// transport can be connected again.
func (p *Http1Protocol) Renew() error {
	err := p.transport.Close()
	p.reader.Reset(p.transport)
	return err
}

// Close closes the transport and returns the header buffer to its pool.
func (p *Http1Protocol) Close() error {
	err := p.Renew()
	p.headers.Release()
	return err
}

// PageSize returns the configured transfer page size.
func (p *Http1Protocol) PageSize() int {
	return p.cfg.pageSize
}

// AddHeaderField queues "key: value" for the next outgoing message.
func (p *Http1Protocol) AddHeaderField(key, value string) {
	p.headers.Add(key, value)
}

// AddHeaderFields queues a raw block of header lines.
func (p *Http1Protocol) AddHeaderFields(block string) {
	p.headers.AddBlock(block)
}

// HeaderField looks key up case-insensitively in the current header text.
func (p *Http1Protocol) HeaderField(key string) string {
	return p.headers.Get(key)
}

// HasHeaderField reports whether key is present in the current header text.
func (p *Http1Protocol) HasHeaderField(key string) bool {
	_, ok := p.headers.Lookup(key)
	return ok
}

// Headers returns the raw text of the current message's headers.
func (p *Http1Protocol) Headers() string {
	return p.headers.String()
}

// PendingHeaders returns the headers queued for the next outgoing message.
func (p *Http1Protocol) PendingHeaders() string {
	return p.headers.Pending()
}

// OpenHeaders starts a new outgoing message, dropping the previous one's
// headers if it has completed.
func (p *Http1Protocol) OpenHeaders() {
	p.headers.Open()
}

// ResetTransferState clears content length and framing flags.
func (p *Http1Protocol) ResetTransferState() {
	p.contentLength = 0
	p.chunked = false
	p.eventStream = false
}

func (p *Http1Protocol) SetChunked(chunked bool)         { p.chunked = chunked }
func (p *Http1Protocol) Chunked() bool                   { return p.chunked }
func (p *Http1Protocol) SetEventStream(eventStream bool) { p.eventStream = eventStream }
func (p *Http1Protocol) EventStream() bool               { return p.eventStream }

// ContentLength is the body length announced by the last received head. For
// event streams it is the page size used per read.
func (p *Http1Protocol) ContentLength() int64 {
	return p.contentLength
}

// BodyExpected reports whether the last received head announced a body.
func (p *Http1Protocol) BodyExpected() bool {
	return p.chunked || p.eventStream || p.contentLength > 0
}

// SendRequest writes the request line and the pending headers. A target
// with blanks or control characters would split the request line; it is
// refused before anything is written and the pending headers are dropped.
func (p *Http1Protocol) SendRequest(req HttpRequest) error {
	if i := strings.IndexFunc(req.Path, func(r rune) bool { return r <= ' ' || r == 0x7f }); i >= 0 {
		p.headers.BeginMessage()
		return httperrors.NewProtocolError(httperrors.ProtocolErrorInvalidRequestLine,
			fmt.Sprintf("request target %q has a blank or control character at %d", req.Path, i))
	}
	return p.sendHead(req.String())
}

// SendResponse writes the status line and the pending headers.
func (p *Http1Protocol) SendResponse(resp HttpResponse) error {
	return p.sendHead(resp.String())
}

func (p *Http1Protocol) sendHead(startLine string) error {
	out := bytebufferpool.Get()
	defer bytebufferpool.Put(out)

	out.WriteString(startLine)
	out.Write(crlf)
	out.WriteString(p.headers.Pending())
	out.Write(crlf)

	p.headers.BeginMessage()
	return p.write(out.B)
}

// SendBody writes everything from the current position of src to its end.
// With chunked framing active the body is split into page sized chunks and
// terminated by a zero length chunk.
func (p *Http1Protocol) SendBody(src io.ReadSeeker, opts TransferOptions) error {
	if src == nil {
		if p.chunked {
			return p.write(lastChunk)
		}
		return nil
	}
	size, err := Remaining(src)
	if err != nil {
		return httperrors.NewInvalidArgumentError("body source is not seekable").WithCause(err)
	}

	page := make([]byte, opts.pageSize(p.cfg.pageSize))
	var frame *bytebufferpool.ByteBuffer
	if p.chunked {
		frame = bytebufferpool.Get()
		defer bytebufferpool.Put(frame)
	}

	var sent int64
	for sent < size {
		n := int64(len(page))
		if size-sent < n {
			n = size - sent
		}
		if _, err := io.ReadFull(src, page[:n]); err != nil {
			return errors.Wrap(err, "read request body")
		}

		if p.chunked {
			frame.Reset()
			frame.B = strconv.AppendInt(frame.B, n, 16)
			frame.Write(crlf)
			frame.Write(page[:n])
			frame.Write(crlf)
			err = p.write(frame.B)
		} else {
			err = p.write(page[:n])
		}
		if err != nil {
			return err
		}

		sent += n
		opts.report(sent, size)
	}

	if p.chunked {
		return p.write(lastChunk)
	}
	return nil
}

func (p *Http1Protocol) write(b []byte) error {
	for len(b) > 0 {
		n, err := p.transport.Write(b)
		if err != nil {
			return err
		}
		if n == 0 {
			return httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "short write", io.ErrShortWrite)
		}
		b = b[n:]
	}
	return nil
}

// ReadLine reads one CRLF (or bare LF) terminated line and strips the terminator.
func (p *Http1Protocol) ReadLine() (string, error) {
	line, err := p.reader.ReadSlice('\n')
	if err != nil {
		if stderrors.Is(err, bufio.ErrBufferFull) {
			return "", httperrors.NewProtocolError(httperrors.ProtocolErrorLineTooLong,
				fmt.Sprintf("line exceeds %d bytes", p.cfg.maxLineBytes))
		}
		return "", err
	}
	if len(line) > p.cfg.maxLineBytes+2 {
		return "", httperrors.NewProtocolError(httperrors.ProtocolErrorLineTooLong,
			fmt.Sprintf("line exceeds %d bytes", p.cfg.maxLineBytes))
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// ReceiveHeaderFields reads header lines up to the blank line that ends the
// head and classifies the body framing. A stream preset with SetEventStream
// is kept when the response announces neither a length nor chunked framing.
// The raw header text is returned and stays available to HeaderField.
func (p *Http1Protocol) ReceiveHeaderFields() (string, error) {
	p.headers.Open()
	defer p.headers.BeginMessage()

	expectStream := p.eventStream
	p.ResetTransferState()

	var lengthSeen, streamType bool
	for {
		line, err := p.ReadLine()
		if err != nil {
			return p.headers.String(), err
		}
		if line == "" {
			break
		}
		p.headers.appendLine(line)

		field := ParseHeaderField(line)
		switch field.Key {
		case "CONTENT-LENGTH":
			n, err := strconv.ParseInt(field.Value, 10, 64)
			if err != nil || n < 0 {
				return p.headers.String(), httperrors.NewProtocolError(httperrors.ProtocolErrorInvalidHeader,
					fmt.Sprintf("invalid Content-Length %q", field.Value))
			}
			p.contentLength = n
			lengthSeen = true
		case "CONTENT-TYPE":
			streamType = strings.HasPrefix(field.Value, eventStreamCT)
		case "TRANSFER-ENCODING":
			codings := strings.Split(field.Value, ",")
			p.chunked = strings.TrimSpace(codings[len(codings)-1]) == "CHUNKED"
		}
	}

	if !p.chunked && (streamType || (expectStream && !lengthSeen)) {
		p.eventStream = true
		p.contentLength = int64(p.cfg.pageSize)
	}

	p.cfg.logger.Debug("received header block",
		zap.Int("bytes", p.headers.Len()),
		zap.Int64("contentLength", p.contentLength),
		zap.Bool("chunked", p.chunked),
		zap.Bool("eventStream", p.eventStream))

	return p.headers.String(), nil
}

// ReceiveBody reads the body announced by the last received head into sink.
func (p *Http1Protocol) ReceiveBody(sink io.Writer, opts TransferOptions) error {
	if sink == nil {
		sink = Discard
	}
	switch {
	case p.chunked:
		return p.receiveChunked(sink, opts)
	case p.eventStream:
		return p.receiveStream(sink, opts)
	default:
		var received int64
		return p.copyBody(sink, p.contentLength, p.contentLength, &received, opts)
	}
}

func (p *Http1Protocol) receiveChunked(sink io.Writer, opts TransferOptions) error {
	var received int64
	for {
		size, err := p.chunkSize()
		if err != nil {
			return err
		}
		if size == 0 {
			return p.receiveTrailers()
		}

		if err := p.copyBody(sink, size, -1, &received, opts); err != nil {
			return err
		}

		line, err := p.ReadLine()
		if err != nil {
			return err
		}
		if line != "" {
			return httperrors.NewProtocolError(httperrors.ProtocolErrorInvalidChunkedEncoding, "missing CRLF after chunk data")
		}
	}
}

// chunkSize reads a chunk size line, ignoring chunk extensions.
func (p *Http1Protocol) chunkSize() (int64, error) {
	line, err := p.ReadLine()
	if err != nil {
		return 0, err
	}
	hex, _, _ := strings.Cut(line, ";")
	size, err := strconv.ParseUint(strings.TrimSpace(hex), 16, 63)
	if err != nil {
		return 0, httperrors.NewProtocolError(httperrors.ProtocolErrorInvalidChunkedEncoding,
			fmt.Sprintf("invalid chunk size %q", line)).WithCause(err)
	}
	return int64(size), nil
}

func (p *Http1Protocol) receiveTrailers() error {
	for {
		line, err := p.ReadLine()
		if err != nil {
			return err
		}
		if line == "" {
			return nil
		}
		p.headers.appendLine(line)
	}
}

// receiveStream copies whatever each read returns until the peer closes.
func (p *Http1Protocol) receiveStream(sink io.Writer, opts TransferOptions) error {
	size := p.contentLength
	if size <= 0 {
		size = int64(p.cfg.pageSize)
	}
	page := make([]byte, size)
	var received int64
	for {
		n, err := p.reader.Read(page)
		if n > 0 {
			if _, werr := sink.Write(page[:n]); werr != nil {
				return errors.Wrap(werr, "write event stream")
			}
			received += int64(n)
			opts.report(received, -1)
		}
		if err != nil {
			if isClosed(err) {
				return nil
			}
			return err
		}
	}
}

// copyBody moves exactly n bytes from the connection to sink, page by page.
func (p *Http1Protocol) copyBody(sink io.Writer, n, total int64, received *int64, opts TransferOptions) error {
	page := make([]byte, opts.pageSize(p.cfg.pageSize))
	for n > 0 {
		chunk := page
		if int64(len(chunk)) > n {
			chunk = chunk[:n]
		}

		r, err := io.ReadFull(p.reader, chunk)
		if r > 0 {
			if _, werr := sink.Write(chunk[:r]); werr != nil {
				return errors.Wrap(werr, "write body")
			}
			n -= int64(r)
			*received += int64(r)
			opts.report(*received, total)
		}
		if err != nil {
			if isClosed(err) || stderrors.Is(err, io.ErrUnexpectedEOF) {
				return httperrors.NewProtocolError(httperrors.ProtocolErrorIncompleteResponse,
					fmt.Sprintf("connection closed with %d body bytes outstanding", n)).WithCause(err)
			}
			return err
		}
	}
	return nil
}

func isClosed(err error) bool {
	return stderrors.Is(err, io.EOF) || httperrors.IsConnectionClosed(err)
}
