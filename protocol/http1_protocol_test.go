package protocol

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	httperrors "github.com/nczempin/httpc-engine/errors"
	"github.com/nczempin/httpc-engine/transport"
)

// scriptedTransport replays a fixed byte stream and records everything
// written to it. maxRead caps each Read to exercise partial reads.
type scriptedTransport struct {
	in      *strings.Reader
	out     bytes.Buffer
	maxRead int
	closed  int
	addrs   []transport.Address
}

func newScriptedTransport(script string) *scriptedTransport {
	return &scriptedTransport{in: strings.NewReader(script)}
}

func (s *scriptedTransport) Connect(addr transport.Address) error {
	s.addrs = append(s.addrs, addr)
	return nil
}

func (s *scriptedTransport) Write(buf []byte) (int, error) {
	return s.out.Write(buf)
}

func (s *scriptedTransport) Read(buf []byte) (int, error) {
	if s.in.Len() == 0 {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "script exhausted", nil)
	}
	if s.maxRead > 0 && len(buf) > s.maxRead {
		buf = buf[:s.maxRead]
	}
	return s.in.Read(buf)
}

func (s *scriptedTransport) Close() error {
	s.closed++
	return nil
}

func receive(t *testing.T, p *Http1Protocol) string {
	t.Helper()
	_, err := p.ReceiveHeaderFields()
	require.NoError(t, err)

	var sink MemorySink
	require.NoError(t, p.ReceiveBody(&sink, TransferOptions{}))
	return sink.String()
}

func TestHttp1Protocol_SendRequest(t *testing.T) {
	tr := newScriptedTransport("")
	p := NewHttp1Protocol(tr)

	p.AddHeaderField("Host", "example.com")
	p.AddHeaderField("Accept", "*/*")
	require.NoError(t, p.SendRequest(NewHttpRequest(MethodGet, "/index.html")))

	require.Equal(t, "GET /index.html HTTP/1.1\r\nHost: example.com\r\nAccept: */*\r\n\r\n", tr.out.String())
	require.Equal(t, "", p.PendingHeaders())
	require.Equal(t, "example.com", p.HeaderField("host"))

	tr.out.Reset()
	p.AddHeaderField("Content-Length", "0")
	require.NoError(t, p.SendResponse(NewHttpResponse(StatusNoContent)))
	require.Equal(t, "HTTP/1.1 204 No Content\r\nContent-Length: 0\r\n\r\n", tr.out.String())
}

func TestHttp1Protocol_SendRequest_InvalidTarget(t *testing.T) {
	for _, target := range []string{"/a b", "/a\r\nX-Injected: 1", "/tab\there", "/del\x7f"} {
		t.Run(target, func(t *testing.T) {
			tr := newScriptedTransport("")
			p := NewHttp1Protocol(tr)
			p.AddHeaderField("Host", "example.com")

			err := p.SendRequest(NewHttpRequest(MethodGet, target))
			require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorInvalidRequestLine), "got %v", err)
			require.Empty(t, tr.out.String())
			require.Empty(t, p.PendingHeaders())
		})
	}
}

func TestHttp1Protocol_SendBody(t *testing.T) {
	t.Run("plain", func(t *testing.T) {
		tr := newScriptedTransport("")
		p := NewHttp1Protocol(tr, WithPageSize(4))

		var progress []int64
		err := p.SendBody(strings.NewReader("hello world"), TransferOptions{
			Progress: func(transferred, total int64) {
				require.EqualValues(t, 11, total)
				progress = append(progress, transferred)
			},
		})
		require.NoError(t, err)
		require.Equal(t, "hello world", tr.out.String())
		require.Equal(t, []int64{4, 8, 11}, progress)
	})

	t.Run("chunked with terminal chunk", func(t *testing.T) {
		tr := newScriptedTransport("")
		p := NewHttp1Protocol(tr, WithPageSize(16))
		p.SetChunked(true)

		body := strings.Repeat("a", 20)
		require.NoError(t, p.SendBody(strings.NewReader(body), TransferOptions{}))
		require.Equal(t, "10\r\n"+strings.Repeat("a", 16)+"\r\n4\r\naaaa\r\n0\r\n\r\n", tr.out.String())
	})

	t.Run("chunked empty body", func(t *testing.T) {
		tr := newScriptedTransport("")
		p := NewHttp1Protocol(tr)
		p.SetChunked(true)

		require.NoError(t, p.SendBody(strings.NewReader(""), TransferOptions{}))
		require.Equal(t, "0\r\n\r\n", tr.out.String())
	})

	t.Run("chunked without source", func(t *testing.T) {
		tr := newScriptedTransport("")
		p := NewHttp1Protocol(tr)
		p.SetChunked(true)

		require.NoError(t, p.SendBody(nil, TransferOptions{}))
		require.Equal(t, "0\r\n\r\n", tr.out.String())
	})

	t.Run("from current position", func(t *testing.T) {
		tr := newScriptedTransport("")
		p := NewHttp1Protocol(tr)

		src := strings.NewReader("skip:keep")
		_, _ = src.Seek(5, 0)
		require.NoError(t, p.SendBody(src, TransferOptions{}))
		require.Equal(t, "keep", tr.out.String())
	})
}

func TestHttp1Protocol_ReceiveHeaderFields(t *testing.T) {
	tr := newScriptedTransport("Content-Type: text/plain\r\nContent-Length: 11\r\nX-Custom: Mixed Case\r\n\r\n")
	p := NewHttp1Protocol(tr)

	raw, err := p.ReceiveHeaderFields()
	require.NoError(t, err)
	require.Equal(t, "Content-Type: text/plain\r\nContent-Length: 11\r\nX-Custom: Mixed Case\r\n", raw)
	require.EqualValues(t, 11, p.ContentLength())
	require.False(t, p.Chunked())
	require.False(t, p.EventStream())
	require.True(t, p.BodyExpected())

	for _, key := range []string{"content-type", "CONTENT-TYPE", "Content-Type"} {
		require.Equal(t, "text/plain", p.HeaderField(key))
	}
	require.Equal(t, "Mixed Case", p.HeaderField("x-custom"))

	// the next outgoing header replaces the received block
	p.AddHeaderField("Accept", "*/*")
	require.Equal(t, "", p.HeaderField("Content-Type"))
}

func TestHttp1Protocol_ReceiveHeaderFields_Errors(t *testing.T) {
	t.Run("invalid content length", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Content-Length: -3\r\n\r\n"))
		_, err := p.ReceiveHeaderFields()
		require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorInvalidHeader), "%v", err)
	})

	t.Run("connection closed mid head", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Content-Length: 3\r\n"))
		_, err := p.ReceiveHeaderFields()
		require.True(t, httperrors.IsConnectionClosed(err), "%v", err)
	})

	t.Run("line too long", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("X-Big: "+strings.Repeat("x", 64)+"\r\n\r\n"), WithMaxLineBytes(32))
		_, err := p.ReceiveHeaderFields()
		require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorLineTooLong), "%v", err)
	})
}

func TestHttp1Protocol_ReceiveBody(t *testing.T) {
	t.Run("content length", func(t *testing.T) {
		tr := newScriptedTransport("Content-Length: 11\r\n\r\nhello worldEXTRA")
		tr.maxRead = 3
		p := NewHttp1Protocol(tr, WithPageSize(4))

		require.Equal(t, "hello world", receive(t, p))

		rest, err := p.reader.Peek(5)
		require.NoError(t, err)
		require.Equal(t, "EXTRA", string(rest))
	})

	t.Run("chunked", func(t *testing.T) {
		tr := newScriptedTransport("Transfer-Encoding: chunked\r\n\r\n5\r\nhello\r\n0\r\n\r\n")
		p := NewHttp1Protocol(tr)

		body := receive(t, p)
		require.Equal(t, "hello", body)
		require.Len(t, body, 5)
	})

	t.Run("chunked across partial reads", func(t *testing.T) {
		tr := newScriptedTransport("Transfer-Encoding: gzip, chunked\r\n\r\n" +
			"6;name=value\r\nhello \r\nb\r\nchunk world\r\n0\r\nX-Trailer: done\r\n\r\n")
		tr.maxRead = 2
		p := NewHttp1Protocol(tr, WithPageSize(3))

		require.Equal(t, "hello chunk world", receive(t, p))
		require.Equal(t, "done", p.HeaderField("x-trailer"))
	})

	t.Run("chunked with bad size", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Transfer-Encoding: chunked\r\n\r\nzz\r\n"))
		_, err := p.ReceiveHeaderFields()
		require.NoError(t, err)
		err = p.ReceiveBody(&MemorySink{}, TransferOptions{})
		require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorInvalidChunkedEncoding), "%v", err)
	})

	t.Run("chunk data overrun", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Transfer-Encoding: chunked\r\n\r\n2\r\nabc\r\n0\r\n\r\n"))
		_, err := p.ReceiveHeaderFields()
		require.NoError(t, err)
		err = p.ReceiveBody(&MemorySink{}, TransferOptions{})
		require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorInvalidChunkedEncoding), "%v", err)
	})

	t.Run("incomplete", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Content-Length: 10\r\n\r\nshort"))
		_, err := p.ReceiveHeaderFields()
		require.NoError(t, err)

		var sink MemorySink
		err = p.ReceiveBody(&sink, TransferOptions{})
		require.True(t, httperrors.IsProtocolError(err, httperrors.ProtocolErrorIncompleteResponse), "%v", err)
		require.Equal(t, "short", sink.String())
	})

	t.Run("event stream by content type", func(t *testing.T) {
		tr := newScriptedTransport("Content-Type: text/event-stream\r\n\r\ndata: one\n\ndata: two\n\n")
		tr.maxRead = 7
		p := NewHttp1Protocol(tr, WithPageSize(16))

		_, err := p.ReceiveHeaderFields()
		require.NoError(t, err)
		require.True(t, p.EventStream())
		require.EqualValues(t, 16, p.ContentLength())

		var reads int
		var sink MemorySink
		err = p.ReceiveBody(&sink, TransferOptions{Progress: func(transferred, total int64) {
			require.EqualValues(t, -1, total)
			reads++
		}})
		require.NoError(t, err)
		require.Equal(t, "data: one\n\ndata: two\n\n", sink.String())
		require.Greater(t, reads, 1)
	})

	t.Run("preset event stream", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Cache-Control: no-cache\r\n\r\nevent"))
		p.SetEventStream(true)
		require.Equal(t, "event", receive(t, p))
	})

	t.Run("preset event stream with length", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Content-Length: 2\r\n\r\nokignored"))
		p.SetEventStream(true)
		require.Equal(t, "ok", receive(t, p))
		require.False(t, p.EventStream())
	})

	t.Run("no body", func(t *testing.T) {
		p := NewHttp1Protocol(newScriptedTransport("Server: test\r\n\r\n"))
		require.Equal(t, "", receive(t, p))
		require.False(t, p.BodyExpected())
	})
}

func TestHttp1Protocol_ReadLine(t *testing.T) {
	tr := newScriptedTransport("HTTP/1.1 200 OK\r\nbare\n")
	p := NewHttp1Protocol(tr)

	line, err := p.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "HTTP/1.1 200 OK", line)

	line, err = p.ReadLine()
	require.NoError(t, err)
	require.Equal(t, "bare", line)

	_, err = p.ReadLine()
	require.True(t, httperrors.IsConnectionClosed(err), "%v", err)
}

func TestHttp1Protocol_Renew(t *testing.T) {
	tr := newScriptedTransport("buffered\r\n")
	p := NewHttp1Protocol(tr)

	require.NoError(t, p.Connect(transport.Address{Network: "tcp", Host: "127.0.0.1", Port: 80}))
	_, err := p.reader.Peek(1)
	require.NoError(t, err)
	require.Greater(t, p.reader.Buffered(), 0)

	require.NoError(t, p.Renew())
	require.Equal(t, 1, tr.closed)
	require.Equal(t, 0, p.reader.Buffered())

	require.NoError(t, p.Close())
	require.Equal(t, 2, tr.closed)
}
