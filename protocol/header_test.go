package protocol

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseHeaderField(t *testing.T) {
	tcs := []struct {
		line string
		want HeaderField
	}{
		{"Content-Length: 11", HeaderField{"CONTENT-LENGTH", "11"}},
		{"Content-Type: text/event-stream\r\n", HeaderField{"CONTENT-TYPE", "TEXT/EVENT-STREAM"}},
		{"transfer-encoding:chunked", HeaderField{"TRANSFER-ENCODING", "CHUNKED"}},
		{"Location:  /New-Path  ", HeaderField{"LOCATION", "/NEW-PATH"}},
		{"X-Time: 12:30:00", HeaderField{"X-TIME", "12:30:00"}},
		{"no colon here", HeaderField{"NO COLON HERE", ""}},
		{"", HeaderField{}},
	}
	for _, tc := range tcs {
		t.Run(tc.line, func(t *testing.T) {
			require.Equal(t, tc.want, ParseHeaderField(tc.line))
		})
	}
}

func TestHeaderBuffer(t *testing.T) {
	t.Run("case insensitive lookup", func(t *testing.T) {
		h := NewHeaderBuffer()
		defer h.Release()

		h.Add("Content-Type", "text/plain")
		for _, key := range []string{"content-type", "CONTENT-TYPE", "Content-Type"} {
			require.Equal(t, "text/plain", h.Get(key))
			require.Equal(t, "TEXT/PLAIN", ParseHeaderField(key+": "+h.Get(key)).Value)
		}
		require.Equal(t, "", h.Get("Accept"))
		require.Equal(t, "Content-Type: text/plain\r\n", h.String())
	})

	t.Run("message boundary", func(t *testing.T) {
		h := NewHeaderBuffer()
		defer h.Release()

		h.Add("Host", "example.com")
		require.Equal(t, "Host: example.com\r\n", h.Pending())

		h.BeginMessage()
		require.Equal(t, "", h.Pending())
		require.Equal(t, "example.com", h.Get("host"), "finished message stays readable")

		h.Add("Accept", "*/*")
		require.Equal(t, "Accept: */*\r\n", h.String())
		require.Equal(t, "", h.Get("Host"))

		h.BeginMessage()
		h.Open()
		require.Equal(t, 0, h.Len())
	})

	t.Run("block", func(t *testing.T) {
		h := NewHeaderBuffer()
		defer h.Release()

		h.AddBlock("A: 1\nB: 2\r\n\r\nC: 3")
		require.Equal(t, "A: 1\r\nB: 2\r\nC: 3\r\n", h.String())
		value, ok := h.Lookup("b")
		require.True(t, ok)
		require.Equal(t, "2", value)
	})

	t.Run("release", func(t *testing.T) {
		h := NewHeaderBuffer()
		h.Add("A", "1")
		h.Release()
		require.Equal(t, "", h.String())
		h.Add("B", "2")
		require.Equal(t, "2", h.Get("b"))
		h.Release()
	})

	t.Run("without header", func(t *testing.T) {
		block := "Host: a\r\nX-Token: t\r\nhost: b\r\n"
		require.Equal(t, "X-Token: t\r\n", WithoutHeader(block, "HOST"))
	})
}

func TestMemorySink(t *testing.T) {
	var sink MemorySink

	_, err := io.Copy(&sink, strings.NewReader("hello world"))
	require.NoError(t, err)
	require.Equal(t, "hello world", sink.String())

	pos, err := sink.Seek(6, io.SeekStart)
	require.NoError(t, err)
	require.EqualValues(t, 6, pos)

	_, err = sink.Write([]byte("gophers"))
	require.NoError(t, err)
	require.Equal(t, "hello gophers", sink.String())

	_, err = sink.Seek(-20, io.SeekCurrent)
	require.Error(t, err)

	end, err := sink.Seek(0, io.SeekEnd)
	require.NoError(t, err)
	require.EqualValues(t, sink.Len(), end)

	sink.Reset()
	require.Equal(t, 0, sink.Len())
}

func TestMemorySink_GapAfterReset(t *testing.T) {
	var sink MemorySink
	_, err := sink.Write([]byte("secretdata"))
	require.NoError(t, err)

	sink.Reset()
	_, err = sink.Seek(4, io.SeekStart)
	require.NoError(t, err)
	_, err = sink.Write([]byte("x"))
	require.NoError(t, err)

	require.Equal(t, []byte{0, 0, 0, 0, 'x'}, sink.Bytes())
}

func TestRemaining(t *testing.T) {
	src := strings.NewReader("0123456789")
	_, err := src.Seek(4, io.SeekStart)
	require.NoError(t, err)

	n, err := Remaining(src)
	require.NoError(t, err)
	require.EqualValues(t, 6, n)

	pos, _ := src.Seek(0, io.SeekCurrent)
	require.EqualValues(t, 4, pos)
}
