package protocol

import (
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMethod(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		for _, entry := range methodNames {
			require.Equal(t, entry.method, ParseMethod(entry.method.String()))
		}
	})

	t.Run("case insensitive", func(t *testing.T) {
		require.Equal(t, MethodGet, ParseMethod("get"))
		require.Equal(t, MethodOptions, ParseMethod("Options"))
	})

	t.Run("unknown", func(t *testing.T) {
		for _, token := range []string{"", "FETCH", "GETX", "NULL", " GET"} {
			require.Equal(t, MethodNull, ParseMethod(token), token)
		}
		require.Equal(t, "NULL", HttpMethod(99).String())
	})
}

func TestStatus(t *testing.T) {
	t.Run("text", func(t *testing.T) {
		for _, entry := range statusNames {
			text := entry.status.String()
			require.True(t, strings.HasPrefix(text, strconv.Itoa(int(entry.status))+" "), text)
			require.NotContains(t, text, "_")
			require.True(t, entry.status.Valid())
		}
	})

	t.Run("table is ordered", func(t *testing.T) {
		for i := 1; i < len(statusNames); i++ {
			require.Less(t, int(statusNames[i-1].status), int(statusNames[i].status))
		}
	})

	t.Run("reason", func(t *testing.T) {
		require.Equal(t, "301 Moved Permanently", StatusMovedPermanently.String())
		require.Equal(t, "Not Found", StatusNotFound.Reason())
		require.Equal(t, "I'm a teapot", StatusTeapot.Reason())
		require.Equal(t, "299 Unknown", HttpStatus(299).String())
		require.False(t, HttpStatus(299).Valid())
	})

	t.Run("class", func(t *testing.T) {
		require.True(t, StatusFound.IsRedirect())
		require.True(t, StatusContinue.IsInformational())
		require.True(t, StatusNoContent.IsSuccess())
		require.True(t, StatusBadGateway.IsError())
		require.False(t, StatusOK.IsRedirect())
	})
}

func TestRequestLine(t *testing.T) {
	t.Run("render", func(t *testing.T) {
		require.Equal(t, "GET /index.html HTTP/1.1", NewHttpRequest(MethodGet, "/index.html").String())
		require.Equal(t, "DELETE / HTTP/1.1", NewHttpRequest(MethodDelete, "").String())
	})

	tcs := []struct {
		line string
		want HttpRequest
	}{
		{"GET /a HTTP/1.1", HttpRequest{MethodGet, "/a", "HTTP/1.1"}},
		{"post /form HTTP/1.0", HttpRequest{MethodPost, "/form", "HTTP/1.0"}},
		{"GET /legacy", HttpRequest{MethodGet, "/legacy", "HTTP/1.0"}},
		{"BREW /pot HTTP/1.1", HttpRequest{}},
		{"GET /a FTP/1.0", HttpRequest{}},
		{"", HttpRequest{}},
		{"GET", HttpRequest{}},
		{"GET /a HTTP/1.1 extra", HttpRequest{}},
	}
	for _, tc := range tcs {
		t.Run(tc.line, func(t *testing.T) {
			require.Equal(t, tc.want, ParseRequestLine(tc.line))
		})
	}
}

func TestResponseLine(t *testing.T) {
	tcs := []struct {
		line string
		want HttpResponse
	}{
		{"HTTP/1.1 200 OK", HttpResponse{"HTTP/1.1", StatusOK, "OK"}},
		{"HTTP/1.0 404 Not Found", HttpResponse{"HTTP/1.0", StatusNotFound, "Not Found"}},
		{"HTTP/1.1 204", HttpResponse{"HTTP/1.1", StatusNoContent, ""}},
		{"HTTP/1.1 799 Custom", HttpResponse{"HTTP/1.1", 799, "Custom"}},
		{"HTTP/1.1 abc OK", HttpResponse{Version: "HTTP/1.1"}},
		{"HTTP/1.1 20 OK", HttpResponse{Version: "HTTP/1.1"}},
		{"garbage", HttpResponse{}},
		{"", HttpResponse{}},
	}
	for _, tc := range tcs {
		t.Run(tc.line, func(t *testing.T) {
			require.Equal(t, tc.want, ParseResponseLine(tc.line))
		})
	}

	t.Run("render", func(t *testing.T) {
		require.Equal(t, "HTTP/1.1 302 Found", NewHttpResponse(StatusFound).String())
		require.Equal(t, "HTTP/1.1 200 Fine", HttpResponse{Status: StatusOK, Reason: "Fine"}.String())
	})
}
