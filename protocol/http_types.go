package protocol

import (
	"strconv"
	"strings"
)

// Http11 is the protocol version written on outgoing start lines.
const Http11 = "HTTP/1.1"

// HttpRequest represents an HTTP request line
type HttpRequest struct {
	Method  HttpMethod
	Path    string
	Version string
}

// NewHttpRequest builds an HTTP/1.1 request line for method and path.
func NewHttpRequest(method HttpMethod, path string) HttpRequest {
	if path == "" {
		path = "/"
	}
	return HttpRequest{Method: method, Path: path, Version: Http11}
}

// String renders "METHOD /path VERSION".
func (r HttpRequest) String() string {
	version := r.Version
	if version == "" {
		version = Http11
	}
	return r.Method.String() + " " + r.Path + " " + version
}

// ParseRequestLine parses "METHOD /path HTTP/x.y". Anything that does not
// start with a known method yields a request whose Method is MethodNull.
func ParseRequestLine(line string) HttpRequest {
	fields := strings.Fields(line)
	if len(fields) < 2 || len(fields) > 3 {
		return HttpRequest{}
	}

	req := HttpRequest{Method: ParseMethod(fields[0]), Path: fields[1]}
	if req.Method == MethodNull {
		return HttpRequest{}
	}
	if len(fields) == 3 {
		if !strings.HasPrefix(fields[2], "HTTP/") {
			return HttpRequest{}
		}
		req.Version = fields[2]
	} else {
		// HTTP/0.9 style line without a version
		req.Version = "HTTP/1.0"
	}
	return req
}

// HttpResponse represents an HTTP status line
type HttpResponse struct {
	Version string
	Status  HttpStatus
	// Reason is the phrase sent by the peer, which may differ from Status.Reason().
	Reason string
}

// NewHttpResponse builds an HTTP/1.1 status line for status.
func NewHttpResponse(status HttpStatus) HttpResponse {
	return HttpResponse{Version: Http11, Status: status, Reason: status.Reason()}
}

// String renders "HTTP/x.y <code> <reason>".
func (r HttpResponse) String() string {
	version := r.Version
	if version == "" {
		version = Http11
	}
	reason := r.Reason
	if reason == "" {
		reason = r.Status.Reason()
	}
	return version + " " + strconv.Itoa(int(r.Status)) + " " + reason
}

// ParseResponseLine parses a status line. It never fails: a line that is not
// "HTTP/x.y <code> [reason]" yields a response with Status 0.
func ParseResponseLine(line string) HttpResponse {
	version, rest, ok := strings.Cut(strings.TrimSpace(line), " ")
	if !ok || !strings.HasPrefix(version, "HTTP/") {
		return HttpResponse{}
	}

	code, reason, _ := strings.Cut(strings.TrimLeft(rest, " "), " ")
	if len(code) != 3 {
		return HttpResponse{Version: version}
	}
	status, err := strconv.Atoi(code)
	if err != nil || status < 100 || status > 999 {
		return HttpResponse{Version: version}
	}

	return HttpResponse{Version: version, Status: HttpStatus(status), Reason: strings.TrimSpace(reason)}
}
