package protocol

import "strings"

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	// MethodNull is the zero value and marks an unparsed or unknown method.
	MethodNull HttpMethod = iota
	MethodGet
	MethodPost
	MethodPut
	MethodHead
	MethodDelete
	MethodPatch
	MethodOptions
	MethodTrace
)

var methodNames = [...]struct {
	method HttpMethod
	name   string
}{
	{MethodNull, "NULL"},
	{MethodGet, "GET"},
	{MethodPost, "POST"},
	{MethodPut, "PUT"},
	{MethodHead, "HEAD"},
	{MethodDelete, "DELETE"},
	{MethodPatch, "PATCH"},
	{MethodOptions, "OPTIONS"},
	{MethodTrace, "TRACE"},
}

func (m HttpMethod) String() string {
	for _, entry := range methodNames {
		if entry.method == m {
			return entry.name
		}
	}
	return methodNames[0].name
}

// ParseMethod maps a method token to its HttpMethod, ignoring case.
// Unknown tokens yield MethodNull.
func ParseMethod(s string) HttpMethod {
	for _, entry := range methodNames[1:] {
		if strings.EqualFold(entry.name, s) {
			return entry.method
		}
	}
	return MethodNull
}
