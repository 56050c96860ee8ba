package protocol

import "strings"

// HeaderField is one parsed header line. Key and Value are upper-cased so
// callers can compare them directly against CONTENT-LENGTH, CHUNKED, etc.
type HeaderField struct {
	Key   string
	Value string
}

// ParseHeaderField parses a single header line (with or without its CRLF).
// A line without a colon yields the whole line as key and an empty value.
func ParseHeaderField(line string) HeaderField {
	key, value := splitHeaderLine(line)
	return HeaderField{
		Key:   strings.ToUpper(key),
		Value: strings.ToUpper(value),
	}
}

// splitHeaderLine cuts at the first colon and trims both halves without
// changing their case.
func splitHeaderLine(line string) (string, string) {
	line = strings.TrimRight(line, "\r\n")
	key, value, _ := strings.Cut(line, ":")
	return strings.TrimSpace(key), strings.Trim(value, " \t\r\n")
}
