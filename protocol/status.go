package protocol

import (
	"sort"
	"strconv"
	"strings"
)

// HttpStatus is an HTTP response status code.
type HttpStatus int

const (
	StatusContinue           HttpStatus = 100 // RFC 9110, 15.2.1
	StatusSwitchingProtocols HttpStatus = 101 // RFC 9110, 15.2.2
	StatusProcessing         HttpStatus = 102 // RFC 2518, 10.1
	StatusEarlyHints         HttpStatus = 103 // RFC 8297

	StatusOK                   HttpStatus = 200 // RFC 9110, 15.3.1
	StatusCreated              HttpStatus = 201 // RFC 9110, 15.3.2
	StatusAccepted             HttpStatus = 202 // RFC 9110, 15.3.3
	StatusNonAuthoritativeInfo HttpStatus = 203 // RFC 9110, 15.3.4
	StatusNoContent            HttpStatus = 204 // RFC 9110, 15.3.5
	StatusResetContent         HttpStatus = 205 // RFC 9110, 15.3.6
	StatusPartialContent       HttpStatus = 206 // RFC 9110, 15.3.7
	StatusMultiStatus          HttpStatus = 207 // RFC 4918, 11.1
	StatusAlreadyReported      HttpStatus = 208 // RFC 5842, 7.1
	StatusIMUsed               HttpStatus = 226 // RFC 3229, 10.4.1

	StatusMultipleChoices   HttpStatus = 300 // RFC 9110, 15.4.1
	StatusMovedPermanently  HttpStatus = 301 // RFC 9110, 15.4.2
	StatusFound             HttpStatus = 302 // RFC 9110, 15.4.3
	StatusSeeOther          HttpStatus = 303 // RFC 9110, 15.4.4
	StatusNotModified       HttpStatus = 304 // RFC 9110, 15.4.5
	StatusUseProxy          HttpStatus = 305 // RFC 9110, 15.4.6
	StatusTemporaryRedirect HttpStatus = 307 // RFC 9110, 15.4.8
	StatusPermanentRedirect HttpStatus = 308 // RFC 9110, 15.4.9

	StatusBadRequest                  HttpStatus = 400 // RFC 9110, 15.5.1
	StatusUnauthorized                HttpStatus = 401 // RFC 9110, 15.5.2
	StatusPaymentRequired             HttpStatus = 402 // RFC 9110, 15.5.3
	StatusForbidden                   HttpStatus = 403 // RFC 9110, 15.5.4
	StatusNotFound                    HttpStatus = 404 // RFC 9110, 15.5.5
	StatusMethodNotAllowed            HttpStatus = 405 // RFC 9110, 15.5.6
	StatusNotAcceptable               HttpStatus = 406 // RFC 9110, 15.5.7
	StatusProxyAuthRequired           HttpStatus = 407 // RFC 9110, 15.5.8
	StatusRequestTimeout              HttpStatus = 408 // RFC 9110, 15.5.9
	StatusConflict                    HttpStatus = 409 // RFC 9110, 15.5.10
	StatusGone                        HttpStatus = 410 // RFC 9110, 15.5.11
	StatusLengthRequired              HttpStatus = 411 // RFC 9110, 15.5.12
	StatusPreconditionFailed          HttpStatus = 412 // RFC 9110, 15.5.13
	StatusPayloadTooLarge             HttpStatus = 413 // RFC 9110, 15.5.14
	StatusURITooLong                  HttpStatus = 414 // RFC 9110, 15.5.15
	StatusUnsupportedMediaType        HttpStatus = 415 // RFC 9110, 15.5.16
	StatusRangeNotSatisfiable         HttpStatus = 416 // RFC 9110, 15.5.17
	StatusExpectationFailed           HttpStatus = 417 // RFC 9110, 15.5.18
	StatusTeapot                      HttpStatus = 418 // RFC 7168, 2.3.3
	StatusMisdirectedRequest          HttpStatus = 421 // RFC 9110, 15.5.20
	StatusUnprocessableEntity         HttpStatus = 422 // RFC 9110, 15.5.21
	StatusLocked                      HttpStatus = 423 // RFC 4918, 11.3
	StatusFailedDependency            HttpStatus = 424 // RFC 4918, 11.4
	StatusTooEarly                    HttpStatus = 425 // RFC 8470, 5.2.
	StatusUpgradeRequired             HttpStatus = 426 // RFC 9110, 15.5.22
	StatusPreconditionRequired        HttpStatus = 428 // RFC 6585, 3
	StatusTooManyRequests             HttpStatus = 429 // RFC 6585, 4
	StatusRequestHeaderFieldsTooLarge HttpStatus = 431 // RFC 6585, 5
	StatusUnavailableForLegalReasons  HttpStatus = 451 // RFC 7725, 3

	StatusInternalServerError           HttpStatus = 500 // RFC 9110, 15.6.1
	StatusNotImplemented                HttpStatus = 501 // RFC 9110, 15.6.2
	StatusBadGateway                    HttpStatus = 502 // RFC 9110, 15.6.3
	StatusServiceUnavailable            HttpStatus = 503 // RFC 9110, 15.6.4
	StatusGatewayTimeout                HttpStatus = 504 // RFC 9110, 15.6.5
	StatusHTTPVersionNotSupported       HttpStatus = 505 // RFC 9110, 15.6.6
	StatusVariantAlsoNegotiates         HttpStatus = 506 // RFC 2295, 8.1
	StatusInsufficientStorage           HttpStatus = 507 // RFC 4918, 11.5
	StatusLoopDetected                  HttpStatus = 508 // RFC 5842, 7.2
	StatusNotExtended                   HttpStatus = 510 // RFC 2774, 7
	StatusNetworkAuthenticationRequired HttpStatus = 511 // RFC 6585, 6
)

// statusNames is ordered by code. Reason phrases are the symbolic names with
// underscores turned into spaces.
var statusNames = [...]struct {
	status HttpStatus
	name   string
}{
	{StatusContinue, "Continue"},
	{StatusSwitchingProtocols, "Switching_Protocols"},
	{StatusProcessing, "Processing"},
	{StatusEarlyHints, "Early_Hints"},

	{StatusOK, "OK"},
	{StatusCreated, "Created"},
	{StatusAccepted, "Accepted"},
	{StatusNonAuthoritativeInfo, "Non-Authoritative_Information"},
	{StatusNoContent, "No_Content"},
	{StatusResetContent, "Reset_Content"},
	{StatusPartialContent, "Partial_Content"},
	{StatusMultiStatus, "Multi-Status"},
	{StatusAlreadyReported, "Already_Reported"},
	{StatusIMUsed, "IM_Used"},

	{StatusMultipleChoices, "Multiple_Choices"},
	{StatusMovedPermanently, "Moved_Permanently"},
	{StatusFound, "Found"},
	{StatusSeeOther, "See_Other"},
	{StatusNotModified, "Not_Modified"},
	{StatusUseProxy, "Use_Proxy"},
	{StatusTemporaryRedirect, "Temporary_Redirect"},
	{StatusPermanentRedirect, "Permanent_Redirect"},

	{StatusBadRequest, "Bad_Request"},
	{StatusUnauthorized, "Unauthorized"},
	{StatusPaymentRequired, "Payment_Required"},
	{StatusForbidden, "Forbidden"},
	{StatusNotFound, "Not_Found"},
	{StatusMethodNotAllowed, "Method_Not_Allowed"},
	{StatusNotAcceptable, "Not_Acceptable"},
	{StatusProxyAuthRequired, "Proxy_Authentication_Required"},
	{StatusRequestTimeout, "Request_Timeout"},
	{StatusConflict, "Conflict"},
	{StatusGone, "Gone"},
	{StatusLengthRequired, "Length_Required"},
	{StatusPreconditionFailed, "Precondition_Failed"},
	{StatusPayloadTooLarge, "Payload_Too_Large"},
	{StatusURITooLong, "URI_Too_Long"},
	{StatusUnsupportedMediaType, "Unsupported_Media_Type"},
	{StatusRangeNotSatisfiable, "Range_Not_Satisfiable"},
	{StatusExpectationFailed, "Expectation_Failed"},
	{StatusTeapot, "I'm_a_teapot"},
	{StatusMisdirectedRequest, "Misdirected_Request"},
	{StatusUnprocessableEntity, "Unprocessable_Entity"},
	{StatusLocked, "Locked"},
	{StatusFailedDependency, "Failed_Dependency"},
	{StatusTooEarly, "Too_Early"},
	{StatusUpgradeRequired, "Upgrade_Required"},
	{StatusPreconditionRequired, "Precondition_Required"},
	{StatusTooManyRequests, "Too_Many_Requests"},
	{StatusRequestHeaderFieldsTooLarge, "Request_Header_Fields_Too_Large"},
	{StatusUnavailableForLegalReasons, "Unavailable_For_Legal_Reasons"},

	{StatusInternalServerError, "Internal_Server_Error"},
	{StatusNotImplemented, "Not_Implemented"},
	{StatusBadGateway, "Bad_Gateway"},
	{StatusServiceUnavailable, "Service_Unavailable"},
	{StatusGatewayTimeout, "Gateway_Timeout"},
	{StatusHTTPVersionNotSupported, "HTTP_Version_Not_Supported"},
	{StatusVariantAlsoNegotiates, "Variant_Also_Negotiates"},
	{StatusInsufficientStorage, "Insufficient_Storage"},
	{StatusLoopDetected, "Loop_Detected"},
	{StatusNotExtended, "Not_Extended"},
	{StatusNetworkAuthenticationRequired, "Network_Authentication_Required"},
}

func lookupStatus(s HttpStatus) (string, bool) {
	i := sort.Search(len(statusNames), func(i int) bool { return statusNames[i].status >= s })
	if i < len(statusNames) && statusNames[i].status == s {
		return statusNames[i].name, true
	}
	return "", false
}

// Valid reports whether s is one of the known status codes.
func (s HttpStatus) Valid() bool {
	_, ok := lookupStatus(s)
	return ok
}

// Reason returns the canonical reason phrase, or "Unknown".
func (s HttpStatus) Reason() string {
	name, ok := lookupStatus(s)
	if !ok {
		return "Unknown"
	}
	return strings.ReplaceAll(name, "_", " ")
}

// String renders "<code> <Reason>", the form used on the status line.
func (s HttpStatus) String() string {
	return strconv.Itoa(int(s)) + " " + s.Reason()
}

func (s HttpStatus) IsInformational() bool { return s >= 100 && s < 200 }
func (s HttpStatus) IsSuccess() bool       { return s >= 200 && s < 300 }
func (s HttpStatus) IsRedirect() bool      { return s >= 300 && s < 400 }
func (s HttpStatus) IsError() bool         { return s >= 400 && s < 600 }
