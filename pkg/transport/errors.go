package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorClass represents a classification of transport failures.
type ErrorClass string

const (
	// ErrorClassDNS represents name resolution failures.
	ErrorClassDNS ErrorClass = "dns"

	// ErrorClassTLS represents handshake and certificate failures.
	ErrorClassTLS ErrorClass = "tls"

	// ErrorClassTimeout represents deadline and timeout failures.
	ErrorClassTimeout ErrorClass = "timeout"

	// ErrorClassConnection represents refused, reset or closed connections.
	ErrorClassConnection ErrorClass = "connection"

	// ErrorClassProtocol represents malformed responses from the target.
	ErrorClassProtocol ErrorClass = "protocol"

	// ErrorClassInvalidRequest represents requests the transport refused to
	// send (bad method, URL or header bytes).
	ErrorClassInvalidRequest ErrorClass = "invalid_request"
)

// TransportError is a request that could not be completed.
type TransportError struct {
	Class ErrorClass
	Op    string
	URL   string
	Err   error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s error: %v", e.Op, e.URL, e.Class, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// ClassOf returns the class of err, or "" when err is not a TransportError.
func ClassOf(err error) ErrorClass {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Class
	}
	return ""
}

// classifyError categorizes a failure returned by http.Client.Do.
func classifyError(err error) ErrorClass {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorClassTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorClassTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return ErrorClassDNS
	}

	var (
		certErr      *tls.CertificateVerificationError
		unknownAuth  x509.UnknownAuthorityError
		hostnameErr  x509.HostnameError
		recordHdrErr tls.RecordHeaderError
	)
	if errors.As(err, &certErr) || errors.As(err, &unknownAuth) ||
		errors.As(err, &hostnameErr) || errors.As(err, &recordHdrErr) {
		return ErrorClassTLS
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrorClassConnection
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		msg := urlErr.Err.Error()
		switch {
		case strings.Contains(msg, "invalid header"),
			strings.Contains(msg, "invalid method"),
			strings.Contains(msg, "unsupported protocol scheme"),
			strings.Contains(msg, "no Host in request URL"):
			return ErrorClassInvalidRequest
		case strings.Contains(msg, "tls:"), strings.Contains(msg, "x509:"):
			return ErrorClassTLS
		case strings.Contains(msg, "EOF"), strings.Contains(msg, "connection reset"):
			return ErrorClassConnection
		}
	}

	return ErrorClassProtocol
}
