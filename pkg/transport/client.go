// Package transport provides the HTTP client used to replay captured
// requests verbatim.
//
// The client never follows redirects, so a replayed request observes exactly
// what the target answered. Certificate validation is disabled by default:
// the tool targets local and intercepted traffic where self-signed
// certificates are the norm. Config.InsecureSkipVerify turns it back on.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Sternrassler/proxy-inspector/pkg/template"
	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/html/charset"
)

// Prometheus metrics for replayed requests.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_inspector_requests_total",
		Help: "Total replayed requests by response status code",
	}, []string{"status"})

	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "proxy_inspector_request_duration_seconds",
		Help:    "Replayed request duration in seconds, including body read",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	})

	transportErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "proxy_inspector_transport_errors_total",
		Help: "Total requests that could not be completed, by error class",
	}, []string{"class"})
)

// Config holds the client configuration.
type Config struct {
	// InsecureSkipVerify accepts any TLS certificate (default: true).
	InsecureSkipVerify bool

	// Timeout bounds a whole request. Zero leaves it to the transport.
	Timeout time.Duration

	// MaxIdleConnsPerHost caps idle keep-alive connections per target.
	MaxIdleConnsPerHost int

	// UserAgent is set on requests whose transcript carries none.
	// Empty keeps the Go default.
	UserAgent string
}

// DefaultConfig returns the replay defaults.
func DefaultConfig() Config {
	return Config{
		InsecureSkipVerify:  true,
		MaxIdleConnsPerHost: 8,
	}
}

// Response is the captured outcome of one completed request.
type Response struct {
	// HTTPVersion is the protocol, e.g. "HTTP/1.1".
	HTTPVersion string

	// StatusCode is the numeric status.
	StatusCode int

	// StatusLine is the numeric and textual status, e.g. "200 OK".
	StatusLine string

	// HeaderBlock holds one "Name: Value\r\n" line per header value.
	HeaderBlock string

	// BodyText is the decoded response body.
	BodyText string

	// Duration covers the round trip and the body read.
	Duration time.Duration
}

// Raw renders the response as a transcript: status line, headers, blank
// line, body.
func (r *Response) Raw() string {
	return fmt.Sprintf("%s %s\r\n%s\r\n%s", r.HTTPVersion, r.StatusLine, r.HeaderBlock, r.BodyText)
}

// Client sends request descriptors.
type Client struct {
	httpClient *http.Client
	config     Config
	logger     zerolog.Logger
}

// New creates a new replay client.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout < 0 {
		return nil, fmt.Errorf("timeout must be >= 0 (got %s)", cfg.Timeout)
	}
	if cfg.MaxIdleConnsPerHost < 0 {
		return nil, fmt.Errorf("max_idle_conns_per_host must be >= 0 (got %d)", cfg.MaxIdleConnsPerHost)
	}

	logger := log.With().Str("component", "transport").Logger()

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify} //nolint:gosec
	// Only the transcript's own Accept-Encoding goes out.
	tr.DisableCompression = true
	if cfg.MaxIdleConnsPerHost > 0 {
		tr.MaxIdleConnsPerHost = cfg.MaxIdleConnsPerHost
	}

	if cfg.InsecureSkipVerify {
		logger.Debug().Msg("TLS certificate validation disabled")
	}

	return &Client{
		httpClient: &http.Client{
			Transport: tr,
			Timeout:   cfg.Timeout,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: cfg,
		logger: logger,
	}, nil
}

// Send performs the request described by d and captures the response.
// Any failure to complete the request is returned as a *TransportError.
func (c *Client) Send(ctx context.Context, d template.RequestDescriptor) (*Response, error) {
	req, err := c.newRequest(ctx, d)
	if err != nil {
		transportErrorsTotal.WithLabelValues(string(ErrorClassInvalidRequest)).Inc()
		return nil, &TransportError{Class: ErrorClassInvalidRequest, Op: "build", URL: d.URL, Err: err}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		class := classifyError(err)
		transportErrorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues("error").Inc()
		c.logger.Debug().
			Err(err).
			Int("index", d.Index).
			Str("error_class", string(class)).
			Msg("Request failed")
		return nil, &TransportError{Class: class, Op: d.Method, URL: d.URL, Err: err}
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		class := classifyError(err)
		transportErrorsTotal.WithLabelValues(string(class)).Inc()
		requestsTotal.WithLabelValues("error").Inc()
		return nil, &TransportError{Class: class, Op: "read body", URL: d.URL, Err: err}
	}

	elapsed := time.Since(start)
	requestDuration.Observe(elapsed.Seconds())
	requestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	return &Response{
		HTTPVersion: resp.Proto,
		StatusCode:  resp.StatusCode,
		StatusLine:  statusLine(resp),
		HeaderBlock: HeaderBlock(resp.Header),
		BodyText:    body,
		Duration:    elapsed,
	}, nil
}

func (c *Client) newRequest(ctx context.Context, d template.RequestDescriptor) (*http.Request, error) {
	if d.Method == "" {
		return nil, fmt.Errorf("empty method")
	}

	req, err := http.NewRequestWithContext(ctx, d.Method, d.URL, bytes.NewReader(d.Body))
	if err != nil {
		return nil, err
	}

	for _, h := range d.Headers {
		if strings.EqualFold(h.Name, "Host") {
			req.Host = h.Value
			continue
		}
		req.Header.Add(h.Name, h.Value)
	}

	if c.config.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}

	return req, nil
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}

// HeaderBlock serializes h as "Name: Value\r\n" lines. http.Header does not
// record the order in which header names arrived, so names are sorted rather
// than listed in received order. Values of a repeated header keep their
// received order.
func HeaderBlock(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		for _, v := range h[k] {
			b.WriteString(k)
			b.WriteString(": ")
			b.WriteString(v)
			b.WriteString("\r\n")
		}
	}
	return b.String()
}

func statusLine(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return fmt.Sprintf("%d %s", resp.StatusCode, text)
	}
	return resp.Status
}

// readBody undoes the Content-Encoding and then decodes the body according to
// the Content-Type charset. A body that cannot be decompressed is kept as
// received; an unknown charset falls back to the raw bytes.
func readBody(resp *http.Response) (string, error) {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	raw = decompress(raw, resp.Header.Get("Content-Encoding"))

	r, err := charset.NewReader(bytes.NewReader(raw), resp.Header.Get("Content-Type"))
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "�"), nil
	}
	return strings.ToValidUTF8(string(decoded), "�"), nil
}

// decompress applies the codings listed in encoding in reverse order.
func decompress(body []byte, encoding string) []byte {
	if encoding == "" || len(body) == 0 {
		return body
	}

	codings := strings.Split(encoding, ",")
	out := body
	for i := len(codings) - 1; i >= 0; i-- {
		decoded, err := decodeCoding(out, strings.ToLower(strings.TrimSpace(codings[i])))
		if err != nil {
			return body
		}
		out = decoded
	}
	return out
}

func decodeCoding(body []byte, coding string) ([]byte, error) {
	switch coding {
	case "", "identity":
		return body, nil
	case "gzip", "x-gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case "deflate":
		// Servers send both zlib-wrapped and bare deflate streams.
		if r, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			defer r.Close()
			if out, err := io.ReadAll(r); err == nil {
				return out, nil
			}
		}
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		return io.ReadAll(r)
	case "zstd":
		r, err := zstd.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	default:
		return nil, fmt.Errorf("unsupported content coding %q", coding)
	}
}
