package history

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/proxy-inspector/pkg/template"
	"github.com/Sternrassler/proxy-inspector/pkg/transport"
)

// DefaultRemotePort is the port of the proxy's history API.
const DefaultRemotePort = 8443

// RemoteConfig addresses a proxy's history API.
type RemoteConfig struct {
	// Addr is the API host name or IP.
	Addr string `yaml:"addr"`

	// Port defaults to DefaultRemotePort when zero.
	Port int `yaml:"port"`

	// Secret is sent as a bearer token.
	Secret string `yaml:"secret"`
}

// Validate checks the remote configuration.
func (c RemoteConfig) Validate() error {
	if strings.TrimSpace(c.Addr) == "" {
		return fmt.Errorf("remote addr is required")
	}
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("remote port must be in 0..65535 (got %d)", c.Port)
	}
	if c.Secret == "" {
		return fmt.Errorf("remote secret is required")
	}
	return nil
}

func (c RemoteConfig) endpoint(lastID uint64) string {
	port := c.Port
	if port == 0 {
		port = DefaultRemotePort
	}
	return fmt.Sprintf("https://%s:%d/api/requests/%d", c.Addr, port, lastID)
}

// Sender performs a single request.
type Sender interface {
	Send(ctx context.Context, d template.RequestDescriptor) (*transport.Response, error)
}

// RemoteSource pulls history from a proxy's HTTPS API.
type RemoteSource struct {
	config RemoteConfig
	sender Sender
	logger zerolog.Logger
}

// NewRemoteSource creates a remote source using sender for the API calls.
func NewRemoteSource(cfg RemoteConfig, sender Sender, logger zerolog.Logger) (*RemoteSource, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RemoteSource{
		config: cfg,
		sender: sender,
		logger: logger.With().Str("component", "history-remote").Str("addr", cfg.Addr).Logger(),
	}, nil
}

// Name implements Source.
func (s *RemoteSource) Name() string {
	return "remote"
}

// FetchSince implements Source. A transport failure, a non-200 status and an
// undecodable body all report ErrSourceUnavailable.
func (s *RemoteSource) FetchSince(ctx context.Context, lastID uint64) ([]Record, error) {
	var headers template.Headers
	headers.Add("Authentication", "Bearer "+s.config.Secret)
	headers.Add("Accept", "application/json")

	resp, err := s.sender.Send(ctx, template.RequestDescriptor{
		Method:  http.MethodGet,
		URL:     s.config.endpoint(lastID),
		Headers: headers,
	})
	if err != nil {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("request history: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("history API returned status %s", strconv.Itoa(resp.StatusCode))
	}

	records, err := DecodeRecords(resp.BodyText)
	if err != nil {
		historyFetchesTotal.WithLabelValues(s.Name(), "unavailable").Inc()
		return nil, unavailable("%v", err)
	}

	historyFetchesTotal.WithLabelValues(s.Name(), "ok").Inc()
	s.logger.Debug().Uint64("last_id", lastID).Int("records", len(records)).Msg("Fetched remote history")
	return records, nil
}
