package factory

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ajayykmr/shortcode-marketing-go/internal/config"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/mock"
	"github.com/ajayykmr/shortcode-marketing-go/internal/providers/nexmo"
	"github.com/ajayykmr/shortcode-marketing-go/internal/shortcode"
)

// Transport constructs the configured short-code transport. Supports nexmo
// and mock backends.
func Transport(cfg config.ProviderConfig, timeout time.Duration, logger zerolog.Logger) (shortcode.Transport, error) {
	backend := normalize(cfg.Backend, config.BackendMock)
	switch backend {
	case config.BackendNexmo:
		opts := []nexmo.Option{}
		if timeout > 0 {
			opts = append(opts, nexmo.WithHTTPClient(&http.Client{Timeout: timeout}))
		}
		t, err := nexmo.NewTransport(cfg.Nexmo, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("factory: nexmo transport init: %w", err)
		}
		logger.Info().
			Str("backend", backend).
			Float64("rate_limit_per_second", cfg.Nexmo.RateLimitPerSecond).
			Msg("short-code transport initialised")
		return t, nil
	case config.BackendMock:
		t := mock.NewTransport(logger)
		logger.Info().
			Str("backend", backend).
			Msg("short-code transport initialised")
		return t, nil
	default:
		return nil, fmt.Errorf("factory: unsupported short-code provider backend %q", cfg.Backend)
	}
}

func normalize(value, def string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return def
	}
	return value
}
