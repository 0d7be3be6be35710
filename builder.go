package goLearn

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/goLearn/middleware"
	"github.com/MrEthical07/goLearn/refresh"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// SignOutHandler is called once when a failed refresh signs the user out. reason wraps the
// refresh failure. It runs before the failed requests are released and must not block.
type SignOutHandler func(reason error)

// Builder assembles a Client. It is single use.
type Builder struct {
	config     Config
	httpClient *http.Client
	store      TokenStore
	logger     *zap.Logger
	eventSink  EventSink
	onSignOut  SignOutHandler
	now        func() time.Time

	built bool
}

// New returns a Builder holding the default configuration.
func New() *Builder {
	return &Builder{
		config: defaultConfig(),
	}
}

// WithConfig replaces the whole configuration. The value is cloned.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithBaseURL sets Config.BaseURL.
func (b *Builder) WithBaseURL(base string) *Builder {
	b.config.BaseURL = base
	return b
}

// WithHTTPClient supplies the base transport. Only its Transport is used, and its Timeout
// when Config.Timeout is zero.
func (b *Builder) WithHTTPClient(hc *http.Client) *Builder {
	b.httpClient = hc
	return b
}

// WithTokenStore injects a store. When unset Build opens the backend named by
// Config.TokenStore.
func (b *Builder) WithTokenStore(store TokenStore) *Builder {
	b.store = store
	return b
}

// WithLogger sets the zap logger used by the client and its transports. Nil keeps
// the no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithEventSink routes lifecycle events to sink through the client's event queue.
// With no sink set, or Config.Events disabled, events are discarded.
func (b *Builder) WithEventSink(sink EventSink) *Builder {
	b.eventSink = sink
	return b
}

// WithSignOutHandler registers h to run once per forced sign-out, after waiting
// requests have been released and pending events flushed. h may call the client.
func (b *Builder) WithSignOutHandler(h SignOutHandler) *Builder {
	b.onSignOut = h
	return b
}

// WithMetricsEnabled toggles the in-process counters behind Client.MetricsSnapshot.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the refresh latency histogram. It has no effect
// unless metrics are enabled.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

func (b *Builder) withClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration, opens the token store when none was injected and
// returns a ready Client.
func (b *Builder) Build() (*Client, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	base, _ := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("golearn")

	store := b.store
	var closeStore func() error
	if store == nil {
		var err error
		store, closeStore, err = OpenTokenStore(cfg.TokenStore)
		if err != nil {
			return nil, err
		}
	}

	var transport http.RoundTripper = http.DefaultTransport
	if b.httpClient != nil {
		if b.httpClient.Transport != nil {
			transport = b.httpClient.Transport
		}
		if cfg.Timeout == 0 {
			cfg.Timeout = b.httpClient.Timeout
		}
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	c := &Client{
		cfg:        cfg,
		baseURL:    base,
		logger:     logger,
		store:      store,
		closeStore: closeStore,
		metrics:    NewMetrics(cfg.Metrics),
		events:     newEventQueue(cfg.Events, b.eventSink),
		onSignOut:  b.onSignOut,
		now:        now,
		authPaths: map[string]struct{}{
			base.Path + cfg.Auth.LoginPath:    {},
			base.Path + cfg.Auth.RegisterPath: {},
			base.Path + cfg.Auth.RefreshPath:  {},
		},
	}

	c.coord = refresh.New[*oauth2.Token](c.refreshToken, refresh.Options{
		Timeout:    cfg.Refresh.Timeout,
		OnStart:    func() { c.metrics.Inc(MetricRefreshStarted) },
		OnComplete: c.refreshCompleted,
	})

	retryCodes := cfg.Retry.StatusCodes
	chain := middleware.Chain(transport,
		middleware.RequestID(cfg.Auth.RequestIDHeader),
		middleware.UserAgent(cfg.UserAgent),
		middleware.Logging(logger),
		middleware.Retry(middleware.RetryConfig{
			Attempts:    cfg.Retry.Attempts,
			Delay:       cfg.Retry.Delay,
			MaxDelay:    cfg.Retry.MaxDelay,
			StatusCodes: retryCodes,
			OnRetry:     func(uint, error) { c.metrics.Inc(MetricRetry) },
		}),
	)
	c.http = &http.Client{
		Transport: &authTransport{client: c, next: chain},
		Timeout:   cfg.Timeout,
	}

	c.raw = &http.Client{
		Transport: middleware.Chain(transport,
			middleware.RequestID(cfg.Auth.RequestIDHeader),
			middleware.UserAgent(cfg.UserAgent),
			middleware.Logging(logger),
		),
		Timeout: cfg.Timeout,
	}

	// Presigned URLs carry their own authorisation. Config.Timeout bounds the whole
	// transfer, body included; zero leaves uploads bounded only by the caller's ctx.
	c.upload = &http.Client{
		Transport: middleware.Chain(transport,
			middleware.UserAgent(cfg.UserAgent),
			middleware.Logging(logger),
		),
		Timeout: cfg.Timeout,
	}

	b.built = true
	return c, nil
}
