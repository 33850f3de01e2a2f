package transport

import (
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/frame-transport/internal/infrastructure/config"
	"github.com/nerrad567/frame-transport/internal/infrastructure/mqtt"
)

// Defaults applied to zero-valued Options fields.
const (
	DefaultKeepAlive       = 15 * time.Second
	DefaultReconnectPeriod = 1 * time.Second
	DefaultConnectTimeout  = 30 * time.Second
	DefaultMaxPacketSize   = 128
)

// Options configures a transport. They are fixed for the transport's lifetime.
type Options struct {
	// URL is the broker address, e.g. "tcp://localhost:1883".
	URL string

	// Device is the logical device identifier that namespaces all topics.
	Device string

	Login    string
	Password string

	// Multi allows several sessions for one device by randomising the
	// client identity.
	Multi bool

	// AutoReconnect retries connecting every ReconnectPeriod.
	AutoReconnect bool

	KeepAlive       time.Duration
	ReconnectPeriod time.Duration
	ConnectTimeout  time.Duration

	// MaxPacketSize is the publication size ceiling used when coalescing
	// frames, counting the topic as well as the payload.
	MaxPacketSize int

	// StrictPacketSize rejects frames that cannot fit in one publication
	// on their own. When false such frames are published oversized.
	StrictPacketSize bool
}

// FromConfig converts the YAML transport section into Options.
func FromConfig(cfg config.TransportConfig) Options {
	return Options{
		URL:              cfg.URL,
		Device:           cfg.Device,
		Login:            cfg.Login,
		Password:         cfg.Password,
		Multi:            cfg.Multi,
		AutoReconnect:    cfg.AutoReconnect,
		KeepAlive:        cfg.KeepAlive,
		ReconnectPeriod:  cfg.ReconnectPeriod,
		ConnectTimeout:   cfg.ConnectTimeout,
		MaxPacketSize:    cfg.MaxPacketSize,
		StrictPacketSize: cfg.StrictPacketSize,
	}
}

// withDefaults fills zero fields with the documented defaults.
func (o Options) withDefaults() Options {
	if o.KeepAlive == 0 {
		o.KeepAlive = DefaultKeepAlive
	}
	if o.ReconnectPeriod == 0 {
		o.ReconnectPeriod = DefaultReconnectPeriod
	}
	if o.ConnectTimeout == 0 {
		o.ConnectTimeout = DefaultConnectTimeout
	}
	if o.MaxPacketSize == 0 {
		o.MaxPacketSize = DefaultMaxPacketSize
	}
	return o
}

// validate reports every problem with the options at once.
func (o Options) validate() error {
	var errs []string

	if o.URL == "" {
		errs = append(errs, "url is required")
	}
	if o.Device == "" {
		errs = append(errs, "device is required")
	} else if strings.ContainsAny(o.Device, "+#") {
		errs = append(errs, "device must not contain MQTT wildcards")
	}
	if o.MaxPacketSize < 0 {
		errs = append(errs, "max packet size must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidOptions, strings.Join(errs, "; "))
	}
	return nil
}

// brokerOptions derives the broker connection settings.
func (o Options) brokerOptions() mqtt.Options {
	return mqtt.Options{
		URL:             o.URL,
		ClientID:        mqtt.ClientID(o.Device, o.Multi),
		Username:        o.Login,
		Password:        o.Password,
		KeepAlive:       o.KeepAlive,
		ConnectTimeout:  o.ConnectTimeout,
		AutoReconnect:   o.AutoReconnect,
		ReconnectPeriod: o.ReconnectPeriod,
	}
}

// Option customises how a transport is built.
type Option func(*settings)

type settings struct {
	dialer    Dialer
	scheduler Scheduler
	logger    Logger
	metrics   Metrics
}

// WithDialer replaces the broker connection factory.
func WithDialer(d Dialer) Option {
	return func(s *settings) { s.dialer = d }
}

// WithScheduler replaces the default Loop. The transport starts the
// scheduler after connecting and stops it after EventClose.
func WithScheduler(sched Scheduler) Option {
	return func(s *settings) { s.scheduler = sched }
}

// WithLogger sets the logger for the transport and its connection.
func WithLogger(l Logger) Option {
	return func(s *settings) { s.logger = l }
}

// WithMetrics sets a telemetry sink.
func WithMetrics(m Metrics) Option {
	return func(s *settings) { s.metrics = m }
}

func buildSettings(fns []Option) settings {
	s := settings{
		dialer:  dialMQTT,
		logger:  nopLogger{},
		metrics: nopMetrics{},
	}
	for _, fn := range fns {
		if fn != nil {
			fn(&s)
		}
	}
	if s.scheduler == nil {
		s.scheduler = NewLoop(s.logger)
	}
	return s
}
