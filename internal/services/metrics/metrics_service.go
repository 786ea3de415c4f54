package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Service provides Prometheus metrics for the pickup gateway
type Service struct {
	// HTTP Metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Carrier Metrics
	carrierCallsTotal   *prometheus.CounterVec
	carrierCallDuration *prometheus.HistogramVec
	carrierRetriesTotal *prometheus.CounterVec
	circuitBreakerState *prometheus.GaugeVec

	// Shopify Metrics
	shopifyCallsTotal   *prometheus.CounterVec
	shopifyCallDuration *prometheus.HistogramVec

	// Cache Metrics
	cacheHitsTotal   *prometheus.CounterVec
	cacheMissesTotal *prometheus.CounterVec

	rateLimitedTotal *prometheus.CounterVec

	// Business Metrics
	disabledDatesComputedTotal *prometheus.CounterVec
	transportsCreatedTotal     prometheus.Counter
	ordersFailedTotal          prometheus.Counter
	eventsPublishedTotal       *prometheus.CounterVec
}

// NewService registers the gateway collectors with reg. Pass
// prometheus.DefaultRegisterer to expose them on the default /metrics handler.
func NewService(reg prometheus.Registerer) *Service {
	factory := promauto.With(reg)

	return &Service{
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_requests_total",
				Help: "Total number of HTTP requests by endpoint and status",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubon_request_duration_seconds",
				Help:    "HTTP request processing time in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		),

		carrierCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_carrier_calls_total",
				Help: "Total number of HubOn API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		carrierCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubon_carrier_call_duration_seconds",
				Help:    "HubOn API call latency in seconds, retries included",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),
		carrierRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_carrier_retries_total",
				Help: "Total number of retried HubOn API attempts",
			},
			[]string{"operation"},
		),
		circuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "hubon_circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"breaker"},
		),

		shopifyCallsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_shopify_calls_total",
				Help: "Total number of Shopify Admin API calls by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		shopifyCallDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "hubon_shopify_call_duration_seconds",
				Help:    "Shopify Admin API call latency in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		cacheHitsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		cacheMissesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),

		rateLimitedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_rate_limited_total",
				Help: "Total number of storefront requests rejected by the rate limiter",
			},
			[]string{"endpoint"},
		),

		disabledDatesComputedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_disabled_dates_computed_total",
				Help: "Total number of disabled pickup date computations by outcome",
			},
			[]string{"outcome"},
		),
		transportsCreatedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hubon_transports_created_total",
				Help: "Total number of transports created from retried orders",
			},
		),
		ordersFailedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "hubon_orders_failed_total",
				Help: "Total number of orders recorded as failed",
			},
		),
		eventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "hubon_events_published_total",
				Help: "Total number of stream events published by outcome",
			},
			[]string{"event_type", "outcome"},
		),
	}
}

func (s *Service) RecordRequest(endpoint, status string) {
	s.requestsTotal.WithLabelValues(endpoint, status).Inc()
}

func (s *Service) RecordRequestDuration(endpoint, status string, duration time.Duration) {
	s.requestDuration.WithLabelValues(endpoint, status).Observe(duration.Seconds())
}

// RecordCarrierCall counts one logical call, which may span several attempts.
func (s *Service) RecordCarrierCall(operation, outcome string, duration time.Duration) {
	s.carrierCallsTotal.WithLabelValues(operation, outcome).Inc()
	s.carrierCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (s *Service) RecordCarrierRetry(operation string) {
	s.carrierRetriesTotal.WithLabelValues(operation).Inc()
}

func (s *Service) SetCircuitBreakerState(breaker string, state int) {
	s.circuitBreakerState.WithLabelValues(breaker).Set(float64(state))
}

func (s *Service) RecordShopifyCall(operation, outcome string, duration time.Duration) {
	s.shopifyCallsTotal.WithLabelValues(operation, outcome).Inc()
	s.shopifyCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (s *Service) RecordRateLimited(endpoint string) {
	s.rateLimitedTotal.WithLabelValues(endpoint).Inc()
}

func (s *Service) RecordCacheHit(cache string) {
	s.cacheHitsTotal.WithLabelValues(cache).Inc()
}

func (s *Service) RecordCacheMiss(cache string) {
	s.cacheMissesTotal.WithLabelValues(cache).Inc()
}

func (s *Service) RecordDisabledDatesComputed(outcome string) {
	s.disabledDatesComputedTotal.WithLabelValues(outcome).Inc()
}

func (s *Service) RecordTransportCreated() {
	s.transportsCreatedTotal.Inc()
}

func (s *Service) RecordOrderFailed() {
	s.ordersFailedTotal.Inc()
}

func (s *Service) RecordEventPublished(eventType, outcome string) {
	s.eventsPublishedTotal.WithLabelValues(eventType, outcome).Inc()
}
