package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns a Prometheus registry for one service. Every metric
// is prefixed with the sanitized service name. The handler also serves the
// default registry, where package-level promauto metrics and the Go runtime
// collectors live.
type MetricsCollector struct {
	serviceName string
	registry    *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeRequests      prometheus.Gauge
	serviceInfo         *prometheus.GaugeVec
}

func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	mc := &MetricsCollector{
		serviceName: strings.NewReplacer("-", "_", ".", "_").Replace(serviceName),
		registry:    prometheus.NewRegistry(),
	}

	mc.httpRequestsTotal = mc.NewCounter("http_requests_total", "Total number of HTTP requests", []string{"method", "endpoint", "status"})
	mc.httpRequestDuration = mc.NewHistogram("http_request_duration_seconds", "HTTP request duration in seconds", []string{"method", "endpoint"}, nil)
	mc.activeRequests = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: mc.serviceName + "_active_requests",
		Help: "Number of in-flight HTTP requests",
	})
	mc.registry.MustRegister(mc.activeRequests)
	mc.serviceInfo = mc.NewGauge("service_info", "Service information", []string{"version", "commit"})
	mc.serviceInfo.WithLabelValues(version, commit).Set(1)

	return mc
}

// Registry exposes the underlying registry, mainly for tests.
func (mc *MetricsCollector) Registry() *prometheus.Registry {
	return mc.registry
}

func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.activeRequests.Inc()
		defer mc.activeRequests.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		method := c.Request.Method
		mc.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		mc.httpRequestDuration.WithLabelValues(method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	gatherers := prometheus.Gatherers{mc.registry, prometheus.DefaultGatherer}
	return gin.WrapH(promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{}))
}

func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: mc.serviceName + "_" + name,
		Help: help,
	}, labels)
	mc.registry.MustRegister(counter)
	return counter
}

func (mc *MetricsCollector) NewGauge(name, help string, labels []string) *prometheus.GaugeVec {
	gauge := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: mc.serviceName + "_" + name,
		Help: help,
	}, labels)
	mc.registry.MustRegister(gauge)
	return gauge
}

func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    mc.serviceName + "_" + name,
		Help:    help,
		Buckets: buckets,
	}, labels)
	mc.registry.MustRegister(histogram)
	return histogram
}
