package metrics

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type manager struct {
	namespace string
	system    string
	registry  *prometheus.Registry
}

var (
	mu             sync.RWMutex
	defaultManager = &manager{
		namespace: "default",
		system:    "default",
		registry:  prometheus.NewRegistry(),
	}
)

func SetupMetricsManager(ns, system string, registry *prometheus.Registry) {
	mu.Lock()
	defaultManager = &manager{
		namespace: ns,
		system:    system,
		registry:  registry,
	}
	mu.Unlock()
	register(registry, collectors.NewGoCollector())
}

func current() *manager {
	mu.RLock()
	defer mu.RUnlock()
	return defaultManager
}

func Registry() *prometheus.Registry {
	return current().registry
}

func register(r prometheus.Registerer, c prometheus.Collector) {
	if err := r.Register(c); err != nil {
		if _, dup := err.(prometheus.AlreadyRegisteredError); !dup {
			slog.Warn("failed to register collector", slog.Any("error", err))
		}
	}
}

func zeroLabels(labels []string) []string {
	return make([]string, len(labels))
}

func NewCounterVec(name string, labels []string) *prometheus.CounterVec {
	m := current()
	vec := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: FmtFixer(m.namespace),
		Subsystem: FmtFixer(m.system),
		Name:      FmtFixer(name),
		Help:      fmt.Sprintf("%s count of /%s/%s", name, m.namespace, m.system),
	}, labels)
	vec.WithLabelValues(zeroLabels(labels)...).Add(0)
	register(m.registry, vec)
	return vec
}

func NewHistogramVec(name string, labels []string) *prometheus.HistogramVec {
	m := current()
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: FmtFixer(m.namespace),
		Subsystem: FmtFixer(m.system),
		Name:      FmtFixer(name),
		Help:      fmt.Sprintf("%s duration of /%s/%s", name, m.namespace, m.system),
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 180},
	}, labels)
	register(m.registry, vec)
	return vec
}

func NewGaugeVec(name string, labels []string) *prometheus.GaugeVec {
	m := current()
	vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: FmtFixer(m.namespace),
		Subsystem: FmtFixer(m.system),
		Name:      FmtFixer(name),
		Help:      fmt.Sprintf("%s gauge of /%s/%s", name, m.namespace, m.system),
	}, labels)
	vec.WithLabelValues(zeroLabels(labels)...).Add(0)
	register(m.registry, vec)
	return vec
}

func Handler() http.Handler {
	r := current().registry
	return promhttp.InstrumentMetricHandler(r, promhttp.HandlerFor(r, promhttp.HandlerOpts{}))
}

func DefaultExportHandler() gin.HandlerFunc {
	h := Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

func FmtFixer(in string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(in)
}
