package core

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/atelier-studio/atelier/pkg/metrics"
)

type Metrics struct {
	apiResponseTime   *prometheus.HistogramVec
	apiErrorCounter   *prometheus.CounterVec
	llmRequestTime    *prometheus.HistogramVec
	llmError          *prometheus.CounterVec
	llmTokens         *prometheus.CounterVec
	genContextTime    *prometheus.HistogramVec
	toolCallTime      *prometheus.HistogramVec
	toolCallCounter   *prometheus.CounterVec
	vendorAttempt     *prometheus.CounterVec
	vendorAttemptTime *prometheus.HistogramVec
	backgroundJobs    *prometheus.GaugeVec
	busSubscribers    *prometheus.GaugeVec
}

func NewMetrics(ns, system string) *Metrics {
	metrics.SetupMetricsManager(ns, system, prometheus.NewRegistry())

	return &Metrics{
		apiResponseTime:   metrics.NewHistogramVec("api_response_time", []string{"api"}),
		apiErrorCounter:   metrics.NewCounterVec("api_error", []string{"method", "api", "status"}),
		llmRequestTime:    metrics.NewHistogramVec("llm_request_time", []string{"target"}),
		llmError:          metrics.NewCounterVec("llm_error", []string{"type"}),
		llmTokens:         metrics.NewCounterVec("llm_tokens", []string{"target", "kind"}),
		genContextTime:    metrics.NewHistogramVec("generate_context_time", []string{"type"}),
		toolCallTime:      metrics.NewHistogramVec("tool_call_time", []string{"tool"}),
		toolCallCounter:   metrics.NewCounterVec("tool_call", []string{"tool", "status"}),
		vendorAttempt:     metrics.NewCounterVec("vendor_attempt", []string{"model", "status"}),
		vendorAttemptTime: metrics.NewHistogramVec("vendor_attempt_time", []string{"model"}),
		backgroundJobs:    metrics.NewGaugeVec("background_jobs", []string{"kind"}),
		busSubscribers:    metrics.NewGaugeVec("bus_subscribers", nil),
	}
}

func (m *Metrics) ApiErrorInc(method, api string, status int) {
	m.apiErrorCounter.WithLabelValues(method, api, strconv.Itoa(status)).Inc()
}

func (m *Metrics) ApiResponseTimer(api string) *prometheus.Timer {
	return prometheus.NewTimer(m.apiResponseTime.WithLabelValues(api))
}

func (m *Metrics) LLMRequestTimer(target string) *prometheus.Timer {
	return prometheus.NewTimer(m.llmRequestTime.WithLabelValues(target))
}

func (m *Metrics) LLMErrorInc(types string) {
	m.llmError.WithLabelValues(types).Inc()
}

func (m *Metrics) LLMTokensAdd(target string, prompt, completion int) {
	m.llmTokens.WithLabelValues(target, "prompt").Add(float64(prompt))
	m.llmTokens.WithLabelValues(target, "completion").Add(float64(completion))
}

func (m *Metrics) GenContextTimer(types string) *prometheus.Timer {
	return prometheus.NewTimer(m.genContextTime.WithLabelValues(types))
}

func (m *Metrics) ToolCallTimer(tool string) *prometheus.Timer {
	return prometheus.NewTimer(m.toolCallTime.WithLabelValues(tool))
}

func (m *Metrics) ToolCallInc(tool string, success bool) {
	m.toolCallCounter.WithLabelValues(tool, status(success)).Inc()
}

// VendorAttempt is the retry telemetry hook of the vendor gateway.
func (m *Metrics) VendorAttempt(model string, success bool, cost time.Duration) {
	m.vendorAttempt.WithLabelValues(model, status(success)).Inc()
	m.vendorAttemptTime.WithLabelValues(model).Observe(cost.Seconds())
}

func (m *Metrics) BackgroundJobStarted(kind string) {
	m.backgroundJobs.WithLabelValues(kind).Inc()
}

func (m *Metrics) BackgroundJobFinished(kind string) {
	m.backgroundJobs.WithLabelValues(kind).Dec()
}

func (m *Metrics) BusSubscribers(n int) {
	m.busSubscribers.WithLabelValues().Set(float64(n))
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
