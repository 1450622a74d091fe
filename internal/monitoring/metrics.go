package monitoring

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 导入指标
	EmailsImported   prometheus.Counter
	ImportsFailed    prometheus.Counter
	ImportBatchSize  prometheus.Histogram
	ImportDuration   prometheus.Histogram

	// 邮件变更指标
	EmailMutations *prometheus.CounterVec
	EmailsTotal    prometheus.Gauge
	EmailsUnread   prometheus.Gauge

	// 存储指标
	RemoteMirrorFailures prometheus.Counter
	LocalWriteFailures   prometheus.Counter

	// 错误指标
	ErrorsTotal *prometheus.CounterVec
	PanicsTotal prometheus.Counter
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsuite_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailsuite_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		EmailsImported: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsuite_emails_imported_total",
				Help: "Total number of emails imported successfully",
			},
		),

		ImportsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsuite_imports_failed_total",
				Help: "Total number of raw records rejected during import",
			},
		),

		ImportBatchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailsuite_import_batch_size",
				Help:    "Number of raw records per import batch",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
		),

		ImportDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "mailsuite_import_duration_seconds",
				Help:    "Import batch processing duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		EmailMutations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsuite_email_mutations_total",
				Help: "Total number of email state mutations by operation",
			},
			[]string{"operation"},
		),

		EmailsTotal: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailsuite_emails_total",
				Help: "Current number of emails held by the service",
			},
		),

		EmailsUnread: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailsuite_emails_unread",
				Help: "Current number of unread emails",
			},
		),

		RemoteMirrorFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsuite_remote_mirror_failures_total",
				Help: "Total number of failed asynchronous remote store writes",
			},
		),

		LocalWriteFailures: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsuite_local_write_failures_total",
				Help: "Total number of failed local cache writes",
			},
		),

		ErrorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailsuite_errors_total",
				Help: "Total number of errors by type and component",
			},
			[]string{"error_type", "component"},
		),

		PanicsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "mailsuite_panics_total",
				Help: "Total number of recovered panics",
			},
		),
	}
}

// RecordHTTPRequest 记录 HTTP 请求指标
func (m *Metrics) RecordHTTPRequest(method, endpoint, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordImportBatch 记录一次导入批次的结果
func (m *Metrics) RecordImportBatch(imported, failed int, duration time.Duration) {
	m.EmailsImported.Add(float64(imported))
	m.ImportsFailed.Add(float64(failed))
	m.ImportBatchSize.Observe(float64(imported + failed))
	m.ImportDuration.Observe(duration.Seconds())
}

// RecordMutation 记录一次邮件状态变更
func (m *Metrics) RecordMutation(operation string) {
	m.EmailMutations.WithLabelValues(operation).Inc()
}

// RecordRemoteMirrorFailure 记录远端异步写入失败
func (m *Metrics) RecordRemoteMirrorFailure() {
	m.RemoteMirrorFailures.Inc()
}

// RecordLocalWriteFailure 记录本地缓存写入失败
func (m *Metrics) RecordLocalWriteFailure() {
	m.LocalWriteFailures.Inc()
}

// RecordError 记录错误
func (m *Metrics) RecordError(errorType, component string) {
	m.ErrorsTotal.WithLabelValues(errorType, component).Inc()
}

// RecordPanic 记录 panic
func (m *Metrics) RecordPanic() {
	m.PanicsTotal.Inc()
}

// UpdateEmailCounts 更新邮件数量仪表
func (m *Metrics) UpdateEmailCounts(total, unread int) {
	m.EmailsTotal.Set(float64(total))
	m.EmailsUnread.Set(float64(unread))
}

// HTTPHandler 返回 Prometheus 指标处理器
func (m *Metrics) HTTPHandler() http.Handler {
	return promhttp.Handler()
}
