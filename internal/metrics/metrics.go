// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 認証サービス、セッション検証、ワーカー、HTTPミドルウェアから利用する。
type MetricsCollector interface {
	// RecordLogin はログイン試行の結果を記録する。methodは "id_token" または "code"。
	RecordLogin(method, outcome string)
	// RecordSessionCheck はセッション検証の結果を記録する。
	RecordSessionCheck(outcome string)
	// RecordSessionsPurged は削除した期限切れセッション数を記録する。
	RecordSessionsPurged(count int)
	// RecordHTTPStatus はHTTPステータスコードを記録する。
	RecordHTTPStatus(statusCode int)
	// RecordIdPLatency はIdP呼び出しのレイテンシを記録する。
	RecordIdPLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	logins         *prometheus.CounterVec
	sessionChecks  *prometheus.CounterVec
	sessionsPurged prometheus.Counter
	httpStatus     *prometheus.CounterVec
	idpLatency     prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readshare_login_total",
			Help: "ログイン試行の合計数（方式・結果別）",
		}, []string{"method", "outcome"}),
		sessionChecks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readshare_session_check_total",
			Help: "セッション検証の合計数（結果別）",
		}, []string{"outcome"}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "readshare_sessions_purged_total",
			Help: "削除された期限切れセッションの合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "readshare_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		idpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "readshare_idp_latency_seconds",
			Help:    "IdP呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.logins,
		c.sessionChecks,
		c.sessionsPurged,
		c.httpStatus,
		c.idpLatency,
	)

	return c
}

// RecordLogin はログイン試行の結果を記録する。
func (c *Collector) RecordLogin(method, outcome string) {
	c.logins.WithLabelValues(method, outcome).Inc()
}

// RecordSessionCheck はセッション検証の結果を記録する。
func (c *Collector) RecordSessionCheck(outcome string) {
	c.sessionChecks.WithLabelValues(outcome).Inc()
}

// RecordSessionsPurged は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsPurged(count int) {
	c.sessionsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordIdPLatency はIdP呼び出しのレイテンシを記録する。
func (c *Collector) RecordIdPLatency(duration time.Duration) {
	c.idpLatency.Observe(duration.Seconds())
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordLogin(string, string)     {}
func (Nop) RecordSessionCheck(string)      {}
func (Nop) RecordSessionsPurged(int)       {}
func (Nop) RecordHTTPStatus(int)           {}
func (Nop) RecordIdPLatency(time.Duration) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
