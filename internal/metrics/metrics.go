// Package metrics はPrometheusメトリクスの収集と公開を提供する。
// 握りつぶしたエラーの診断チャネルも兼ねる。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// コントローラー、ハンドラー、ワーカーから利用する。
type MetricsCollector interface {
	RecordAuthOutcome(operation, result string)
	RecordSwallowedError(operation string)
	RecordFavoriteToggle(saved bool)
	RecordContactSubmission(result string)
	RecordContactLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordReservationsRepaired(count int)
	RecordReservationConflicts(count int)
	RecordSessionsPurged(count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	authOutcome          *prometheus.CounterVec
	swallowedErrors      *prometheus.CounterVec
	favoriteToggles      *prometheus.CounterVec
	contactSubmissions   *prometheus.CounterVec
	contactLatency       prometheus.Histogram
	httpStatus           *prometheus.CounterVec
	reservationsRepaired prometheus.Counter
	reservationConflicts prometheus.Counter
	sessionsPurged       prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		authOutcome: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makersgallery_auth_outcome_total",
			Help: "認証操作の結果別の合計数",
		}, []string{"operation", "result"}),
		swallowedErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makersgallery_swallowed_errors_total",
			Help: "利用者に返さずフォールバックしたエラーの合計数",
		}, []string{"operation"}),
		favoriteToggles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makersgallery_favorite_toggles_total",
			Help: "お気に入りトグルの結果状態別の合計数",
		}, []string{"saved"}),
		contactSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makersgallery_contact_submissions_total",
			Help: "問い合わせ送信の結果別の合計数",
		}, []string{"result"}),
		contactLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "makersgallery_contact_latency_seconds",
			Help:    "問い合わせ送信先へのリクエストのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "makersgallery_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		reservationsRepaired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makersgallery_reservations_repaired_total",
			Help: "整合性ジョブが補完したユーザー名予約の合計数",
		}),
		reservationConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makersgallery_reservation_conflicts_total",
			Help: "別のユーザーが保持していたユーザー名予約の合計数",
		}),
		sessionsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "makersgallery_sessions_purged_total",
			Help: "削除した期限切れセッションの合計数",
		}),
	}

	reg.MustRegister(
		c.authOutcome,
		c.swallowedErrors,
		c.favoriteToggles,
		c.contactSubmissions,
		c.contactLatency,
		c.httpStatus,
		c.reservationsRepaired,
		c.reservationConflicts,
		c.sessionsPurged,
	)

	return c
}

// RecordAuthOutcome は認証操作（signup/login/logout）の結果を記録する。
func (c *Collector) RecordAuthOutcome(operation, result string) {
	c.authOutcome.WithLabelValues(operation, result).Inc()
}

// RecordSwallowedError はフォールバック値で握りつぶしたエラーを記録する。
func (c *Collector) RecordSwallowedError(operation string) {
	c.swallowedErrors.WithLabelValues(operation).Inc()
}

// RecordFavoriteToggle はトグル後の保存状態を記録する。
func (c *Collector) RecordFavoriteToggle(saved bool) {
	c.favoriteToggles.WithLabelValues(strconv.FormatBool(saved)).Inc()
}

// RecordContactSubmission は問い合わせ送信の結果を記録する。
func (c *Collector) RecordContactSubmission(result string) {
	c.contactSubmissions.WithLabelValues(result).Inc()
}

// RecordContactLatency は問い合わせ送信先へのリクエストのレイテンシを記録する。
func (c *Collector) RecordContactLatency(duration time.Duration) {
	c.contactLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordReservationsRepaired は補完したユーザー名予約の件数を記録する。
func (c *Collector) RecordReservationsRepaired(count int) {
	c.reservationsRepaired.Add(float64(count))
}

// RecordReservationConflicts はユーザー名予約の衝突件数を記録する。
func (c *Collector) RecordReservationConflicts(count int) {
	c.reservationConflicts.Add(float64(count))
}

// RecordSessionsPurged は削除した期限切れセッションの件数を記録する。
func (c *Collector) RecordSessionsPurged(count int64) {
	c.sessionsPurged.Add(float64(count))
}

// NopCollector は何も記録しないMetricsCollector。
type NopCollector struct{}

func (NopCollector) RecordAuthOutcome(string, string) {}
func (NopCollector) RecordSwallowedError(string) {}
func (NopCollector) RecordFavoriteToggle(bool) {}
func (NopCollector) RecordContactSubmission(string) {}
func (NopCollector) RecordContactLatency(time.Duration) {}
func (NopCollector) RecordHTTPStatus(int) {}
func (NopCollector) RecordReservationsRepaired(int) {}
func (NopCollector) RecordReservationConflicts(int) {}
func (NopCollector) RecordSessionsPurged(int64) {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
// 収集に失敗したメトリクスがあっても取得できた分は返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
