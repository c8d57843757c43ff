// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BusinessCollector は業務イベントのメトリクス記録インターフェース。
// サービス層やワーカーから利用する。
type BusinessCollector interface {
	RecordUserRegistered(role string)
	RecordBookingCreated()
	RecordBookingStatusChange(status string)
	RecordOTPCleanup(deleted int64)
}

// Collector はPrometheusメトリクスを収集する実装。
// database.QueryRecorderも満たし、SQL実行の回数とレイテンシを記録する。
type Collector struct {
	httpRequests    *prometheus.CounterVec
	httpLatency     prometheus.Histogram
	dbQueries       *prometheus.CounterVec
	dbLatency       *prometheus.HistogramVec
	usersRegistered *prometheus.CounterVec
	bookingsCreated prometheus.Counter
	bookingStatus   *prometheus.CounterVec
	otpCleaned      prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoyakuba_http_requests_total",
			Help: "HTTPメソッド・ステータスコード別のリクエスト数",
		}, []string{"method", "status_code"}),
		httpLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "yoyakuba_http_request_duration_seconds",
			Help:    "HTTPリクエスト処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		dbQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoyakuba_db_queries_total",
			Help: "操作種別ごとのSQL実行回数",
		}, []string{"op"}),
		dbLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "yoyakuba_db_query_duration_seconds",
			Help:    "SQL実行時間（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		usersRegistered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoyakuba_users_registered_total",
			Help: "役割別のユーザー登録数",
		}, []string{"role"}),
		bookingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoyakuba_bookings_created_total",
			Help: "作成された予約の合計数",
		}),
		bookingStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "yoyakuba_booking_status_changes_total",
			Help: "遷移先ステータス別の予約ステータス変更数",
		}, []string{"status"}),
		otpCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "yoyakuba_otp_cleaned_total",
			Help: "クリーンアップで削除された期限切れOTPの合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.dbQueries,
		c.dbLatency,
		c.usersRegistered,
		c.bookingsCreated,
		c.bookingStatus,
		c.otpCleaned,
	)

	return c
}

// RecordHTTPRequest はリクエスト1件の処理結果を記録する。
func (c *Collector) RecordHTTPRequest(method string, statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.Observe(duration.Seconds())
}

// RecordQuery はSQL実行を記録する。database.QueryRecorderの実装。
func (c *Collector) RecordQuery(op string, seconds float64) {
	c.dbQueries.WithLabelValues(op).Inc()
	c.dbLatency.WithLabelValues(op).Observe(seconds)
}

// RecordUserRegistered はユーザー登録を役割別に記録する。
func (c *Collector) RecordUserRegistered(role string) {
	c.usersRegistered.WithLabelValues(role).Inc()
}

// RecordBookingCreated は予約作成を記録する。
func (c *Collector) RecordBookingCreated() {
	c.bookingsCreated.Inc()
}

// RecordBookingStatusChange は予約ステータス変更を遷移先別に記録する。
func (c *Collector) RecordBookingStatusChange(status string) {
	c.bookingStatus.WithLabelValues(status).Inc()
}

// RecordOTPCleanup は削除された期限切れOTP数を記録する。
func (c *Collector) RecordOTPCleanup(deleted int64) {
	c.otpCleaned.Add(float64(deleted))
}

// HTTPMiddleware は各リクエストのメソッド・ステータス・処理時間を記録するミドルウェアを返す。
func (c *Collector) HTTPMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusCapture{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			c.RecordHTTPRequest(r.Method, rec.status, time.Since(start))
		})
	}
}

type statusCapture struct {
	http.ResponseWriter
	status int
}

func (s *statusCapture) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
