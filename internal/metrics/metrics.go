// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// セッション・通知センター・リスナーから利用する。
type MetricsCollector interface {
	RecordLoadSuccess(accountID string)
	RecordLoadFailure(accountID string)
	RecordLoadLatency(duration time.Duration)
	RecordEventLogged()
	RecordNotificationIngested()
	RecordNotificationDeduped()
	RecordRealtimeReconnect()
	RecordAlertDropped()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	loadSuccess    prometheus.Counter
	loadFailure    prometheus.Counter
	loadLatency    prometheus.Histogram
	eventsLogged   prometheus.Counter
	notifIngested  prometheus.Counter
	notifDeduped   prometheus.Counter
	realtimeReconn prometheus.Counter
	alertsDropped  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		loadSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_load_success_total",
			Help: "アカウントデータ読み込み成功の合計数",
		}),
		loadFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_load_failure_total",
			Help: "アカウントデータ読み込み失敗の合計数",
		}),
		loadLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "brewlog_load_latency_seconds",
			Help:    "アカウントデータ読み込みのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		eventsLogged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_events_logged_total",
			Help: "記録された抽出イベントの合計数",
		}),
		notifIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_notifications_ingested_total",
			Help: "取り込まれた通知の合計数",
		}),
		notifDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_notifications_deduped_total",
			Help: "重複排除により破棄された通知の合計数",
		}),
		realtimeReconn: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_realtime_reconnects_total",
			Help: "リアルタイムチャネル再接続の合計数",
		}),
		alertsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "brewlog_alerts_dropped_total",
			Help: "バッファ溢れで破棄されたアプリ内アラートの合計数",
		}),
	}

	reg.MustRegister(
		c.loadSuccess,
		c.loadFailure,
		c.loadLatency,
		c.eventsLogged,
		c.notifIngested,
		c.notifDeduped,
		c.realtimeReconn,
		c.alertsDropped,
	)

	return c
}

// RecordLoadSuccess は読み込み成功を記録する。
func (c *Collector) RecordLoadSuccess(accountID string) {
	c.loadSuccess.Inc()
}

// RecordLoadFailure は読み込み失敗を記録する。
func (c *Collector) RecordLoadFailure(accountID string) {
	c.loadFailure.Inc()
}

// RecordLoadLatency は読み込みのレイテンシを記録する。
func (c *Collector) RecordLoadLatency(duration time.Duration) {
	c.loadLatency.Observe(duration.Seconds())
}

// RecordEventLogged は抽出イベントの記録を記録する。
func (c *Collector) RecordEventLogged() {
	c.eventsLogged.Inc()
}

// RecordNotificationIngested は通知の取り込みを記録する。
func (c *Collector) RecordNotificationIngested() {
	c.notifIngested.Inc()
}

// RecordNotificationDeduped は通知の重複排除を記録する。
func (c *Collector) RecordNotificationDeduped() {
	c.notifDeduped.Inc()
}

// RecordRealtimeReconnect はリアルタイムチャネルの再接続を記録する。
func (c *Collector) RecordRealtimeReconnect() {
	c.realtimeReconn.Inc()
}

// RecordAlertDropped はアラートの破棄を記録する。
func (c *Collector) RecordAlertDropped() {
	c.alertsDropped.Inc()
}

// NopCollector は何も記録しないMetricsCollector実装。テストで使用する。
type NopCollector struct{}

// RecordLoadSuccess は何もしない。
func (NopCollector) RecordLoadSuccess(accountID string) {}

// RecordLoadFailure は何もしない。
func (NopCollector) RecordLoadFailure(accountID string) {}

// RecordLoadLatency は何もしない。
func (NopCollector) RecordLoadLatency(duration time.Duration) {}

// RecordEventLogged は何もしない。
func (NopCollector) RecordEventLogged() {}

// RecordNotificationIngested は何もしない。
func (NopCollector) RecordNotificationIngested() {}

// RecordNotificationDeduped は何もしない。
func (NopCollector) RecordNotificationDeduped() {}

// RecordRealtimeReconnect は何もしない。
func (NopCollector) RecordRealtimeReconnect() {}

// RecordAlertDropped は何もしない。
func (NopCollector) RecordAlertDropped() {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = NopCollector{}
)
