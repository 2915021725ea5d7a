// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordSaleCommitted(status string)
	RecordSaleEdited(field string)
	RecordSaleDeleted()
	RecordMirrorCall(op string, err error, duration time.Duration)
	RecordReminderSent()
	RecordReminderFailed()
	RecordReminderSweep(matched int, duration time.Duration)
	RecordUpdateHandled(kind string)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	salesCommitted  *prometheus.CounterVec
	salesEdited     *prometheus.CounterVec
	salesDeleted    prometheus.Counter
	mirrorCalls     *prometheus.CounterVec
	mirrorLatency   *prometheus.HistogramVec
	remindersSent   prometheus.Counter
	remindersFailed prometheus.Counter
	sweepMatched    prometheus.Histogram
	sweepLatency    prometheus.Histogram
	updatesHandled  *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		salesCommitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adledger_sales_committed_total",
			Help: "記録された売上の合計数",
		}, []string{"status"}),
		salesEdited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adledger_sales_edited_total",
			Help: "項目別の売上編集数",
		}, []string{"field"}),
		salesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adledger_sales_deleted_total",
			Help: "削除された売上の合計数",
		}),
		mirrorCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adledger_mirror_calls_total",
			Help: "スプレッドシート操作の呼び出し数",
		}, []string{"op", "result"}),
		mirrorLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "adledger_mirror_latency_seconds",
			Help:    "スプレッドシート操作のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		remindersSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adledger_reminders_sent_total",
			Help: "送信したリマインダーの合計数",
		}),
		remindersFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "adledger_reminders_failed_total",
			Help: "送信に失敗したリマインダーの合計数",
		}),
		sweepMatched: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adledger_reminder_sweep_matched",
			Help:    "1回のスイープで一致したリマインダー数",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 500},
		}),
		sweepLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "adledger_reminder_sweep_seconds",
			Help:    "リマインダースイープの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		updatesHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "adledger_updates_handled_total",
			Help: "種類別の受信アップデート数",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		c.salesCommitted,
		c.salesEdited,
		c.salesDeleted,
		c.mirrorCalls,
		c.mirrorLatency,
		c.remindersSent,
		c.remindersFailed,
		c.sweepMatched,
		c.sweepLatency,
		c.updatesHandled,
	)

	return c
}

// RecordSaleCommitted は売上の記録を支払い状態別に記録する。
func (c *Collector) RecordSaleCommitted(status string) {
	c.salesCommitted.WithLabelValues(status).Inc()
}

// RecordSaleEdited は売上の編集を項目別に記録する。
func (c *Collector) RecordSaleEdited(field string) {
	c.salesEdited.WithLabelValues(field).Inc()
}

// RecordSaleDeleted は売上の削除を記録する。
func (c *Collector) RecordSaleDeleted() {
	c.salesDeleted.Inc()
}

// RecordMirrorCall はスプレッドシート操作の結果とレイテンシを記録する。
func (c *Collector) RecordMirrorCall(op string, err error, duration time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.mirrorCalls.WithLabelValues(op, result).Inc()
	c.mirrorLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordReminderSent はリマインダー送信成功を記録する。
func (c *Collector) RecordReminderSent() {
	c.remindersSent.Inc()
}

// RecordReminderFailed はリマインダー送信失敗を記録する。
func (c *Collector) RecordReminderFailed() {
	c.remindersFailed.Inc()
}

// RecordReminderSweep はスイープ1回分の一致件数と所要時間を記録する。
func (c *Collector) RecordReminderSweep(matched int, duration time.Duration) {
	c.sweepMatched.Observe(float64(matched))
	c.sweepLatency.Observe(duration.Seconds())
}

// RecordUpdateHandled は受信アップデートを種類別に記録する。
func (c *Collector) RecordUpdateHandled(kind string) {
	c.updatesHandled.WithLabelValues(kind).Inc()
}

// Nop は何も記録しないMetricsCollector。
type Nop struct{}

func (Nop) RecordSaleCommitted(string) {}
func (Nop) RecordSaleEdited(string) {}
func (Nop) RecordSaleDeleted() {}
func (Nop) RecordMirrorCall(string, error, time.Duration) {}
func (Nop) RecordReminderSent() {}
func (Nop) RecordReminderFailed() {}
func (Nop) RecordReminderSweep(int, time.Duration) {}
func (Nop) RecordUpdateHandled(string) {}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
