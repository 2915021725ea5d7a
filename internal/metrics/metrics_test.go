package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	if c := NewCollector(reg); c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordSaleCommitted_CountsByStatus は支払い状態ごとにカウントされることを検証する。
func TestRecordSaleCommitted_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSaleCommitted("paid")
	c.RecordSaleCommitted("paid")
	c.RecordSaleCommitted("booked")

	mf := gather(t, reg, "adledger_sales_committed_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "status")] = m.GetCounter().GetValue()
	}
	if got["paid"] != 2 || got["booked"] != 1 {
		t.Errorf("sales_committed_total = %v", got)
	}
}

// TestRecordMirrorCall_SplitsResult は成功と失敗が別ラベルで記録されることを検証する。
func TestRecordMirrorCall_SplitsResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordMirrorCall("append_row", nil, 100*time.Millisecond)
	c.RecordMirrorCall("append_row", errors.New("quota"), 2*time.Second)

	mf := gather(t, reg, "adledger_mirror_calls_total")
	if len(mf.GetMetric()) != 2 {
		t.Fatalf("expected 2 label sets, got %d", len(mf.GetMetric()))
	}
	for _, m := range mf.GetMetric() {
		if labelValue(m, "op") != "append_row" {
			t.Errorf("op = %q, want append_row", labelValue(m, "op"))
		}
		if m.GetCounter().GetValue() != 1 {
			t.Errorf("result=%s count = %v, want 1", labelValue(m, "result"), m.GetCounter().GetValue())
		}
	}

	hist := gather(t, reg, "adledger_mirror_latency_seconds")
	if n := hist.GetMetric()[0].GetHistogram().GetSampleCount(); n != 2 {
		t.Errorf("sample count = %d, want 2", n)
	}
}

// TestRecordReminderSweep_ObservesHistogram はスイープの記録を検証する。
func TestRecordReminderSweep_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReminderSweep(3, 50*time.Millisecond)
	c.RecordReminderSent()
	c.RecordReminderSent()
	c.RecordReminderFailed()

	matched := gather(t, reg, "adledger_reminder_sweep_matched")
	if got := matched.GetMetric()[0].GetHistogram().GetSampleSum(); got != 3 {
		t.Errorf("sample sum = %v, want 3", got)
	}
	sent := gather(t, reg, "adledger_reminders_sent_total")
	if got := sent.GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("reminders_sent_total = %v, want 2", got)
	}
	failed := gather(t, reg, "adledger_reminders_failed_total")
	if got := failed.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("reminders_failed_total = %v, want 1", got)
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat はハンドラーがテキスト形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSaleDeleted()
	c.RecordUpdateHandled("callback")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	for _, name := range []string{"adledger_sales_deleted_total", "adledger_updates_handled_total"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("response should contain %s", name)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は別レジストリで二重登録にならないことを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	defer func() {
		if r := recover(); r != nil {
			t.Fatalf("別レジストリへの登録で panic: %v", r)
		}
	}()
	NewCollector(prometheus.NewRegistry())
	NewCollector(prometheus.NewRegistry())
}

// TestNop_SatisfiesInterface はNopがインターフェースを満たすことを検証する。
func TestNop_SatisfiesInterface(t *testing.T) {
	var c MetricsCollector = Nop{}
	c.RecordMirrorCall("delete_row", nil, time.Second)
}
