package scheduler

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/config"
	"github.com/LJTian/InsuranceNews/internal/export"
	"github.com/LJTian/InsuranceNews/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCollector struct {
	name  string
	items []collector.Article
	calls int
}

func (s *stubCollector) Name() string { return s.name }

func (s *stubCollector) Collect(context.Context) []collector.Article {
	s.calls++
	return s.items
}

var fixedNow = time.Date(2026, 10, 18, 0, 30, 0, 0, time.UTC)

func newPipeline(t *testing.T, cfg *config.Config, collectors ...collector.Collector) *Pipeline {
	t.Helper()
	now := func() time.Time { return fixedNow }
	p := processor.NewSimpleProcessor(cfg.Placeholder, now, cfg.Location())
	return NewPipeline(cfg, collectors, p, nil, now)
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.OutputDir = filepath.Join(t.TempDir(), "data")
	return cfg
}

func readArticles(t *testing.T, path string) []collector.Article {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var out []collector.Article
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestRunOnceWritesNewsAndPapers(t *testing.T) {
	cfg := testConfig(t)
	cfg.Export = config.ExportConfig{CSV: true, Chart: true, Digest: true}

	taiwan := &stubCollector{name: "taiwan", items: []collector.Article{
		{Title: "金管會公布保險業新制", Link: "https://example.com/1", Date: "2026-10-18", Source: "台灣新聞", SourceID: "taiwan"},
	}}
	japan := &stubCollector{name: "japan", items: []collector.Article{
		{Title: "金管會公布保險業新制", Link: "https://example.com/dup", Date: "2026-10-18", Source: "日本新聞", SourceID: "japan"},
		{Title: "生命保険各社、新型の医療保険を発売", Link: "https://example.com/2", Date: "2026-10-18", Source: "日本新聞", SourceID: "japan"},
	}}
	papers := &stubCollector{name: "papers", items: []collector.Article{
		{Title: "Longevity risk and annuity pricing", Link: "https://example.com/p", Date: "2026-10-17", Journal: "ASTIN Bulletin", SourceID: "papers"},
	}}

	res, err := newPipeline(t, cfg, taiwan, japan, papers).RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Papers)
	assert.False(t, res.Placeholder)
	assert.Equal(t, map[string]int{"taiwan": 1, "japan": 1, "papers": 1}, res.PerSource)

	news := readArticles(t, res.NewsPath)
	require.Len(t, news, 2)
	assert.Equal(t, "https://example.com/1", news[0].Link)
	assert.Equal(t, "ASTIN Bulletin", readArticles(t, res.PaperPath)[0].Journal)

	// 08:30 (UTC+8) 的日期
	for _, name := range []string{"insurance_news_2026-10-18.csv", export.ChartFile, export.DigestFile} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunOnceNoResultsWritesPlaceholder(t *testing.T) {
	cfg := testConfig(t)
	cfg.Papers.Enabled = false

	res, err := newPipeline(t, cfg, &stubCollector{name: "taiwan"}, &stubCollector{name: "japan"}).RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Placeholder)
	assert.Empty(t, res.PaperPath)

	news := readArticles(t, res.NewsPath)
	require.Len(t, news, 1)
	assert.Equal(t, "系統測試：目前線上暫無最新新聞，請稍後再試", news[0].Title)
	assert.Equal(t, "#", news[0].Link)
	assert.Equal(t, "2026-10-18", news[0].Date)
	assert.Equal(t, "台灣新聞", news[0].Source)

	_, err = os.Stat(filepath.Join(cfg.OutputDir, export.ChartFile))
	assert.True(t, os.IsNotExist(err))
}

func TestRunOnceCanceledStillWrites(t *testing.T) {
	cfg := testConfig(t)
	c := &stubCollector{name: "taiwan", items: []collector.Article{{Title: "x"}}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newPipeline(t, cfg, c).RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, c.calls)
	assert.True(t, res.Placeholder)
}

func TestRunOnceOutputDirFailure(t *testing.T) {
	cfg := testConfig(t)
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))
	cfg.OutputDir = filepath.Join(blocker, "data")

	c := &stubCollector{name: "taiwan"}
	_, err := newPipeline(t, cfg, c).RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, c.calls)
}

func TestNewRejectsBadSpec(t *testing.T) {
	_, err := New("not a cron spec", newPipeline(t, testConfig(t)))
	assert.Error(t, err)
}

func TestSchedulerRunOnceAndStop(t *testing.T) {
	cfg := testConfig(t)
	s, err := New("0 8 * * *", newPipeline(t, cfg))
	require.NoError(t, err)

	s.Start()
	res, err := s.RunOnce()
	require.NoError(t, err)
	assert.True(t, res.Placeholder)
	s.Stop()
}
