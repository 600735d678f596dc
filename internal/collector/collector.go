package collector

import (
	"context"
	"time"

	"github.com/LJTian/InsuranceNews/internal/config"
)

const dateLayout = "2006-01-02"

// Article 统一采集后的输出结构，直接序列化为 news_data.json 的一条记录
type Article struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Date    string `json:"date"`
	Source  string `json:"source,omitempty"`
	Journal string `json:"journal,omitempty"`

	// SourceID 是采集器的英文代号（taiwan / japan / papers），不写入 JSON
	SourceID string `json:"-"`
}

// Tag 返回记录的来源标签：论文为期刊名，新闻为地区名
func (a Article) Tag() string {
	if a.Journal != "" {
		return a.Journal
	}
	return a.Source
}

// Collector 抽象每一个数据源。Collect 不返回错误：抓取、解析失败都在内部记录日志，
// 并以空结果返回，不影响其它数据源。
type Collector interface {
	Name() string
	Collect(ctx context.Context) []Article
}

// DocumentFetcher 抽象 HTTP 抓取，便于在测试中替换
type DocumentFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Document, error)
}

// Options 是所有采集器共享的依赖
type Options struct {
	Fetcher  DocumentFetcher
	Now      func() time.Time
	Location *time.Location
}

func (o Options) now() time.Time {
	if o.Now == nil {
		return time.Now()
	}
	return o.Now()
}

func (o Options) location() *time.Location {
	if o.Location == nil {
		return time.Local
	}
	return o.Location
}

// dateOf 优先使用源提供的发布时间，否则使用采集当天
func (o Options) dateOf(published *time.Time) string {
	if published != nil && !published.IsZero() {
		return published.In(o.location()).Format(dateLayout)
	}
	return o.now().In(o.location()).Format(dateLayout)
}

// FromConfig 按配置顺序创建采集器：先地区新闻源，最后是期刊论文
func FromConfig(cfg *config.Config, opts Options) []Collector {
	var out []Collector
	for _, src := range cfg.EnabledSources() {
		switch src.Kind {
		case config.KindFeed:
			out = append(out, NewFeedCollector(src, opts))
		case config.KindPage:
			out = append(out, NewPageCollector(src, opts))
		}
	}
	if cfg.Papers.Enabled {
		out = append(out, NewJournalCollector(cfg.Papers, opts))
	}
	return out
}
