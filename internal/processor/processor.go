package processor

import (
	"crypto/sha1"
	"encoding/hex"
	"time"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/config"
)

// PlaceholderSourceID 占位记录的来源代号
const PlaceholderSourceID = "placeholder"

// Batch 是一轮采集合并后的结果：News 写入 news_data.json，Papers 写入 paper_data.json
type Batch struct {
	News        []collector.Article
	Papers      []collector.Article
	Placeholder bool
}

// All 按新闻、论文的顺序返回全部记录
func (b Batch) All() []collector.Article {
	out := make([]collector.Article, 0, b.Total())
	out = append(out, b.News...)
	return append(out, b.Papers...)
}

// Total 返回新闻与论文的总条数
func (b Batch) Total() int {
	return len(b.News) + len(b.Papers)
}

// SimpleProcessor 合并各采集器结果、按标题去重，并在没有新闻时补一条占位记录
type SimpleProcessor struct {
	placeholder config.PlaceholderConfig
	now         func() time.Time
	loc         *time.Location
}

func NewSimpleProcessor(placeholder config.PlaceholderConfig, now func() time.Time, loc *time.Location) *SimpleProcessor {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &SimpleProcessor{placeholder: placeholder, now: now, loc: loc}
}

// Process 按传入顺序拼接各组记录，按标题去重（保留第一次出现的完整记录）；
// 结果为空时返回唯一一条占位记录。
func (p *SimpleProcessor) Process(groups ...[]collector.Article) []collector.Article {
	out := Dedup(concat(groups))
	if len(out) == 0 {
		return []collector.Article{p.Placeholder()}
	}
	return out
}

// Aggregate 把论文（带期刊名的记录）与新闻分开：新闻走 Process，论文只去重
func (p *SimpleProcessor) Aggregate(groups ...[]collector.Article) Batch {
	var news, papers []collector.Article
	for _, a := range concat(groups) {
		if a.Journal != "" {
			papers = append(papers, a)
		} else {
			news = append(news, a)
		}
	}

	b := Batch{Papers: Dedup(papers)}
	if b.Papers == nil {
		b.Papers = []collector.Article{}
	}
	b.News = Dedup(news)
	if len(b.News) == 0 {
		b.News = []collector.Article{p.Placeholder()}
		b.Placeholder = true
	}
	return b
}

// Placeholder 返回日期为今天的占位记录
func (p *SimpleProcessor) Placeholder() collector.Article {
	return collector.Article{
		Title:    p.placeholder.Title,
		Link:     p.placeholder.Link,
		Date:     p.now().In(p.loc).Format("2006-01-02"),
		Source:   p.placeholder.Source,
		SourceID: PlaceholderSourceID,
	}
}

// Dedup 按标题字面值去重，保持原有顺序
func Dedup(items []collector.Article) []collector.Article {
	out := make([]collector.Article, 0, len(items))
	seen := make(map[string]struct{}, len(items))

	for _, it := range items {
		id := HashTitle(it.Title)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, it)
	}
	return out
}

// CountBySource 统计每个来源代号的记录数
func CountBySource(items []collector.Article) map[string]int {
	counts := make(map[string]int)
	for _, it := range items {
		id := it.SourceID
		if id == "" {
			id = it.Tag()
		}
		counts[id]++
	}
	return counts
}

// HashTitle 标题的稳定摘要，用作去重键与快照表主键
func HashTitle(title string) string {
	h := sha1.New()
	h.Write([]byte(title))
	return hex.EncodeToString(h.Sum(nil))
}

func concat(groups [][]collector.Article) []collector.Article {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	out := make([]collector.Article, 0, n)
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
