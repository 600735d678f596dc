package collector

import (
	"context"
	"log"
	"net/url"

	"github.com/LJTian/InsuranceNews/internal/config"
)

// SourceCollector 抓取一个地区新闻源：RSS（FeedCollector）或 HTML 搜索页（PageCollector）。
// 两者只在解析策略上不同。
type SourceCollector struct {
	src        config.SourceConfig
	opts       Options
	strategies func(doc *Document) []ParseStrategy
}

// NewFeedCollector 创建 RSS 源采集器，例如 Google News 台湾保险新闻
func NewFeedCollector(src config.SourceConfig, opts Options) *SourceCollector {
	return &SourceCollector{src: src, opts: opts, strategies: FeedStrategies}
}

// NewPageCollector 创建 HTML 搜索页采集器，例如日经新闻搜索
func NewPageCollector(src config.SourceConfig, opts Options) *SourceCollector {
	rules := PageStrategies(src.Selectors)
	return &SourceCollector{
		src:        src,
		opts:       opts,
		strategies: func(*Document) []ParseStrategy { return rules },
	}
}

func (c *SourceCollector) Name() string {
	return c.src.ID
}

func (c *SourceCollector) filter() Filter {
	return Filter{
		MinTitleLength: c.src.MinTitleLength,
		Require:        c.src.Require,
		Block:          c.src.Block,
	}
}

func (c *SourceCollector) Collect(ctx context.Context) []Article {
	log.Printf("fetch %s (%s)...", c.src.ID, c.src.Name)

	items, err := c.collect(ctx)
	if err != nil {
		log.Printf("fetch %s failed: %v", c.src.ID, err)
		return nil
	}
	log.Printf("%s done, kept=%d items", c.src.ID, len(items))
	return items
}

func (c *SourceCollector) collect(ctx context.Context) ([]Article, error) {
	queryURL := c.src.QueryURL()
	doc, err := c.opts.Fetcher.Fetch(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	cands, used, err := RunStrategies(doc, c.strategies(doc))
	if err != nil {
		return nil, err
	}
	log.Printf("%s: %d candidates via %s", c.src.ID, len(cands), used)

	items := harvest(cands, harvestOptions{
		base:        baseURL(c.src.Origin, doc.URL),
		filter:      c.filter(),
		stripSuffix: c.src.StripSuffix,
		limit:       c.src.MaxItems,
		build: func(title, link string, cand Candidate) Article {
			return Article{
				Title:    title,
				Link:     link,
				Date:     c.opts.dateOf(cand.Published),
				Source:   c.src.Name,
				SourceID: c.src.ID,
			}
		},
	})
	if len(items) == 0 {
		return nil, &EmptyResultError{Target: c.src.ID, Candidates: len(cands)}
	}
	return items, nil
}

type harvestOptions struct {
	base        *url.URL
	filter      Filter
	stripSuffix bool
	limit       int
	build       func(title, link string, cand Candidate) Article
}

// harvest 清洗标题、补全链接、过滤并在达到上限时停止
func harvest(cands []Candidate, opts harvestOptions) []Article {
	out := make([]Article, 0, len(cands))
	for _, cand := range cands {
		if opts.limit > 0 && len(out) >= opts.limit {
			break
		}
		title := CleanTitle(cand.Title, opts.stripSuffix)
		if !opts.filter.Allow(title) {
			continue
		}
		link, ok := ResolveLink(opts.base, cand.Link)
		if !ok {
			continue
		}
		out = append(out, opts.build(title, link, cand))
	}
	return out
}
