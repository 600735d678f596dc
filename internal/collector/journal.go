package collector

import (
	"context"
	"log"

	"github.com/LJTian/InsuranceNews/internal/config"
)

// JournalCollector 按期刊名逐个查询 RSS，抓取最新的论文与引用报道
type JournalCollector struct {
	cfg  config.PapersConfig
	opts Options
}

func NewJournalCollector(cfg config.PapersConfig, opts Options) *JournalCollector {
	return &JournalCollector{cfg: cfg, opts: opts}
}

func (j *JournalCollector) Name() string {
	if j.cfg.ID == "" {
		return "papers"
	}
	return j.cfg.ID
}

func (j *JournalCollector) Collect(ctx context.Context) []Article {
	log.Printf("fetch %s (%d journals)...", j.Name(), len(j.cfg.Journals))

	var results []Article
	for _, journal := range j.cfg.Journals {
		items, err := j.collectJournal(ctx, journal)
		if err != nil {
			log.Printf("fetch journal %q failed: %v", journal, err)
			continue
		}
		results = append(results, items...)
	}

	if len(results) == 0 {
		log.Printf("fetch %s got 0 items", j.Name())
	}
	return results
}

func (j *JournalCollector) collectJournal(ctx context.Context, journal string) ([]Article, error) {
	// 期刊名整体加引号做短语搜索
	queryURL := config.BuildQueryURL(j.cfg.URL, `"`+journal+`"`)
	doc, err := j.opts.Fetcher.Fetch(ctx, queryURL)
	if err != nil {
		return nil, err
	}

	cands, _, err := RunStrategies(doc, FeedStrategies(doc))
	if err != nil {
		return nil, err
	}

	items := harvest(cands, harvestOptions{
		base: doc.URL,
		filter: Filter{
			MinTitleLength: j.cfg.MinTitleLength,
			Block:          j.cfg.Block,
		},
		stripSuffix: true,
		limit:       j.cfg.PerJournal,
		build: func(title, link string, cand Candidate) Article {
			return Article{
				Title:    title,
				Link:     link,
				Date:     j.opts.dateOf(cand.Published),
				Journal:  journal,
				SourceID: j.Name(),
			}
		},
	})
	if len(items) == 0 {
		return nil, &EmptyResultError{Target: journal, Candidates: len(cands)}
	}
	return items, nil
}
