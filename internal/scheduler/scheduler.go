package scheduler

import (
	"context"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/config"
	"github.com/LJTian/InsuranceNews/internal/export"
	"github.com/LJTian/InsuranceNews/internal/output"
	"github.com/LJTian/InsuranceNews/internal/processor"
	"github.com/LJTian/InsuranceNews/internal/storage"
	"github.com/robfig/cron/v3"
)

// Pipeline 一轮完整的采集：依次运行采集器 -> 合并去重 -> 写文件 -> 导出 -> 快照
type Pipeline struct {
	cfg        *config.Config
	collectors []collector.Collector
	processor  *processor.SimpleProcessor
	store      *storage.Store
	now        func() time.Time
}

func NewPipeline(cfg *config.Config, collectors []collector.Collector, p *processor.SimpleProcessor, store *storage.Store, now func() time.Time) *Pipeline {
	if now == nil {
		now = time.Now
	}
	return &Pipeline{
		cfg:        cfg,
		collectors: collectors,
		processor:  p,
		store:      store,
		now:        now,
	}
}

// RunOnce 执行一轮采集。只有输出目录或 JSON 文件写不了时才返回错误，
// 单个数据源、导出与快照的失败只记录日志。
func (p *Pipeline) RunOnce(ctx context.Context) (output.WriteResult, error) {
	log.Println("start collect job...")

	if err := output.EnsureDir(p.cfg.OutputDir); err != nil {
		return output.WriteResult{}, err
	}

	// 按顺序逐个采集，互不依赖
	groups := make([][]collector.Article, 0, len(p.collectors))
	for _, c := range p.collectors {
		if err := ctx.Err(); err != nil {
			log.Printf("collect job canceled before %s: %v", c.Name(), err)
			break
		}
		groups = append(groups, c.Collect(ctx))
	}

	batch := p.processor.Aggregate(groups...)
	if batch.Placeholder {
		log.Println("warn: no news collected, writing placeholder record")
	}

	res, err := output.Write(output.Options{
		Dir:         p.cfg.OutputDir,
		NewsFile:    p.cfg.NewsFile,
		PaperFile:   p.cfg.PaperFile,
		WritePapers: p.cfg.Papers.Enabled,
	}, batch)
	if err != nil {
		return res, err
	}

	p.export(batch, res)

	if p.store.Enabled() {
		if err := p.store.SaveSnapshot(ctx, batch, p.now()); err != nil {
			log.Printf("save snapshot error: %v", err)
		} else {
			log.Printf("snapshot saved, %d items", batch.Total())
		}
	}

	log.Printf("collect job done: news=%d papers=%d placeholder=%v", res.Total, res.Papers, res.Placeholder)
	return res, nil
}

func (p *Pipeline) export(batch processor.Batch, res output.WriteResult) {
	exp := p.cfg.Export
	if !exp.CSV && !exp.Chart && !exp.Digest {
		return
	}

	date := p.now().In(p.cfg.Location()).Format("2006-01-02")
	all := batch.All()

	if exp.CSV {
		if path, err := export.WriteCSV(p.cfg.OutputDir, date, all); err != nil {
			log.Printf("export csv error: %v", err)
		} else {
			log.Printf("export csv done: %s", path)
		}
	}
	if exp.Chart {
		path := filepath.Join(p.cfg.OutputDir, export.ChartFile)
		if err := export.NewChartRenderer().RenderPNG(res.PerSource, path); err != nil {
			log.Printf("export chart error: %v", err)
		}
	}
	if exp.Digest {
		path := filepath.Join(p.cfg.OutputDir, export.DigestFile)
		if err := export.WriteDigest(path, date, all); err != nil {
			log.Printf("export digest error: %v", err)
		}
	}
}

// Scheduler 按 cron 表达式重复执行 Pipeline；上一轮未结束时跳过本轮
type Scheduler struct {
	cron     *cron.Cron
	pipeline *Pipeline
	mu       sync.Mutex // 手动触发与定时任务不并发执行
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(spec string, pipeline *Pipeline) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:     c,
		pipeline: pipeline,
		ctx:      ctx,
		cancel:   cancel,
	}

	_, err := c.AddFunc(spec, s.runOnce)
	if err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop 停止调度并等待正在执行的一轮结束
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.cancel()
}

// RunOnce 对外暴露的单次执行入口，方便手动触发采集
func (s *Scheduler) RunOnce() (output.WriteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pipeline.RunOnce(s.ctx)
}

func (s *Scheduler) runOnce() {
	if _, err := s.RunOnce(); err != nil {
		log.Printf("collect job error: %v", err)
	}
}
