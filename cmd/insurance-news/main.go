package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/config"
	"github.com/LJTian/InsuranceNews/internal/processor"
	"github.com/LJTian/InsuranceNews/internal/scheduler"
	"github.com/LJTian/InsuranceNews/internal/storage"
	"github.com/spf13/cobra"
)

var (
	configFile string
	outputDir  string
)

// rootCmd 执行一轮采集后退出：适合交给外部 cron / CI 定时触发
var rootCmd = &cobra.Command{
	Use:           "insurance-news",
	Short:         "Collect insurance news and journal papers into JSON files",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		pipeline, store, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		res, err := pipeline.RunOnce(ctx)
		if err != nil {
			return err
		}
		log.Printf("news=%d papers=%d -> %s", res.Total, res.Papers, res.NewsPath)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: ./insurance-news.yaml)")
	rootCmd.PersistentFlags().StringVar(&outputDir, "output-dir", "", "output directory (overrides config)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Printf("collect failed: %v", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	if outputDir != "" {
		cfg.OutputDir = outputDir
	}
	return cfg, nil
}

// buildPipeline 按配置组装采集器、处理器与可选的快照存储
func buildPipeline(cfg *config.Config) (*scheduler.Pipeline, *storage.Store, error) {
	loc := cfg.Location()

	// 快照失败不影响本轮采集与写文件
	store, err := storage.NewStore(cfg.PostgresDSN, cfg.RedisAddr, cfg.RedisKey, loc)
	if err != nil {
		log.Printf("warn: snapshot store disabled: %v", err)
		store = nil
	}

	collectors := collector.FromConfig(cfg, collector.Options{
		Fetcher:  collector.NewFetcher(cfg.UserAgent, cfg.Timeout),
		Now:      config.Now,
		Location: loc,
	})

	p := processor.NewSimpleProcessor(cfg.Placeholder, config.Now, loc)
	return scheduler.NewPipeline(cfg, collectors, p, store, config.Now), store, nil
}

func closeStore(store *storage.Store) {
	if store == nil {
		return
	}
	if err := store.Close(); err != nil {
		log.Printf("close store error: %v", err)
	}
}
