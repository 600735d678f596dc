package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/LJTian/InsuranceNews/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	cronSpec   string
	runAtStart bool
)

// scheduleCmd 常驻进程，按 cron 表达式重复采集
var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the collector on a cron schedule until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cronSpec != "" {
			cfg.CronSpec = cronSpec
		}

		pipeline, store, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		defer closeStore(store)

		s, err := scheduler.New(cfg.CronSpec, pipeline)
		if err != nil {
			return err
		}

		s.Start()
		log.Printf("scheduler started, cron=%q", cfg.CronSpec)

		if runAtStart {
			go func() {
				if _, err := s.RunOnce(); err != nil {
					log.Printf("collect job error: %v", err)
				}
			}()
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		log.Println("shutting down scheduler...")
		s.Stop()
		return nil
	},
}

func init() {
	scheduleCmd.Flags().StringVar(&cronSpec, "cron", "", "cron spec (overrides config cron_spec)")
	scheduleCmd.Flags().BoolVar(&runAtStart, "run-now", false, "run one collection immediately after start")
	rootCmd.AddCommand(scheduleCmd)
}
