package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/processor"
	"github.com/redis/go-redis/v9"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// 记录类型
const (
	KindNews  = "news"
	KindPaper = "paper"
)

// ArticleRow 是快照表 articles 的一行，只保存最近一轮的结果
type ArticleRow struct {
	ID       string         `gorm:"primaryKey;size:40" json:"id"`
	Kind     string         `gorm:"size:16;index" json:"kind"`
	Position int            `json:"position"`
	Title    string         `gorm:"size:512" json:"title"`
	Link     string         `gorm:"size:1024" json:"link"`
	Date     datatypes.Date `gorm:"index" json:"date"`
	Source   string         `gorm:"size:64;index" json:"source"`
	Journal  string         `gorm:"size:128;index" json:"journal"`
	SourceID string         `gorm:"size:32;index" json:"sourceId"`

	CreatedAt time.Time `json:"createdAt"`
}

func (ArticleRow) TableName() string {
	return "articles"
}

// Snapshot 是写入 Redis 的最新结果
type Snapshot struct {
	CapturedAt  time.Time           `json:"capturedAt"`
	Placeholder bool                `json:"placeholder"`
	News        []collector.Article `json:"news"`
	Papers      []collector.Article `json:"papers"`
}

// Store 可选的快照输出：Postgres 表与 Redis 键，DSN / 地址为空时对应一侧不启用
type Store struct {
	DB       *gorm.DB
	Redis    *redis.Client
	redisKey string
	loc      *time.Location
}

func NewStore(dsn, redisAddr, redisKey string, loc *time.Location) (*Store, error) {
	if loc == nil {
		loc = time.Local
	}
	s := &Store{redisKey: redisKey, loc: loc}

	// 快照是可选输出：Postgres 连不上或建表失败时只记录日志，不影响写文件
	if dsn != "" {
		if db, err := openPostgres(dsn); err != nil {
			log.Printf("warn: postgres snapshot disabled: %v", err)
		} else {
			s.DB = db
		}
	}

	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr: redisAddr,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Printf("warn: redis ping failed: %v", err)
		}
		s.Redis = rdb
	}

	return s, nil
}

func openPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ArticleRow{}); err != nil {
		if sqlDB, dbErr := db.DB(); dbErr == nil {
			sqlDB.Close()
		}
		return nil, err
	}
	return db, nil
}

// Enabled 是否至少启用了一种快照输出
func (s *Store) Enabled() bool {
	return s != nil && (s.DB != nil || s.Redis != nil)
}

// SaveSnapshot 用本轮结果替换快照；两侧分别执行，错误合并返回
func (s *Store) SaveSnapshot(ctx context.Context, batch processor.Batch, capturedAt time.Time) error {
	if !s.Enabled() {
		return nil
	}

	var errs []error
	if s.DB != nil {
		if err := s.replaceRows(ctx, ToRows(batch, s.loc)); err != nil {
			errs = append(errs, fmt.Errorf("postgres snapshot: %w", err))
		}
	}
	if s.Redis != nil {
		if err := s.saveRedis(ctx, batch, capturedAt); err != nil {
			errs = append(errs, fmt.Errorf("redis snapshot: %w", err))
		}
	}
	return errors.Join(errs...)
}

// replaceRows 在一个事务内清空并重新写入 articles
func (s *Store) replaceRows(ctx context.Context, rows []ArticleRow) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&ArticleRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(&rows, 100).Error
	})
}

// saveRedis 写入最新 JSON（不过期）与每个来源的条数
func (s *Store) saveRedis(ctx context.Context, batch processor.Batch, capturedAt time.Time) error {
	payload, err := json.Marshal(Snapshot{
		CapturedAt:  capturedAt,
		Placeholder: batch.Placeholder,
		News:        batch.News,
		Papers:      batch.Papers,
	})
	if err != nil {
		return err
	}

	countsKey := CountsKey(s.redisKey)
	counts := CountFields(batch)
	_, err = s.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.redisKey, payload, 0)
		pipe.Del(ctx, countsKey)
		if len(counts) > 0 {
			pipe.HSet(ctx, countsKey, counts)
		}
		return nil
	})
	return err
}

func (s *Store) Close() error {
	var errs []error
	if s.DB != nil {
		if sqlDB, err := s.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	if s.Redis != nil {
		errs = append(errs, s.Redis.Close())
	}
	return errors.Join(errs...)
}

// CountsKey 每个来源条数所在的 hash 键
func CountsKey(key string) string {
	return key + ":counts"
}

// CountFields 把来源统计转成 HSET 参数
func CountFields(batch processor.Batch) map[string]any {
	counts := processor.CountBySource(batch.All())
	out := make(map[string]any, len(counts))
	for k, v := range counts {
		out[k] = v
	}
	return out
}

// ToRows 把一轮结果转换为表记录；Position 保留输出文件中的顺序
func ToRows(batch processor.Batch, loc *time.Location) []ArticleRow {
	rows := make([]ArticleRow, 0, batch.Total())
	add := func(kind string, items []collector.Article) {
		for i, it := range items {
			title := truncateRunesDB(toValidUTF8(it.Title), 512)
			rows = append(rows, ArticleRow{
				ID:       processor.HashTitle(kind + ":" + it.Title),
				Kind:     kind,
				Position: i,
				Title:    title,
				Link:     truncateRunesDB(it.Link, 1024),
				Date:     parseDate(it.Date, loc),
				Source:   toValidUTF8(it.Source),
				Journal:  toValidUTF8(it.Journal),
				SourceID: it.SourceID,
			})
		}
	}
	add(KindNews, batch.News)
	add(KindPaper, batch.Papers)
	return rows
}

func parseDate(s string, loc *time.Location) datatypes.Date {
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return datatypes.Date{}
	}
	return datatypes.Date(t)
}

// toValidUTF8 将字符串规范为合法 UTF-8，避免 PostgreSQL invalid byte sequence 错误
func toValidUTF8(s string) string {
	return strings.ToValidUTF8(s, "\uFFFD")
}

// truncateRunesDB 按 rune 数截断字符串，确保不会超过数据库字段长度
func truncateRunesDB(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit])
}
