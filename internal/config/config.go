package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 采集器类型
const (
	KindFeed = "feed"
	KindPage = "page"
)

// 配置校验错误
var (
	ErrMissingOutputDir  = errors.New("output_dir is required")
	ErrInvalidTimeout    = errors.New("timeout must be positive")
	ErrNoCollectors      = errors.New("at least one enabled source or papers is required")
	ErrSourceMissingID   = errors.New("source id is required")
	ErrSourceMissingURL  = errors.New("source url is required")
	ErrSourceUnknownKind = errors.New("source kind must be 'feed' or 'page'")
	ErrPapersNoJournals  = errors.New("papers.journals must not be empty when papers are enabled")
)

type Config struct {
	OutputDir string        `mapstructure:"output_dir"`
	NewsFile  string        `mapstructure:"news_file"`
	PaperFile string        `mapstructure:"paper_file"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
	Timezone  string        `mapstructure:"timezone"`
	CronSpec  string        `mapstructure:"cron_spec"`

	// 以下两项为空时不启用对应的快照输出
	PostgresDSN string `mapstructure:"postgres_dsn"`
	RedisAddr   string `mapstructure:"redis_addr"`
	RedisKey    string `mapstructure:"redis_key"`

	Placeholder PlaceholderConfig `mapstructure:"placeholder"`
	Export      ExportConfig      `mapstructure:"export"`
	Sources     []SourceConfig    `mapstructure:"sources"`
	Papers      PapersConfig      `mapstructure:"papers"`
}

// PlaceholderConfig 当一轮采集没有任何结果时写入的占位记录
type PlaceholderConfig struct {
	Title  string `mapstructure:"title"`
	Link   string `mapstructure:"link"`
	Source string `mapstructure:"source"`
}

type ExportConfig struct {
	CSV    bool `mapstructure:"csv"`
	Chart  bool `mapstructure:"chart"`
	Digest bool `mapstructure:"digest"`
}

// SelectorRule 描述 HTML 页面里一类候选节点：Container 定位条目，
// Title / Link 是条目内的子选择器，为空时取条目自身。
type SelectorRule struct {
	Container string `mapstructure:"container"`
	Title     string `mapstructure:"title"`
	Link      string `mapstructure:"link"`
}

// SourceConfig 描述一个地区新闻源
type SourceConfig struct {
	ID      string `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Kind    string `mapstructure:"kind"`
	URL     string `mapstructure:"url"` // 可含 {keyword}，替换为 URL 编码后的 Keyword
	Keyword string `mapstructure:"keyword"`
	Origin  string `mapstructure:"origin"` // 相对链接的补全基准，为空时用 URL 本身

	MinTitleLength int      `mapstructure:"min_title_length"`
	MaxItems       int      `mapstructure:"max_items"`
	Require        []string `mapstructure:"require"`
	Block          []string `mapstructure:"block"`
	StripSuffix    bool     `mapstructure:"strip_suffix"`

	Selectors []SelectorRule `mapstructure:"selectors"`
	Enabled   bool           `mapstructure:"enabled"`
}

// QueryURL 返回带关键字的查询地址
func (s SourceConfig) QueryURL() string {
	return BuildQueryURL(s.URL, s.Keyword)
}

// PapersConfig 期刊论文采集：每个期刊名发起一次 RSS 查询
type PapersConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	ID             string   `mapstructure:"id"`
	URL            string   `mapstructure:"url"`
	Journals       []string `mapstructure:"journals"`
	PerJournal     int      `mapstructure:"per_journal"`
	MinTitleLength int      `mapstructure:"min_title_length"`
	Block          []string `mapstructure:"block"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Default 返回内置的默认配置：台湾（Google News RSS）、日本（日经搜索页）与期刊论文
func Default() *Config {
	return &Config{
		OutputDir: "data",
		NewsFile:  "news_data.json",
		PaperFile: "paper_data.json",
		UserAgent: defaultUserAgent,
		Timeout:   15 * time.Second,
		Timezone:  "Asia/Taipei",
		CronSpec:  "0 8 * * *",
		RedisKey:  "insurance_news:latest",
		Placeholder: PlaceholderConfig{
			Title:  "系統測試：目前線上暫無最新新聞，請稍後再試",
			Link:   "#",
			Source: "台灣新聞",
		},
		Sources: []SourceConfig{
			{
				ID:             "taiwan",
				Name:           "台灣新聞",
				Kind:           KindFeed,
				URL:            "https://news.google.com/rss/search?q={keyword}&hl=zh-TW&gl=TW&ceid=TW%3Azh-Hant",
				Keyword:        "保險",
				MinTitleLength: 8,
				MaxItems:       15,
				Require:        []string{"保險", "保險業", "壽險", "產險"},
				Block:          []string{"保險套", "保險箱", "保險絲", "保險桿"},
				StripSuffix:    true,
				Enabled:        true,
			},
			{
				ID:             "japan",
				Name:           "日本新聞",
				Kind:           KindPage,
				URL:            "https://www.nikkei.com/search?keyword={keyword}",
				Keyword:        "保険",
				Origin:         "https://www.nikkei.com",
				MinTitleLength: 10,
				MaxItems:       20,
				Require:        []string{"保険"},
				Block:          []string{"保険証", "広告"},
				Selectors: []SelectorRule{
					{Container: "article", Title: "h3", Link: "a"},
					{Container: "h2, h3", Link: "a"},
					{Container: "a[href]"},
				},
				Enabled: true,
			},
		},
		Papers: PapersConfig{
			Enabled: true,
			ID:      "papers",
			URL:     "https://news.google.com/rss/search?q={keyword}&hl=en-US&gl=US&ceid=US%3Aen",
			Journals: []string{
				"Journal of Risk and Insurance",
				"Insurance: Mathematics and Economics",
				"The Geneva Papers on Risk and Insurance",
				"ASTIN Bulletin",
				"North American Actuarial Journal",
			},
			PerJournal:     3,
			MinTitleLength: 10,
			Block:          []string{"casino", "sponsored"},
		},
	}
}

// Load 依次读取 .env、配置文件与 INSURANCE_NEWS_* 环境变量，覆盖 Default 中的值。
// path 为空时在当前目录查找 insurance-news.yaml，找不到则只用默认值与环境变量。
func Load(path string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	cfg := Default()

	v := viper.New()
	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("insurance-news")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("INSURANCE_NEWS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		log.Printf("using config file: %s", v.ConfigFileUsed())
	}

	// 列表整体替换，避免 mapstructure 把文件里的条目合并进默认列表
	for key, reset := range map[string]func(){
		"sources":         func() { cfg.Sources = nil },
		"papers.journals": func() { cfg.Papers.Journals = nil },
		"papers.block":    func() { cfg.Papers.Block = nil },
	} {
		if v.IsSet(key) {
			reset()
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Printf("config loaded: output=%s sources=%d papers=%v cron=%s",
		cfg.OutputDir, len(cfg.EnabledSources()), cfg.Papers.Enabled, cfg.CronSpec)
	return cfg, nil
}

// setDefaults 注册标量键，使 AutomaticEnv 在 Unmarshal 时能生效
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("output_dir", cfg.OutputDir)
	v.SetDefault("news_file", cfg.NewsFile)
	v.SetDefault("paper_file", cfg.PaperFile)
	v.SetDefault("user_agent", cfg.UserAgent)
	v.SetDefault("timeout", cfg.Timeout)
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("cron_spec", cfg.CronSpec)
	v.SetDefault("postgres_dsn", cfg.PostgresDSN)
	v.SetDefault("redis_addr", cfg.RedisAddr)
	v.SetDefault("redis_key", cfg.RedisKey)
	v.SetDefault("placeholder.title", cfg.Placeholder.Title)
	v.SetDefault("placeholder.link", cfg.Placeholder.Link)
	v.SetDefault("placeholder.source", cfg.Placeholder.Source)
	v.SetDefault("export.csv", cfg.Export.CSV)
	v.SetDefault("export.chart", cfg.Export.Chart)
	v.SetDefault("export.digest", cfg.Export.Digest)
	v.SetDefault("papers.enabled", cfg.Papers.Enabled)
}

// Validate 检查配置是否可用
func (c *Config) Validate() error {
	if strings.TrimSpace(c.OutputDir) == "" {
		return ErrMissingOutputDir
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	for _, s := range c.Sources {
		if !s.Enabled {
			continue
		}
		if s.ID == "" {
			return ErrSourceMissingID
		}
		if s.URL == "" {
			return fmt.Errorf("source %s: %w", s.ID, ErrSourceMissingURL)
		}
		if s.Kind != KindFeed && s.Kind != KindPage {
			return fmt.Errorf("source %s: %w", s.ID, ErrSourceUnknownKind)
		}
	}
	if c.Papers.Enabled && len(c.Papers.Journals) == 0 {
		return ErrPapersNoJournals
	}
	if len(c.EnabledSources()) == 0 && !c.Papers.Enabled {
		return ErrNoCollectors
	}
	return nil
}

// EnabledSources 按配置顺序返回启用的新闻源
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Location 返回输出日期所用的时区；加载失败时回退到固定 UTC+8
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil || loc == nil {
		return time.FixedZone("CST", 8*60*60)
	}
	return loc
}

// BuildQueryURL 把关键字做 URL 编码后填入模板中的 {keyword}
func BuildQueryURL(template, keyword string) string {
	return strings.ReplaceAll(template, "{keyword}", url.QueryEscape(keyword))
}

// Now returns current time, 方便后续做可测试封装
func Now() time.Time {
	return time.Now()
}
