package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
)

const (
	fetchDefaultTimeout  = 15 * time.Second
	fetchMaxBodyBytes    = 4 << 20 // 4MB，搜索结果页与 RSS 都远小于此
	fetchAcceptLanguage  = "zh-TW,zh;q=0.9,ja;q=0.8,en;q=0.7"
	fetchAcceptMediaType = "text/html,application/xhtml+xml,application/rss+xml,application/xml;q=0.9,*/*;q=0.8"
)

// Document 一次抓取得到的原始响应
type Document struct {
	URL         *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
}

// IsXML 根据 Content-Type 判断是否为 RSS / Atom / XML
func (d *Document) IsXML() bool {
	ct := strings.ToLower(d.ContentType)
	return strings.Contains(ct, "xml") || strings.Contains(ct, "rss") || strings.Contains(ct, "atom")
}

// IsHTML 根据 Content-Type 判断是否为 HTML
func (d *Document) IsHTML() bool {
	return strings.Contains(strings.ToLower(d.ContentType), "html")
}

// Fetcher 使用固定的浏览器 User-Agent 与超时发起 GET 请求。
// 每次 Fetch 新建一个 colly collector，不同数据源之间不共享状态。
type Fetcher struct {
	userAgent string
	timeout   time.Duration
}

func NewFetcher(userAgent string, timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = fetchDefaultTimeout
	}
	return &Fetcher{userAgent: userAgent, timeout: timeout}
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: rawURL, Err: err}
	}

	c := colly.NewCollector(
		colly.UserAgent(f.userAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(fetchMaxBodyBytes),
		// colly 默认把 203 及以上都当作错误，这里自己按 2xx 判断
		colly.ParseHTTPErrorResponse(),
	)
	c.SetRequestTimeout(f.timeout)

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", fetchAcceptMediaType)
		r.Headers.Set("Accept-Language", fetchAcceptLanguage)
	})

	var (
		doc    *Document
		status int
	)
	c.OnResponse(func(r *colly.Response) {
		if r.StatusCode < 200 || r.StatusCode > 299 {
			status = r.StatusCode
			return
		}
		doc = &Document{
			URL:         r.Request.URL,
			StatusCode:  r.StatusCode,
			ContentType: r.Headers.Get("Content-Type"),
			Body:        r.Body,
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			status = r.StatusCode
		}
	})

	if err := c.Visit(rawURL); err != nil {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: err}
	}
	if status != 0 {
		return nil, &FetchError{URL: rawURL, StatusCode: status, Err: errors.New(http.StatusText(status))}
	}
	if doc == nil {
		return nil, &FetchError{URL: rawURL, Err: errors.New("no response")}
	}
	return doc, nil
}
