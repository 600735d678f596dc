package collector

import (
	"bytes"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/LJTian/InsuranceNews/internal/config"
	"github.com/PuerkitoBio/goquery"
	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html"
)

// Candidate 解析阶段得到的原始条目，尚未清洗与过滤
type Candidate struct {
	Title     string
	Link      string
	Published *time.Time
}

// ParseStrategy 一种从原始响应中定位候选条目的方式。
// 同一响应会按顺序尝试多种策略，第一种返回非空结果的策略生效。
type ParseStrategy interface {
	Name() string
	Parse(doc *Document) ([]Candidate, error)
}

// FeedStrategies 根据 Content-Type 决定 RSS 的解析顺序：声明为 HTML 时先走宽松的 HTML 解析
func FeedStrategies(doc *Document) []ParseStrategy {
	if doc.IsHTML() && !doc.IsXML() {
		return []ParseStrategy{HTMLItemStrategy{}, GofeedStrategy{}}
	}
	return []ParseStrategy{GofeedStrategy{}, HTMLItemStrategy{}}
}

// PageStrategies 按配置顺序把选择器规则转换为解析策略
func PageStrategies(rules []config.SelectorRule) []ParseStrategy {
	out := make([]ParseStrategy, 0, len(rules))
	for _, r := range rules {
		if strings.TrimSpace(r.Container) == "" {
			continue
		}
		out = append(out, SelectorStrategy{Rule: r})
	}
	return out
}

// RunStrategies 依次尝试每种策略，返回第一组非空候选及生效的策略名。
// 全部策略报错时返回 ParseError；能解析但没有条目时返回 EmptyResultError。
func RunStrategies(doc *Document, strategies []ParseStrategy) ([]Candidate, string, error) {
	target := ""
	if doc.URL != nil {
		target = doc.URL.String()
	}

	var (
		failed  []string
		lastErr error
	)
	for _, s := range strategies {
		cands, err := s.Parse(doc)
		if err != nil {
			log.Printf("parse %s with %s: %v", target, s.Name(), err)
			failed = append(failed, s.Name())
			lastErr = err
			continue
		}
		if len(cands) > 0 {
			return cands, s.Name(), nil
		}
	}

	if len(strategies) > 0 && len(failed) == len(strategies) {
		return nil, "", &ParseError{URL: target, Strategies: failed, Err: lastErr}
	}
	return nil, "", &EmptyResultError{Target: target}
}

// GofeedStrategy 严格的 RSS / Atom 解析
type GofeedStrategy struct{}

func (GofeedStrategy) Name() string { return "gofeed" }

func (GofeedStrategy) Parse(doc *Document) ([]Candidate, error) {
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("gofeed: %w", err)
	}
	out := make([]Candidate, 0, len(feed.Items))
	for _, item := range feed.Items {
		link := item.Link
		if link == "" && len(item.Links) > 0 {
			link = item.Links[0]
		}
		published := item.PublishedParsed
		if published == nil {
			published = item.UpdatedParsed
		}
		out = append(out, Candidate{Title: item.Title, Link: link, Published: published})
	}
	return out, nil
}

// HTMLItemStrategy 用 HTML 解析器宽松地读取 <item> 节点，应对不合法的 XML
type HTMLItemStrategy struct{}

func (HTMLItemStrategy) Name() string { return "html-items" }

var feedDateLayouts = []string{time.RFC1123Z, time.RFC1123, time.RFC3339}

func (HTMLItemStrategy) Parse(doc *Document) ([]Candidate, error) {
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("html-items: %w", err)
	}

	var out []Candidate
	dom.Find("item").Each(func(_ int, s *goquery.Selection) {
		c := Candidate{
			Title: cdataText(s.Find("title").First()),
			Link:  itemLink(s),
		}
		if raw := cdataText(s.Find("pubdate").First()); raw != "" {
			for _, layout := range feedDateLayouts {
				if t, err := time.Parse(layout, raw); err == nil {
					c.Published = &t
					break
				}
			}
		}
		out = append(out, c)
	})
	return out, nil
}

// itemLink 读取 <item> 的链接。HTML 解析器把 <link> 当作空元素，
// URL 文本会落在它后面的兄弟文本节点上。
func itemLink(s *goquery.Selection) string {
	link := s.Find("link").First()
	if t := cdataText(link); t != "" {
		return t
	}
	if n := link.Get(0); n != nil {
		for sib := n.NextSibling; sib != nil; sib = sib.NextSibling {
			if sib.Type == html.ElementNode {
				break
			}
			if t := nodeText(sib); t != "" {
				return t
			}
		}
	}
	if href, ok := link.Attr("href"); ok {
		return strings.TrimSpace(href)
	}
	return cdataText(s.Find("guid").First())
}

// cdataText 读取节点文本并去掉 CDATA 包装。
// <title> 是 RCDATA，包装会原样留在文本里；其它元素中的 CDATA 会被解析成注释节点。
func cdataText(sel *goquery.Selection) string {
	if t := trimCDATA(sel.Text()); t != "" {
		return t
	}
	for _, n := range sel.Nodes {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := nodeText(c); t != "" {
				return t
			}
		}
	}
	return ""
}

// nodeText 返回文本节点或 CDATA 注释节点的内容
func nodeText(n *html.Node) string {
	switch n.Type {
	case html.TextNode:
		return trimCDATA(n.Data)
	case html.CommentNode:
		if strings.HasPrefix(n.Data, "[CDATA[") {
			return trimCDATA("<!" + n.Data + ">")
		}
	}
	return ""
}

func trimCDATA(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "<![CDATA[") {
		s = strings.TrimPrefix(s, "<![CDATA[")
		s = strings.TrimSuffix(s, "]]>")
	}
	return strings.TrimSpace(s)
}

// SelectorStrategy 以 CSS 选择器在 HTML 页面中定位条目
type SelectorStrategy struct {
	Rule config.SelectorRule
}

func (s SelectorStrategy) Name() string { return "selector(" + s.Rule.Container + ")" }

var errNotHTML = errors.New("response is not html")

func (s SelectorStrategy) Parse(doc *Document) ([]Candidate, error) {
	if doc.IsXML() && !doc.IsHTML() {
		return nil, errNotHTML
	}
	dom, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name(), err)
	}

	var out []Candidate
	dom.Find(s.Rule.Container).Each(func(_ int, item *goquery.Selection) {
		linkSel := item
		if s.Rule.Link != "" {
			linkSel = item.Find(s.Rule.Link).First()
		}
		href, ok := linkSel.Attr("href")
		if !ok {
			return
		}

		// 标题优先取 Title 子节点，找不到时退回链接文本
		titleSel := linkSel
		if s.Rule.Title != "" {
			if t := item.Find(s.Rule.Title).First(); t.Length() > 0 {
				titleSel = t
			}
		} else if s.Rule.Link != "" {
			titleSel = item
		}

		out = append(out, Candidate{Title: strings.TrimSpace(titleSel.Text()), Link: href})
	})
	return out, nil
}
