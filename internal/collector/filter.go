package collector

import (
	"net/url"
	"strings"
	"unicode/utf8"
)

// Filter 标题过滤规则：长度下限（按字符数，严格大于）、必含关键字（任一）与屏蔽词（全部不含）。
// 屏蔽词优先于必含关键字，例如 "保険証" 命中时即使包含 "保険" 也会被排除。
type Filter struct {
	MinTitleLength int
	Require        []string
	Block          []string
}

// Allow 判断一个已清洗的标题是否保留
func (f Filter) Allow(title string) bool {
	if utf8.RuneCountInString(title) <= f.MinTitleLength {
		return false
	}
	lower := strings.ToLower(title)
	for _, b := range f.Block {
		if b != "" && strings.Contains(lower, strings.ToLower(b)) {
			return false
		}
	}
	if len(f.Require) == 0 {
		return true
	}
	for _, r := range f.Require {
		if r != "" && strings.Contains(lower, strings.ToLower(r)) {
			return true
		}
	}
	return false
}

// Apply 过滤一组记录，保持原有顺序；对已过滤的结果再次调用不会再删除任何记录
func (f Filter) Apply(in []Article) []Article {
	out := make([]Article, 0, len(in))
	for _, a := range in {
		if f.Allow(a.Title) {
			out = append(out, a)
		}
	}
	return out
}

// CleanTitle 合并连续空白；stripSuffix 为 true 时去掉末尾的 " - 来源" 后缀
func CleanTitle(s string, stripSuffix bool) string {
	s = strings.Join(strings.Fields(s), " ")
	if !stripSuffix {
		return s
	}
	if idx := strings.LastIndex(s, " - "); idx > 0 {
		s = strings.TrimSpace(s[:idx])
	}
	return s
}

// ResolveLink 把 href 补全为绝对地址；页内锚点、javascript: 等非 http(s) 链接返回 false
func ResolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return "", false
	}
	u, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", false
	}
	return u.String(), true
}

// IsAbsoluteLink 判断链接是否为带 host 的 http(s) 地址
func IsAbsoluteLink(link string) bool {
	_, ok := ResolveLink(nil, link)
	return ok
}

// baseURL 相对链接的补全基准：优先使用配置的 origin，其次是实际请求地址
func baseURL(origin string, fallback *url.URL) *url.URL {
	if origin != "" {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			return u
		}
	}
	return fallback
}
