package collector

import (
	"fmt"
	"strings"
)

// FetchError 网络错误、超时或非 2xx 响应
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParseError 所有解析策略都失败
type ParseError struct {
	URL        string
	Strategies []string
	Err        error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: all strategies failed [%s]: %v", e.URL, strings.Join(e.Strategies, ", "), e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// EmptyResultError 解析后没有候选条目，或候选条目全部被过滤
type EmptyResultError struct {
	Target     string
	Candidates int
}

func (e *EmptyResultError) Error() string {
	if e.Candidates == 0 {
		return fmt.Sprintf("%s: no candidate items", e.Target)
	}
	return fmt.Sprintf("%s: all %d candidates filtered out", e.Target, e.Candidates)
}
