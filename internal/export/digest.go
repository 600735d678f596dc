package export

import (
	"fmt"
	"os"
	"strings"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/mattn/go-runewidth"
)

// DigestFile 每日摘要的默认文件名
const DigestFile = "digest.md"

// digestTitleWidth 标题列的最大显示宽度，超出部分截断
const digestTitleWidth = 60

// RenderDigest 生成 Markdown 摘要：一级标题 + 日期/来源/标题表格。
// 列宽按显示宽度计算，中日文占两格，纯文本查看时表格也能对齐。
func RenderDigest(date string, articles []collector.Article) string {
	header := []string{"date", "source", "title"}
	rows := make([][]string, 0, len(articles))
	for _, a := range articles {
		title := runewidth.Truncate(a.Title, digestTitleWidth, "…")
		if a.Link != "" && collector.IsAbsoluteLink(a.Link) {
			title = fmt.Sprintf("[%s](%s)", escapeCell(title), markdownURL(a.Link))
		} else {
			title = escapeCell(title)
		}
		rows = append(rows, []string{a.Date, escapeCell(a.Tag()), title})
	}

	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := runewidth.StringWidth(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}
	for i := range widths {
		if widths[i] < 3 {
			widths[i] = 3
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Insurance News %s\n\n", date)
	fmt.Fprintf(&sb, "%d items\n\n", len(articles))
	writeRow(&sb, header, widths)

	sb.WriteString("|")
	for _, w := range widths {
		sb.WriteString(" " + strings.Repeat("-", w) + " |")
	}
	sb.WriteString("\n")

	for _, row := range rows {
		writeRow(&sb, row, widths)
	}
	return sb.String()
}

// WriteDigest 写出摘要文件
func WriteDigest(path, date string, articles []collector.Article) error {
	if err := os.WriteFile(path, []byte(RenderDigest(date, articles)), 0o644); err != nil {
		return fmt.Errorf("write digest: %w", err)
	}
	return nil
}

func writeRow(sb *strings.Builder, row []string, widths []int) {
	sb.WriteString("|")
	for i, cell := range row {
		sb.WriteString(" ")
		sb.WriteString(runewidth.FillRight(cell, widths[i]))
		sb.WriteString(" |")
	}
	sb.WriteString("\n")
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// 链接目标里的空格、括号与竖线会截断 Markdown 链接或表格行
var markdownURLReplacer = strings.NewReplacer(
	" ", "%20",
	"(", "%28",
	")", "%29",
	"|", "%7C",
	"<", "%3C",
	">", "%3E",
)

func markdownURL(link string) string {
	return markdownURLReplacer.Replace(link)
}
