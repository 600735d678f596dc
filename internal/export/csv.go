package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/LJTian/InsuranceNews/internal/collector"
)

// utf8BOM 让 Excel 能正确识别 UTF-8 编码的中日文
const utf8BOM = "\ufeff"

var csvHeader = []string{"title", "link", "date", "source", "journal"}

// CSVName 备份表格的文件名，例如 insurance_news_2026-10-18.csv
func CSVName(date string) string {
	return fmt.Sprintf("insurance_news_%s.csv", date)
}

// WriteCSV 在 dir 下写出当天的备份表格，返回文件路径
func WriteCSV(dir, date string, articles []collector.Article) (string, error) {
	path := filepath.Join(dir, CSVName(date))
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(utf8BOM); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	for _, a := range articles {
		if err := w.Write([]string{a.Title, a.Link, a.Date, a.Source, a.Journal}); err != nil {
			return "", fmt.Errorf("write csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("write csv: %w", err)
	}
	return path, f.Close()
}
