package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/LJTian/InsuranceNews/internal/processor"
)

// Options 输出目录与文件名
type Options struct {
	Dir         string
	NewsFile    string
	PaperFile   string
	WritePapers bool
}

// WriteResult 一轮写入的摘要
type WriteResult struct {
	NewsPath    string
	PaperPath   string
	Total       int
	Papers      int
	Placeholder bool
	PerSource   map[string]int
}

// EnsureDir 创建输出目录，失败视为致命错误
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", dir, err)
	}
	return nil
}

// Write 写出 news_data.json；启用论文时同时写出 paper_data.json
func Write(opts Options, batch processor.Batch) (WriteResult, error) {
	res := WriteResult{
		Total:       len(batch.News),
		Placeholder: batch.Placeholder,
		PerSource:   processor.CountBySource(batch.All()),
	}

	if err := EnsureDir(opts.Dir); err != nil {
		return res, err
	}

	res.NewsPath = filepath.Join(opts.Dir, opts.NewsFile)
	if err := WriteJSON(res.NewsPath, batch.News); err != nil {
		return res, err
	}
	log.Printf("write %s done, %d items", res.NewsPath, len(batch.News))

	if opts.WritePapers {
		res.PaperPath = filepath.Join(opts.Dir, opts.PaperFile)
		if err := WriteJSON(res.PaperPath, batch.Papers); err != nil {
			return res, err
		}
		res.Papers = len(batch.Papers)
		log.Printf("write %s done, %d items", res.PaperPath, len(batch.Papers))
	}
	return res, nil
}

// WriteJSON 以 4 空格缩进写出 JSON，非 ASCII 字符与 & 等保持原样。
// 先写同目录下的临时文件并 fsync，再 rename 覆盖目标，读者不会看到写了一半的文件。
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, writeErr := tmpFile.Write(buf.Bytes())
	if writeErr == nil {
		writeErr = tmpFile.Sync()
	}
	closeErr := tmpFile.Close()
	if writeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing %s: %w", path, writeErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Chmod(tmpPath, 0o644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}
