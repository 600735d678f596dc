package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/LJTian/InsuranceNews/internal/processor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONKeepsNonASCIIAndIndents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "news_data.json")
	records := []collector.Article{
		{Title: "產險 & 壽險：新制上路", Link: "https://example.com/a?x=1&y=2", Date: "2026-10-18", Source: "台灣新聞", SourceID: "taiwan"},
	}

	require.NoError(t, WriteJSON(path, records))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)

	assert.Contains(t, text, "產險 & 壽險：新制上路")
	assert.Contains(t, text, "x=1&y=2")
	assert.NotContains(t, text, `\u`)
	assert.Contains(t, text, "\n    {\n        \"title\"")
	assert.NotContains(t, text, "SourceID")
	assert.NotContains(t, text, "journal")

	var back []map[string]string
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, map[string]string{
		"title":  "產險 & 壽險：新制上路",
		"link":   "https://example.com/a?x=1&y=2",
		"date":   "2026-10-18",
		"source": "台灣新聞",
	}, back[0])
}

func TestWriteJSONReplacesExistingFileWithoutLeftovers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "news_data.json")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0o644))

	require.NoError(t, WriteJSON(path, []string{"fresh"}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `["fresh"]`, string(raw))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.False(t, strings.HasSuffix(entries[0].Name(), ".tmp"))
}

func TestWriteJSONMissingDirFails(t *testing.T) {
	err := WriteJSON(filepath.Join(t.TempDir(), "missing", "x.json"), []string{})
	require.Error(t, err)
}

func TestWriteNewsAndPapers(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	batch := processor.Batch{
		News: []collector.Article{
			{Title: "金管會公布保險業新制", SourceID: "taiwan"},
			{Title: "生命保険各社、新型の医療保険", SourceID: "japan"},
		},
		Papers: []collector.Article{
			{Title: "Longevity risk and annuity pricing", Journal: "ASTIN Bulletin", SourceID: "papers"},
		},
	}

	res, err := Write(Options{Dir: dir, NewsFile: "news_data.json", PaperFile: "paper_data.json", WritePapers: true}, batch)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "news_data.json"), res.NewsPath)
	assert.Equal(t, filepath.Join(dir, "paper_data.json"), res.PaperPath)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 1, res.Papers)
	assert.False(t, res.Placeholder)
	assert.Equal(t, map[string]int{"taiwan": 1, "japan": 1, "papers": 1}, res.PerSource)

	raw, err := os.ReadFile(res.PaperPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"journal": "ASTIN Bulletin"`)
	assert.NotContains(t, string(raw), `"source"`)
}

func TestWriteWithoutPapersSkipsPaperFile(t *testing.T) {
	dir := t.TempDir()
	batch := processor.Batch{
		News:        []collector.Article{{Title: "placeholder", SourceID: processor.PlaceholderSourceID}},
		Papers:      []collector.Article{},
		Placeholder: true,
	}

	res, err := Write(Options{Dir: dir, NewsFile: "news_data.json", PaperFile: "paper_data.json"}, batch)
	require.NoError(t, err)
	assert.True(t, res.Placeholder)
	assert.Empty(t, res.PaperPath)
	_, err = os.Stat(filepath.Join(dir, "paper_data.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestEnsureDirFailsOnFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "data")
	require.NoError(t, os.WriteFile(file, nil, 0o644))
	assert.Error(t, EnsureDir(file))
}
