package export

import (
	"bytes"
	"encoding/csv"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/LJTian/InsuranceNews/internal/collector"
	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleArticles = []collector.Article{
	{Title: "金管會公布保險業新制", Link: "https://example.com/1", Date: "2026-10-18", Source: "台灣新聞", SourceID: "taiwan"},
	{Title: "Solvency, capital | pricing", Link: "https://example.com/2", Date: "2026-10-17", Journal: "ASTIN Bulletin", SourceID: "papers"},
	{Title: "系統測試：目前線上暫無最新新聞，請稍後再試", Link: "#", Date: "2026-10-18", Source: "台灣新聞", SourceID: "placeholder"},
}

func TestWriteCSV(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteCSV(dir, "2026-10-18", sampleArticles)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "insurance_news_2026-10-18.csv"), path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(raw, []byte("\xef\xbb\xbf")), "missing BOM")

	records, err := csv.NewReader(bytes.NewReader(raw[3:])).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, []string{"title", "link", "date", "source", "journal"}, records[0])
	assert.Equal(t, []string{"金管會公布保險業新制", "https://example.com/1", "2026-10-18", "台灣新聞", ""}, records[1])
	assert.Equal(t, "Solvency, capital | pricing", records[2][0])
	assert.Equal(t, "ASTIN Bulletin", records[2][4])
}

func TestSortedBars(t *testing.T) {
	bars := SortedBars(map[string]int{"japan": 3, "papers": 15, "taiwan": 15})
	assert.Equal(t, []ChartBar{{"papers", 15}, {"taiwan", 15}, {"japan", 3}}, bars)
}

func TestRenderPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), ChartFile)
	r := NewChartRenderer()
	require.NoError(t, r.RenderPNG(map[string]int{"taiwan": 12, "japan": 5, "papers": 9}, path))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	assert.Equal(t, 800, img.Bounds().Dx())
	assert.Equal(t, 480, img.Bounds().Dy())

	assert.Error(t, r.RenderPNG(nil, path))
}

func TestRenderDigestAlignsWideCharacters(t *testing.T) {
	out := RenderDigest("2026-10-18", sampleArticles)

	assert.True(t, strings.HasPrefix(out, "# Insurance News 2026-10-18\n\n3 items\n\n"))
	assert.Contains(t, out, "[金管會公布保險業新制](https://example.com/1)")
	assert.Contains(t, out, `Solvency, capital \| pricing`)
	// "#" 不是可用链接，只输出纯文本标题
	assert.NotContains(t, out, "](#)")

	var widths []int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "|") {
			widths = append(widths, runewidth.StringWidth(line))
		}
	}
	require.Len(t, widths, 5)
	for _, w := range widths {
		assert.Equal(t, widths[0], w)
	}
}

func TestRenderDigestEncodesLinkTarget(t *testing.T) {
	items := []collector.Article{
		{Title: "保險科技 (InsurTech) 報告", Link: "https://example.com/a b(1)|x", Date: "2026-10-18", Source: "台灣新聞", SourceID: "taiwan"},
		{Title: "金管會公布保險業新制", Link: "https://example.com/1", Date: "2026-10-18", Source: "台灣新聞", SourceID: "taiwan"},
	}
	out := RenderDigest("2026-10-18", items)
	assert.Contains(t, out, "(https://example.com/a%20b%281%29%7Cx)")

	var cells []int
	var widths []int
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if strings.HasPrefix(line, "|") {
			widths = append(widths, runewidth.StringWidth(line))
			cells = append(cells, strings.Count(strings.ReplaceAll(line, `\|`, ""), "|"))
		}
	}
	require.Len(t, widths, 4)
	for i := range widths {
		assert.Equal(t, widths[0], widths[i])
		assert.Equal(t, 4, cells[i])
	}
}

func TestWriteDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), DigestFile)
	require.NoError(t, WriteDigest(path, "2026-10-18", sampleArticles[:1]))
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "| date ")
}
