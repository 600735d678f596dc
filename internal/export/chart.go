package export

import (
	"errors"
	"fmt"
	"image/color"
	"sort"

	"github.com/fogleman/gg"
)

// ChartFile 来源统计图的默认文件名
const ChartFile = "source_counts.png"

// ChartRenderer 把各来源的记录数画成柱状图。
// 默认字体只有 ASCII 字形，标签使用来源代号（taiwan / japan / papers）。
type ChartRenderer struct {
	Width   float64
	Height  float64
	Pad     float64
	BarGap  float64
	Title   string
	BarFill string
}

func NewChartRenderer() *ChartRenderer {
	return &ChartRenderer{
		Width:   800,
		Height:  480,
		Pad:     48,
		BarGap:  24,
		Title:   "Insurance news by source",
		BarFill: "#4a9eff",
	}
}

// ChartBar 柱状图的一根柱子
type ChartBar struct {
	Label string
	Count int
}

// SortedBars 按数量降序、同数量按代号升序排列
func SortedBars(counts map[string]int) []ChartBar {
	bars := make([]ChartBar, 0, len(counts))
	for label, n := range counts {
		bars = append(bars, ChartBar{Label: label, Count: n})
	}
	sort.Slice(bars, func(i, j int) bool {
		if bars[i].Count != bars[j].Count {
			return bars[i].Count > bars[j].Count
		}
		return bars[i].Label < bars[j].Label
	})
	return bars
}

// RenderPNG 绘制并保存 PNG
func (r *ChartRenderer) RenderPNG(counts map[string]int, outputPath string) error {
	bars := SortedBars(counts)
	if len(bars) == 0 {
		return errors.New("chart: no data")
	}

	dc := gg.NewContext(int(r.Width), int(r.Height))
	dc.SetColor(color.White)
	dc.Clear()

	dc.SetColor(color.Black)
	dc.DrawStringAnchored(r.Title, r.Width/2, r.Pad/2, 0.5, 0.5)

	top := 0
	for _, b := range bars {
		if b.Count > top {
			top = b.Count
		}
	}

	plotTop := r.Pad
	plotBottom := r.Height - r.Pad
	plotH := plotBottom - plotTop - 16
	slot := (r.Width - 2*r.Pad) / float64(len(bars))
	barW := slot - r.BarGap
	if barW < 4 {
		barW = 4
	}

	// 坐标轴
	dc.SetLineWidth(1)
	dc.DrawLine(r.Pad, plotBottom, r.Width-r.Pad, plotBottom)
	dc.Stroke()

	for i, b := range bars {
		h := 0.0
		if top > 0 {
			h = plotH * float64(b.Count) / float64(top)
		}
		x := r.Pad + float64(i)*slot + (slot-barW)/2

		dc.SetHexColor(r.BarFill)
		dc.DrawRectangle(x, plotBottom-h, barW, h)
		dc.Fill()

		dc.SetColor(color.Black)
		dc.DrawStringAnchored(fmt.Sprintf("%d", b.Count), x+barW/2, plotBottom-h-8, 0.5, 0)
		dc.DrawStringAnchored(b.Label, x+barW/2, plotBottom+16, 0.5, 0.5)
	}

	return dc.SavePNG(outputPath)
}
