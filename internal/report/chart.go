package report

import (
	"fmt"
	"io"

	"magpie/internal/decision"
	"magpie/internal/engine"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/go-echarts/go-echarts/v2/types"
)

const (
	colorBackground = "#0f1215"
	colorTextMain   = "#e9ecef"
	chartWidthPx    = 560
	chartHeightPx   = 340
)

// buildScoreChart 画出本轮各标的战术分，颜色对应动作。
func buildScoreChart(s engine.Summary) *charts.Bar {
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			Theme:           types.ThemeWesteros,
			Width:           fmt.Sprintf("%dpx", chartWidthPx),
			Height:          fmt.Sprintf("%dpx", chartHeightPx),
			BackgroundColor: colorBackground,
		}),
		charts.WithTitleOpts(opts.Title{Title: "战术分", Left: "left", TitleStyle: &opts.TextStyle{Color: colorTextMain}}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSub, Rotate: 30},
		}),
		charts.WithYAxisOpts(opts.YAxis{
			Min:       0,
			Max:       100,
			AxisLabel: &opts.AxisLabel{Show: opts.Bool(true), Color: colorTextSub},
			SplitLine: &opts.SplitLine{Show: opts.Bool(true), LineStyle: &opts.LineStyle{Color: colorTextSub, Opacity: opts.Float(0.15)}},
		}),
	)
	names := make([]string, 0, len(s.Results))
	data := make([]opts.BarData, 0, len(s.Results))
	for _, res := range s.Results {
		names = append(names, res.Fund.Name)
		data = append(data, opts.BarData{
			Name:      res.Fund.Code,
			Value:     res.Instruction.TacticalScore,
			ItemStyle: &opts.ItemStyle{Color: actionColor(res.Instruction.Action), Opacity: opts.Float(0.8)},
		})
	}
	bar.SetXAxis(names).AddSeries("score", data)
	return bar
}

func actionColor(a decision.Action) string {
	switch a {
	case decision.ActionBuy:
		return colorRed
	case decision.ActionSell:
		return colorGreen
	default:
		return colorTextSub
	}
}

func renderScoreChart(w io.Writer, s engine.Summary) error {
	return buildScoreChart(s).Render(w)
}
