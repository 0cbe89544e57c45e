package report

import (
	"fmt"
	"strings"

	"magpie/internal/decision"
	"magpie/internal/engine"
	"magpie/internal/pkg/currency"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAB005")).
			Padding(0, 1)
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#3B82F6")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	buyStyle    = cellStyle.Foreground(lipgloss.Color("#FA5252")).Bold(true)
	sellStyle   = cellStyle.Foreground(lipgloss.Color("#51CF66")).Bold(true)
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
)

// RenderTable 渲染终端摘要表。
func RenderTable(s engine.Summary) string {
	rows := make([][]string, 0, len(s.Results))
	actions := make([]decision.Action, 0, len(s.Results))
	for _, res := range s.Results {
		ins := res.Instruction
		amount := "-"
		switch ins.Action {
		case decision.ActionBuy:
			amount = currency.CNY(ins.BuyAmount)
		case decision.ActionSell:
			amount = currency.CNY(ins.SellValue)
		}
		rows = append(rows, []string{
			res.Fund.Name,
			ins.Action.Label(),
			amount,
			fmt.Sprintf("%d", ins.TacticalScore),
			fmt.Sprintf("%+d", res.Advisory.Adjustment),
			string(res.Reading.Risk),
			strings.Join(ins.Reasons, ", "),
		})
		actions = append(actions, ins.Action)
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("#495057"))).
		Headers("标的", "决策", "金额", "分", "AI", "风控", "理由").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == 1 && row >= 0 && row < len(actions) {
				switch actions[row] {
				case decision.ActionBuy:
					return buyStyle
				case decision.ActionSell:
					return sellStyle
				}
			}
			return cellStyle
		})

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("决策周期 %s", s.RunID)))
	b.WriteString("\n")
	b.WriteString(t.String())
	b.WriteString("\n")
	for _, f := range s.Failures {
		b.WriteString(errorStyle.Render("✗ " + f.Error()))
		b.WriteString("\n")
	}
	return b.String()
}
