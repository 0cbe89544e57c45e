package main

import (
	"fmt"
	"io"
	"sort"

	"magpie/internal/app"
	"magpie/internal/ledger"
	"magpie/internal/pkg/currency"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newLedgerCmd(state *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "查看或维护持仓账本",
	}

	var asYAML bool
	show := &cobra.Command{
		Use:   "show",
		Short: "打印当前持仓",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := app.OpenLedger(state.cfg)
			if err != nil {
				return err
			}
			defer led.Close()
			return printLedger(cmd.OutOrStdout(), led.Positions(), asYAML)
		},
	}
	show.Flags().BoolVar(&asYAML, "yaml", false, "以 YAML 输出完整账本（含交易历史）")

	advance := &cobra.Command{
		Use:   "advance",
		Short: "手动把所有持仓的持有天数加一",
		RunE: func(cmd *cobra.Command, args []string) error {
			led, err := app.OpenLedger(state.cfg)
			if err != nil {
				return err
			}
			defer led.Close()
			return led.AdvanceDay()
		},
	}

	cmd.AddCommand(show, advance)
	return cmd
}

func printLedger(w io.Writer, doc ledger.Document, asYAML bool) error {
	if asYAML {
		out, err := yaml.Marshal(doc)
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}
	if len(doc) == 0 {
		_, err := fmt.Fprintln(w, "(空账本)")
		return err
	}
	codes := make([]string, 0, len(doc))
	for code := range doc {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	rows := make([][]string, 0, len(codes))
	for _, code := range codes {
		p := doc[code]
		rows = append(rows, []string{
			code,
			p.Name,
			fmt.Sprintf("%.4f", p.Shares),
			fmt.Sprintf("%.4f", p.Cost),
			currency.CNY(p.Shares*p.Cost),
			fmt.Sprintf("%d", p.HeldDays),
			fmt.Sprintf("%d", len(p.History)),
		})
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("代码", "名称", "份额", "成本价", "持仓成本", "持有天数", "交易笔数").
		Rows(rows...)
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
