package report

import (
	"fmt"
	"html/template"
	"io"

	"magpie/internal/decision"
)

const (
	colorGold    = "#fab005"
	colorRed     = "#fa5252"
	colorGreen   = "#51cf66"
	colorTextSub = "#adb5bd"
)

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"actionClass": func(a decision.Action) string {
		switch a {
		case decision.ActionBuy:
			return "act-buy"
		case decision.ActionSell:
			return "act-sell"
		default:
			return "act-hold"
		}
	},
	"signed": func(v int) string { return fmt.Sprintf("%+d", v) },
}).Parse(`<!DOCTYPE html>
<html><head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
<style>
body { background: #0f1215; color: #e9ecef; font-family: -apple-system, "Segoe UI", Roboto, Helvetica, Arial, sans-serif; margin: 0; padding: 10px; }
.main { max-width: 600px; margin: 0 auto; background: #0a0c0e; border: 1px solid #2c3e50; padding: 15px; border-radius: 8px; }
.head { text-align: center; padding-bottom: 16px; border-bottom: 1px solid #222; color: ` + colorGold + `; letter-spacing: 2px; }
.card { background: #16191d; margin: 15px 0; padding: 15px; border-radius: 4px; border-left: 3px solid ` + colorGold + `; }
.row { display: flex; justify-content: space-between; align-items: center; margin-bottom: 8px; }
.name { font-size: 16px; font-weight: bold; }
.score { color: ` + colorGold + `; font-weight: bold; font-size: 18px; }
.act { display: inline-block; padding: 3px 10px; font-size: 13px; font-weight: bold; border-radius: 4px; border: 1px solid #495057; color: ` + colorTextSub + `; }
.act-buy { color: ` + colorRed + `; border-color: ` + colorRed + `; background: rgba(250,82,82,0.15); }
.act-sell { color: ` + colorGreen + `; border-color: ` + colorGreen + `; background: rgba(81,207,102,0.15); }
.risk { font-size: 11px; color: ` + colorGreen + `; font-weight: bold; }
.risk.veto { color: ` + colorRed + `; }
.pnl { font-size: 12px; background: rgba(0,0,0,0.2); padding: 4px 8px; border: 1px solid #333; display: flex; justify-content: space-between; margin-bottom: 8px; }
.up { color: ` + colorRed + `; } .down { color: ` + colorGreen + `; }
.grid { display: grid; grid-template-columns: 1fr 1fr; gap: 5px; font-size: 11px; color: ` + colorTextSub + `; }
.tag { border: 1px solid #444; padding: 1px 4px; font-size: 9px; border-radius: 3px; color: ` + colorTextSub + `; margin-right: 3px; }
.debate { display: flex; gap: 10px; margin-top: 12px; border-top: 1px solid #333; padding-top: 10px; font-size: 11px; }
.debate > div { flex: 1; padding: 8px; border-radius: 4px; }
.cio { background: rgba(250,176,5,0.05); padding: 10px; border: 1px solid rgba(250,176,5,0.2); margin-top: 8px; font-size: 12px; }
.audit { font-size: 11px; color: ` + colorTextSub + `; font-family: monospace; }
iframe { width: 100%; height: 360px; border: 0; }
@media (max-width: 480px) { .debate { flex-direction: column; } .grid { grid-template-columns: 1fr; } }
</style></head><body>
<div class="main">
<div class="head">{{.Title}}<div style="font-size:10px;color:` + colorTextSub + `">{{.Generated}} · {{.RunID}}</div></div>
{{if .Review}}<div class="card" style="border-left-color:` + colorRed + `"><div style="color:` + colorRed + `;font-weight:bold">🛑 CIO 战略审计</div>{{.Review}}</div>{{end}}
{{if .RedTeam}}<div class="card" style="border-left-color:` + colorGold + `"><div style="color:` + colorGold + `;font-weight:bold">🕵️ Red Team 压力测试</div>{{.RedTeam}}</div>{{end}}
{{if .ChartFile}}<div class="card"><iframe src="{{.ChartFile}}"></iframe></div>{{end}}
{{range .Cards}}
<div class="card">
  <div class="row"><span class="name">{{.Name}} <small style="color:` + colorTextSub + `">{{.Code}}</small></span><span class="act {{actionClass .Action}}">{{.ActionText}}</span></div>
  <div class="row"><span class="score">{{.Score}}分</span><span class="risk{{if .Vetoed}} veto{{end}}">🛡️ {{.Risk}} · {{.RiskComment}}</span></div>
  {{if .HasPosition}}<div class="pnl"><span>持有盈亏:</span><span class="{{if gt .PnL 0.0}}up{{else}}down{{end}}">{{.PnLText}}</span></div>{{end}}
  <div class="grid"><span>RSI: {{.RSI}}</span><span>Trend: {{.Trend}}</span><span>VR: {{.VolumeRatio}}</span><span>Val: {{.Valuation}}</span></div>
  <div style="margin-top:8px">{{range .Reasons}}<span class="tag">{{.}}</span>{{end}}</div>
  {{if .HasDebate}}
  <div class="debate">
    <div style="border-left:2px solid ` + colorGreen + `"><b style="color:` + colorGreen + `">🦊 CGO</b>{{.Bull}}</div>
    <div style="border-left:2px solid ` + colorRed + `"><b style="color:` + colorRed + `">🐻 CRO</b>{{.Bear}}</div>
  </div>
  <div class="cio"><b style="color:` + colorGold + `">⚖️ CIO 终审 (修正: {{signed .Adjustment}})</b>{{.Chairman}}</div>
  {{end}}
</div>
{{end}}
{{if .Audit}}<div class="card"><div style="font-weight:bold;margin-bottom:6px">审计记录</div>{{range .Audit}}<div class="audit">{{.}}</div>{{end}}</div>{{end}}
{{if .Failures}}<div class="card" style="border-left-color:` + colorRed + `">{{range .Failures}}<div class="audit">{{.}}</div>{{end}}</div>{{end}}
</div></body></html>
`))

func renderPage(w io.Writer, p Page) error {
	return pageTmpl.Execute(w, p)
}
