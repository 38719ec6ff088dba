package report

import (
	"html/template"
	"io"

	"github.com/felixgeelhaar/grcov/internal/domain/coverage"
)

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Coverage Report</title>
    <style>
        :root {
            --pass: #16A34A;
            --fail: #DC2626;
            --warn: #CA8A04;
            --bg: #0f172a;
            --card: #1e293b;
            --text: #f8fafc;
            --muted: #94a3b8;
            --border: #334155;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, Oxygen, Ubuntu, sans-serif;
            background: var(--bg);
            color: var(--text);
            line-height: 1.6;
            padding: 2rem;
        }
        .container { max-width: 1200px; margin: 0 auto; }
        h1 { font-size: 2rem; margin-bottom: 1.5rem; font-weight: 600; }
        .summary { display: flex; gap: 1rem; margin-bottom: 2rem; }
        .summary-card {
            background: var(--card);
            border-radius: 0.5rem;
            padding: 1rem 1.5rem;
            border: 1px solid var(--border);
            border-left: 4px solid var(--pass);
        }
        .summary-label { font-size: 0.75rem; text-transform: uppercase; color: var(--muted); letter-spacing: 0.05em; }
        .summary-value { font-size: 1.5rem; font-weight: 600; color: var(--pass); }
        table {
            width: 100%;
            border-collapse: collapse;
            background: var(--card);
            border-radius: 0.5rem;
            overflow: hidden;
        }
        th, td { padding: 0.75rem 1rem; text-align: left; border-bottom: 1px solid var(--border); }
        th {
            background: rgba(0,0,0,0.2);
            font-weight: 600;
            font-size: 0.75rem;
            text-transform: uppercase;
            letter-spacing: 0.05em;
            color: var(--muted);
        }
        tr:last-child td { border-bottom: none; }
        tr:hover { background: rgba(255,255,255,0.02); }
        .progress-bar { width: 100%; height: 6px; background: var(--border); border-radius: 3px; overflow: hidden; }
        .progress-fill { height: 100%; border-radius: 3px; background: var(--pass); }
        .progress-fill.low { background: var(--fail); }
        .progress-fill.mid { background: var(--warn); }
        .coverage-cell { display: flex; align-items: center; gap: 0.75rem; }
        .coverage-percent { min-width: 4rem; font-weight: 500; }
    </style>
</head>
<body>
    <div class="container">
        <h1>Coverage Report</h1>
        <div class="summary">
            <div class="summary-card">
                <div class="summary-label">Line coverage</div>
                <div class="summary-value">{{printf "%.1f" .Total.LinePercent}}%</div>
            </div>
            <div class="summary-card">
                <div class="summary-label">Files</div>
                <div class="summary-value">{{len .Files}}</div>
            </div>
        </div>
        <table>
            <thead>
                <tr><th>File</th><th>Lines</th><th>Coverage</th></tr>
            </thead>
            <tbody>
                {{range .Files}}
                <tr>
                    <td>{{.Path}}</td>
                    <td>{{.Summary.CoveredLines}}/{{.Summary.TotalLines}}</td>
                    <td>
                        <div class="coverage-cell">
                            <span class="coverage-percent">{{printf "%.1f" .Summary.LinePercent}}%</span>
                            <div class="progress-bar">
                                <div class="progress-fill {{if lt .Summary.LinePercent 50.0}}low{{else if lt .Summary.LinePercent 80.0}}mid{{end}}"
                                     style="width: {{printf "%.0f" .Summary.LinePercent}}%"></div>
                            </div>
                        </div>
                    </td>
                </tr>
                {{end}}
            </tbody>
        </table>
    </div>
</body>
</html>`

type htmlData struct {
	Files []coverage.FileView
	Total coverage.Summary
}

func writeHTML(w io.Writer, views []coverage.FileView) error {
	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return err
	}
	data := htmlData{Files: views, Total: totalSummary(views)}
	return tmpl.Execute(w, data)
}
