package report

import (
	"bytes"
	"fmt"
	"os"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/richardpark-msft/vigil/internal/models"
)

// statusColors keys the banner color off the overall run status.
var statusColors = map[models.RunStatus]string{
	models.RunPassed:    "#38ef7d",
	models.RunFailed:    "#f45c43",
	models.RunUncertain: "#ffd93d",
}

const defaultStatusColor = "#6c757d"

type htmlData struct {
	Title   string
	Status  models.RunStatus
	Summary string
	Color   string
	Body    string
}

// HTML renders the report as a standalone dark-theme page. The body is the
// markdown rendering converted through goldmark.
func HTML(r *models.Report) (string, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(Markdown(r)), &body); err != nil {
		return "", fmt.Errorf("converting report markdown: %w", err)
	}

	color, ok := statusColors[r.OverallStatus]
	if !ok {
		color = defaultStatusColor
	}

	var page bytes.Buffer
	err := htmlShell.Execute(&page, htmlData{
		Title:   planName(r),
		Status:  r.OverallStatus,
		Summary: r.Summary,
		Color:   color,
		Body:    body.String(),
	})
	if err != nil {
		return "", fmt.Errorf("rendering report page: %w", err)
	}
	return page.String(), nil
}

// WriteHTML renders the report as HTML and writes it to path.
func WriteHTML(r *models.Report, path string) error {
	page, err := HTML(r)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(page), 0644)
}

var htmlShell = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Test Verification Report - {{.Title}}</title>
<style>
  :root {
    --observed-color: #38ef7d;
    --uncertain-color: #ffd93d;
    --deviation-color: #f45c43;
    --bg-dark: #0e1117;
    --bg-card: #1a1f2e;
    --text-primary: #ffffff;
    --text-secondary: #a0aec0;
    --border-color: #2d3748;
  }
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: linear-gradient(180deg, var(--bg-dark) 0%, var(--bg-card) 100%);
    color: var(--text-primary);
    line-height: 1.6;
    min-height: 100vh;
    padding: 2rem 1rem;
  }
  .container { max-width: 1100px; margin: 0 auto; }
  .status-banner {
    background: {{.Color}};
    color: var(--bg-dark);
    border-radius: 12px;
    padding: 1.25rem 1.5rem;
    margin-bottom: 2rem;
  }
  .status-banner h2 { font-size: 1.4rem; }
  .status-banner p { opacity: 0.85; }
  .report-body {
    background: var(--bg-card);
    border: 1px solid var(--border-color);
    border-radius: 16px;
    padding: 2rem;
  }
  .report-body h1 { font-size: 1.6rem; margin-bottom: 1rem; }
  .report-body h2 {
    font-size: 1.25rem;
    margin: 1.5rem 0 0.75rem;
    border-bottom: 1px solid var(--border-color);
    padding-bottom: 0.4rem;
  }
  .report-body h3 { font-size: 1.05rem; margin: 1.25rem 0 0.5rem; }
  .report-body p, .report-body ul { margin-bottom: 0.75rem; color: var(--text-secondary); }
  .report-body strong { color: var(--text-primary); }
  .report-body ul { padding-left: 1.25rem; }
  .report-body table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
  .report-body th, .report-body td {
    border: 1px solid var(--border-color);
    padding: 0.5rem 0.75rem;
    text-align: left;
  }
  .report-body th { background: rgba(255, 255, 255, 0.04); }
  .report-body hr { border: none; border-top: 1px solid var(--border-color); margin: 1.5rem 0; }
</style>
</head>
<body>
<div class="container">
  <div class="status-banner">
    <h2>{{.Status}}</h2>
    <p>{{.Summary}}</p>
  </div>
  <div class="report-body">
{{.Body}}
  </div>
</div>
</body>
</html>
`))
