package webserver

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"text/template"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/richardpark-msft/vigil/internal/report"
	"github.com/richardpark-msft/vigil/internal/store"
	"github.com/richardpark-msft/vigil/internal/webapi"
)

// registerRoutes sets up API and dashboard routes on the given mux.
func registerRoutes(mux *http.ServeMux, api *webapi.Handlers, runs store.RunStore) {
	webapi.RegisterRoutes(mux, api)

	d := &dashboard{runs: runs}
	mux.HandleFunc("GET /{$}", d.handleIndex)
	mux.HandleFunc("GET /runs/{id}", d.handleRun)
}

// dashboard serves server-rendered HTML pages over the run store. Pages are
// built as markdown and converted through goldmark, the same path the HTML
// report export uses.
type dashboard struct {
	runs store.RunStore
}

func (d *dashboard) handleIndex(w http.ResponseWriter, _ *http.Request) {
	if d.runs == nil {
		d.renderPage(w, "Runs", "# Verification Runs\n\nRun persistence is disabled.\n")
		return
	}

	summaries, err := d.runs.ListRuns("", "")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	var b strings.Builder
	b.WriteString("# Verification Runs\n\n")
	if len(summaries) == 0 {
		b.WriteString("No runs recorded yet. Submit one with `POST /api/verify` or `vigil run`.\n")
	} else {
		b.WriteString("| Run | Plan | Status | Pass rate | Steps | Recorded |\n")
		b.WriteString("|-----|------|--------|-----------|-------|----------|\n")
		for _, s := range summaries {
			fmt.Fprintf(&b, "| [%s](/runs/%s) | %s | %s | %.1f%% | %d | %s |\n",
				shortID(s.ID), s.ID, s.Plan, s.Status, s.PassRate, s.Steps,
				s.CreatedAt.Format("2006-01-02 15:04"))
		}
	}
	d.renderPage(w, "Runs", b.String())
}

func (d *dashboard) handleRun(w http.ResponseWriter, r *http.Request) {
	if d.runs == nil {
		http.NotFound(w, r)
		return
	}

	run, err := d.runs.GetRun(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
		} else {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
		return
	}

	page, err := report.HTML(run.Report)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page) //nolint:errcheck
}

func (d *dashboard) renderPage(w http.ResponseWriter, title, markdown string) {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	var body bytes.Buffer
	if err := md.Convert([]byte(markdown), &body); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	pageShell.Execute(w, pageData{Title: title, Body: body.String()}) //nolint:errcheck
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

type pageData struct {
	Title string
	Body  string
}

var pageShell = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>vigil - {{.Title}}</title>
<style>
  body {
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
    background: #0e1117;
    color: #ffffff;
    line-height: 1.6;
    padding: 2rem 1rem;
  }
  .container { max-width: 1100px; margin: 0 auto; }
  a { color: #38ef7d; }
  table { width: 100%; border-collapse: collapse; margin: 1rem 0; }
  th, td { border: 1px solid #2d3748; padding: 0.5rem 0.75rem; text-align: left; }
  th { background: rgba(255, 255, 255, 0.04); }
  h1 { margin-bottom: 1rem; }
  p { color: #a0aec0; }
  code { background: #1a1f2e; padding: 0.1rem 0.3rem; border-radius: 4px; }
</style>
</head>
<body>
<div class="container">
{{.Body}}
</div>
</body>
</html>
`))
