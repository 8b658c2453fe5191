package reporting

import (
	"fmt"
	"html"
	"os"
	"path/filepath"

	"github.com/gregoiredehame/checker/internal/ir"
)

func WriteHTML(sessionID, outDir string, s *ir.Session) (string, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(outDir, sessionID+".html")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var passed, failed, cancelled, failures int
	for _, r := range s.Results {
		switch r.Status() {
		case ir.StatusSuccess:
			passed++
		case ir.StatusFailure:
			failed++
		case ir.StatusCancelled:
			cancelled++
		}
		failures += len(r.Failures)
	}

	// Head + styles
	fmt.Fprintf(f, "<!doctype html><html><head><meta charset='utf-8'><title>%s</title>", html.EscapeString(sessionID))
	fmt.Fprint(f, "<style>body{font-family:system-ui,Arial,sans-serif;padding:20px;line-height:1.4} table{border-collapse:collapse;margin:8px 0} td,th{border:1px solid #ddd;padding:6px} h1,h2{margin:6px 0 4px} .dim{color:#666} .mono{font-family:ui-monospace,Menlo,Consolas,monospace} .success{color:#2a7} .failure{color:#c33} .cancelled{color:#b80}</style>")
	fmt.Fprint(f, "</head><body>")

	// Title + summary
	fmt.Fprintf(f, "<h1>checker report – <span class='mono'>%s</span></h1>", html.EscapeString(sessionID))
	fmt.Fprintf(f, "<p>Action: %s &nbsp; Mode: %s &nbsp; Rules: %d &nbsp; Findings: %d</p>",
		html.EscapeString(string(s.Action)), html.EscapeString(s.Mode.String()), len(s.Results), s.FindingCount())
	fmt.Fprintf(f, "<p>Passed: %d &nbsp; Failed: %d &nbsp; Cancelled: %d &nbsp; Entity failures: %d</p>", passed, failed, cancelled, failures)
	if s.Source != "" {
		fmt.Fprintf(f, "<p class='dim'>Scene: <span class='mono'>%s</span>", html.EscapeString(s.Source))
		if s.SourceDigest != "" {
			fmt.Fprintf(f, " &nbsp; blake2b: <span class='mono'>%s</span>", html.EscapeString(s.SourceDigest))
		}
		fmt.Fprint(f, "</p>")
	}

	// Per rule
	fmt.Fprint(f, "<h2>Rules</h2><table><tr><th>Status</th><th>Category</th><th>Rule</th><th>Findings</th><th>Fixed</th><th>Waived</th><th>Time (s)</th></tr>")
	for _, r := range s.Results {
		st := r.Status().String()
		fixed := ""
		if r.Action == ir.ActionFix && r.Initial != nil {
			fixed = fmt.Sprint(max(len(r.Initial)-len(r.Findings), 0))
		}
		fmt.Fprintf(f, "<tr><td class='%s'>%s</td><td>%s</td><td>%s</td><td>%d</td><td>%s</td><td>%d</td><td>%.4f</td></tr>",
			st, st,
			html.EscapeString(r.Category),
			html.EscapeString(r.Display),
			len(r.Findings),
			fixed,
			r.Waived,
			r.Elapsed.Seconds(),
		)
	}
	fmt.Fprint(f, "</table>")

	// All findings
	if s.FindingCount() > 0 {
		fmt.Fprint(f, "<h2>All Findings</h2><table><tr><th>Category</th><th>Rule</th><th>Entity</th></tr>")
		for _, r := range s.Results {
			for _, e := range r.Findings {
				fmt.Fprintf(f, "<tr><td>%s</td><td>%s</td><td class='mono'>%s</td></tr>",
					html.EscapeString(r.Category),
					html.EscapeString(r.Rule),
					html.EscapeString(string(e)),
				)
			}
		}
		fmt.Fprint(f, "</table>")
	} else {
		fmt.Fprint(f, "<h2>All Findings</h2><p class='dim'>No findings.</p>")
	}

	if failures > 0 {
		fmt.Fprint(f, "<h2>Entity Failures</h2><table><tr><th>Rule</th><th>Stage</th><th>Kind</th><th>Entity</th><th>Message</th></tr>")
		for _, r := range s.Results {
			for _, x := range r.Failures {
				fmt.Fprintf(f, "<tr><td>%s</td><td>%s</td><td>%s</td><td class='mono'>%s</td><td>%s</td></tr>",
					html.EscapeString(r.Rule),
					html.EscapeString(x.Stage),
					html.EscapeString(string(x.Kind)),
					html.EscapeString(string(x.Entity)),
					html.EscapeString(x.Message),
				)
			}
		}
		fmt.Fprint(f, "</table>")
	}

	fmt.Fprint(f, "</body></html>")
	return path, nil
}
