// Package export renders the task list as a downloadable report.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"choreboard/internal/requestid"
	"choreboard/internal/tasks"
)

// ErrUnknownFormat is returned for formats other than json, csv and pdf.
var ErrUnknownFormat = errors.New("unknown export format")

type Source interface {
	List(ctx context.Context) ([]tasks.Task, error)
	Scores(ctx context.Context) (tasks.Scores, error)
}

type Exporter struct{ src Source }

func NewExporter(src Source) *Exporter { return &Exporter{src: src} }

var contentTypes = map[string]string{
	"json": "application/json",
	"csv":  "text/csv",
	"pdf":  "application/pdf",
}

// Export returns the report bytes and their content type.
func (e *Exporter) Export(ctx context.Context, format string) ([]byte, string, error) {
	format = strings.ToLower(format)
	ct, ok := contentTypes[format]
	if !ok {
		return nil, "", fmt.Errorf("%w: %s", ErrUnknownFormat, format)
	}

	all, err := e.src.List(ctx)
	if err != nil {
		return nil, "", err
	}

	var b []byte
	switch format {
	case "json":
		b, err = json.MarshalIndent(all, "", "  ")
	case "csv":
		b, err = toCSV(all)
	case "pdf":
		scores, serr := e.src.Scores(ctx)
		if serr != nil {
			return nil, "", serr
		}
		b, err = toPDF(all, scores)
	}
	if err != nil {
		return nil, "", err
	}
	return b, ct, nil
}

func toCSV(all []tasks.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"id", "name", "description", "frequency", "assigned_to", "points", "completed"})
	for _, t := range all {
		_ = w.Write([]string{
			strconv.FormatInt(t.ID, 10),
			t.Name,
			description(t),
			t.Frequency,
			t.AssignedTo,
			strconv.FormatInt(t.Points, 10),
			strconv.FormatBool(t.Completed),
		})
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func toPDF(all []tasks.Task, scores tasks.Scores) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()
	pdf.SetFont("Arial", "B", 14)
	pdf.Cell(40, 10, "Chores Report")
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(40, 8, fmt.Sprintf("Score difference (A - B): %d", scores.Difference))
	pdf.Ln(10)

	pdf.SetFont("Arial", "", 10)
	for _, t := range all {
		status := "open"
		if t.Completed {
			status = "done"
		}
		line := fmt.Sprintf("#%d %s [%s] %s, %d pts, %s", t.ID, t.Name, t.Frequency, t.AssignedTo, t.Points, status)
		if d := description(t); d != "" {
			line += " - " + d
		}
		pdf.MultiCell(0, 6, line, "0", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func description(t tasks.Task) string {
	if t.Description == nil {
		return ""
	}
	return *t.Description
}

// Handler serves GET /api/tasks/export?format=json|csv|pdf (json by default).
func Handler(e *Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		format := r.URL.Query().Get("format")
		if format == "" {
			format = "json"
		}

		b, ct, err := e.Export(r.Context(), format)
		if errors.Is(err, ErrUnknownFormat) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err != nil {
			log.Printf("[ERROR] export %s request_id=%s: %v", format, requestid.FromContext(r.Context()), err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", ct)
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="tasks.%s"`, strings.ToLower(format)))
		_, _ = w.Write(b)
	}
}
