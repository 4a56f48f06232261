package presentation

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// JSON writes v as indented JSON.
func (f *Formatter) JSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatRecords formats a list of records as JSON
func (f *Formatter) FormatRecords(records []RecordDTO) error {
	return f.JSON(records)
}

// FormatRecordsTable formats a list of records as a table
func (f *Formatter) FormatRecordsTable(records []RecordDTO) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(f.writer, "No configurations found")
		return err
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"ID", "Name", "Version", "Provider", "Model", "Author", "Description"})
	for _, rec := range records {
		t.AppendRow(table.Row{
			rec.Identifier, rec.Name, rec.Version, rec.Provider, rec.Model, rec.Author,
			truncate(rec.Description, 60),
		})
	}
	t.AppendFooter(table.Row{"", fmt.Sprintf("%d total", len(records))})
	t.Render()
	return nil
}

// FormatReportTable formats a consistency report as a table
func (f *Formatter) FormatReportTable(report ReportDTO) error {
	status := text.FgGreen.Sprint("consistent")
	if !report.OK {
		status = text.FgRed.Sprintf("%d fault(s)", len(report.Faults))
	}
	if _, err := fmt.Fprintf(f.writer, "%d catalog records, %d files: %s\n",
		report.Records, report.Files, status); err != nil {
		return err
	}
	if report.OK {
		return nil
	}

	t := f.createTable()
	t.AppendHeader(table.Row{"ID", "Fault", "Catalog name", "File name", "Detail"})
	for _, fault := range report.Faults {
		t.AppendRow(table.Row{fault.Identifier, fault.Kind, fault.CatalogName, fault.FileName, truncate(fault.Detail, 80)})
	}
	t.Render()
	return nil
}

// FormatSummary formats a validated document summary as key/value lines
func (f *Formatter) FormatSummary(s SummaryDTO) error {
	t := f.createTable()
	t.AppendRows([]table.Row{
		{"Name", s.Name},
		{"Description", s.Description},
		{"Version", s.Version},
		{"Author", s.Author},
		{"Provider", s.Provider},
		{"Model", s.Model},
		{"Datasources", s.Datasources},
	})
	t.Render()
	return nil
}

// FormatError writes a human-readable error with one line per field problem.
func (f *Formatter) FormatError(dto ErrorDTO) error {
	if _, err := fmt.Fprintf(f.writer, "error [%s]: %s\n", dto.Kind, dto.Message); err != nil {
		return err
	}
	for _, fe := range dto.Fields {
		if _, err := fmt.Fprintf(f.writer, "  - %s\n", fe.String()); err != nil {
			return err
		}
	}
	return nil
}

// createTable creates a new table with standard styling
func (f *Formatter) createTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(f.writer)
	t.SetStyle(table.StyleRounded)
	return t
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
