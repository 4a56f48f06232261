package presentation

import (
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/zjrosen/cbconfig/internal/schema"
)

// DiffLine is one line of a document diff.
type DiffLine struct {
	Op   diffmatchpatch.Operation
	Text string
}

// String renders the line with a "+", "-" or " " prefix.
func (l DiffLine) String() string {
	switch l.Op {
	case diffmatchpatch.DiffInsert:
		return "+ " + l.Text
	case diffmatchpatch.DiffDelete:
		return "- " + l.Text
	default:
		return "  " + l.Text
	}
}

// DocumentDiff is a line diff between two rendered documents.
type DocumentDiff struct {
	Lines []DiffLine
}

// DiffDocuments compares two rendered documents line by line.
func DiffDocuments(oldText, newText string) DocumentDiff {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(oldText, newText)
	diffs := dmp.DiffMain(a, b, false)
	diffs = dmp.DiffCharsToLines(diffs, lines)

	var out DocumentDiff
	for _, d := range diffs {
		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}
			out.Lines = append(out.Lines, DiffLine{Op: d.Type, Text: strings.TrimSuffix(line, "\n")})
		}
	}
	return out
}

// CompareDocuments diffs the rendered JSON forms of two documents, so
// formatting differences in the submitted text do not show up.
func CompareDocuments(before, after *schema.Document) (DocumentDiff, error) {
	oldRaw, err := schema.Render(before)
	if err != nil {
		return DocumentDiff{}, err
	}
	newRaw, err := schema.Render(after)
	if err != nil {
		return DocumentDiff{}, err
	}
	return DiffDocuments(string(oldRaw), string(newRaw)), nil
}

// Changed reports whether any line was inserted or deleted.
func (d DocumentDiff) Changed() bool {
	for _, l := range d.Lines {
		if l.Op != diffmatchpatch.DiffEqual {
			return true
		}
	}
	return false
}

// Stats counts inserted and deleted lines.
func (d DocumentDiff) Stats() (added, removed int) {
	for _, l := range d.Lines {
		switch l.Op {
		case diffmatchpatch.DiffInsert:
			added++
		case diffmatchpatch.DiffDelete:
			removed++
		}
	}
	return added, removed
}

// String renders changed lines with up to context unchanged lines around
// them. Other unchanged lines collapse to "...".
func (d DocumentDiff) String(context int) string {
	keep := make([]bool, len(d.Lines))
	for i, l := range d.Lines {
		if l.Op == diffmatchpatch.DiffEqual {
			continue
		}
		for j := max(0, i-context); j <= min(len(d.Lines)-1, i+context); j++ {
			keep[j] = true
		}
	}

	var sb strings.Builder
	skipped := false
	for i, l := range d.Lines {
		if !keep[i] {
			skipped = true
			continue
		}
		if skipped {
			sb.WriteString("  ...\n")
			skipped = false
		}
		sb.WriteString(l.String())
		sb.WriteByte('\n')
	}
	if skipped && sb.Len() > 0 {
		sb.WriteString("  ...\n")
	}
	return sb.String()
}
