package presentation

import (
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/cbconfig/internal/schema"
	"github.com/zjrosen/cbconfig/internal/testutil"
)

func TestDiffDocuments_Identical(t *testing.T) {
	text := "{\n  \"a\": 1\n}\n"
	d := DiffDocuments(text, text)

	require.False(t, d.Changed())
	added, removed := d.Stats()
	require.Zero(t, added)
	require.Zero(t, removed)
	require.Empty(t, d.String(3))
}

func TestDiffDocuments_ChangedLine(t *testing.T) {
	oldText := "{\n  \"name\": \"beta\",\n  \"author\": \"x\"\n}\n"
	newText := "{\n  \"name\": \"beta2\",\n  \"author\": \"x\"\n}\n"

	d := DiffDocuments(oldText, newText)
	require.True(t, d.Changed())

	added, removed := d.Stats()
	require.Equal(t, 1, added)
	require.Equal(t, 1, removed)

	require.Equal(t, []DiffLine{
		{Op: diffmatchpatch.DiffEqual, Text: "{"},
		{Op: diffmatchpatch.DiffDelete, Text: `  "name": "beta",`},
		{Op: diffmatchpatch.DiffInsert, Text: `  "name": "beta2",`},
		{Op: diffmatchpatch.DiffEqual, Text: `  "author": "x"`},
		{Op: diffmatchpatch.DiffEqual, Text: "}"},
	}, d.Lines)
}

func TestDocumentDiff_StringCollapsesContext(t *testing.T) {
	var oldLines, newLines []string
	for i := range 20 {
		line := strings.Repeat("l", i+1)
		oldLines = append(oldLines, line)
		if i == 10 {
			line = "changed"
		}
		newLines = append(newLines, line)
	}

	d := DiffDocuments(strings.Join(oldLines, "\n")+"\n", strings.Join(newLines, "\n")+"\n")
	out := d.String(1)

	require.Equal(t,
		"  ...\n"+
			"  "+strings.Repeat("l", 10)+"\n"+
			"- "+strings.Repeat("l", 11)+"\n"+
			"+ changed\n"+
			"  "+strings.Repeat("l", 12)+"\n"+
			"  ...\n",
		out)
}

func TestDiffLine_String(t *testing.T) {
	require.Equal(t, "+ x", DiffLine{Op: diffmatchpatch.DiffInsert, Text: "x"}.String())
	require.Equal(t, "- x", DiffLine{Op: diffmatchpatch.DiffDelete, Text: "x"}.String())
	require.Equal(t, "  x", DiffLine{Op: diffmatchpatch.DiffEqual, Text: "x"}.String())
}

func TestCompareDocuments_IgnoresInputFormatting(t *testing.T) {
	fromJSON, err := schema.Validate(testutil.Doc(t, "sales-bot"))
	require.NoError(t, err)
	fromYAML, err := schema.Validate(testutil.DocYAML(t, "sales-bot"))
	require.NoError(t, err)

	d, err := CompareDocuments(fromJSON, fromYAML)
	require.NoError(t, err)
	require.False(t, d.Changed())

	renamed, err := schema.Validate(testutil.Doc(t, "sales-bot-2"))
	require.NoError(t, err)
	d, err = CompareDocuments(fromJSON, renamed)
	require.NoError(t, err)
	require.Contains(t, d.String(0), `+     "name": "sales-bot-2",`)
}
