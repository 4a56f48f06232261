package presentation

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	registry "github.com/zjrosen/cbconfig/internal/registry/application"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
	"github.com/zjrosen/cbconfig/internal/testutil"
)

func validDoc(t *testing.T, name string, opts ...testutil.DocOption) *schema.Document {
	t.Helper()
	doc, err := schema.Validate(testutil.Doc(t, name, opts...))
	require.NoError(t, err)
	return doc
}

func TestFromDomainRecord(t *testing.T) {
	created := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	doc := validDoc(t, "sales-bot", testutil.Bedrock(), testutil.Model("claude-3"), testutil.Created(created))
	rec := domain.NewRecord(42, doc)

	dto := FromDomainRecord(rec)
	require.Equal(t, "000042", dto.Identifier)
	require.Equal(t, "000042.json", dto.Filename)
	require.Equal(t, "sales-bot", dto.Name)
	require.Equal(t, "anthropic_bedrock", dto.Provider)
	require.Equal(t, "claude-3", dto.Model)
	require.Equal(t, "tester@example.com", dto.Author)
	require.NotNil(t, dto.Created)
	require.True(t, created.Equal(*dto.Created))
	require.Same(t, doc, dto.Document)
}

func TestFromDomainRecords_OmitsMissingDocument(t *testing.T) {
	rec := domain.NewRecord(1, validDoc(t, "alpha"))
	rec.Document = nil

	dtos := FromDomainRecords([]domain.Record{rec})
	require.Len(t, dtos, 1)

	raw, err := json.Marshal(dtos[0])
	require.NoError(t, err)
	require.NotContains(t, string(raw), `"document"`)
	require.Contains(t, string(raw), `"identifier":"000001"`)
}

func TestFromReport(t *testing.T) {
	report := registry.Report{
		Records: 2,
		Files:   3,
		Faults: []domain.Fault{
			{Kind: domain.FaultOrphanFile, Identifier: 9},
			{Kind: domain.FaultNameDrift, Identifier: 3, CatalogName: "gamma", FileName: "delta"},
		},
	}

	dto := FromReport(report)
	require.False(t, dto.OK)
	require.Equal(t, 2, dto.Records)
	require.Equal(t, 3, dto.Files)
	require.Equal(t, []FaultDTO{
		{Kind: "orphan_file", Identifier: "000009"},
		{Kind: "name_drift", Identifier: "000003", CatalogName: "gamma", FileName: "delta"},
	}, dto.Faults)
}

func TestFromReport_CleanEncodesEmptyFaults(t *testing.T) {
	raw, err := json.Marshal(FromReport(registry.Report{Records: 1, Files: 1}))
	require.NoError(t, err)
	require.JSONEq(t, `{"ok":true,"records":1,"files":1,"faults":[]}`, string(raw))
}

func TestFromDeleteResult(t *testing.T) {
	rec := domain.NewRecord(2, validDoc(t, "beta"))
	rec.Document = nil

	dto := FromDeleteResult(registry.DeleteResult{Record: rec})
	require.Equal(t, "beta", dto.Deleted.Name)
	require.Nil(t, dto.Faults)

	dto = FromDeleteResult(registry.DeleteResult{
		Record: rec,
		Faults: []domain.Fault{{Kind: domain.FaultMissingFile, Identifier: 2, CatalogName: "beta"}},
	})
	require.Len(t, dto.Faults, 1)
	require.Equal(t, "missing_file", dto.Faults[0].Kind)
}

func TestFromError(t *testing.T) {
	_, verr := schema.Validate(testutil.Doc(t, "Bad Name"))
	require.Error(t, verr)

	tests := []struct {
		name      string
		err       error
		kind      domain.Kind
		hasFields bool
		hasFault  bool
	}{
		{
			name:      "validation",
			err:       &domain.ValidationError{Cause: verr.(*schema.ValidationError)},
			kind:      domain.KindValidation,
			hasFields: true,
		},
		{
			name: "duplicate",
			err:  &domain.DuplicateNameError{Name: "alpha", Existing: 1},
			kind: domain.KindDuplicateName,
		},
		{
			name: "wrapped not found",
			err:  fmt.Errorf("get: %w", &domain.NotFoundError{Identifier: 7}),
			kind: domain.KindNotFound,
		},
		{
			name:     "fault",
			err:      &domain.ConsistencyFaultError{Fault: domain.Fault{Kind: domain.FaultMissingFile, Identifier: 4}},
			kind:     domain.KindConsistencyFault,
			hasFault: true,
		},
		{
			name: "plain",
			err:  errors.New("boom"),
			kind: domain.KindInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dto := FromError(tt.err)
			require.Equal(t, string(tt.kind), dto.Kind)
			require.Equal(t, tt.err.Error(), dto.Message)
			require.Equal(t, tt.hasFields, len(dto.Fields) > 0)
			require.Equal(t, tt.hasFault, dto.Fault != nil)
		})
	}
}

func TestSummarizeDocument(t *testing.T) {
	doc := validDoc(t, "sales-bot", testutil.Datasources(3), testutil.Version("2.1.0"))

	require.Equal(t, SummaryDTO{
		Name:        "sales-bot",
		Description: "Configuration sales-bot",
		Version:     "2.1.0",
		Author:      "tester@example.com",
		Provider:    "openai",
		Model:       "gpt-4",
		Datasources: 3,
	}, SummarizeDocument(doc))
}
