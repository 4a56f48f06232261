// Package presentation converts registry results into output shapes shared
// by the CLI and the web forms: JSON DTOs, tables and document diffs.
package presentation

import (
	"errors"
	"time"

	registry "github.com/zjrosen/cbconfig/internal/registry/application"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
)

// RecordDTO represents a configuration record for presentation
type RecordDTO struct {
	Identifier  string           `json:"identifier"`
	Filename    string           `json:"filename"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Author      string           `json:"author"`
	Version     string           `json:"version"`
	Provider    string           `json:"provider"`
	Model       string           `json:"model"`
	Created     *time.Time       `json:"created,omitempty"`
	Modified    *time.Time       `json:"modified,omitempty"`
	Document    *schema.Document `json:"document,omitempty"`
}

// FaultDTO represents a consistency fault
type FaultDTO struct {
	Kind        string `json:"kind"`
	Identifier  string `json:"identifier"`
	CatalogName string `json:"catalog_name,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	Detail      string `json:"detail,omitempty"`
}

// ReportDTO is the result of a consistency check.
type ReportDTO struct {
	OK      bool       `json:"ok"`
	Records int        `json:"records"`
	Files   int        `json:"files"`
	Faults  []FaultDTO `json:"faults"`
}

// DeleteDTO is the result of a delete.
type DeleteDTO struct {
	Deleted RecordDTO  `json:"deleted"`
	Faults  []FaultDTO `json:"faults,omitempty"`
}

// ErrorDTO is the machine-readable form of a failed operation.
type ErrorDTO struct {
	Kind    string              `json:"kind"`
	Message string              `json:"message"`
	Fields  []schema.FieldError `json:"fields,omitempty"`
	Fault   *FaultDTO           `json:"fault,omitempty"`
}

// SummaryDTO is the short description of a validated document printed by
// validate.
type SummaryDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Author      string `json:"author"`
	Provider    string `json:"provider"`
	Model       string `json:"model"`
	Datasources int    `json:"datasources"`
}

// FromDomainRecord converts a domain record to a DTO. The document is
// included only when the record carries one.
func FromDomainRecord(rec domain.Record) RecordDTO {
	return RecordDTO{
		Identifier:  rec.Identifier.String(),
		Filename:    rec.Filename(),
		Name:        rec.LogicalName,
		Description: rec.Summary.Description,
		Author:      rec.Summary.Author,
		Version:     rec.Summary.Version,
		Provider:    string(rec.Summary.Provider),
		Model:       rec.Summary.Model,
		Created:     rec.Summary.Created,
		Modified:    rec.Summary.Modified,
		Document:    rec.Document,
	}
}

// FromDomainRecords converts a slice of domain records to DTOs
func FromDomainRecords(recs []domain.Record) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i, rec := range recs {
		dtos[i] = FromDomainRecord(rec)
	}
	return dtos
}

// FromDomainFault converts a domain fault to a DTO
func FromDomainFault(f domain.Fault) FaultDTO {
	return FaultDTO{
		Kind:        string(f.Kind),
		Identifier:  f.Identifier.String(),
		CatalogName: f.CatalogName,
		FileName:    f.FileName,
		Detail:      f.Detail,
	}
}

// FromDomainFaults converts faults, always returning a non-nil slice so the
// JSON form is [] rather than null.
func FromDomainFaults(faults []domain.Fault) []FaultDTO {
	dtos := make([]FaultDTO, len(faults))
	for i, f := range faults {
		dtos[i] = FromDomainFault(f)
	}
	return dtos
}

// FromReport converts a consistency report to a DTO
func FromReport(r registry.Report) ReportDTO {
	return ReportDTO{
		OK:      r.OK(),
		Records: r.Records,
		Files:   r.Files,
		Faults:  FromDomainFaults(r.Faults),
	}
}

// FromDeleteResult converts a delete result to a DTO
func FromDeleteResult(r registry.DeleteResult) DeleteDTO {
	dto := DeleteDTO{Deleted: FromDomainRecord(r.Record)}
	if len(r.Faults) > 0 {
		dto.Faults = FromDomainFaults(r.Faults)
	}
	return dto
}

// FromError converts any registry error to a DTO.
func FromError(err error) ErrorDTO {
	dto := ErrorDTO{
		Kind:    string(domain.KindOf(err)),
		Message: err.Error(),
	}

	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		dto.Fields = verr.FieldErrors
	}
	var ferr *domain.ConsistencyFaultError
	if errors.As(err, &ferr) {
		fault := FromDomainFault(ferr.Fault)
		dto.Fault = &fault
	}
	return dto
}

// SummarizeDocument builds the validate summary for doc.
func SummarizeDocument(doc *schema.Document) SummaryDTO {
	return SummaryDTO{
		Name:        doc.Name(),
		Description: doc.Metadata.Description,
		Version:     doc.Version,
		Author:      doc.Metadata.Author,
		Provider:    string(doc.LLMCredentials.Provider()),
		Model:       doc.LLMParameters.Model,
		Datasources: len(doc.DataContext.Datasources),
	}
}
