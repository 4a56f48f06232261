package domain

import (
	"time"

	"github.com/zjrosen/cbconfig/internal/schema"
)

// Summary is the denormalised part of a record kept in the catalog so that
// listing never has to open files. It is always derived from the document.
type Summary struct {
	Description string
	Author      string
	Version     string
	Provider    schema.Provider
	Model       string
	Created     *time.Time // metadata.created
	Modified    *time.Time // metadata.modified
}

// SummaryOf derives a Summary from a validated document.
func SummaryOf(doc *schema.Document) Summary {
	s := Summary{
		Description: doc.Metadata.Description,
		Author:      doc.Metadata.Author,
		Version:     doc.Version,
		Provider:    doc.LLMCredentials.Provider(),
		Model:       doc.LLMParameters.Model,
	}
	if doc.Metadata.Created != nil {
		t := doc.Metadata.Created.Time
		s.Created = &t
	}
	if doc.Metadata.Modified != nil {
		t := doc.Metadata.Modified.Time
		s.Modified = &t
	}
	return s
}

// Record is one configuration: its identifier, its logical name and the
// cached summary. Document is populated by Get and nil in listings.
type Record struct {
	Identifier  Identifier
	LogicalName string
	Summary     Summary
	CreatedAt   time.Time // catalog row creation
	UpdatedAt   time.Time // last catalog write
	Document    *schema.Document
}

// NewRecord builds the record for doc stored under id. The logical name is
// always taken from the document so the two cannot diverge.
func NewRecord(id Identifier, doc *schema.Document) Record {
	return Record{
		Identifier:  id,
		LogicalName: doc.Name(),
		Summary:     SummaryOf(doc),
		Document:    doc,
	}
}

// Filename returns the record's on-disk file name.
func (r Record) Filename() string {
	return r.Identifier.Filename()
}

// ChangeKind identifies what happened to a record.
type ChangeKind string

const (
	ChangeCreated ChangeKind = "created"
	ChangeUpdated ChangeKind = "updated"
	ChangeRenamed ChangeKind = "renamed"
	ChangeDeleted ChangeKind = "deleted"
	ChangeFault   ChangeKind = "fault"
)

// Change is published after every successful mutation and for every fault
// the registry detects.
type Change struct {
	Kind         ChangeKind
	Identifier   Identifier
	Name         string
	PreviousName string // set when the logical name changed
	Fault        *Fault
}
