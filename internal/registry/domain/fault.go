package domain

import "fmt"

// FaultKind names a way the catalog and the directory can disagree.
type FaultKind string

const (
	// FaultMissingFile: a live catalog row has no file.
	FaultMissingFile FaultKind = "missing_file"
	// FaultInvalidDocument: the file exists but no longer validates.
	FaultInvalidDocument FaultKind = "invalid_document"
	// FaultNameDrift: the file's embedded name differs from the catalog name.
	FaultNameDrift FaultKind = "name_drift"
	// FaultOrphanFile: a NNNNNN.json file has no live catalog row.
	FaultOrphanFile FaultKind = "orphan_file"
)

// Fault is a detected inconsistency. Faults are reported, never repaired
// automatically.
type Fault struct {
	Kind        FaultKind
	Identifier  Identifier
	CatalogName string // empty for orphans
	FileName    string // embedded name, when the file could be read
	Detail      string
	Cause       error
}

func (f Fault) String() string {
	s := fmt.Sprintf("%s: configuration %s", f.Kind, f.Identifier)
	switch f.Kind {
	case FaultNameDrift:
		s += fmt.Sprintf(" (catalog %q, file %q)", f.CatalogName, f.FileName)
	case FaultMissingFile, FaultInvalidDocument:
		if f.CatalogName != "" {
			s += fmt.Sprintf(" (%q)", f.CatalogName)
		}
	}
	if f.Detail != "" {
		s += ": " + f.Detail
	}
	return s
}
