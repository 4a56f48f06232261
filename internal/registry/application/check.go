package registry

import (
	"cmp"
	"context"
	"errors"
	"io/fs"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

// Report is the outcome of a consistency check.
type Report struct {
	Records int // live catalog rows examined
	Files   int // NNNNNN.json files found
	Faults  []domain.Fault
}

// OK reports whether the catalog and the directory agree.
func (r Report) OK() bool {
	return len(r.Faults) == 0
}

// Check compares every live catalog row with its file and every file with the
// catalog. Faults are reported and published; nothing is repaired. Check
// reads from disk and ignores the document cache.
func (r *Registry) Check(ctx context.Context) (report Report, err error) {
	ctx, op := r.begin(ctx, opCheck)
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.catalog.List(ctx)
	if err != nil {
		return Report{}, catalogFailure("list catalog", 0, err)
	}
	onDisk, err := r.files.Scan()
	if err != nil {
		return Report{}, &domain.IOFailureError{Op: "scan", Path: r.files.Dir(), Cause: err}
	}
	report = Report{Records: len(records), Files: len(onDisk)}

	live := make(map[domain.Identifier]bool, len(records))
	for _, rec := range records {
		live[rec.Identifier] = true
		if fault, ok := r.checkRecord(rec); ok {
			report.Faults = append(report.Faults, fault)
		}
	}
	for _, id := range onDisk {
		if !live[id] {
			report.Faults = append(report.Faults, domain.Fault{
				Kind:       domain.FaultOrphanFile,
				Identifier: id,
				Detail:     "no live catalog record",
			})
		}
	}

	slices.SortFunc(report.Faults, func(a, b domain.Fault) int {
		return cmp.Or(cmp.Compare(a.Identifier, b.Identifier), cmp.Compare(a.Kind, b.Kind))
	})
	for _, fault := range report.Faults {
		_ = r.docs.Invalidate(ctx, fault.Identifier)
		r.reportFault(op, fault)
	}

	op.annotate(
		attribute.Int(tracing.AttrRecordCount, report.Records),
		attribute.Int(tracing.AttrFaultCount, len(report.Faults)),
	)
	log.Info(log.CatRegistry, "consistency check finished",
		"records", report.Records, "files", report.Files, "faults", len(report.Faults))
	return report, nil
}

func (r *Registry) checkRecord(rec domain.Record) (domain.Fault, bool) {
	fault := domain.Fault{Identifier: rec.Identifier, CatalogName: rec.LogicalName}

	raw, err := r.files.Read(rec.Identifier)
	if errors.Is(err, fs.ErrNotExist) {
		fault.Kind = domain.FaultMissingFile
		fault.Cause = err
		return fault, true
	}
	if err != nil {
		fault.Kind = domain.FaultInvalidDocument
		fault.Detail = "unreadable: " + err.Error()
		fault.Cause = err
		return fault, true
	}

	doc, err := r.validator.Validate(raw)
	if err != nil {
		fault.Kind = domain.FaultInvalidDocument
		fault.Detail = err.Error()
		fault.Cause = err
		return fault, true
	}
	if doc.Name() != rec.LogicalName {
		fault.Kind = domain.FaultNameDrift
		fault.FileName = doc.Name()
		return fault, true
	}
	return domain.Fault{}, false
}
