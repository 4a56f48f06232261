// Package registry is the configuration file registry. It owns the
// configuration directory and the catalog: every file write, identifier
// allocation and catalog change goes through a Registry.
package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/cbconfig/internal/cachemanager"
	"github.com/zjrosen/cbconfig/internal/log"
	"github.com/zjrosen/cbconfig/internal/pubsub"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

// DefaultCacheTTL bounds how long a validated document is reused without
// re-reading it. Entries are also dropped when the file's size or mtime
// changes.
const DefaultCacheTTL = time.Minute

// Options configures a Registry.
type Options struct {
	// Dir is the configuration directory. It is created if missing.
	Dir string
	// Catalog is required.
	Catalog domain.Catalog

	// Validator defaults to a new schema.Validator.
	Validator *schema.Validator
	// Tracer defaults to a no-op tracer.
	Tracer trace.Tracer
	// Broker receives a domain.Change for every mutation and fault. Optional.
	Broker *pubsub.Broker[domain.Change]

	CacheEnabled bool
	CacheTTL     time.Duration

	// StampTimestamps fills metadata.created on create and refreshes
	// metadata.modified on every write.
	StampTimestamps bool
	// Now defaults to time.Now.
	Now func() time.Time
}

// Registry implements list, get, create, update, rename and delete over a
// directory of NNNNNN.json files. All calls are serialised by one mutex.
type Registry struct {
	mu sync.Mutex

	files     documentStore
	catalog   domain.Catalog
	validator *schema.Validator
	tracer    trace.Tracer
	broker    *pubsub.Broker[domain.Change]
	docs      *cachemanager.ReadThroughCache[domain.Identifier, cachedDocument, domain.Identifier]
	cacheTTL  time.Duration
	stamp     bool
	now       func() time.Time
}

// cachedDocument is a validated document plus the file identity it was read
// from.
type cachedDocument struct {
	doc     *schema.Document
	size    int64
	modTime time.Time
}

func (c cachedDocument) matches(info fs.FileInfo) bool {
	return c.size == info.Size() && c.modTime.Equal(info.ModTime())
}

// DeleteResult reports what a successful Delete also noticed.
type DeleteResult struct {
	Record domain.Record
	// Faults holds a missing_file fault when the file was already gone.
	Faults []domain.Fault
}

// New opens a registry over opts.Dir and raises the catalog's allocated
// maximum to cover every NNNNNN.json already on disk.
func New(ctx context.Context, opts Options) (*Registry, error) {
	if opts.Dir == "" {
		return nil, errors.New("configuration directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, &domain.IOFailureError{Op: "create directory", Path: opts.Dir, Cause: err}
	}
	return newRegistry(ctx, opts, newFileStore(opts.Dir))
}

func newRegistry(ctx context.Context, opts Options, files documentStore) (*Registry, error) {
	if opts.Catalog == nil {
		return nil, errors.New("catalog is required")
	}

	r := &Registry{
		files:     files,
		catalog:   opts.Catalog,
		validator: opts.Validator,
		tracer:    opts.Tracer,
		broker:    opts.Broker,
		cacheTTL:  opts.CacheTTL,
		stamp:     opts.StampTimestamps,
		now:       opts.Now,
	}
	if r.validator == nil {
		r.validator = schema.NewValidator()
	}
	if r.tracer == nil {
		r.tracer = noop.NewTracerProvider().Tracer("registry")
	}
	if r.cacheTTL <= 0 {
		r.cacheTTL = DefaultCacheTTL
	}
	if r.now == nil {
		r.now = time.Now
	}

	r.docs = cachemanager.NewReadThroughCache[domain.Identifier, cachedDocument, domain.Identifier](
		cachemanager.NewInMemoryCacheManager[domain.Identifier, cachedDocument]("documents", r.cacheTTL, cachemanager.DefaultCleanupInterval),
		r.readDocument,
		!opts.CacheEnabled,
	)

	allocated, err := r.reconcile(ctx)
	if err != nil {
		return nil, err
	}
	log.Info(log.CatRegistry, "registry opened", "dir", files.Dir(), "allocated_max", allocated)
	return r, nil
}

// Dir returns the configuration directory.
func (r *Registry) Dir() string {
	return r.files.Dir()
}

// Path returns the file path for id, whether or not it exists.
func (r *Registry) Path(id domain.Identifier) string {
	return r.files.Path(id)
}

// Subscribe returns a channel of changes, closed when ctx is done. It
// returns nil when the registry has no broker.
func (r *Registry) Subscribe(ctx context.Context) <-chan pubsub.Event[domain.Change] {
	if r.broker == nil {
		return nil
	}
	return r.broker.Subscribe(ctx)
}

// List returns a lazy, restartable sequence of live records ordered by
// logical name (byte order) then identifier. Records carry no Document.
// Each iteration takes a fresh snapshot.
func (r *Registry) List(ctx context.Context) iter.Seq2[domain.Record, error] {
	return func(yield func(domain.Record, error) bool) {
		records, err := r.ListAll(ctx)
		if err != nil {
			yield(domain.Record{}, err)
			return
		}
		for _, rec := range records {
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// ListAll is List collected into a slice.
func (r *Registry) ListAll(ctx context.Context) (records []domain.Record, err error) {
	ctx, op := r.begin(ctx, opList)
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	records, err = r.catalog.List(ctx)
	if err != nil {
		return nil, catalogFailure("list catalog", 0, err)
	}
	op.annotate(attribute.Int(tracing.AttrRecordCount, len(records)))
	return records, nil
}

// Get returns the record for id with its document loaded from disk.
func (r *Registry) Get(ctx context.Context, id domain.Identifier) (rec domain.Record, err error) {
	ctx, op := r.begin(ctx, opGet, attribute.String(tracing.AttrIdentifier, id.String()))
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err = r.catalog.FindByIdentifier(ctx, id)
	if err != nil {
		return domain.Record{}, catalogFailure("find configuration", id, err)
	}
	return r.attachDocument(ctx, op, rec)
}

// GetByName returns the live record holding the logical name.
func (r *Registry) GetByName(ctx context.Context, name string) (rec domain.Record, err error) {
	ctx, op := r.begin(ctx, opGet, attribute.String(tracing.AttrName, name))
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, err = r.catalog.FindByName(ctx, name)
	if err != nil {
		return domain.Record{}, catalogFailure("find configuration", 0, err)
	}
	op.annotate(attribute.String(tracing.AttrIdentifier, rec.Identifier.String()))
	return r.attachDocument(ctx, op, rec)
}

func (r *Registry) attachDocument(ctx context.Context, op *operation, rec domain.Record) (domain.Record, error) {
	doc, err := r.loadDocument(ctx, op, rec)
	if err != nil {
		return domain.Record{}, err
	}
	if doc.Name() != rec.LogicalName {
		fault := domain.Fault{
			Kind:        domain.FaultNameDrift,
			Identifier:  rec.Identifier,
			CatalogName: rec.LogicalName,
			FileName:    doc.Name(),
		}
		r.reportFault(op, fault)
		return domain.Record{}, &domain.ConsistencyFaultError{Fault: fault}
	}
	rec.Document = doc.Clone()
	return rec, nil
}

// Create validates raw (JSON or YAML), allocates the next identifier and
// writes NNNNNN.json. A failure after allocation still consumes the
// identifier.
func (r *Registry) Create(ctx context.Context, raw []byte) (rec domain.Record, err error) {
	ctx, op := r.begin(ctx, opCreate)
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.validator.Validate(raw)
	if err != nil {
		return domain.Record{}, validationFailure(0, err)
	}
	op.event(tracing.EventDocumentValidated)
	op.annotate(attribute.String(tracing.AttrName, doc.Name()))

	if err := r.ensureNameFree(ctx, doc.Name(), 0); err != nil {
		return domain.Record{}, err
	}

	// Files copied in while the registry was running still count.
	if _, err := r.reconcile(ctx); err != nil {
		return domain.Record{}, err
	}
	id, err := r.catalog.Allocate(ctx)
	if err != nil {
		return domain.Record{}, catalogFailure("allocate identifier", 0, err)
	}
	allocatedMax.Set(float64(id))
	op.annotate(attribute.String(tracing.AttrIdentifier, id.String()))
	op.event(tracing.EventIdentifierAllocated)

	r.stampCreated(doc)
	data, err := schema.Render(doc)
	if err != nil {
		return domain.Record{}, fmt.Errorf("rendering configuration %s: %w", id, err)
	}

	if err := r.files.Write(id, data); err != nil {
		return domain.Record{}, &domain.IOFailureError{Op: "write", Path: r.files.Path(id), Identifier: id, Cause: err}
	}
	op.event(tracing.EventFileWritten)

	if err := r.catalog.Insert(ctx, domain.NewRecord(id, doc)); err != nil {
		if rmErr := r.files.Remove(id); rmErr != nil {
			log.ErrorErr(log.CatRegistry, "failed to remove file after catalog insert failed", rmErr, "identifier", id.String())
		}
		return domain.Record{}, catalogFailure("insert catalog row", id, err)
	}
	op.event(tracing.EventCatalogCommitted)

	rec = r.committed(ctx, id, doc)
	log.Info(log.CatRegistry, "configuration created", "identifier", id.String(), "name", doc.Name())
	r.publish(pubsub.CreatedEvent, domain.Change{Kind: domain.ChangeCreated, Identifier: id, Name: doc.Name()})
	return rec, nil
}

// Update replaces the document for id with raw. The catalog name follows the
// new document's metadata.name, so an update may also rename.
func (r *Registry) Update(ctx context.Context, id domain.Identifier, raw []byte) (rec domain.Record, err error) {
	ctx, op := r.begin(ctx, opUpdate, attribute.String(tracing.AttrIdentifier, id.String()))
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.catalog.FindByIdentifier(ctx, id)
	if err != nil {
		return domain.Record{}, catalogFailure("find configuration", id, err)
	}

	doc, err := r.validator.Validate(raw)
	if err != nil {
		return domain.Record{}, validationFailure(id, err)
	}
	op.event(tracing.EventDocumentValidated)

	return r.commit(ctx, op, current, doc)
}

// Rename sets metadata.name of the stored document to newName. Renaming to
// the current name succeeds without writing anything and returns the record
// with its document, unless the file disagrees with the catalog, in which
// case the file is rewritten.
func (r *Registry) Rename(ctx context.Context, id domain.Identifier, newName string) (rec domain.Record, err error) {
	ctx, op := r.begin(ctx, opRename,
		attribute.String(tracing.AttrIdentifier, id.String()),
		attribute.String(tracing.AttrName, newName),
	)
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.catalog.FindByIdentifier(ctx, id)
	if err != nil {
		return domain.Record{}, catalogFailure("find configuration", id, err)
	}
	if err := r.ensureNameFree(ctx, newName, id); err != nil {
		return domain.Record{}, err
	}

	stored, err := r.loadDocument(ctx, op, current)
	if err != nil {
		return domain.Record{}, err
	}
	if newName == current.LogicalName && stored.Name() == newName {
		log.Debug(log.CatRegistry, "rename to current name ignored", "identifier", id.String(), "name", newName)
		current.Document = stored.Clone()
		return current, nil
	}
	doc := stored.Clone()
	doc.SetName(newName)
	if err := r.validator.Check(doc); err != nil {
		return domain.Record{}, validationFailure(id, err)
	}
	op.event(tracing.EventDocumentValidated)

	return r.commit(ctx, op, current, doc)
}

// commit writes doc as the new content of current and re-derives the catalog
// row from it. If the catalog update fails the previous file is put back.
func (r *Registry) commit(ctx context.Context, op *operation, current domain.Record, doc *schema.Document) (domain.Record, error) {
	id := current.Identifier
	if err := r.ensureNameFree(ctx, doc.Name(), id); err != nil {
		return domain.Record{}, err
	}

	previous, err := r.files.Read(id)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// The write below recreates the file; still worth reporting.
		r.reportFault(op, domain.Fault{Kind: domain.FaultMissingFile, Identifier: id, CatalogName: current.LogicalName})
		previous = nil
	case err != nil:
		return domain.Record{}, &domain.IOFailureError{Op: "read", Path: r.files.Path(id), Identifier: id, Cause: err}
	}

	r.stampModified(doc, previous)
	data, err := schema.Render(doc)
	if err != nil {
		return domain.Record{}, fmt.Errorf("rendering configuration %s: %w", id, err)
	}

	if err := r.files.Write(id, data); err != nil {
		return domain.Record{}, &domain.IOFailureError{Op: "write", Path: r.files.Path(id), Identifier: id, Cause: err}
	}
	op.event(tracing.EventFileWritten)

	if err := r.catalog.Update(ctx, domain.NewRecord(id, doc)); err != nil {
		r.rollbackWrite(op, id, previous)
		return domain.Record{}, catalogFailure("update catalog row", id, err)
	}
	op.event(tracing.EventCatalogCommitted)

	rec := r.committed(ctx, id, doc)
	change := domain.Change{Kind: domain.ChangeUpdated, Identifier: id, Name: doc.Name()}
	eventType := pubsub.UpdatedEvent
	if doc.Name() != current.LogicalName {
		change.Kind = domain.ChangeRenamed
		change.PreviousName = current.LogicalName
		eventType = pubsub.RenamedEvent
		op.annotate(attribute.String(tracing.AttrPreviousName, current.LogicalName))
	}
	log.Info(log.CatRegistry, "configuration "+string(change.Kind),
		"identifier", id.String(), "name", doc.Name(), "previous", current.LogicalName)
	r.publish(eventType, change)
	return rec, nil
}

func (r *Registry) rollbackWrite(op *operation, id domain.Identifier, previous []byte) {
	var err error
	if previous == nil {
		err = r.files.Remove(id)
	} else {
		err = r.files.Write(id, previous)
	}
	if err != nil {
		log.ErrorErr(log.CatRegistry, "failed to restore file after catalog update failed", err, "identifier", id.String())
		return
	}
	op.event(tracing.EventFileRestored)
	_ = r.docs.Invalidate(context.Background(), id)
}

// Delete removes the file for id and retires its catalog row. The
// identifier is never handed out again. A file that was already missing is
// reported in the result rather than failing the call.
func (r *Registry) Delete(ctx context.Context, id domain.Identifier) (result DeleteResult, err error) {
	ctx, op := r.begin(ctx, opDelete, attribute.String(tracing.AttrIdentifier, id.String()))
	defer func() { op.end(err) }()

	r.mu.Lock()
	defer r.mu.Unlock()

	current, err := r.catalog.FindByIdentifier(ctx, id)
	if err != nil {
		return DeleteResult{}, catalogFailure("find configuration", id, err)
	}
	op.annotate(attribute.String(tracing.AttrName, current.LogicalName))

	trashPath, err := r.files.Trash(id)
	missing := errors.Is(err, fs.ErrNotExist)
	if err != nil && !missing {
		return DeleteResult{}, &domain.IOFailureError{Op: "remove", Path: r.files.Path(id), Identifier: id, Cause: err}
	}

	if err := r.catalog.Tombstone(ctx, id); err != nil {
		if !missing {
			if rerr := r.files.Restore(id, trashPath); rerr != nil {
				log.ErrorErr(log.CatRegistry, "failed to restore file after tombstone failed", rerr, "identifier", id.String(), "trash", trashPath)
			}
		}
		return DeleteResult{}, catalogFailure("tombstone catalog row", id, err)
	}
	op.event(tracing.EventCatalogCommitted)

	if !missing {
		if err := r.files.Purge(trashPath); err != nil {
			log.Warn(log.CatFiles, "failed to purge deleted file", "path", trashPath, "error", err)
		}
	}
	_ = r.docs.Invalidate(ctx, id)

	result = DeleteResult{Record: current}
	if missing {
		fault := domain.Fault{
			Kind:        domain.FaultMissingFile,
			Identifier:  id,
			CatalogName: current.LogicalName,
			Detail:      "file was already gone at delete",
		}
		r.reportFault(op, fault)
		result.Faults = append(result.Faults, fault)
	}

	log.Info(log.CatRegistry, "configuration deleted", "identifier", id.String(), "name", current.LogicalName)
	r.publish(pubsub.DeletedEvent, domain.Change{Kind: domain.ChangeDeleted, Identifier: id, Name: current.LogicalName})
	return result, nil
}

// Invalidate drops any cached document for ids. The directory watcher calls
// it when files change underneath the registry.
func (r *Registry) Invalidate(ctx context.Context, ids ...domain.Identifier) {
	if err := r.docs.Invalidate(ctx, ids...); err != nil {
		log.Warn(log.CatCache, "cache invalidation failed", "error", err)
	}
}

// Close releases the catalog. The registry must not be used afterwards.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_ = r.docs.Reset(context.Background())
	return r.catalog.Close()
}

func (r *Registry) begin(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, *operation) {
	ctx, span := tracing.StartOperation(ctx, r.tracer, name, attrs...)
	return ctx, &operation{name: name, span: span, start: time.Now()}
}

// reconcile raises the allocated maximum to the highest file on disk.
func (r *Registry) reconcile(ctx context.Context) (int, error) {
	ids, err := r.files.Scan()
	if err != nil {
		return 0, &domain.IOFailureError{Op: "scan", Path: r.files.Dir(), Cause: err}
	}
	observed := 0
	if len(ids) > 0 {
		observed = int(ids[len(ids)-1])
	}

	allocated, err := r.catalog.ReconcileAllocated(ctx, observed)
	if err != nil {
		return 0, catalogFailure("reconcile allocator", 0, err)
	}
	allocatedMax.Set(float64(allocated))
	return allocated, nil
}

// loadDocument returns the validated document for rec, served from the cache
// when the file is unchanged. The returned document is shared; clone before
// mutating.
func (r *Registry) loadDocument(ctx context.Context, op *operation, rec domain.Record) (*schema.Document, error) {
	id := rec.Identifier
	info, err := r.files.Stat(id)
	if errors.Is(err, fs.ErrNotExist) {
		_ = r.docs.Invalidate(ctx, id)
		fault := domain.Fault{Kind: domain.FaultMissingFile, Identifier: id, CatalogName: rec.LogicalName, Cause: err}
		r.reportFault(op, fault)
		return nil, &domain.ConsistencyFaultError{Fault: fault}
	}
	if err != nil {
		return nil, &domain.IOFailureError{Op: "stat", Path: r.files.Path(id), Identifier: id, Cause: err}
	}

	entry, err := r.docs.Get(ctx, id, id, r.cacheTTL)
	if err == nil && !entry.matches(info) {
		_ = r.docs.Invalidate(ctx, id)
		entry, err = r.docs.Get(ctx, id, id, r.cacheTTL)
	}
	if err != nil {
		var fault *domain.ConsistencyFaultError
		if errors.As(err, &fault) {
			fault.Fault.CatalogName = rec.LogicalName
			r.reportFault(op, fault.Fault)
		}
		return nil, err
	}
	return entry.doc, nil
}

// readDocument is the cache loader.
func (r *Registry) readDocument(_ context.Context, id domain.Identifier) (cachedDocument, error) {
	info, err := r.files.Stat(id)
	if err != nil {
		return cachedDocument{}, r.readFailure(id, err)
	}
	raw, err := r.files.Read(id)
	if err != nil {
		return cachedDocument{}, r.readFailure(id, err)
	}

	doc, err := r.validator.Validate(raw)
	if err != nil {
		return cachedDocument{}, &domain.ConsistencyFaultError{Fault: domain.Fault{
			Kind:       domain.FaultInvalidDocument,
			Identifier: id,
			Detail:     err.Error(),
			Cause:      err,
		}}
	}
	return cachedDocument{doc: doc, size: info.Size(), modTime: info.ModTime()}, nil
}

func (r *Registry) readFailure(id domain.Identifier, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return &domain.ConsistencyFaultError{Fault: domain.Fault{Kind: domain.FaultMissingFile, Identifier: id, Cause: err}}
	}
	return &domain.IOFailureError{Op: "read", Path: r.files.Path(id), Identifier: id, Cause: err}
}

// committed caches doc as the content of id and returns the fresh catalog
// row with the document attached.
func (r *Registry) committed(ctx context.Context, id domain.Identifier, doc *schema.Document) domain.Record {
	if info, err := r.files.Stat(id); err == nil {
		r.docs.Put(ctx, id, cachedDocument{doc: doc.Clone(), size: info.Size(), modTime: info.ModTime()}, r.cacheTTL)
	} else {
		_ = r.docs.Invalidate(ctx, id)
	}

	rec, err := r.catalog.FindByIdentifier(ctx, id)
	if err != nil {
		log.Warn(log.CatCatalog, "failed to re-read committed row", "identifier", id.String(), "error", err)
		rec = domain.NewRecord(id, doc)
	}
	rec.Document = doc.Clone()
	return rec
}

// ensureNameFree fails with DuplicateNameError if a live record other than
// self holds name.
func (r *Registry) ensureNameFree(ctx context.Context, name string, self domain.Identifier) error {
	holder, err := r.catalog.FindByName(ctx, name)
	var notFound *domain.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return nil
	case err != nil:
		return catalogFailure("look up name", self, err)
	case holder.Identifier == self:
		return nil
	default:
		return &domain.DuplicateNameError{Name: name, Existing: holder.Identifier}
	}
}

func (r *Registry) stampCreated(doc *schema.Document) {
	if !r.stamp {
		return
	}
	now := r.now()
	if doc.Metadata.Created == nil {
		doc.Metadata.Created = schema.NewTimestamp(now)
	}
	if doc.Metadata.Modified == nil {
		doc.Metadata.Modified = schema.NewTimestamp(now)
	}
}

// stampModified keeps metadata.created from the stored file when it has one
// and sets metadata.modified to now.
func (r *Registry) stampModified(doc *schema.Document, previous []byte) {
	if !r.stamp {
		return
	}
	now := r.now()
	if previous != nil {
		if stored, err := r.validator.Validate(previous); err == nil && stored.Metadata.Created != nil {
			created := *stored.Metadata.Created
			doc.Metadata.Created = &created
		}
	}
	if doc.Metadata.Created == nil {
		doc.Metadata.Created = schema.NewTimestamp(now)
	}
	doc.Metadata.Modified = schema.NewTimestamp(now)
}

func (r *Registry) reportFault(op *operation, fault domain.Fault) {
	faultsTotal.WithLabelValues(string(fault.Kind)).Inc()
	op.event(tracing.EventFaultDetected,
		attribute.String(tracing.AttrFaultKind, string(fault.Kind)),
		attribute.String(tracing.AttrIdentifier, fault.Identifier.String()),
	)
	log.Warn(log.CatRegistry, "consistency fault", "fault", fault.String())
	faultCopy := fault
	r.publish(pubsub.FaultEvent, domain.Change{
		Kind:       domain.ChangeFault,
		Identifier: fault.Identifier,
		Name:       fault.CatalogName,
		Fault:      &faultCopy,
	})
}

func (r *Registry) publish(eventType pubsub.EventType, change domain.Change) {
	if r.broker == nil {
		return
	}
	r.broker.Publish(eventType, change)
}

func validationFailure(id domain.Identifier, err error) error {
	var verr *schema.ValidationError
	if errors.As(err, &verr) {
		return &domain.ValidationError{Identifier: id, Cause: verr}
	}
	return fmt.Errorf("validating configuration: %w", err)
}

// catalogFailure passes typed domain errors through and wraps anything else
// as an IOFailureError.
func catalogFailure(op string, id domain.Identifier, err error) error {
	var kinded domain.Kinded
	if errors.As(err, &kinded) {
		return err
	}
	return &domain.IOFailureError{Op: op, Identifier: id, Cause: err}
}
