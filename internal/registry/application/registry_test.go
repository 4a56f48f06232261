package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"pgregory.net/rapid"

	"github.com/zjrosen/cbconfig/internal/infrastructure/sqlite"
	"github.com/zjrosen/cbconfig/internal/pubsub"
	"github.com/zjrosen/cbconfig/internal/registry/domain"
	"github.com/zjrosen/cbconfig/internal/schema"
	"github.com/zjrosen/cbconfig/internal/testutil"
	"github.com/zjrosen/cbconfig/internal/tracing"
)

var t0 = time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)

type harness struct {
	dir    string
	dbPath string
	db     *sqlite.DB
	broker *pubsub.Broker[domain.Change]
	reg    *Registry
	now    time.Time

	wrapCatalog func(domain.Catalog) domain.Catalog
	wrapStore   func(documentStore) documentStore
	options     func(*Options)
}

type harnessOption func(*harness)

func withCatalog(wrap func(domain.Catalog) domain.Catalog) harnessOption {
	return func(h *harness) { h.wrapCatalog = wrap }
}

func withStore(wrap func(documentStore) documentStore) harnessOption {
	return func(h *harness) { h.wrapStore = wrap }
}

func withOptions(fn func(*Options)) harnessOption {
	return func(h *harness) { h.options = fn }
}

func newHarness(t *testing.T, opts ...harnessOption) *harness {
	t.Helper()
	root := t.TempDir()
	h := &harness{
		dir:    filepath.Join(root, "configs"),
		dbPath: filepath.Join(root, "state", "catalog.db"),
		now:    t0,
	}
	for _, opt := range opts {
		opt(h)
	}
	require.NoError(t, os.MkdirAll(h.dir, 0o755))
	h.open(t)
	return h
}

func (h *harness) open(t *testing.T) {
	t.Helper()
	db, err := sqlite.NewDB(h.dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	h.db = db

	h.broker = pubsub.NewBrokerWithBuffer[domain.Change](64)
	t.Cleanup(h.broker.Close)

	catalog := db.CatalogRepository()
	if h.wrapCatalog != nil {
		catalog = h.wrapCatalog(catalog)
	}
	var store documentStore = newFileStore(h.dir)
	if h.wrapStore != nil {
		store = h.wrapStore(store)
	}

	o := Options{
		Dir:             h.dir,
		Catalog:         catalog,
		Broker:          h.broker,
		CacheEnabled:    true,
		StampTimestamps: true,
		Now:             func() time.Time { return h.now },
	}
	if h.options != nil {
		h.options(&o)
	}
	reg, err := newRegistry(context.Background(), o, store)
	require.NoError(t, err)
	h.reg = reg
}

func (h *harness) reopen(t *testing.T) {
	t.Helper()
	require.NoError(t, h.reg.Close())
	require.NoError(t, h.db.Close())
	h.open(t)
}

func (h *harness) create(t *testing.T, name string, opts ...testutil.DocOption) domain.Record {
	t.Helper()
	rec, err := h.reg.Create(context.Background(), testutil.Doc(t, name, opts...))
	require.NoError(t, err)
	return rec
}

func (h *harness) allocatedMax(t *testing.T) int {
	t.Helper()
	allocated, err := h.db.CatalogRepository().AllocatedMax(context.Background())
	require.NoError(t, err)
	return allocated
}

func (h *harness) names(t *testing.T) []string {
	t.Helper()
	records, err := h.reg.ListAll(context.Background())
	require.NoError(t, err)
	names := make([]string, 0, len(records))
	for _, rec := range records {
		names = append(names, rec.LogicalName)
	}
	return names
}

// dirNames lists every entry in the configuration directory, hidden ones
// included.
func (h *harness) dirNames(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// fileDocument validates the file on disk for id.
func (h *harness) fileDocument(t *testing.T, id domain.Identifier) *schema.Document {
	t.Helper()
	doc, err := schema.Validate(testutil.ReadFile(t, h.dir, id.Filename()))
	require.NoError(t, err)
	return doc
}

func nextChange(t *testing.T, ch <-chan pubsub.Event[domain.Change]) pubsub.Event[domain.Change] {
	t.Helper()
	select {
	case evt := <-ch:
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for change")
		return pubsub.Event[domain.Change]{}
	}
}

type failingCatalog struct {
	domain.Catalog
	insertErr    error
	updateErr    error
	tombstoneErr error
	listErr      error
}

func (c *failingCatalog) Insert(ctx context.Context, rec domain.Record) error {
	if c.insertErr != nil {
		return c.insertErr
	}
	return c.Catalog.Insert(ctx, rec)
}

func (c *failingCatalog) Update(ctx context.Context, rec domain.Record) error {
	if c.updateErr != nil {
		return c.updateErr
	}
	return c.Catalog.Update(ctx, rec)
}

func (c *failingCatalog) Tombstone(ctx context.Context, id domain.Identifier) error {
	if c.tombstoneErr != nil {
		return c.tombstoneErr
	}
	return c.Catalog.Tombstone(ctx, id)
}

func (c *failingCatalog) List(ctx context.Context) ([]domain.Record, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.Catalog.List(ctx)
}

type faultyStore struct {
	documentStore
	writeErr error
	trashErr error
}

func (s *faultyStore) Write(id domain.Identifier, data []byte) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	return s.documentStore.Write(id, data)
}

func (s *faultyStore) Trash(id domain.Identifier) (string, error) {
	if s.trashErr != nil {
		return "", s.trashErr
	}
	return s.documentStore.Trash(id)
}

func TestNew_RequiresDirAndCatalog(t *testing.T) {
	_, err := New(context.Background(), Options{})
	require.ErrorContains(t, err, "directory is required")

	_, err = New(context.Background(), Options{Dir: t.TempDir()})
	require.ErrorContains(t, err, "catalog is required")
}

func TestNew_CreatesDirectory(t *testing.T) {
	root := t.TempDir()
	db, err := sqlite.NewDB(filepath.Join(root, "catalog.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir := filepath.Join(root, "nested", "configs")
	reg, err := New(context.Background(), Options{Dir: dir, Catalog: db.CatalogRepository()})
	require.NoError(t, err)
	require.Equal(t, dir, reg.Dir())
	require.Equal(t, filepath.Join(dir, "000004.json"), reg.Path(4))
	require.DirExists(t, dir)
}

func TestRegistry_CreateAssignsSequentialFiles(t *testing.T) {
	h := newHarness(t)

	alpha := h.create(t, "alpha", testutil.Description("first"))
	beta := h.create(t, "beta", testutil.Bedrock())

	require.Equal(t, domain.Identifier(1), alpha.Identifier)
	require.Equal(t, domain.Identifier(2), beta.Identifier)
	require.True(t, testutil.Exists(t, h.dir, "000001.json"))
	require.True(t, testutil.Exists(t, h.dir, "000002.json"))

	require.Equal(t, "alpha", alpha.LogicalName)
	require.Equal(t, "first", alpha.Summary.Description)
	require.Equal(t, schema.ProviderOpenAI, alpha.Summary.Provider)
	require.Equal(t, schema.ProviderAnthropicBedrock, beta.Summary.Provider)
	require.NotNil(t, alpha.Document)
	require.Equal(t, "alpha", alpha.Document.Name())
	require.False(t, alpha.CreatedAt.IsZero())

	doc := h.fileDocument(t, 1)
	require.Equal(t, "alpha", doc.Name())
	require.NotNil(t, doc.Metadata.Created)
	require.True(t, doc.Metadata.Created.Equal(t0))
	require.True(t, doc.Metadata.Modified.Equal(t0))
	require.Equal(t, 2, h.allocatedMax(t))
}

func TestRegistry_CreateKeepsSuppliedTimestamps(t *testing.T) {
	h := newHarness(t)
	created := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

	h.create(t, "alpha", testutil.Created(created))

	doc := h.fileDocument(t, 1)
	require.True(t, doc.Metadata.Created.Equal(created))
	require.True(t, doc.Metadata.Modified.Equal(t0))
}

func TestRegistry_CreateWithoutStamping(t *testing.T) {
	h := newHarness(t, withOptions(func(o *Options) { o.StampTimestamps = false }))

	h.create(t, "alpha")

	doc := h.fileDocument(t, 1)
	require.Nil(t, doc.Metadata.Created)
	require.Nil(t, doc.Metadata.Modified)
}

func TestRegistry_CreateAcceptsYAML(t *testing.T) {
	h := newHarness(t)

	rec, err := h.reg.Create(context.Background(), testutil.DocYAML(t, "from-yaml"))
	require.NoError(t, err)
	require.Equal(t, "from-yaml", rec.LogicalName)

	raw := testutil.ReadFile(t, h.dir, "000001.json")
	require.True(t, json.Valid(raw), "stored file must be JSON")
	require.Equal(t, schema.FormatJSON, schema.DetectFormat(raw))
}

func TestRegistry_DeletedIdentifierIsNeverReused(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	h.create(t, "alpha")
	h.create(t, "beta")

	_, err := h.reg.Delete(ctx, 1)
	require.NoError(t, err)

	gamma := h.create(t, "gamma")
	require.Equal(t, domain.Identifier(3), gamma.Identifier)
	require.True(t, testutil.Exists(t, h.dir, "000003.json"))
	require.False(t, testutil.Exists(t, h.dir, "000001.json"))

	// Deleting the current maximum must not hand it out again either.
	_, err = h.reg.Delete(ctx, 3)
	require.NoError(t, err)
	h.reopen(t)

	delta := h.create(t, "delta")
	require.Equal(t, domain.Identifier(4), delta.Identifier)
}

func TestRegistry_DuplicateCreateWritesNothing(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alpha")
	h.create(t, "beta")

	_, err := h.reg.Create(context.Background(), testutil.Doc(t, "beta", testutil.Description("another")))

	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "beta", dup.Name)
	require.Equal(t, domain.Identifier(2), dup.Existing)
	require.Equal(t, domain.KindDuplicateName, domain.KindOf(err))
	require.False(t, testutil.Exists(t, h.dir, "000003.json"))
	require.Equal(t, 2, h.allocatedMax(t))
}

func TestRegistry_CreateRejectsInvalidName(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alpha")

	_, err := h.reg.Create(context.Background(), testutil.Doc(t, "Alpha"))
	require.Equal(t, domain.KindValidation, domain.KindOf(err))

	h.create(t, "alpha-2")
	require.Equal(t, []string{"alpha", "alpha-2"}, h.names(t))
}

func TestRegistry_MalformedCreateLeavesCounterUntouched(t *testing.T) {
	h := newHarness(t)

	_, err := h.reg.Create(context.Background(), testutil.MalformedJSON)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, domain.KindValidation, domain.KindOf(err))
	require.Empty(t, h.dirNames(t))
	require.Equal(t, 0, h.allocatedMax(t))

	_, err = h.reg.Create(context.Background(), testutil.Doc(t, "alpha", testutil.Remove("metadata.author")))
	require.ErrorAs(t, err, &verr)
	require.NotEmpty(t, verr.FieldErrors())
	require.True(t, verr.Cause.Has("metadata.author"))
	require.Equal(t, 0, h.allocatedMax(t))

	first := h.create(t, "alpha")
	require.Equal(t, domain.Identifier(1), first.Identifier)
}

func TestRegistry_CreateRejectsJSONWithTrailingData(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		raw  []byte
	}{
		{"second object", append(testutil.Doc(t, "alpha"), `{"x":1}`...)},
		{"stray brace", append(testutil.Doc(t, "beta"), '}')},
		{"unclosed object", []byte(`{"version": "1.0.0"`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.reg.Create(context.Background(), tt.raw)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Empty(t, h.dirNames(t))
			require.Equal(t, 0, h.allocatedMax(t))
		})
	}
}

func TestRegistry_ConcurrentCreatesOfOneName(t *testing.T) {
	h := newHarness(t)
	raw := testutil.Doc(t, "shared")

	const workers = 16
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.reg.Create(context.Background(), raw)
		}()
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		require.Equal(t, domain.KindDuplicateName, domain.KindOf(err))
	}
	require.Equal(t, 1, successes)
	require.Equal(t, []string{"shared"}, h.names(t))
	require.Equal(t, []string{"000001.json"}, h.dirNames(t))
	require.Equal(t, 1, h.allocatedMax(t))
}

func TestRegistry_ConcurrentCreatesOfDistinctNames(t *testing.T) {
	h := newHarness(t)

	const workers = 16
	docs := make([][]byte, workers)
	for i := range workers {
		docs[i] = testutil.Doc(t, fmt.Sprintf("bot-%02d", i))
	}
	ids := make([]domain.Identifier, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := h.reg.Create(context.Background(), docs[i])
			ids[i], errs[i] = rec.Identifier, err
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	slices.Sort(ids)
	for i, id := range ids {
		require.Equal(t, domain.Identifier(i+1), id)
	}
	require.Len(t, h.dirNames(t), workers)
	require.Equal(t, workers, h.allocatedMax(t))

	records, err := h.reg.ListAll(context.Background())
	require.NoError(t, err)
	assertConsistent(t, h, records)
}

func TestRegistry_ConcurrentRenamesKeepNamesUnique(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	for i := range 8 {
		h.create(t, fmt.Sprintf("bot-%02d", i))
	}

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = h.reg.Rename(ctx, domain.Identifier(i+1), "winner")
		}()
	}
	wg.Wait()

	names := h.names(t)
	require.Len(t, names, 8)
	require.Contains(t, names, "winner")
	records, err := h.reg.ListAll(ctx)
	require.NoError(t, err)
	assertConsistent(t, h, records)
}

func TestRegistry_Get(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha", testutil.Model("gpt-4o"))

	rec, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alpha", rec.LogicalName)
	require.Equal(t, "gpt-4o", rec.Document.LLMParameters.Model)

	// Returned documents are copies; mutating one does not leak into the next read.
	rec.Document.SetName("mutated")
	again, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alpha", again.Document.Name())

	byName, err := h.reg.GetByName(ctx, "alpha")
	require.NoError(t, err)
	require.Equal(t, domain.Identifier(1), byName.Identifier)

	_, err = h.reg.Get(ctx, 42)
	var nf *domain.NotFoundError
	require.ErrorAs(t, err, &nf)
	require.Equal(t, domain.Identifier(42), nf.Identifier)

	_, err = h.reg.GetByName(ctx, "missing")
	require.ErrorAs(t, err, &nf)
	require.Equal(t, "missing", nf.Name)
}

func TestRegistry_GetReportsFaults(t *testing.T) {
	for _, cacheEnabled := range []bool{true, false} {
		t.Run(fmt.Sprintf("cache=%v", cacheEnabled), func(t *testing.T) {
			ctx := context.Background()
			h := newHarness(t, withOptions(func(o *Options) { o.CacheEnabled = cacheEnabled }))
			h.create(t, "alpha")
			h.create(t, "beta")
			h.create(t, "gamma")
			changes := h.reg.Subscribe(ctx)

			// Warm the cache so the faults below must be noticed through it.
			for id := domain.Identifier(1); id <= 3; id++ {
				_, err := h.reg.Get(ctx, id)
				require.NoError(t, err)
			}

			require.NoError(t, os.Remove(filepath.Join(h.dir, "000001.json")))
			testutil.WriteFile(t, h.dir, "000002.json", testutil.MalformedJSON)
			testutil.WriteFile(t, h.dir, "000003.json", testutil.Doc(t, "gamma-renamed-by-hand"))

			tests := []struct {
				id   domain.Identifier
				kind domain.FaultKind
			}{
				{1, domain.FaultMissingFile},
				{2, domain.FaultInvalidDocument},
				{3, domain.FaultNameDrift},
			}
			for _, tt := range tests {
				_, err := h.reg.Get(ctx, tt.id)
				var fault *domain.ConsistencyFaultError
				require.ErrorAs(t, err, &fault, "identifier %s", tt.id)
				require.Equal(t, tt.kind, fault.Fault.Kind)
				require.Equal(t, domain.KindConsistencyFault, domain.KindOf(err))

				evt := nextChange(t, changes)
				require.Equal(t, pubsub.FaultEvent, evt.Type)
				require.Equal(t, tt.kind, evt.Payload.Fault.Kind)
			}
		})
	}
}

func TestRegistry_GetSeesEditsThroughCache(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha", testutil.Model("gpt-4"))

	_, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)

	testutil.WriteFile(t, h.dir, "000001.json", testutil.Doc(t, "alpha", testutil.Model("gpt-4-turbo-preview")))

	rec, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "gpt-4-turbo-preview", rec.Document.LLMParameters.Model)
}

func TestRegistry_UpdateChangingNameRenames(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	h.create(t, "beta")
	h.create(t, "charlie")
	changes := h.reg.Subscribe(ctx)

	rec, err := h.reg.Update(ctx, 2, testutil.Doc(t, "beta2"))
	require.NoError(t, err)
	require.Equal(t, domain.Identifier(2), rec.Identifier)
	require.Equal(t, "beta2", rec.LogicalName)

	require.Equal(t, "beta2", h.fileDocument(t, 2).Name())
	require.Equal(t, []string{"alpha", "beta2", "charlie"}, h.names(t))

	_, err = h.reg.GetByName(ctx, "beta")
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	evt := nextChange(t, changes)
	require.Equal(t, pubsub.RenamedEvent, evt.Type)
	require.Equal(t, domain.ChangeRenamed, evt.Payload.Kind)
	require.Equal(t, "beta", evt.Payload.PreviousName)
	require.Equal(t, "beta2", evt.Payload.Name)

	// A later rename moves it in the ordering.
	_, err = h.reg.Update(ctx, 2, testutil.Doc(t, "zeta"))
	require.NoError(t, err)
	require.Equal(t, []string{"alpha", "charlie", "zeta"}, h.names(t))
}

func TestRegistry_UpdateContent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	changes := h.reg.Subscribe(ctx)

	h.now = t0.Add(time.Hour)
	rec, err := h.reg.Update(ctx, 1, testutil.Doc(t, "alpha", testutil.Description("second draft"), testutil.Model("gpt-4o")))
	require.NoError(t, err)
	require.Equal(t, "second draft", rec.Summary.Description)
	require.Equal(t, "gpt-4o", rec.Summary.Model)

	doc := h.fileDocument(t, 1)
	require.True(t, doc.Metadata.Created.Equal(t0), "created is kept from the stored document")
	require.True(t, doc.Metadata.Modified.Equal(t0.Add(time.Hour)))

	evt := nextChange(t, changes)
	require.Equal(t, pubsub.UpdatedEvent, evt.Type)
	require.Empty(t, evt.Payload.PreviousName)
}

func TestRegistry_UpdateErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	h.create(t, "beta")
	before := testutil.ReadFile(t, h.dir, "000002.json")

	_, err := h.reg.Update(ctx, 9, testutil.Doc(t, "alpha"))
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = h.reg.Update(ctx, 2, []byte(`{"version": "1.0.0"}`))
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, domain.Identifier(2), verr.Identifier)

	_, err = h.reg.Update(ctx, 2, testutil.Doc(t, "alpha"))
	var dup *domain.DuplicateNameError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, domain.Identifier(1), dup.Existing)

	require.Equal(t, before, testutil.ReadFile(t, h.dir, "000002.json"))
	require.Equal(t, []string{"alpha", "beta"}, h.names(t))
	require.ElementsMatch(t, []string{"000001.json", "000002.json"}, h.dirNames(t))
}

func TestRegistry_Rename(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	h.create(t, "beta", testutil.Description("keep me"))
	alphaBefore := testutil.ReadFile(t, h.dir, "000001.json")
	betaBefore := testutil.ReadFile(t, h.dir, "000002.json")

	t.Run("same name is a no-op", func(t *testing.T) {
		rec, err := h.reg.Rename(ctx, 2, "beta")
		require.NoError(t, err)
		require.Equal(t, "beta", rec.LogicalName)
		require.NotNil(t, rec.Document)
		require.Equal(t, "keep me", rec.Document.Metadata.Description)
		require.Equal(t, betaBefore, testutil.ReadFile(t, h.dir, "000002.json"))
	})

	t.Run("taken name fails and changes nothing", func(t *testing.T) {
		_, err := h.reg.Rename(ctx, 2, "alpha")
		var dup *domain.DuplicateNameError
		require.ErrorAs(t, err, &dup)
		require.Equal(t, domain.Identifier(1), dup.Existing)
		require.Equal(t, alphaBefore, testutil.ReadFile(t, h.dir, "000001.json"))
		require.Equal(t, betaBefore, testutil.ReadFile(t, h.dir, "000002.json"))
		require.Equal(t, []string{"alpha", "beta"}, h.names(t))
	})

	t.Run("invalid name fails validation", func(t *testing.T) {
		_, err := h.reg.Rename(ctx, 2, "Not A Kebab")
		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		require.True(t, verr.Cause.Has("metadata.name"))
		require.Equal(t, betaBefore, testutil.ReadFile(t, h.dir, "000002.json"))
	})

	t.Run("unknown identifier", func(t *testing.T) {
		_, err := h.reg.Rename(ctx, 7, "omega")
		require.Equal(t, domain.KindNotFound, domain.KindOf(err))
	})

	t.Run("new name rewrites the document", func(t *testing.T) {
		rec, err := h.reg.Rename(ctx, 2, "alpha-prime")
		require.NoError(t, err)
		require.Equal(t, "alpha-prime", rec.LogicalName)

		doc := h.fileDocument(t, 2)
		require.Equal(t, "alpha-prime", doc.Name())
		require.Equal(t, "keep me", doc.Metadata.Description)
		require.Equal(t, []string{"alpha", "alpha-prime"}, h.names(t))
	})
}

func TestRegistry_RenameResolvesNameDrift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	testutil.WriteFile(t, h.dir, "000001.json", testutil.Doc(t, "edited-by-hand"))

	_, err := h.reg.Get(ctx, 1)
	require.Equal(t, domain.KindConsistencyFault, domain.KindOf(err))

	_, err = h.reg.Rename(ctx, 1, "settled")
	require.NoError(t, err)

	rec, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "settled", rec.Document.Name())
}

func TestRegistry_RenameToCatalogNameRepairsDrift(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	testutil.WriteFile(t, h.dir, "000001.json", testutil.Doc(t, "edited-by-hand"))

	rec, err := h.reg.Rename(ctx, 1, "alpha")
	require.NoError(t, err)
	require.Equal(t, "alpha", rec.Document.Name())
	require.Equal(t, "alpha", h.fileDocument(t, 1).Name())

	_, err = h.reg.Get(ctx, 1)
	require.NoError(t, err)
}

func TestRegistry_RenameMissingFileIsFault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	require.NoError(t, os.Remove(filepath.Join(h.dir, "000001.json")))

	_, err := h.reg.Rename(ctx, 1, "beta")
	var fault *domain.ConsistencyFaultError
	require.ErrorAs(t, err, &fault)
	require.Equal(t, domain.FaultMissingFile, fault.Fault.Kind)
	require.Equal(t, []string{"alpha"}, h.names(t))
}

func TestRegistry_Delete(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	h.create(t, "beta")
	changes := h.reg.Subscribe(ctx)

	result, err := h.reg.Delete(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alpha", result.Record.LogicalName)
	require.Empty(t, result.Faults)
	require.Equal(t, []string{"000002.json"}, h.dirNames(t), "no temp or trash files left behind")

	_, err = h.reg.Get(ctx, 1)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))
	require.Equal(t, []string{"beta"}, h.names(t))

	evt := nextChange(t, changes)
	require.Equal(t, pubsub.DeletedEvent, evt.Type)
	require.Equal(t, "alpha", evt.Payload.Name)

	_, err = h.reg.Delete(ctx, 1)
	require.Equal(t, domain.KindNotFound, domain.KindOf(err))

	// The name is free again, the identifier is not.
	again := h.create(t, "alpha")
	require.Equal(t, domain.Identifier(3), again.Identifier)
}

func TestRegistry_DeleteMissingFileStillRetiresRecord(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	h.create(t, "alpha")
	require.NoError(t, os.Remove(filepath.Join(h.dir, "000001.json")))

	result, err := h.reg.Delete(ctx, 1)
	require.NoError(t, err)
	require.Len(t, result.Faults, 1)
	require.Equal(t, domain.FaultMissingFile, result.Faults[0].Kind)
	require.Equal(t, "alpha", result.Faults[0].CatalogName)
	require.Empty(t, h.names(t))
}

func TestRegistry_CreateWriteFailureBurnsIdentifier(t *testing.T) {
	ctx := context.Background()
	store := &faultyStore{writeErr: errors.New("no space left on device")}
	h := newHarness(t, withStore(func(s documentStore) documentStore {
		store.documentStore = s
		return store
	}))

	_, err := h.reg.Create(ctx, testutil.Doc(t, "alpha"))
	var ioErr *domain.IOFailureError
	require.ErrorAs(t, err, &ioErr)
	require.Equal(t, domain.Identifier(1), ioErr.Identifier)
	require.ErrorContains(t, err, "no space left on device")

	require.Empty(t, h.names(t))
	require.Empty(t, h.dirNames(t))
	require.Equal(t, 1, h.allocatedMax(t))

	store.writeErr = nil
	rec := h.create(t, "alpha")
	require.Equal(t, domain.Identifier(2), rec.Identifier)
}

func TestRegistry_CatalogInsertFailureRemovesFile(t *testing.T) {
	catalog := &failingCatalog{insertErr: errors.New("database is locked")}
	h := newHarness(t, withCatalog(func(c domain.Catalog) domain.Catalog {
		catalog.Catalog = c
		return catalog
	}))

	_, err := h.reg.Create(context.Background(), testutil.Doc(t, "alpha"))
	require.Equal(t, domain.KindIOFailure, domain.KindOf(err))
	require.Empty(t, h.dirNames(t))
	require.Equal(t, 1, h.allocatedMax(t))
}

func TestRegistry_CatalogUpdateFailureRestoresFile(t *testing.T) {
	ctx := context.Background()
	catalog := &failingCatalog{}
	h := newHarness(t, withCatalog(func(c domain.Catalog) domain.Catalog {
		catalog.Catalog = c
		return catalog
	}))
	h.create(t, "alpha")
	before := testutil.ReadFile(t, h.dir, "000001.json")

	catalog.updateErr = errors.New("disk I/O error")
	_, err := h.reg.Update(ctx, 1, testutil.Doc(t, "alpha-two"))
	require.Equal(t, domain.KindIOFailure, domain.KindOf(err))
	_, err = h.reg.Rename(ctx, 1, "alpha-three")
	require.Equal(t, domain.KindIOFailure, domain.KindOf(err))

	require.Equal(t, before, testutil.ReadFile(t, h.dir, "000001.json"))
	require.Equal(t, []string{"000001.json"}, h.dirNames(t))

	catalog.updateErr = nil
	rec, err := h.reg.Get(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "alpha", rec.Document.Name())
}

func TestRegistry_TombstoneFailureRestoresFile(t *testing.T) {
	ctx := context.Background()
	catalog := &failingCatalog{}
	h := newHarness(t, withCatalog(func(c domain.Catalog) domain.Catalog {
		catalog.Catalog = c
		return catalog
	}))
	h.create(t, "alpha")
	before := testutil.ReadFile(t, h.dir, "000001.json")

	catalog.tombstoneErr = errors.New("disk I/O error")
	_, err := h.reg.Delete(ctx, 1)
	require.Equal(t, domain.KindIOFailure, domain.KindOf(err))
	require.Equal(t, before, testutil.ReadFile(t, h.dir, "000001.json"))
	require.Equal(t, []string{"000001.json"}, h.dirNames(t))
	require.Equal(t, []string{"alpha"}, h.names(t))
}

func TestRegistry_RemoveFailureLeavesRecord(t *testing.T) {
	store := &faultyStore{}
	h := newHarness(t, withStore(func(s documentStore) documentStore {
		store.documentStore = s
		return store
	}))
	h.create(t, "alpha")

	store.trashErr = os.ErrPermission
	_, err := h.reg.Delete(context.Background(), 1)
	var ioErr *domain.IOFailureError
	require.ErrorAs(t, err, &ioErr)
	require.ErrorIs(t, err, os.ErrPermission)
	require.Equal(t, []string{"alpha"}, h.names(t))
}

func TestRegistry_ListIsLazyAndRestartable(t *testing.T) {
	ctx := context.Background()
	catalog := &failingCatalog{}
	h := newHarness(t, withCatalog(func(c domain.Catalog) domain.Catalog {
		catalog.Catalog = c
		return catalog
	}))
	for _, name := range []string{"gamma", "alpha", "beta"} {
		h.create(t, name)
	}

	seq := h.reg.List(ctx)
	for range 2 {
		var names []string
		for rec, err := range seq {
			require.NoError(t, err)
			names = append(names, rec.LogicalName)
		}
		require.Equal(t, []string{"alpha", "beta", "gamma"}, names)
	}

	var first []string
	for rec := range seq {
		first = append(first, rec.LogicalName)
		break
	}
	require.Equal(t, []string{"alpha"}, first)

	// Nothing is read until iteration starts.
	catalog.listErr = errors.New("catalog unavailable")
	failing := h.reg.List(ctx)
	catalog.listErr = nil
	count := 0
	for _, err := range failing {
		require.NoError(t, err)
		count++
	}
	require.Equal(t, 3, count)

	catalog.listErr = errors.New("catalog unavailable")
	for _, err := range h.reg.List(ctx) {
		require.Equal(t, domain.KindIOFailure, domain.KindOf(err))
	}
}

func TestRegistry_OpenReconcilesWithFilesOnDisk(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alpha")
	testutil.WriteFile(t, h.dir, "000007.json", testutil.Doc(t, "copied-in"))
	h.reopen(t)

	require.Equal(t, 7, h.allocatedMax(t))
	rec := h.create(t, "beta")
	require.Equal(t, domain.Identifier(8), rec.Identifier)
}

func TestRegistry_CreateSkipsFilesCopiedInWhileOpen(t *testing.T) {
	h := newHarness(t)
	h.create(t, "alpha")
	orphan := testutil.Doc(t, "copied-in")
	testutil.WriteFile(t, h.dir, "000002.json", orphan)

	rec := h.create(t, "beta")
	require.Equal(t, domain.Identifier(3), rec.Identifier)
	require.Equal(t, orphan, testutil.ReadFile(t, h.dir, "000002.json"))
}

func TestRegistry_Tracing(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	h := newHarness(t, withOptions(func(o *Options) { o.Tracer = provider.Tracer("test") }))

	h.create(t, "alpha")
	_, err := h.reg.Create(context.Background(), testutil.Doc(t, "alpha"))
	require.Error(t, err)

	ended := recorder.Ended()
	require.Len(t, ended, 2)

	ok := ended[0]
	require.Equal(t, "registry.create", ok.Name())
	require.Equal(t, codes.Ok, ok.Status().Code)
	require.Contains(t, ok.Attributes(), attribute.String(tracing.AttrIdentifier, "000001"))
	var events []string
	for _, e := range ok.Events() {
		events = append(events, e.Name)
	}
	require.Equal(t, []string{
		tracing.EventDocumentValidated,
		tracing.EventIdentifierAllocated,
		tracing.EventFileWritten,
		tracing.EventCatalogCommitted,
	}, events)

	failed := ended[1]
	require.Equal(t, codes.Error, failed.Status().Code)
	require.Contains(t, failed.Attributes(), attribute.String(tracing.AttrErrorKind, string(domain.KindDuplicateName)))
}

func TestRegistry_Scenario(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	alpha := h.create(t, "alpha")
	beta := h.create(t, "beta")
	require.Equal(t, "000001.json", alpha.Filename())
	require.Equal(t, "000002.json", beta.Filename())

	_, err := h.reg.Delete(ctx, 1)
	require.NoError(t, err)

	gamma := h.create(t, "gamma")
	require.Equal(t, "000003.json", gamma.Filename())

	_, err = h.reg.Create(ctx, testutil.Doc(t, "beta"))
	require.Equal(t, domain.KindDuplicateName, domain.KindOf(err))
	require.False(t, testutil.Exists(t, h.dir, "000004.json"))

	_, err = h.reg.Update(ctx, 2, testutil.Doc(t, "beta2"))
	require.NoError(t, err)
	require.Equal(t, []string{"beta2", "gamma"}, h.names(t))

	report, err := h.reg.Check(ctx)
	require.NoError(t, err)
	require.True(t, report.OK(), "%v", report.Faults)
}

// assertConsistent checks the registry-wide invariants: unique identifiers
// and names among live records, sorted listing, and every file validating
// with the catalog's name.
func assertConsistent(t require.TestingT, h *harness, records []domain.Record) {
	ids := map[domain.Identifier]bool{}
	names := map[string]bool{}
	for _, rec := range records {
		require.False(t, ids[rec.Identifier], "identifier %s listed twice", rec.Identifier)
		require.False(t, names[rec.LogicalName], "name %q listed twice", rec.LogicalName)
		ids[rec.Identifier] = true
		names[rec.LogicalName] = true

		raw, err := os.ReadFile(filepath.Join(h.dir, rec.Filename()))
		require.NoError(t, err)
		doc, err := schema.Validate(raw)
		require.NoError(t, err)
		require.Equal(t, rec.LogicalName, doc.Name())
	}
	require.True(t, sort.SliceIsSorted(records, func(i, j int) bool {
		if records[i].LogicalName != records[j].LogicalName {
			return records[i].LogicalName < records[j].LogicalName
		}
		return records[i].Identifier < records[j].Identifier
	}))
}

func TestRegistry_RandomOperationsKeepInvariants(t *testing.T) {
	names := []string{"alpha", "beta", "beta2", "gamma", "delta", "omega"}

	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		h := newHarness(t)
		highest := domain.Identifier(0)
		issued := map[domain.Identifier]bool{}

		steps := rapid.IntRange(1, 25).Draw(rt, "steps")
		for step := range steps {
			records, err := h.reg.ListAll(ctx)
			require.NoError(rt, err)
			name := rapid.SampledFrom(names).Draw(rt, fmt.Sprintf("name%d", step))
			op := rapid.IntRange(0, 3).Draw(rt, fmt.Sprintf("op%d", step))

			if op == 0 || len(records) == 0 {
				rec, err := h.reg.Create(ctx, testutil.Doc(t, name))
				if err != nil {
					require.Equal(rt, domain.KindDuplicateName, domain.KindOf(err))
					continue
				}
				require.False(rt, issued[rec.Identifier], "identifier %s reissued", rec.Identifier)
				require.Greater(rt, rec.Identifier, highest)
				highest = rec.Identifier
				issued[rec.Identifier] = true
				continue
			}

			target := records[rapid.IntRange(0, len(records)-1).Draw(rt, fmt.Sprintf("target%d", step))].Identifier
			switch op {
			case 1:
				_, err = h.reg.Delete(ctx, target)
				require.NoError(rt, err)
			case 2:
				_, err = h.reg.Update(ctx, target, testutil.Doc(t, name))
			case 3:
				_, err = h.reg.Rename(ctx, target, name)
			}
			if err != nil {
				require.Equal(rt, domain.KindDuplicateName, domain.KindOf(err))
			}

			records, err = h.reg.ListAll(ctx)
			require.NoError(rt, err)
			assertConsistent(rt, h, records)
		}

		ids, err := newFileStore(h.dir).Scan()
		require.NoError(rt, err)
		records, err := h.reg.ListAll(ctx)
		require.NoError(rt, err)
		live := make([]domain.Identifier, 0, len(records))
		for _, rec := range records {
			live = append(live, rec.Identifier)
		}
		slices.Sort(live)
		require.Equal(rt, len(live), len(ids))
		for i := range ids {
			require.Equal(rt, live[i], ids[i], "files on disk match live records")
		}
	})
}
