package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraga/KnowledgeNexus/internal/converter"
	"github.com/fraga/KnowledgeNexus/internal/extractor"
	"github.com/fraga/KnowledgeNexus/internal/graph"
	"github.com/fraga/KnowledgeNexus/internal/graph/memory"
	"github.com/fraga/KnowledgeNexus/internal/models"
	"github.com/fraga/KnowledgeNexus/internal/resolver"
)

type stubExtractor struct {
	ext   *extractor.Extraction
	err   error
	calls int
}

func (s *stubExtractor) Extract(ctx context.Context, text, instructions string) (*extractor.Extraction, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.ext, nil
}

func aliceAcmeExtraction() *extractor.Extraction {
	return &extractor.Extraction{
		Description: "A short note about a founder.",
		Summary:     "Alice founded Acme Corp.",
		Entities: []models.CandidateEntity{
			{Name: "Alice Smith", Type: models.EntityPerson},
			{Name: "Acme Corp", Type: models.EntityOrganization},
		},
		Relationships: []models.CandidateRelationship{
			{SubjectName: "Alice Smith", Predicate: "founded", ObjectName: "Acme Corp"},
		},
	}
}

func newTestPipeline(store graph.Store, ext extractor.Extractor) *Pipeline {
	return New(
		converter.New(converter.Config{}),
		ext,
		resolver.New(store, resolver.Config{}),
		Config{},
	)
}

func TestProcessTextEndToEnd(t *testing.T) {
	store := memory.New()
	stub := &stubExtractor{ext: aliceAcmeExtraction()}
	p := newTestPipeline(store, stub)

	doc, err := p.ProcessText(context.Background(), "Alice Smith founded Acme Corp.", "")
	require.NoError(t, err)

	assert.Equal(t, models.ContentTypeText, doc.ContentType)
	assert.Equal(t, models.ConversionConverted, doc.ConversionStatus)
	assert.Equal(t, "Alice founded Acme Corp.", doc.Summary)
	assert.Empty(t, doc.ErrorMessage)
	require.Len(t, doc.Entities, 2)

	// The referenced entities exist in the graph with matching ids.
	entities := store.AllEntities()
	require.Len(t, entities, 2)
	ids := map[string]bool{}
	for _, e := range entities {
		ids[e.EntityID] = true
	}
	for _, ref := range doc.Entities {
		assert.True(t, ids[ref.EntityID])
	}
	assert.Len(t, store.Relationships(), 1)
}

func TestProcessTextEmptyInput(t *testing.T) {
	p := newTestPipeline(memory.New(), &stubExtractor{ext: aliceAcmeExtraction()})

	_, err := p.ProcessText(context.Background(), "   \n\t ", "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestProcessFileConversionFailureIsTerminal(t *testing.T) {
	store := memory.New()
	stub := &stubExtractor{ext: aliceAcmeExtraction()}
	p := newTestPipeline(store, stub)

	doc, err := p.ProcessFile(context.Background(), "broken.pdf", "", []byte("%PDF-1.4 not a real pdf"), "")
	require.NoError(t, err)

	assert.Equal(t, models.ConversionFailed, doc.ConversionStatus)
	assert.NotEmpty(t, doc.ErrorMessage)
	assert.NotNil(t, doc.Entities)
	assert.Empty(t, doc.Entities)
	assert.Empty(t, doc.Summary)

	// Extraction never ran and the graph is untouched.
	assert.Zero(t, stub.calls)
	assert.Empty(t, store.AllEntities())
}

func TestProcessTextExtractionFailureDegrades(t *testing.T) {
	store := memory.New()
	stub := &stubExtractor{err: fmt.Errorf("model unavailable")}
	p := newTestPipeline(store, stub)

	doc, err := p.ProcessText(context.Background(), "some text", "")
	require.NoError(t, err)

	assert.Contains(t, doc.ErrorMessage, "extraction failed")
	assert.Empty(t, doc.Entities)
	assert.Empty(t, store.AllEntities())
}

func TestProcessTextResolutionFailureDegrades(t *testing.T) {
	store := &failingStore{Store: memory.New()}
	stub := &stubExtractor{ext: aliceAcmeExtraction()}
	p := newTestPipeline(store, stub)

	doc, err := p.ProcessText(context.Background(), "Alice Smith founded Acme Corp.", "")
	require.NoError(t, err)

	assert.Contains(t, doc.ErrorMessage, "resolution failed")
	assert.Empty(t, doc.Entities)
	// The rolled-back transaction left nothing behind.
	assert.Empty(t, store.Store.AllEntities())
	assert.Empty(t, store.Store.Relationships())
}

func TestProcessFileRoutesByExtension(t *testing.T) {
	store := memory.New()
	stub := &stubExtractor{ext: aliceAcmeExtraction()}
	p := newTestPipeline(store, stub)

	doc, err := p.ProcessFile(context.Background(), "notes.md", "", []byte("# Alice\nworks at Acme"), "")
	require.NoError(t, err)

	assert.Equal(t, models.ContentTypeMarkdown, doc.ContentType)
	assert.Equal(t, models.ConversionConverted, doc.ConversionStatus)
	assert.Equal(t, 1, stub.calls)
}

func TestProcessPathReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("Alice Smith founded Acme Corp."), 0o644))

	store := memory.New()
	p := newTestPipeline(store, &stubExtractor{ext: aliceAcmeExtraction()})

	doc, err := p.ProcessPath(context.Background(), path, "")
	require.NoError(t, err)

	assert.Equal(t, "notes.txt", doc.FileName)
	assert.Equal(t, models.ConversionConverted, doc.ConversionStatus)
	assert.Len(t, store.AllEntities(), 2)

	_, err = p.ProcessPath(context.Background(), filepath.Join(t.TempDir(), "missing.txt"), "")
	assert.Error(t, err)
}

type fakeCache struct {
	data map[string]*extractor.Extraction
}

func (c *fakeCache) GetExtraction(ctx context.Context, textHash string) (*extractor.Extraction, bool, error) {
	ext, ok := c.data[textHash]
	return ext, ok, nil
}

func (c *fakeCache) SetExtraction(ctx context.Context, textHash string, ext *extractor.Extraction) error {
	c.data[textHash] = ext
	return nil
}

func TestExtractionCacheSkipsSecondExtraction(t *testing.T) {
	store := memory.New()
	stub := &stubExtractor{ext: aliceAcmeExtraction()}
	p := newTestPipeline(store, stub).WithCache(&fakeCache{data: map[string]*extractor.Extraction{}})

	_, err := p.ProcessText(context.Background(), "Alice Smith founded Acme Corp.", "")
	require.NoError(t, err)
	_, err = p.ProcessText(context.Background(), "Alice Smith founded Acme Corp.", "")
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)

	// Both runs still resolved into the same graph records.
	assert.Len(t, store.AllEntities(), 2)
}

type fakeArchive struct {
	docs []*models.Document
}

func (a *fakeArchive) InsertDocument(doc *models.Document) error {
	a.docs = append(a.docs, doc)
	return nil
}

func TestDocumentsAreArchived(t *testing.T) {
	archive := &fakeArchive{}
	p := newTestPipeline(memory.New(), &stubExtractor{ext: aliceAcmeExtraction()}).WithArchive(archive)

	doc, err := p.ProcessText(context.Background(), "Alice Smith founded Acme Corp.", "")
	require.NoError(t, err)

	require.Len(t, archive.docs, 1)
	assert.Equal(t, doc.ID, archive.docs[0].ID)
}

// failingStore fails relationship writes to force the resolver's rollback.
type failingStore struct {
	*memory.Store
}

func (s *failingStore) Begin(ctx context.Context) (graph.Tx, error) {
	tx, err := s.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingTx{Tx: tx}, nil
}

type failingTx struct {
	graph.Tx
}

func (t *failingTx) UpsertRelationship(ctx context.Context, subjectID, predicate, objectID string) error {
	return fmt.Errorf("simulated write failure")
}
