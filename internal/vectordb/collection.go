package vectordb

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"docpipe/internal/helper"
	"docpipe/internal/models"
)

// ErrDestroyed is returned by every operation on a destroyed collection.
// Only a fresh Open may follow Destroy.
var ErrDestroyed = errors.New("collection is destroyed")

const sequenceIndexKey = "sequence_index"

// Embedder is the collection's text-to-vector dependency.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result pairs a retrieved chunk with its distance from the query
// (ascending: smaller is closer).
type Result struct {
	Chunk    models.Chunk
	Distance float32
}

// Collection is a named, persistent, fixed-dimensionality vector index under
// <directory>. chromem-go holds the vectors; a sidecar manifest catalogs the
// records in insertion order and pins the collection's dimensionality.
//
// A collection instance is meant for single-threaded use; concurrent writers
// to the same (name, directory) pair must be serialized externally.
type Collection struct {
	name       string
	directory  string
	db         *chromem.DB
	collection *chromem.Collection
	embedder   Embedder
	manifest   *manifest
	destroyed  bool
}

// Open attaches to the collection named name under directory, creating both
// on first use. Reopening an existing pair attaches to its persisted state
// without modification.
func Open(name, directory string, embedder Embedder) (*Collection, error) {
	if name == "" {
		return nil, &models.ConfigurationError{Field: "collection.name", Reason: "must not be empty"}
	}
	if directory == "" {
		return nil, &models.ConfigurationError{Field: "collection.directory", Reason: "must not be empty"}
	}
	if embedder == nil {
		return nil, &models.ConfigurationError{Field: "collection.embedder", Reason: "must not be nil"}
	}

	db, err := chromem.NewPersistentDB(directory, false)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	c, err := db.GetOrCreateCollection(name, nil, func(ctx context.Context, text string) ([]float32, error) {
		return embedder.EmbedQuery(ctx, text)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create/get collection: %w", err)
	}
	m, err := loadManifest(directory, name)
	if err != nil {
		return nil, err
	}
	return &Collection{
		name:       name,
		directory:  directory,
		db:         db,
		collection: c,
		embedder:   embedder,
		manifest:   m,
	}, nil
}

// Name returns the collection name.
func (c *Collection) Name() string { return c.name }

// Count returns the number of stored records.
func (c *Collection) Count() int { return len(c.manifest.Records) }

// Dimensionality returns the collection's fixed vector size, or 0 before the
// first Add.
func (c *Collection) Dimensionality() int { return c.manifest.Dim }

// Add embeds each chunk's text, assigns ids where none are supplied, and
// appends the records. An empty input performs no I/O. A chunk whose
// embedding disagrees with the collection's dimensionality is rejected alone:
// the remaining chunks are still added and the first mismatch is returned.
func (c *Collection) Add(ctx context.Context, chunks []models.Chunk) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	vectors, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	var docs []chromem.Document
	var added []manifestRecord
	var mismatch error
	for i, chunk := range chunks {
		if c.manifest.Dim == 0 {
			c.manifest.Dim = len(vectors[i])
		}
		if len(vectors[i]) != c.manifest.Dim {
			if mismatch == nil {
				mismatch = &models.DimensionMismatchError{Want: c.manifest.Dim, Got: len(vectors[i])}
			}
			log.Warn().Int("chunk", i).Msg("Rejecting chunk with mismatched embedding size")
			continue
		}
		id := chunk.ID
		if id == "" {
			id, err = helper.GenerateUUID()
			if err != nil {
				return err
			}
		}
		metadata := models.CloneMetadata(chunk.Metadata)
		if metadata == nil {
			metadata = map[string]string{}
		}
		metadata[sequenceIndexKey] = strconv.Itoa(chunk.SequenceIndex)
		docs = append(docs, chromem.Document{
			ID:        id,
			Content:   chunk.Text,
			Metadata:  metadata,
			Embedding: vectors[i],
		})
		added = append(added, manifestRecord{ID: id, Text: chunk.Text, Metadata: metadata})
	}

	if len(docs) > 0 {
		if err := c.collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("failed to add documents: %w", err)
		}
		c.manifest.Records = append(c.manifest.Records, added...)
		if err := c.manifest.save(); err != nil {
			return err
		}
	}
	return mismatch
}

// Update replaces the records behind ids with chunks, id-for-id: it deletes
// then re-adds, preserving the given ids. The sequence is not atomic; an
// error partway may leave the collection partially updated.
func (c *Collection) Update(ctx context.Context, ids []string, chunks []models.Chunk) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if len(ids) != len(chunks) {
		return fmt.Errorf("got %d ids for %d chunks", len(ids), len(chunks))
	}
	if err := c.Delete(ctx, ids); err != nil {
		return err
	}
	replacement := make([]models.Chunk, len(chunks))
	for i, chunk := range chunks {
		chunk.ID = ids[i]
		replacement[i] = chunk
	}
	return c.Add(ctx, replacement)
}

// Delete removes the records behind ids. Ids that do not exist are ignored.
func (c *Collection) Delete(ctx context.Context, ids []string) error {
	if c.destroyed {
		return ErrDestroyed
	}
	var present []string
	for _, id := range ids {
		if c.manifest.has(id) {
			present = append(present, id)
		}
	}
	if len(present) == 0 {
		return nil
	}
	if err := c.collection.Delete(ctx, nil, nil, present...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}
	removed := make(map[string]bool, len(present))
	for _, id := range present {
		removed[id] = true
	}
	kept := c.manifest.Records[:0]
	for _, r := range c.manifest.Records {
		if !removed[r.ID] {
			kept = append(kept, r)
		}
	}
	c.manifest.Records = kept
	return c.manifest.save()
}

// Search embeds the query and returns the k closest chunks in ascending
// distance order, ties broken by insertion order.
func (c *Collection) Search(ctx context.Context, query string, k int) ([]models.Chunk, error) {
	results, err := c.SearchWithScore(ctx, query, k)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	return chunks, nil
}

// SearchWithScore is Search with each chunk's distance exposed.
func (c *Collection) SearchWithScore(ctx context.Context, query string, k int) ([]Result, error) {
	if c.destroyed {
		return nil, ErrDestroyed
	}
	vector, err := c.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	return c.searchEmbedding(ctx, vector, k, false)
}

// SearchByVector ranks against a caller-supplied vector, bypassing the
// embedding step. The vector must match the collection's dimensionality.
func (c *Collection) SearchByVector(ctx context.Context, vector []float32, k int) ([]models.Chunk, error) {
	if c.destroyed {
		return nil, ErrDestroyed
	}
	results, err := c.searchEmbedding(ctx, vector, k, true)
	if err != nil {
		return nil, err
	}
	chunks := make([]models.Chunk, len(results))
	for i, r := range results {
		chunks[i] = r.Chunk
	}
	return chunks, nil
}

func (c *Collection) searchEmbedding(ctx context.Context, vector []float32, k int, strictDim bool) ([]Result, error) {
	if strictDim && c.manifest.Dim != 0 && len(vector) != c.manifest.Dim {
		return nil, &models.DimensionMismatchError{Want: c.manifest.Dim, Got: len(vector)}
	}
	count := c.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	if k > count {
		k = count
	}
	raw, err := c.collection.QueryWithOptions(ctx, chromem.QueryOptions{
		QueryEmbedding: vector,
		NResults:       k,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	order := c.manifest.order()
	sort.SliceStable(raw, func(i, j int) bool {
		if raw[i].Similarity != raw[j].Similarity {
			return raw[i].Similarity > raw[j].Similarity
		}
		return order[raw[i].ID] < order[raw[j].ID]
	})

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		results = append(results, Result{
			Chunk:    chunkFromRecord(r.ID, r.Content, r.Metadata),
			Distance: 1 - r.Similarity,
		})
	}
	return results, nil
}

// ListAll returns every stored record in insertion order.
func (c *Collection) ListAll(ctx context.Context) ([]models.Chunk, error) {
	if c.destroyed {
		return nil, ErrDestroyed
	}
	chunks := make([]models.Chunk, 0, len(c.manifest.Records))
	for _, r := range c.manifest.Records {
		chunks = append(chunks, chunkFromRecord(r.ID, r.Text, r.Metadata))
	}
	return chunks, nil
}

// Clear removes every record but keeps the collection open with its name,
// directory and dimensionality intact.
func (c *Collection) Clear(ctx context.Context) error {
	if c.destroyed {
		return ErrDestroyed
	}
	if len(c.manifest.Records) == 0 {
		return nil
	}
	ids := make([]string, len(c.manifest.Records))
	for i, r := range c.manifest.Records {
		ids[i] = r.ID
	}
	if err := c.collection.Delete(ctx, nil, nil, ids...); err != nil {
		return fmt.Errorf("failed to clear collection: %w", err)
	}
	c.manifest.Records = nil
	return c.manifest.save()
}

// Destroy removes the collection and all its persisted state. The instance is
// terminal afterwards; open the (name, directory) pair again for a fresh,
// empty collection.
func (c *Collection) Destroy() error {
	if c.destroyed {
		return ErrDestroyed
	}
	if err := c.db.DeleteCollection(c.name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	if err := c.manifest.remove(); err != nil {
		return err
	}
	c.destroyed = true
	return nil
}

func chunkFromRecord(id, content string, metadata map[string]string) models.Chunk {
	meta := models.CloneMetadata(metadata)
	seq := 0
	if s, ok := meta[sequenceIndexKey]; ok {
		seq, _ = strconv.Atoi(s)
		delete(meta, sequenceIndexKey)
	}
	return models.Chunk{ID: id, Text: content, Metadata: meta, SequenceIndex: seq}
}
