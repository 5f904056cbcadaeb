package keyword

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/ragdoc/internal/models"
)

const (
	defaultFuzziness = 1
	indexBatchSize   = 500
)

var _ ChunkIndex = (*BleveIndex)(nil)

// chunkDoc is the indexed form of a chunk. Filename is split into words so
// "invoice" matches "invoice.pdf".
type chunkDoc struct {
	Text       string `json:"text"`
	Filename   string `json:"filename"`
	ChunkIndex int    `json:"chunk_index"`
}

// BleveIndex implements ChunkIndex using Bleve. Document ids are the decimal
// chunk ids.
type BleveIndex struct {
	path    string
	mapping mapping.IndexMapping

	mu    sync.RWMutex
	index bleve.Index
}

func newChunkMapping() mapping.IndexMapping {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	// Standard analyzer: lowercase and tokenize without stemming, so exact
	// terms from the documents match as typed.
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("text", textFieldMapping)
	docMapping.AddFieldMappingsAt("filename", textFieldMapping)
	numericFieldMapping := bleve.NewNumericFieldMapping()
	numericFieldMapping.Index = false
	docMapping.AddFieldMappingsAt("chunk_index", numericFieldMapping)

	im.AddDocumentMapping("chunk", docMapping)
	im.DefaultType = "chunk"
	im.DefaultMapping = docMapping
	return im
}

// NewBleveIndex creates or opens a Bleve index at path. An empty path creates
// an in-memory index.
func NewBleveIndex(path string) (*BleveIndex, error) {
	b := &BleveIndex{path: path, mapping: newChunkMapping()}
	index, err := b.open()
	if err != nil {
		return nil, err
	}
	b.index = index
	return b, nil
}

func (b *BleveIndex) open() (bleve.Index, error) {
	if b.path == "" {
		index, err := bleve.NewMemOnly(b.mapping)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-memory Bleve index: %w", err)
		}
		return index, nil
	}
	if _, err := os.Stat(b.path); err == nil {
		index, openErr := bleve.Open(b.path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open Bleve index: %w", openErr)
		}
		return index, nil
	}
	if err := os.MkdirAll(filepath.Dir(b.path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create Bleve index directory: %w", err)
	}
	index, err := bleve.New(b.path, b.mapping)
	if err != nil {
		return nil, fmt.Errorf("failed to create Bleve index: %w", err)
	}
	return index, nil
}

func docID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// IndexChunks adds or replaces chunks in batches.
func (b *BleveIndex) IndexChunks(ctx context.Context, chunks []models.Chunk) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.indexLocked(ctx, chunks)
}

func (b *BleveIndex) indexLocked(ctx context.Context, chunks []models.Chunk) error {
	for start := 0; start < len(chunks); start += indexBatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+indexBatchSize, len(chunks))
		batch := b.index.NewBatch()
		for _, c := range chunks[start:end] {
			doc := chunkDoc{
				Text:       c.Text,
				Filename:   strings.Join(queryTerms(c.Metadata.Filename), " "),
				ChunkIndex: c.Metadata.ChunkIndex,
			}
			if err := batch.Index(docID(c.ID), doc); err != nil {
				return fmt.Errorf("index chunk %d: %w", c.ID, err)
			}
		}
		if err := b.index.Batch(batch); err != nil {
			return fmt.Errorf("Bleve batch failed: %w", err)
		}
	}
	return nil
}

// Search runs a match query over chunk text and returns up to limit results.
func (b *BleveIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return []Result{}, nil
	}

	fuzziness := 0
	filenameBoost := 1.0
	if opts != nil {
		if opts.FuzzyEnabled {
			fuzziness = defaultFuzziness
			if opts.Fuzziness > 0 {
				fuzziness = opts.Fuzziness
			}
		}
		if opts.FilenameBoost > 0 {
			filenameBoost = opts.FilenameBoost
		}
	}

	var q blevequery.Query = buildFieldQuery(query, "text", fuzziness)
	if filenameBoost > 1 {
		fq := bleve.NewMatchQuery(query)
		fq.SetField("filename")
		fq.SetBoost(filenameBoost)
		q = bleve.NewDisjunctionQuery(q, fq)
	}

	req := bleve.NewSearchRequest(q)
	req.Size = limit

	b.mu.RLock()
	results, err := b.index.SearchInContext(ctx, req)
	b.mu.RUnlock()
	if err != nil {
		return nil, fmt.Errorf("Bleve search failed: %w", err)
	}

	out := make([]Result, 0, len(results.Hits))
	for _, hit := range results.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, Result{ChunkID: id, Score: hit.Score})
	}
	return out, nil
}

// buildFieldQuery returns a match query, or a disjunction of per-term fuzzy
// queries when fuzziness > 0.
func buildFieldQuery(query, field string, fuzziness int) blevequery.Query {
	terms := queryTerms(query)
	if fuzziness <= 0 || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		mq.SetField(field)
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		fq.SetField(field)
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// queryTerms lowercases and splits on anything that is not a letter or digit.
func queryTerms(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Sync reconciles the index with the vector store's chunks. When the index
// holds more documents than chunks it is rebuilt from scratch.
func (b *BleveIndex) Sync(ctx context.Context, chunks []models.Chunk) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	count, err := b.index.DocCount()
	if err != nil {
		return fmt.Errorf("count documents: %w", err)
	}
	if count == uint64(len(chunks)) {
		return nil
	}
	if count > uint64(len(chunks)) {
		if err := b.resetLocked(); err != nil {
			return err
		}
	}
	return b.indexLocked(ctx, chunks)
}

func (b *BleveIndex) resetLocked() error {
	if err := b.index.Close(); err != nil {
		return fmt.Errorf("close Bleve index: %w", err)
	}
	if b.path != "" {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove Bleve index: %w", err)
		}
	}
	index, err := b.open()
	if err != nil {
		return err
	}
	b.index = index
	return nil
}

// DocCount returns the total number of chunks in the index.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.index.DocCount()
}

// Close closes the Bleve index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return errors.New("index already closed")
	}
	err := b.index.Close()
	b.index = nil
	return err
}
