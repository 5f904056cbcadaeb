// Package cli formats answers, ingest results and status for the ragdoc command line.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/hyperjump/ragdoc/internal/models"
	"github.com/hyperjump/ragdoc/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat maps a flag value to an OutputFormat.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, "":
		return OutputText, nil
	case OutputJSON:
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// Status mirrors the GET /api/v1/status response.
type Status struct {
	Chunks           int                    `json:"chunks"`
	VectorIndexSize  int                    `json:"vector_index_size"`
	VectorIndexType  string                 `json:"vector_index_type"`
	Dimensions       int                    `json:"dimensions"`
	Uploads          *int64                 `json:"uploads,omitempty"`
	KeywordDocuments *uint64                `json:"keyword_documents,omitempty"`
	DiskUsageBytes   *int64                 `json:"disk_usage_bytes,omitempty"`
	WatchDirectories []string               `json:"watch_directories,omitempty"`
	Config           map[string]interface{} `json:"config,omitempty"`
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, result *models.AnswerResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, result)
	}
	fmt.Fprintf(w, "\n%s\n\n", result.Answer)
	if !result.ContextFound {
		fmt.Fprintf(w, "(no relevant context, %dms)\n", result.QueryTime)
		return nil
	}
	fmt.Fprintf(w, "Answered from %d chunk(s) in %dms [%s]\n", len(result.RetrievedDocs), result.QueryTime, result.Outcome)
	if len(result.Sources) > 0 {
		fmt.Fprintf(w, "Sources: %s\n", strings.Join(result.Sources, ", "))
	}
	for i, doc := range result.RetrievedDocs {
		fmt.Fprintln(w, "─────────────────────────────────────────────────────────")
		if i < len(result.RelevanceScores) {
			fmt.Fprintf(w, "#%d score %s\n", i+1, result.RelevanceScores[i])
		} else {
			fmt.Fprintf(w, "#%d\n", i+1)
		}
		fmt.Fprintf(w, "%s\n", utils.Truncate(doc, 200))
	}
	return nil
}

// WriteIngestResult writes the outcome of ingesting one document.
func WriteIngestResult(w io.Writer, res *models.IngestResult, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, res)
	}
	fmt.Fprintf(w, "Document indexed successfully: %s (%d chunks, %d characters)\n",
		res.Filename, res.ChunksCreated, res.TextLength)
	for _, warn := range res.Warnings {
		fmt.Fprintf(w, "warning: %s\n", warn)
	}
	return nil
}

// WriteStatus writes index status to w in the given format.
func WriteStatus(w io.Writer, s *Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, s)
	}
	fmt.Fprintf(w, "chunks:             %d   # stored chunks\n", s.Chunks)
	fmt.Fprintf(w, "vector_index_size:  %d   # vectors in the index\n", s.VectorIndexSize)
	fmt.Fprintf(w, "vector_index_type:  %s\n", s.VectorIndexType)
	fmt.Fprintf(w, "dimensions:         %d\n", s.Dimensions)
	if s.Uploads != nil {
		fmt.Fprintf(w, "uploads:            %d\n", *s.Uploads)
	}
	if s.KeywordDocuments != nil {
		fmt.Fprintf(w, "keyword_documents:  %d\n", *s.KeywordDocuments)
	}
	if s.DiskUsageBytes != nil {
		fmt.Fprintf(w, "disk_usage_bytes:   %d   # snapshot + ledger + keyword index\n", *s.DiskUsageBytes)
	}
	for _, d := range s.WatchDirectories {
		fmt.Fprintf(w, "watch_directory:    %s\n", d)
	}
	if len(s.Config) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "# configuration")
		keys := make([]string, 0, len(s.Config))
		for k := range s.Config {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(w, "%-19s %v\n", k+":", s.Config[k])
		}
	}
	return nil
}
