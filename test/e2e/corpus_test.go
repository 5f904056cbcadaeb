package e2e

import (
	"strings"
	"testing"

	"github.com/hyperjump/ragdoc/internal/extract"
)

func TestBuildCorpus_OneQuestionPerDocument(t *testing.T) {
	c := BuildCorpus()
	if len(c.Documents) != len(corpusTopics) || len(c.Questions) != len(c.Documents) {
		t.Fatalf("documents = %d questions = %d", len(c.Documents), len(c.Questions))
	}
	seen := make(map[string]bool)
	for _, d := range c.Documents {
		if seen[d.Filename] {
			t.Errorf("duplicate filename %s", d.Filename)
		}
		seen[d.Filename] = true
		if !strings.HasSuffix(d.Filename, ".docx") {
			t.Errorf("filename %s is not a docx", d.Filename)
		}
	}
}

func TestBuildCorpus_QuestionsAppearInTheirDocument(t *testing.T) {
	c := BuildCorpus()
	byName := make(map[string]CorpusDocument)
	for _, d := range c.Documents {
		byName[d.Filename] = d
	}
	for _, q := range c.Questions {
		d, ok := byName[q.ExpectedSource]
		if !ok {
			t.Errorf("%s: unknown source %s", q.Description, q.ExpectedSource)
			continue
		}
		if !strings.Contains(d.Content, q.Question) {
			t.Errorf("%s: question not found in document content", q.Description)
		}
	}
}

func TestDocumentFile_Extracts(t *testing.T) {
	d := BuildCorpus().Documents[0]
	text, err := extract.NewExtractor().ExtractBytes(DocumentFile(d), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if text != d.Title+"\n"+d.Content {
		t.Errorf("extracted %q", text)
	}
}

func TestMinimalDocx_EscapesMarkup(t *testing.T) {
	text, err := extract.NewExtractor().ExtractBytes(MinimalDocx("Terms & <conditions>"), ".docx")
	if err != nil {
		t.Fatal(err)
	}
	if text != "Terms & <conditions>" {
		t.Errorf("extracted %q", text)
	}
}
