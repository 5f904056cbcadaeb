package indexer

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunk_Empty(t *testing.T) {
	for _, text := range []string{"", "   \n\t  "} {
		if _, err := Chunk(text, 400, 50); !errors.Is(err, ErrEmptyInput) {
			t.Errorf("Chunk(%q) err = %v, want ErrEmptyInput", text, err)
		}
	}
}

func TestChunk_Packing(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		max     int
		overlap int
		want    []string
	}{
		{
			name:    "single sentence",
			text:    "  Just one\n sentence here. ",
			max:     400,
			overlap: 50,
			want:    []string{"Just one sentence here."},
		},
		{
			name:    "last sentence repeats as overlap",
			text:    "Hello world.  This is\na test.",
			max:     400,
			overlap: 50,
			want:    []string{"Hello world. This is a test.", "This is a test."},
		},
		{
			name:    "trailing sentence overlaps",
			text:    "One one. Two two. Three three. Four.",
			max:     20,
			overlap: 50,
			want:    []string{"One one. Two two.", "Two two.", "Three three. Four.", "Four."},
		},
		{
			name:    "oversized sentence is its own chunk",
			text:    "Short. " + strings.Repeat("x", 30) + ". End.",
			max:     20,
			overlap: 50,
			want:    []string{"Short.", strings.Repeat("x", 30) + ".", "End."},
		},
		{
			name:    "sizes counted in characters",
			text:    "éé. éé.",
			max:     7,
			overlap: 50,
			want:    []string{"éé. éé.", "éé."},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Chunk(tt.text, tt.max, tt.overlap)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestChunk_NoPunctuation(t *testing.T) {
	text := strings.TrimSpace(strings.Repeat("word ", 90))
	text += strings.Repeat("z", 450-utf8.RuneCountInString(text))
	if n := utf8.RuneCountInString(text); n != 450 {
		t.Fatalf("fixture length = %d", n)
	}
	chunks, err := Chunk(text, 400, 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) == 0 || chunks[0] == "" {
		t.Fatalf("expected at least one non-empty chunk, got %q", chunks)
	}
}

func TestChunk_Properties(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 60; i++ {
		b.WriteString(strings.Repeat("lorem ", i%9+1))
		b.WriteString([]string{"end. ", "stop! ", "why? "}[i%3])
	}
	text := b.String()
	const max = 80

	chunks, err := Chunk(text, max, 100)
	if err != nil {
		t.Fatal(err)
	}
	again, _ := Chunk(text, max, 100)
	if !reflect.DeepEqual(chunks, again) {
		t.Error("chunking is not deterministic")
	}

	joined := strings.Join(chunks, " ")
	for _, s := range SplitSentences(Preprocess(text)) {
		if !strings.Contains(joined, s) {
			t.Errorf("sentence %q missing from chunks", s)
		}
	}
	for i, c := range chunks {
		if c == "" {
			t.Errorf("chunk %d is empty", i)
		}
		if utf8.RuneCountInString(c) > max && len(SplitSentences(c)) > 1 {
			t.Errorf("chunk %d exceeds %d characters: %q", i, max, c)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	tests := []struct {
		text string
		want []string
	}{
		{"A. B! C? D", []string{"A.", "B!", "C?", "D"}},
		{"no punctuation here", []string{"no punctuation here"}},
		{"Pi is 3.14 exactly. Yes.", []string{"Pi is 3.14 exactly.", "Yes."}},
		{"Hello.", []string{"Hello."}},
	}
	for _, tt := range tests {
		if got := SplitSentences(tt.text); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("SplitSentences(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestChunker_UsesLimits(t *testing.T) {
	c := NewChunker(20, 50)
	got, err := c.Chunk("One one. Two two. Three three. Four.")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 4 {
		t.Errorf("got %d chunks, want 4", len(got))
	}
}

func TestPreprocess(t *testing.T) {
	if got := Preprocess("  a \n\t b  "); got != "a b" {
		t.Errorf("Preprocess = %q, want %q", got, "a b")
	}
}
