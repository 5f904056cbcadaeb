package extract

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	docxDefaultPart     = "word/document.xml"
	contentTypesPath    = "[Content_Types].xml"
	docxMainContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"
	cellSeparator       = " | "
)

type contentTypes struct {
	Overrides []struct {
		PartName    string `xml:"PartName,attr"`
		ContentType string `xml:"ContentType,attr"`
	} `xml:"Override"`
}

// extractDOCX returns one line per body paragraph and one line per table row,
// in document order. Table cells are joined with " | ".
func extractDOCX(content []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", &ExtractionError{Format: "docx", Err: fmt.Errorf("not a zip archive: %w", err)}
	}

	docPath := mainDocumentPart(zr)
	f := findPart(zr, docPath)
	if f == nil {
		return "", &ExtractionError{Format: "docx", Err: fmt.Errorf("%s not found", docPath)}
	}
	rc, err := f.Open()
	if err != nil {
		return "", &ExtractionError{Format: "docx", Err: fmt.Errorf("open %s: %w", docPath, err)}
	}
	defer rc.Close()

	lines, err := walkDocument(rc)
	if err != nil {
		return "", &ExtractionError{Format: "docx", Err: err}
	}
	return strings.Join(lines, "\n"), nil
}

// mainDocumentPart resolves the main document from [Content_Types].xml,
// falling back to word/document.xml.
func mainDocumentPart(zr *zip.Reader) string {
	f := findPart(zr, contentTypesPath)
	if f == nil {
		return docxDefaultPart
	}
	rc, err := f.Open()
	if err != nil {
		return docxDefaultPart
	}
	defer rc.Close()

	var ct contentTypes
	if err := xml.NewDecoder(rc).Decode(&ct); err != nil {
		return docxDefaultPart
	}
	for _, o := range ct.Overrides {
		if o.ContentType == docxMainContentType && o.PartName != "" {
			return strings.TrimPrefix(o.PartName, "/")
		}
	}
	return docxDefaultPart
}

func findPart(zr *zip.Reader, name string) *zip.File {
	for _, f := range zr.File {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// walkDocument streams WordprocessingML tokens. Paragraphs nested inside a
// table belong to the enclosing top-level cell.
func walkDocument(r io.Reader) ([]string, error) {
	dec := xml.NewDecoder(r)
	var (
		lines      []string
		para       strings.Builder
		inRun      bool
		inText     bool
		tableDepth int
		row        []string
		cellParas  []string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse document: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "tbl":
				tableDepth++
			case "tr":
				if tableDepth == 1 {
					row = row[:0]
				}
			case "tc":
				if tableDepth == 1 {
					cellParas = cellParas[:0]
				}
			case "p":
				para.Reset()
			case "r":
				inRun = true
			case "t":
				inText = true
			case "tab":
				if inRun {
					para.WriteByte('\t')
				}
			case "br", "cr":
				if inRun {
					para.WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				para.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "r":
				inRun = false
			case "t":
				inText = false
			case "p":
				if tableDepth > 0 {
					cellParas = append(cellParas, para.String())
				} else if s := strings.TrimSpace(para.String()); s != "" {
					lines = append(lines, s)
				}
			case "tc":
				if tableDepth == 1 {
					if s := strings.TrimSpace(strings.Join(cellParas, "\n")); s != "" {
						row = append(row, s)
					}
				}
			case "tr":
				if tableDepth == 1 && len(row) > 0 {
					lines = append(lines, strings.Join(row, cellSeparator))
				}
			case "tbl":
				if tableDepth > 0 {
					tableDepth--
				}
			}
		}
	}
	return lines, nil
}
