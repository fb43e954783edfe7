// Package ingest loads raw chapter sources and produces normalized text
// buffers. Plain text files are taken as-is; XHTML chapter files (the form
// EPUB readers hand over) have their block-level text extracted first.
// Either way the result passes through core/text normalization, so all
// downstream offsets reference the canonical form.
package ingest

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/antchfx/xmlquery"

	"github.com/FocuswithJustin/Lectern/core/errors"
	"github.com/FocuswithJustin/Lectern/core/text"
)

// blockXPath selects the block-level elements whose text becomes the
// chapter body, in document order.
const blockXPath = "//h1 | //h2 | //h3 | //h4 | //p | //blockquote | //li"

// Load reads the file at path and returns its normalized buffer,
// dispatching on the extension.
func Load(path string) (*text.Buffer, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xhtml", ".html", ".htm", ".xml":
		return LoadXHTML(path)
	default:
		return LoadText(path)
	}
}

// LoadText reads a plain-text chapter file.
func LoadText(path string) (*text.Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewIO("read", path, err)
	}
	return text.Normalize(string(raw)), nil
}

// LoadXHTML extracts the chapter body from an XHTML file: the text of each
// heading, paragraph, blockquote, and list item, one block per paragraph
// break.
func LoadXHTML(path string) (*text.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	defer f.Close()

	doc, err := xmlquery.Parse(f)
	if err != nil {
		return nil, errors.NewParse("XHTML", path, err.Error())
	}
	return ExtractBlocks(doc), nil
}

// ExtractBlocks projects a parsed XHTML document onto plain chapter text:
// block elements separated by blank lines, inline whitespace collapsed.
func ExtractBlocks(doc *xmlquery.Node) *text.Buffer {
	var blocks []string
	for _, n := range xmlquery.Find(doc, blockXPath) {
		t := collapseWhitespace(n.InnerText())
		if t != "" {
			blocks = append(blocks, t)
		}
	}
	return text.Normalize(strings.Join(blocks, "\n\n"))
}

// collapseWhitespace trims a block and folds interior whitespace runs
// (including the source file's own line wrapping) into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
