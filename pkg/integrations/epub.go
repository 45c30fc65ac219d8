package integrations

import (
	"errors"
	"fmt"
	"html"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-shiori/go-epub"
	"github.com/kerbaras/reader/pkg/data"
)

var ErrNothingToExport = errors.New("nothing to export")

// EPubBuilder writes single units to EPUB files for offline reading
type EPubBuilder struct {
	outputDir   string
	rightToLeft bool
}

func NewEPubBuilder(outputDir string) *EPubBuilder {
	return &EPubBuilder{outputDir: outputDir}
}

// SetRightToLeft sets the page progression direction of image books
func (b *EPubBuilder) SetRightToLeft(rtl bool) {
	b.rightToLeft = rtl
}

func (b *EPubBuilder) newBook(entry *data.Entry, unit data.Unit) (*epub.Epub, error) {
	if err := os.MkdirAll(b.outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	e, err := epub.NewEpub(fmt.Sprintf("%s - %s", entry.Title, unit.Label()))
	if err != nil {
		return nil, fmt.Errorf("failed to create EPub: %w", err)
	}
	if entry.Source != "" {
		e.SetAuthor(entry.Source)
	}
	if entry.Description != "" {
		e.SetDescription(entry.Description)
	}
	e.SetLang("en")
	return e, nil
}

func (b *EPubBuilder) outputPath(entry *data.Entry, unit data.Unit) string {
	name := sanitizeFilename(fmt.Sprintf("%s - %s", entry.Title, unit.Label()))
	return filepath.Join(b.outputDir, name+".epub")
}

// ExportImages writes the page images of a unit, in order, to an EPUB
func (b *EPubBuilder) ExportImages(entry *data.Entry, unit data.Unit, pages [][]byte) (string, error) {
	if len(pages) == 0 {
		return "", ErrNothingToExport
	}

	e, err := b.newBook(entry, unit)
	if err != nil {
		return "", err
	}
	if b.rightToLeft {
		e.SetPpd("rtl")
	}

	// go-epub reads image sources when the book is written
	stage, err := os.MkdirTemp("", "reader-epub-*")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stage)

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(unit.Label()))

	for i, page := range pages {
		if len(page) == 0 {
			return "", fmt.Errorf("page %d is empty", i+1)
		}
		name := fmt.Sprintf("%04d%s", i+1, imageExt(page))
		src := filepath.Join(stage, name)
		if err := os.WriteFile(src, page, 0644); err != nil {
			return "", fmt.Errorf("failed to stage page %d: %w", i+1, err)
		}

		internalPath, err := e.AddImage(src, name)
		if err != nil {
			return "", fmt.Errorf("failed to add image %s: %w", name, err)
		}
		fmt.Fprintf(&body,
			`<div class="page"><img src="%s" alt="Page %d" style="width:100%%;height:auto;"/></div>`+"\n",
			internalPath, i+1,
		)
	}

	if _, err := e.AddSection(body.String(), unit.Label(), "", ""); err != nil {
		return "", fmt.Errorf("failed to add section: %w", err)
	}
	return b.write(e, entry, unit)
}

// ExportText writes the text pages of a unit to an EPUB
func (b *EPubBuilder) ExportText(entry *data.Entry, unit data.Unit, pages []data.TextPage) (string, error) {
	if len(pages) == 0 {
		return "", ErrNothingToExport
	}

	e, err := b.newBook(entry, unit)
	if err != nil {
		return "", err
	}

	var body strings.Builder
	fmt.Fprintf(&body, "<h1>%s</h1>\n", html.EscapeString(unit.Label()))
	for _, page := range pages {
		for _, line := range page.Lines {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintf(&body, "<p>%s</p>\n", html.EscapeString(line))
		}
	}

	if _, err := e.AddSection(body.String(), unit.Label(), "", ""); err != nil {
		return "", fmt.Errorf("failed to add section: %w", err)
	}
	return b.write(e, entry, unit)
}

func (b *EPubBuilder) write(e *epub.Epub, entry *data.Entry, unit data.Unit) (string, error) {
	out := b.outputPath(entry, unit)
	if err := e.Write(out); err != nil {
		return "", fmt.Errorf("failed to write EPub: %w", err)
	}
	return out, nil
}

func imageExt(page []byte) string {
	switch http.DetectContentType(page) {
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ".jpg"
}

// sanitizeFilename removes characters that are invalid in filenames
func sanitizeFilename(name string) string {
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := name
	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}
	result = strings.TrimSpace(result)
	result = strings.Trim(result, ".")
	return result
}
