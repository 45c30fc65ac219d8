package sources

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/kerbaras/reader/pkg/data"
)

const (
	TextDirectoryName   = "textdir"
	DefaultLinesPerPage = 40
)

var leadingNumber = regexp.MustCompile(`^(\d+(?:\.\d+)?)`)

// TextDirectory serves novels from disk. Each subdirectory of root is an
// entry and each *.txt file in it a unit, ordered by file name:
//
//	root/
//	  my_novel/
//	    001 - Prologue.txt
//	    002 - The Road.txt
type TextDirectory struct {
	root         string
	linesPerPage int
}

func NewTextDirectory(root string, linesPerPage int) *TextDirectory {
	if linesPerPage <= 0 {
		linesPerPage = DefaultLinesPerPage
	}
	return &TextDirectory{root: root, linesPerPage: linesPerPage}
}

func (d *TextDirectory) Name() string { return TextDirectoryName }

func (d *TextDirectory) Search(_ context.Context, query string) ([]data.Entry, error) {
	dirs, err := os.ReadDir(d.root)
	if err != nil {
		return nil, fmt.Errorf("read library: %w", err)
	}
	query = strings.ToLower(query)
	var out []data.Entry
	for _, de := range dirs {
		if !de.IsDir() {
			continue
		}
		entry := d.entry(de.Name())
		if query == "" || strings.Contains(strings.ToLower(entry.Title), query) {
			out = append(out, entry)
		}
	}
	return out, nil
}

func (d *TextDirectory) GetEntry(_ context.Context, id string) (*data.Entry, error) {
	info, err := os.Stat(d.entryDir(id))
	if err != nil {
		return nil, fmt.Errorf("get entry %s: %w", id, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("get entry %s: not a directory", id)
	}
	entry := d.entry(id)
	return &entry, nil
}

// GetUnits numbers units by the leading number of their file name, or by
// position when the name has none.
func (d *TextDirectory) GetUnits(_ context.Context, entryID string) ([]data.Unit, error) {
	files, err := os.ReadDir(d.entryDir(entryID))
	if err != nil {
		return nil, fmt.Errorf("get units %s: %w", entryID, err)
	}
	var names []string
	for _, f := range files {
		if !f.IsDir() && strings.EqualFold(filepath.Ext(f.Name()), ".txt") {
			names = append(names, f.Name())
		}
	}
	slices.Sort(names)

	units := make([]data.Unit, len(names))
	for i, name := range names {
		base := strings.TrimSuffix(name, filepath.Ext(name))
		ordinal := float64(i + 1)
		title := base
		if m := leadingNumber.FindString(base); m != "" {
			ordinal, _ = strconv.ParseFloat(m, 64)
			title = strings.TrimLeft(strings.TrimPrefix(base, m), " -_.")
		}
		units[i] = data.Unit{ID: name, EntryID: entryID, Ordinal: ordinal, Title: title}
	}
	return units, nil
}

// FetchText splits a unit into pages of linesPerPage lines. Blank lines are
// kept so paragraphs survive.
func (d *TextDirectory) FetchText(ctx context.Context, entryID, unitID string) (*data.TextDetails, error) {
	if unitID != filepath.Base(unitID) {
		return nil, fmt.Errorf("invalid unit id %q", unitID)
	}
	f, err := os.Open(filepath.Join(d.entryDir(entryID), unitID))
	if err != nil {
		return nil, fmt.Errorf("fetch text %s: %w", unitID, err)
	}
	defer f.Close()

	details := &data.TextDetails{Unit: unitID}
	var lines []string
	flush := func() {
		details.Pages = append(details.Pages, data.TextPage{Index: len(details.Pages), Lines: lines})
		lines = nil
	}

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines = append(lines, scanner.Text())
		if len(lines) == d.linesPerPage {
			flush()
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("fetch text %s: %w", unitID, err)
	}
	if len(lines) > 0 || len(details.Pages) == 0 {
		flush()
	}
	return details, nil
}

func (d *TextDirectory) entryDir(id string) string {
	return filepath.Join(d.root, filepath.Base(id))
}

func (d *TextDirectory) entry(id string) data.Entry {
	return data.Entry{
		ID:        id,
		Title:     strings.ReplaceAll(id, "_", " "),
		Source:    TextDirectoryName,
		MediaType: data.MediaText,
	}
}
