// Package pdf loads PDF documents and builds sub-documents from selected pages.
package pdf

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rotisserie/eris"

	"github.com/sells-group/evidence-cli/internal/model"
)

// ErrInvalidDocument is returned when bytes cannot be parsed as a PDF.
var ErrInvalidDocument = eris.New("pdf: invalid document")

func init() {
	// Keep pdfcpu from writing a config directory under the user's home.
	api.DisableConfigDir()
}

func newConfig() *pdfmodel.Configuration {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return conf
}

// Load validates data as a PDF and returns a Document with its page count.
func Load(name string, data []byte) (*model.Document, error) {
	n, err := countPages(data)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: load %s", name)
	}
	return &model.Document{Name: name, Data: data, Pages: n}, nil
}

// LoadFile reads and validates the PDF at path.
func LoadFile(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "pdf: read %s", path)
	}
	return Load(filepath.Base(path), data)
}

// PageCount returns the number of pages in doc.
func PageCount(doc model.Document) (int, error) {
	return countPages(doc.Data)
}

func countPages(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, eris.Wrap(ErrInvalidDocument, "empty input")
	}
	n, err := api.PageCount(bytes.NewReader(data), newConfig())
	if err != nil {
		return 0, eris.Wrap(ErrInvalidDocument, err.Error())
	}
	return n, nil
}

// Filter keeps the indices that fall inside [0, count), preserving order and
// repeats.
func Filter(pages model.PageSet, count int) model.PageSet {
	out := make(model.PageSet, 0, len(pages))
	for _, p := range pages {
		if p >= 0 && p < count {
			out = append(out, p)
		}
	}
	return out
}

// Extract builds a new document holding the selected pages of src in the
// given order. Out-of-range indices are dropped. A repeated index yields a
// repeated page. When nothing survives filtering the result has zero pages
// and no data.
func Extract(src model.Document, pages model.PageSet) (*model.Document, error) {
	count, err := PageCount(src)
	if err != nil {
		return nil, err
	}

	kept := Filter(pages, count)
	name := subName(src.Name)
	if len(kept) == 0 {
		return &model.Document{Name: name}, nil
	}

	selection := make([]string, len(kept))
	for i, p := range kept {
		selection[i] = strconv.Itoa(p + 1)
	}

	var out bytes.Buffer
	if err := api.Collect(bytes.NewReader(src.Data), &out, selection, newConfig()); err != nil {
		return nil, eris.Wrap(ErrInvalidDocument, err.Error())
	}

	return &model.Document{Name: name, Data: out.Bytes(), Pages: len(kept)}, nil
}

// subName appends "-pages" before the extension of name.
func subName(name string) string {
	ext := filepath.Ext(name)
	return name[:len(name)-len(ext)] + "-pages" + ext
}
