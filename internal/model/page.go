package model

// PageSet is a sequence of zero-based page indices. Order is significant:
// the page extractor emits pages in exactly this order, repeats included.
type PageSet []int

// Len returns the number of indices.
func (p PageSet) Len() int {
	return len(p)
}

// Empty reports whether the set holds no indices.
func (p PageSet) Empty() bool {
	return len(p) == 0
}

// OneBased returns the indices as one-based page numbers.
func (p PageSet) OneBased() []int {
	out := make([]int, len(p))
	for i, idx := range p {
		out[i] = idx + 1
	}
	return out
}

// Document is an in-memory PDF file.
type Document struct {
	// Name is a display name, usually the source file name.
	Name string
	// Data holds the raw file bytes. It is nil for a zero-page document.
	Data []byte
	// Pages is the page count recorded when the document was loaded or built.
	Pages int
}
