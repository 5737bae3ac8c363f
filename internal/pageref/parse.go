// Package pageref turns free-form model answers into page indices.
package pageref

import (
	"strconv"

	"github.com/sells-group/evidence-cli/internal/model"
)

// Parse extracts every run of digits in text as a one-based page number and
// returns the zero-based indices in the order they appear. A run equal to zero
// marks "no relevant page" and is dropped. Ranges such as "3-5" are not
// expanded: the hyphen is just another separator.
func Parse(text string) model.PageSet {
	var pages model.PageSet
	start := -1
	for i := 0; i <= len(text); i++ {
		if i < len(text) && isDigit(text[i]) {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			if n, ok := pageNumber(text[start:i]); ok {
				pages = append(pages, n-1)
			}
			start = -1
		}
	}
	return pages
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// pageNumber converts a digit run. Zero and values that overflow int are
// rejected.
func pageNumber(run string) (int, bool) {
	n, err := strconv.Atoi(run)
	if err != nil || n == 0 {
		return 0, false
	}
	return n, true
}
