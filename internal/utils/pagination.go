// Package utils provides small helpers shared by the HTTP layer that carry
// no domain logic.
package utils

import "strconv"

// Page is a 1-based page request with a bounded size.
type Page struct {
	Number int
	Size   int
}

// ParsePage reads page and size query values. Missing or unparsable values
// fall back to page 1 and defSize; the size is clamped to [1, maxSize].
func ParsePage(page, size string, defSize, maxSize int) Page {
	p := Page{Number: atoiDefault(page, 1), Size: atoiDefault(size, defSize)}
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 1
	}
	if p.Size > maxSize {
		p.Size = maxSize
	}
	return p
}

// Offset is the number of rows to skip.
func (p Page) Offset() int { return (p.Number - 1) * p.Size }

// TotalPages is the page count for total rows; zero rows means zero pages.
func (p Page) TotalPages(total int64) int {
	if total <= 0 {
		return 0
	}
	return int((total + int64(p.Size) - 1) / int64(p.Size))
}

func atoiDefault(s string, def int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
