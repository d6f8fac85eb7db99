package logs

// Page describes one slice of a filtered batch.
type Page struct {
	Number     int
	TotalPages int
	Total      int
	Start      int
	End        int
}

// Paginate clamps page into [1, TotalPages]. TotalPages is at least 1, so an
// empty batch still has a single empty page.
func Paginate(n, page, size int) Page {
	if size <= 0 {
		size = 1
	}
	if n < 0 {
		n = 0
	}
	total := (n + size - 1) / size
	if total < 1 {
		total = 1
	}
	if page < 1 {
		page = 1
	}
	if page > total {
		page = total
	}
	start := (page - 1) * size
	end := min(start+size, n)
	if start > end {
		start = end
	}
	return Page{Number: page, TotalPages: total, Total: n, Start: start, End: end}
}

// HasPrev reports whether an earlier page exists.
func (p Page) HasPrev() bool { return p.Number > 1 }

// HasNext reports whether a later page exists.
func (p Page) HasNext() bool { return p.Number < p.TotalPages }
