package domain

const (
	defaultPageCount = 10
)

// Page selects a window of a list: Skip items are dropped from the head and
// at most Count are returned.
type Page struct {
	Count int
	Skip  int
}

// NewPage returns a page with defaults applied: a non positive count
// becomes 10, a negative skip becomes 0.
func NewPage(count, skip int) Page {
	if count <= 0 {
		count = defaultPageCount
	}
	if skip < 0 {
		skip = 0
	}
	return Page{count, skip}
}

// Apply returns the window of txs selected by the page.
func (p Page) Apply(txs []Transaction) []Transaction {
	page := NewPage(p.Count, p.Skip)
	if page.Skip >= len(txs) {
		return []Transaction{}
	}
	end := page.Skip + page.Count
	if end > len(txs) {
		end = len(txs)
	}
	return txs[page.Skip:end]
}
