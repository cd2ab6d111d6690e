package graph

// worklist is the FIFO queue of tokens to process in the current bar.
//
// Tokens are processed strictly in enqueue order; ties are never broken by
// node id or type. Popped slots are not reclaimed until the bar ends, which
// keeps pop O(1) and lets the driver take the unprocessed tail when the bar
// halts.
type worklist struct {
	items []Token
	head  int
}

func newWorklist(seed []Token) *worklist {
	items := make([]Token, len(seed))
	copy(items, seed)
	return &worklist{items: items}
}

func (w *worklist) push(t Token) {
	w.items = append(w.items, t)
}

func (w *worklist) pop() (Token, bool) {
	if w.head >= len(w.items) {
		return Token{}, false
	}
	t := w.items[w.head]
	w.head++
	return t, true
}

// Len returns the number of tokens not yet popped.
func (w *worklist) Len() int {
	return len(w.items) - w.head
}

// drain removes and returns every token not yet popped.
func (w *worklist) drain() []Token {
	rest := append([]Token(nil), w.items[w.head:]...)
	w.head = len(w.items)
	return rest
}
