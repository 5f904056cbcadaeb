package vector

import (
	"container/heap"
	"sort"
)

// topK keeps the k best results seen so far. The heap root is the worst kept result.
type topK struct {
	k     int
	items []Result
}

func newTopK(k int) *topK {
	return &topK{k: k, items: make([]Result, 0, k)}
}

func (t *topK) Len() int           { return len(t.items) }
func (t *topK) Less(i, j int) bool { return better(t.items[j], t.items[i]) }
func (t *topK) Swap(i, j int)      { t.items[i], t.items[j] = t.items[j], t.items[i] }
func (t *topK) Push(x any)         { t.items = append(t.items, x.(Result)) }
func (t *topK) Pop() any {
	n := len(t.items)
	r := t.items[n-1]
	t.items = t.items[:n-1]
	return r
}

func (t *topK) offer(r Result) {
	if len(t.items) < t.k {
		heap.Push(t, r)
		return
	}
	if better(r, t.items[0]) {
		t.items[0] = r
		heap.Fix(t, 0)
	}
}

// sorted returns the kept results best first.
func (t *topK) sorted() []Result {
	out := make([]Result, len(t.items))
	copy(out, t.items)
	sort.Slice(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}
