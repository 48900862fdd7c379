package lzss

// tree is the match finder. Every window position is a node in one of 256
// binary search trees, one per leading byte, ordered by the maxMatch bytes
// starting at that position. Nodes are addressed by index; 0 to window-1 are
// ring positions, window is nil and window+1+c is the root for byte c.
type tree struct {
	// Positions near the end of the ring are mirrored past it so a key can
	// be read without wrapping
	ring [window + maxMatch - 1]byte

	parent [window + 1 + 256]int
	left   [window + 1 + 256]int
	right  [window + 1 + 256]int

	matchPos int
	matchLen int

	vram bool
}

func newTree(opts ...Option) *tree {
	t := new(tree)
	for _, o := range opts {
		o(t)
	}
	for i := window + 1; i <= window+256; i++ {
		t.right[i] = nilNode
	}
	for i := 0; i < window; i++ {
		t.parent[i] = nilNode
	}
	return t
}

// insert adds position r to its tree and leaves the longest earlier match in
// matchPos and matchLen. When walking the tree a later node replaces an
// earlier one with an equal match so the nearest position wins. A node whose
// whole key matches is replaced by r outright.
func (t *tree) insert(r int) {
	prev := (r - 1) & (window - 1)

	cmp := 1
	t.matchLen = 0

	key := t.ring[r : r+maxMatch]
	p := window + 1 + int(key[0])

	t.left[r], t.right[r] = nilNode, nilNode

	for {
		if cmp >= 0 {
			if t.right[p] == nilNode {
				t.right[p], t.parent[r] = r, p
				return
			}
			p = t.right[p]
		} else {
			if t.left[p] == nilNode {
				t.left[p], t.parent[r] = r, p
				return
			}
			p = t.left[p]
		}

		i := 1
		for ; i < maxMatch; i++ {
			if cmp = int(key[i]) - int(t.ring[p+i]); cmp != 0 {
				break
			}
		}

		if i > t.matchLen && (!t.vram || p != prev) {
			t.matchPos, t.matchLen = p, i
			if i == maxMatch {
				break
			}
		}
	}

	// r takes over p's place in the tree
	t.parent[r], t.left[r], t.right[r] = t.parent[p], t.left[p], t.right[p]
	t.parent[t.left[p]], t.parent[t.right[p]] = r, r

	if t.right[t.parent[p]] == p {
		t.right[t.parent[p]] = r
	} else {
		t.left[t.parent[p]] = r
	}

	t.parent[p] = nilNode
}

// delete removes position p, if present. A node with two children is
// replaced by its in-order predecessor.
func (t *tree) delete(p int) {
	if t.parent[p] == nilNode {
		return
	}

	var q int
	switch {
	case t.right[p] == nilNode:
		q = t.left[p]
	case t.left[p] == nilNode:
		q = t.right[p]
	default:
		q = t.left[p]
		if t.right[q] != nilNode {
			for t.right[q] != nilNode {
				q = t.right[q]
			}

			t.right[t.parent[q]], t.parent[t.left[q]] = t.left[q], t.parent[q]
			t.left[q], t.parent[t.left[p]] = t.left[p], q
		}

		t.right[q], t.parent[t.right[p]] = t.right[p], q
	}

	t.parent[q] = t.parent[p]

	if t.right[t.parent[p]] == p {
		t.right[t.parent[p]] = q
	} else {
		t.left[t.parent[p]] = q
	}

	t.parent[p] = nilNode
}
