package heap

// CardTable is the per-segment dirty bytemap: one byte per fixed-size
// card granule, 0 clean / non-zero dirty.
//
// Dirtying is a plain byte store, not an atomic one: the burden of
// race-freedom is on the caller, which must route every store to the
// owning heap's mutator before a collection pause observes the table,
// not on the card table itself.
type CardTable struct {
	cards    []byte
	cardSize uintptr
}

// NewCardTable allocates a card table sized for a segment of segSize
// bytes with the given card granule.
func NewCardTable(segSize, cardSize uintptr) *CardTable {
	n := (segSize + cardSize - 1) / cardSize
	return &CardTable{cards: make([]byte, n), cardSize: cardSize}
}

// MarkDirtyByOffset marks the card covering the segment-relative
// offset off as dirty.
func (c *CardTable) MarkDirtyByOffset(off uintptr) {
	c.cards[off/c.cardSize] = 1
}

// Range is a dirty byte span, in segment-relative offsets.
type Range struct {
	Start, End uintptr
}

// DirtyRanges returns a (start, end) span for every dirty card,
// clamped to segSize.
func (c *CardTable) DirtyRanges(segSize uintptr) []Range {
	var ranges []Range
	for i, v := range c.cards {
		if v == 0 {
			continue
		}
		start := uintptr(i) * c.cardSize
		end := start + c.cardSize
		if end > segSize {
			end = segSize
		}
		ranges = append(ranges, Range{start, end})
	}
	return ranges
}

// DirtyCount returns the number of dirty cards.
func (c *CardTable) DirtyCount() int {
	n := 0
	for _, v := range c.cards {
		if v != 0 {
			n++
		}
	}
	return n
}

// ClearAll resets every card to clean.
func (c *CardTable) ClearAll() {
	for i := range c.cards {
		c.cards[i] = 0
	}
}

// Len returns the number of card granules.
func (c *CardTable) Len() int { return len(c.cards) }
