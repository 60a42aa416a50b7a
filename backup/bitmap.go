package backup

import "math/bits"

// Bitmap keeps one dirty bit per backup page, 32 pages to a word.
type Bitmap struct {
	words []uint32
	pages int
}

func NewBitmap(size uint32) *Bitmap {
	pages := int((size + PageSize - 1) / PageSize)
	return &Bitmap{words: make([]uint32, (pages+31)/32), pages: pages}
}

func (b *Bitmap) Pages() int {
	return b.pages
}

func (b *Bitmap) Words() []uint32 {
	return b.words
}

func (b *Bitmap) IsDirty(page int) bool {
	if page < 0 || page >= b.pages {
		return false
	}
	return b.words[page/32]&(1<<(page%32)) != 0
}

func (b *Bitmap) Set(page int) {
	if page >= 0 && page < b.pages {
		b.words[page/32] |= 1 << (page % 32)
	}
}

func (b *Bitmap) Clear(page int) {
	if page >= 0 && page < b.pages {
		b.words[page/32] &^= 1 << (page % 32)
	}
}

func (b *Bitmap) SetAll() {
	for page := 0; page < b.pages; page++ {
		b.Set(page)
	}
}

func (b *Bitmap) ClearAll() {
	clear(b.words)
}

// Dirty counts the dirty pages.
func (b *Bitmap) Dirty() int {
	var n int
	for _, w := range b.words {
		n += bits.OnesCount32(w)
	}
	return n
}

// CopyTo fills dst with the bitmap words and zeroes the rest.
func (b *Bitmap) CopyTo(dst []uint32) {
	n := copy(dst, b.words)
	clear(dst[n:])
}
