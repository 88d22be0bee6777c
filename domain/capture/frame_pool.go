package capture

import (
	"image"
	"sync"
)

// ringPool is the fixed set of capture buffers owned by one session. Slots are
// addressed by index: the writable slot receives the next acquired frame and
// Commit turns it into the readable slot before advancing round-robin.
// Consumers never see a slot directly; they get a copy.
type ringPool struct {
	slots    []*image.RGBA
	writable int
	readable int // -1 until the first commit
}

func newRingPool(n int, size image.Point) *ringPool {
	p := &ringPool{slots: make([]*image.RGBA, n), readable: -1}
	for i := range p.slots {
		p.slots[i] = image.NewRGBA(image.Rectangle{Max: size})
	}
	return p
}

func (p *ringPool) Len() int { return len(p.slots) }

// Writable returns the slot the next frame is written into.
func (p *ringPool) Writable() *image.RGBA { return p.slots[p.writable] }

// Commit marks the writable slot readable and advances to the next slot.
func (p *ringPool) Commit() {
	p.readable = p.writable
	p.writable = (p.writable + 1) % len(p.slots)
}

// CopyReadable returns a copy of the readable slot, or nil before the first
// commit. The copy comes from the shared snapshot pool.
func (p *ringPool) CopyReadable() *image.RGBA {
	if p.readable < 0 {
		return nil
	}
	src := p.slots[p.readable]
	dst := acquireFrame(src.Rect)
	copy(dst.Pix, src.Pix)
	return dst
}

// Snapshot buffers are recycled through a sync.Pool to avoid a fresh large
// allocation per frame when consumers hand frames back.
var snapshotPool sync.Pool // stores *image.RGBA

// acquireFrame returns a reusable RGBA image sized to rect. The returned Pix
// length exactly matches rect area * 4, and Stride is width*4.
func acquireFrame(rect image.Rectangle) *image.RGBA {
	w, h := rect.Dx(), rect.Dy()
	if w <= 0 || h <= 0 {
		return &image.RGBA{Rect: rect}
	}
	needed := w * h * 4
	var img *image.RGBA
	if v := snapshotPool.Get(); v != nil {
		img = v.(*image.RGBA)
	}
	if img == nil || cap(img.Pix) < needed {
		img = &image.RGBA{Pix: make([]byte, needed), Stride: w * 4, Rect: rect}
	} else {
		img.Stride = w * 4
		img.Rect = rect
		img.Pix = img.Pix[:needed]
	}
	return img
}

// RecycleFrame returns a snapshot image for reuse. The caller must not touch
// img afterwards. Not recycling is safe; the buffer is simply collected.
func RecycleFrame(img *image.RGBA) {
	if img == nil || img.Pix == nil {
		return
	}
	snapshotPool.Put(img)
}

// copyInto copies src into dst when both have the same size.
func copyInto(dst, src *image.RGBA) bool {
	if dst.Rect.Size() != src.Rect.Size() {
		return false
	}
	w := src.Rect.Dx() * 4
	for y := 0; y < src.Rect.Dy(); y++ {
		so := y * src.Stride
		do := y * dst.Stride
		copy(dst.Pix[do:do+w], src.Pix[so:so+w])
	}
	return true
}
