package screen

import (
	"bytes"
	"image"
)

// Identical reports whether two frames have the same bounds and pixels.
func Identical(a, b image.Image) bool {
	if a == nil || b == nil {
		return false
	}
	if a.Bounds() != b.Bounds() {
		return false
	}
	if ra, ok := a.(*image.RGBA); ok {
		if rb, ok := b.(*image.RGBA); ok {
			return identicalRGBA(ra, rb)
		}
	}
	if na, ok := a.(*image.NRGBA); ok {
		if nb, ok := b.(*image.NRGBA); ok && na.Stride == nb.Stride {
			return bytes.Equal(na.Pix, nb.Pix)
		}
	}
	bounds := a.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r1, g1, b1, a1 := a.At(x, y).RGBA()
			r2, g2, b2, a2 := b.At(x, y).RGBA()
			if r1 != r2 || g1 != g2 || b1 != b2 || a1 != a2 {
				return false
			}
		}
	}
	return true
}

func identicalRGBA(a, b *image.RGBA) bool {
	if a.Stride == b.Stride {
		return bytes.Equal(a.Pix, b.Pix)
	}
	w := a.Rect.Dx() * 4
	for y := 0; y < a.Rect.Dy(); y++ {
		rowA := a.Pix[y*a.Stride : y*a.Stride+w]
		rowB := b.Pix[y*b.Stride : y*b.Stride+w]
		if !bytes.Equal(rowA, rowB) {
			return false
		}
	}
	return true
}
