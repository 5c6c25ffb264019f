package screen

import "image"

type Decision int

const (
	Accept Decision = iota
	Deny
)

func (d Decision) String() string {
	if d == Deny {
		return "deny"
	}
	return "accept"
}

// Prompt holds the click targets of a blocking accept/deny prompt.
type Prompt struct {
	Accept image.Point
	Deny   image.Point
}

// Target returns the point to click for d.
func (p Prompt) Target(d Decision) image.Point {
	if d == Deny {
		return p.Deny
	}
	return p.Accept
}

type PromptDetector interface {
	Detect(frame image.Image) (Prompt, bool)
}

const defaultStride = 20

// ColorDetector finds a green accept button next to a red deny button in the
// right half and bottom 80% of the frame, sampling a coarse grid.
type ColorDetector struct {
	Stride int
}

func (d ColorDetector) Detect(frame image.Image) (Prompt, bool) {
	stride := d.Stride
	if stride <= 0 {
		stride = defaultStride
	}
	b := frame.Bounds()
	left := b.Min.X + b.Dx()/2
	top := b.Min.Y + b.Dy()/5

	var (
		p           Prompt
		foundAccept bool
		foundDeny   bool
	)
	for y := top; y < b.Max.Y; y += stride {
		for x := left; x < b.Max.X; x += stride {
			r, g, bl := rgb8(frame, x, y)
			if !foundAccept && dominant(g, r, bl) {
				p.Accept = image.Pt(x, y)
				foundAccept = true
			}
			if !foundDeny && dominant(r, g, bl) {
				p.Deny = image.Pt(x, y)
				foundDeny = true
			}
			if foundAccept && foundDeny {
				return p, true
			}
		}
	}
	return Prompt{}, false
}

// dominant reports whether channel c is bright and at least 1.5x both others.
func dominant(c, o1, o2 uint32) bool {
	return c > 150 && c*2 > o1*3 && c*2 > o2*3
}

func rgb8(img image.Image, x, y int) (uint32, uint32, uint32) {
	r, g, b, _ := img.At(x, y).RGBA()
	return r >> 8, g >> 8, b >> 8
}
