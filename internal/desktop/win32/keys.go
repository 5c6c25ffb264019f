package win32

import (
	"fmt"
	"strings"
	"unicode"

	"ghostsync/cli/internal/desktop"
)

// Virtual-key codes used by the input sequence.
const (
	vkShift  = 0x10
	vkCtrl   = 0x11
	vkAlt    = 0x12
	vkEnter  = 0x0D
	vkDelete = 0x2E
)

func virtualKey(key string) (byte, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	switch k {
	case desktop.KeyCtrl:
		return vkCtrl, nil
	case desktop.KeyShift:
		return vkShift, nil
	case desktop.KeyAlt:
		return vkAlt, nil
	case desktop.KeyEnter:
		return vkEnter, nil
	case desktop.KeyDelete:
		return vkDelete, nil
	}
	if len(k) == 1 {
		r := rune(k[0])
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return byte(unicode.ToUpper(r)), nil
		}
	}
	return 0, fmt.Errorf("unsupported key %q", key)
}

// titleMatches is a case-sensitive substring test on a window title.
func titleMatches(title, needle string) bool {
	return strings.Contains(title, needle)
}

// bgraToRGBA converts a top-down 32bpp DIB in place.
func bgraToRGBA(pix []byte) {
	for i := 0; i+3 < len(pix); i += 4 {
		pix[i], pix[i+2] = pix[i+2], pix[i]
		pix[i+3] = 0xff
	}
}
