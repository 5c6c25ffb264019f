package win32

import "testing"

func TestVirtualKey(t *testing.T) {
	cases := map[string]byte{
		"ctrl":   0x11,
		"shift":  0x10,
		"enter":  0x0D,
		"delete": 0x2E,
		"i":      'I',
		"A":      'A',
		"7":      '7',
	}
	for key, want := range cases {
		got, err := virtualKey(key)
		if err != nil {
			t.Fatalf("virtualKey(%q) failed: %v", key, err)
		}
		if got != want {
			t.Fatalf("virtualKey(%q) = %#x, want %#x", key, got, want)
		}
	}
	if _, err := virtualKey("f13"); err == nil {
		t.Fatal("expected error for unsupported key")
	}
}

func TestBGRAToRGBA(t *testing.T) {
	pix := []byte{1, 2, 3, 0, 10, 20, 30, 0}
	bgraToRGBA(pix)
	want := []byte{3, 2, 1, 255, 30, 20, 10, 255}
	for i := range want {
		if pix[i] != want[i] {
			t.Fatalf("pixel byte %d = %d, want %d", i, pix[i], want[i])
		}
	}
}

func TestTitleMatches(t *testing.T) {
	if !titleMatches("main.go - Antigravity", "Antigravity") {
		t.Fatal("expected substring match")
	}
	if titleMatches("antigravity notes - Notepad", "Antigravity") {
		t.Fatal("expected case-sensitive match")
	}
	if titleMatches("Code", "Antigravity") {
		t.Fatal("unexpected match")
	}
}
