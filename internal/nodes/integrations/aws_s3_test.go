package integrations

import "testing"

func TestIsValidUTF8(t *testing.T) {
	if !isValidUTF8([]byte("hello world")) {
		t.Fatal("plain ASCII must be valid UTF-8")
	}
	if !isValidUTF8([]byte("héllo")) {
		t.Fatal("two-byte sequences must be valid UTF-8")
	}
	if isValidUTF8([]byte{0xFF, 0xFE, 0x00}) {
		t.Fatal("binary garbage must not be treated as valid UTF-8")
	}
	if isValidUTF8([]byte{0xC0}) {
		t.Fatal("truncated multi-byte sequence must not be valid UTF-8")
	}
}

func TestDetectContentType(t *testing.T) {
	cases := map[string]string{
		"report.pdf":    "application/pdf",
		"index.HTML":    "text/html",
		"data.json":     "application/json",
		"photo.JPG":     "image/jpeg",
		"archive.zip":   "application/zip",
		"unknown.xyz":   "application/octet-stream",
		"noextension":   "application/octet-stream",
	}
	for key, want := range cases {
		if got := detectContentType(key); got != want {
			t.Errorf("detectContentType(%q) = %q, want %q", key, got, want)
		}
	}
}
