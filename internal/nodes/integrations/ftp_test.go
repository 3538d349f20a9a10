package integrations

import (
	"testing"

	"github.com/jlaffaye/ftp"
)

func TestEntryTypeToString(t *testing.T) {
	cases := []struct {
		in   ftp.EntryType
		want string
	}{
		{ftp.EntryTypeFile, "file"},
		{ftp.EntryTypeFolder, "directory"},
		{ftp.EntryTypeLink, "link"},
	}
	for _, tc := range cases {
		if got := entryTypeToString(tc.in); got != tc.want {
			t.Fatalf("entryTypeToString(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFTPConnectRequiresHost(t *testing.T) {
	n := &FTPNode{}
	_, err := n.connect(map[string]interface{}{})
	if err == nil {
		t.Fatal("expected an error when host is missing")
	}
}
