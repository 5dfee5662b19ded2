package checksum

import "testing"

func TestGitBlob(t *testing.T) {
	// Same ids as `git hash-object`.
	cases := map[string]string{
		"":        "e69de29bb2d1d6434b8b29ae775ad8c2e48c5391",
		"hello\n": "ce013625030ba8dba906f756967f9e9ca394464a",
	}
	for in, want := range cases {
		if got := GitBlob([]byte(in)); got != want {
			t.Errorf("GitBlob(%q) = %s, want %s", in, got, want)
		}
	}
}
