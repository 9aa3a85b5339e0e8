package pathutil

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHasDotSegments(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/normal/path", false},
		{"/path/./here", true},
		{"/path/../up", true},
		{".", true},
		{"..", true},
		{"/...", false},
		{"/.hidden", false},
		{"/path/to/.", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := HasDotSegments(tt.path); got != tt.want {
				t.Errorf("HasDotSegments(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestIsSafeRelativePath(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"simple file", "index.html", true},
		{"nested file", "assets/img/logo.png", true},
		{"dot segment normalizes", "a/./b.js", true},
		{"dotfile", ".hidden", true},
		{"trailing slash dir", "assets/", true},

		{"empty", "", false},
		{"dot", ".", false},
		{"parent", "..", false},
		{"traversal", "../../etc/passwd", false},
		{"inner traversal", "a/../../b", false},
		{"double dot inside name", "a..b.js", false},
		{"absolute", "/etc/passwd", false},
		{"root", "/", false},
		{"backslash", `..\windows\system32`, false},
		{"backslash plain", `a\b.png`, false},
		{"nul byte", "a\x00.html", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSafeRelativePath(tt.in); got != tt.want {
				t.Errorf("IsSafeRelativePath(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsSafeIdentifier(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"1700000000000_game", true},
		{"a.b-c_D9", true},
		{"...", true},

		{"", false},
		{".", false},
		{"..", false},
		{"a/b", false},
		{`a\b`, false},
		{"a b", false},
		{"caf\u00e9", false},
		{"id%2F", false},
		{strings.Repeat("a", MaxIdentifierLen), true},
		{strings.Repeat("a", MaxIdentifierLen+1), false},
	}

	for _, tt := range tests {
		if got := IsSafeIdentifier(tt.in); got != tt.want {
			t.Errorf("IsSafeIdentifier(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestResolvesInside(t *testing.T) {
	root := t.TempDir()

	got, err := ResolvesInside(root, "game/index.html")
	if err != nil {
		t.Fatalf("ResolvesInside: %v", err)
	}
	if want := filepath.Join(root, "game", "index.html"); got != want {
		t.Fatalf("path = %q, want %q", got, want)
	}

	for _, bad := range []string{"..", "../x", "a/../../x", "", "."} {
		if _, err := ResolvesInside(root, bad); !errors.Is(err, ErrPathEscape) {
			t.Errorf("ResolvesInside(%q) err = %v, want ErrPathEscape", bad, err)
		}
	}
}

func TestResolvesInside_SymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	if err := os.WriteFile(secret, []byte("s"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(secret, filepath.Join(root, "link.txt")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := ResolvesInside(root, "link.txt"); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
}

func TestResolvesInside_SymlinkedAncestor(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	if err := os.Symlink(outside, filepath.Join(root, "dir")); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	// the file does not exist yet but its parent leads outside
	if _, err := ResolvesInside(root, "dir/new.txt"); !errors.Is(err, ErrPathEscape) {
		t.Fatalf("err = %v, want ErrPathEscape", err)
	}
}

func TestResolvesInside_FileAsDirectory(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := ResolvesInside(root, "index.html/x"); err != nil {
		t.Fatalf("err = %v, want nil", err)
	}
}

func TestResolvesInside_SymlinkedRoot(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.css"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(t.TempDir(), "root")
	if err := os.Symlink(dir, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := ResolvesInside(link, "a.css"); err != nil {
		t.Fatalf("ResolvesInside through symlinked root: %v", err)
	}
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"My Game (final).zip", 50, "MyGamefinal.zip"},
		{"../../evil.html", 50, "evil.html"},
		{`C:\Users\me\ad.html`, 50, "ad.html"},
		{"a..b...c", 50, "a.b.c"},
		{"...hidden", 50, "hidden"},
		{"\u00fcber.html", 50, "ber.html"},
		{strings.Repeat("x", 60) + ".zip", 50, strings.Repeat("x", 50)},
		{"", 50, ""},
	}

	for _, tt := range tests {
		if got := SanitizeName(tt.in, tt.max); got != tt.want {
			t.Errorf("SanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func FuzzIsSafeRelativePath(f *testing.F) {
	f.Add("index.html")
	f.Add("../../etc/passwd")
	f.Add("/abs")
	f.Add("a/./b")
	f.Add("a..b")

	f.Fuzz(func(t *testing.T, p string) {
		if !IsSafeRelativePath(p) {
			return
		}
		if strings.Contains(p, "..") || strings.HasPrefix(p, "/") || p == "" {
			t.Fatalf("IsSafeRelativePath(%q) = true for unsafe input", p)
		}
		root := t.TempDir()
		if _, err := ResolvesInside(root, p); errors.Is(err, ErrPathEscape) {
			t.Fatalf("safe path %q escaped root", p)
		}
	})
}

func FuzzIsSafeIdentifier(f *testing.F) {
	f.Add("1700000000000_game")
	f.Add("a/b")
	f.Add("..")

	f.Fuzz(func(t *testing.T, s string) {
		if !IsSafeIdentifier(s) {
			return
		}
		for _, c := range s {
			ok := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
				c == '.' || c == '_' || c == '-'
			if !ok {
				t.Fatalf("IsSafeIdentifier(%q) = true with disallowed rune %q", s, c)
			}
		}
	})
}

func FuzzSanitizeName(f *testing.F) {
	f.Add("My Game.zip")
	f.Add("../../x")

	f.Fuzz(func(t *testing.T, s string) {
		out := SanitizeName(s, 50)
		if len(out) > 50 {
			t.Fatalf("len = %d", len(out))
		}
		if strings.Contains(out, "..") || strings.HasPrefix(out, ".") {
			t.Fatalf("SanitizeName(%q) = %q", s, out)
		}
		if out != "" && !IsSafeIdentifier(out) {
			t.Fatalf("SanitizeName(%q) = %q is not an identifier", s, out)
		}
	})
}
