package devices

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault(t *testing.T) {
	c := Default()

	want := []string{"iphone-14", "iphone-se", "ipad", "ipad-mini", "galaxy-s23", "pixel-7"}
	all := c.All()
	if len(all) != len(want) {
		t.Fatalf("len(All) = %d, want %d", len(all), len(want))
	}
	for i, k := range want {
		if all[i].Key != k {
			t.Errorf("All[%d].Key = %q, want %q", i, all[i].Key, k)
		}
	}
	if c.DefaultKey() != "iphone-14" {
		t.Errorf("DefaultKey = %q", c.DefaultKey())
	}
}

func TestLookup(t *testing.T) {
	c := Default()

	p, ok := c.Lookup("pixel-7")
	if !ok || p.Name != "Pixel 7" || p.Width != 412 || p.Height != 915 {
		t.Fatalf("Lookup(pixel-7) = %+v, %v", p, ok)
	}

	for _, key := range []string{"", "nokia-3310", "../etc"} {
		p, ok := c.Lookup(key)
		if ok {
			t.Errorf("Lookup(%q) ok = true", key)
		}
		if p.Key != "iphone-14" || p.Width != 390 || p.Height != 844 {
			t.Errorf("Lookup(%q) fallback = %+v", key, p)
		}
	}
}

func TestAll_ReturnsCopy(t *testing.T) {
	c := Default()
	all := c.All()
	all[0].Name = "mutated"
	if p, _ := c.Lookup("iphone-14"); p.Name != "iPhone 14" {
		t.Fatalf("catalog mutated through All(): %+v", p)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`
default = "desk"

[devices.desk]
name = "Desktop"
width = 1280
height = 800

[devices.tiny]
name = "Tiny"
width = 320
height = 480
`)
	c, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	all := c.All()
	if len(all) != 2 || all[0].Key != "desk" || all[1].Key != "tiny" {
		t.Fatalf("All = %+v", all)
	}
	p, ok := c.Lookup("unknown")
	if ok || p.Key != "desk" || p.Width != 1280 {
		t.Fatalf("fallback = %+v, %v", p, ok)
	}
}

func TestParse_DefaultsToFirstKey(t *testing.T) {
	c, err := Parse([]byte("[devices.b]\nname = \"B\"\nwidth = 1\nheight = 1\n[devices.a]\nname = \"A\"\nwidth = 2\nheight = 2\n"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if c.DefaultKey() != "a" {
		t.Fatalf("DefaultKey = %q, want a", c.DefaultKey())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{"syntax", "devices = [", "parse devices file"},
		{"empty", "", "no devices"},
		{"missing name", "[devices.x]\nwidth = 1\nheight = 1\n", "name is required"},
		{"zero width", "[devices.x]\nname = \"X\"\nwidth = 0\nheight = 1\n", "out of range"},
		{"huge", "[devices.x]\nname = \"X\"\nwidth = 10000\nheight = 1\n", "out of range"},
		{"bad key", "[devices.\"a b\"]\nname = \"X\"\nwidth = 1\nheight = 1\n", "invalid key"},
		{"unknown default", "default = \"y\"\n[devices.x]\nname = \"X\"\nwidth = 1\nheight = 1\n", "not defined"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want containing %q", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	p := filepath.Join(t.TempDir(), "devices.toml")
	if err := os.WriteFile(p, []byte("[devices.x]\nname = \"X\"\nwidth = 10\nheight = 20\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if got, _ := c.Lookup("x"); got.Height != 20 {
		t.Fatalf("Lookup(x) = %+v", got)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
