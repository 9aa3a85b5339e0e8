package qr

import (
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type svgDoc struct {
	XMLName xml.Name `xml:"svg"`
	Width   string   `xml:"width,attr"`
	Height  string   `xml:"height,attr"`
	ViewBox string   `xml:"viewBox,attr"`
	Path    struct {
		D string `xml:"d,attr"`
	} `xml:"path"`
}

func parseSVG(t *testing.T, b []byte) svgDoc {
	t.Helper()
	var doc svgDoc
	if err := xml.Unmarshal(b, &doc); err != nil {
		t.Fatalf("output is not valid XML: %v\n%s", err, b)
	}
	return doc
}

func TestSVG_Defaults(t *testing.T) {
	b, err := SVG("https://preview.example.com/view/1700000000000_game", Options{})
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	doc := parseSVG(t, b)
	if doc.Width != "256" || doc.Height != "256" {
		t.Errorf("size = %sx%s, want 256x256", doc.Width, doc.Height)
	}
	if doc.Path.D == "" {
		t.Error("no dark modules drawn")
	}

	// version 1 is 21 modules; any QR is 21+4k, plus 2*2 margin
	var x, y, w, h int
	if _, err := fmt.Sscanf(doc.ViewBox, "%d %d %d %d", &x, &y, &w, &h); err != nil {
		t.Fatalf("viewBox %q: %v", doc.ViewBox, err)
	}
	if w != h || (w-4-21)%4 != 0 {
		t.Errorf("viewBox = %q, want square of 21+4k+4 modules", doc.ViewBox)
	}
}

func TestSVG_MarginAndSize(t *testing.T) {
	b, err := SVG("hello", Options{Size: 128, Margin: -1})
	if err != nil {
		t.Fatalf("SVG: %v", err)
	}
	doc := parseSVG(t, b)
	if doc.Width != "128" {
		t.Errorf("width = %s", doc.Width)
	}
	// the finder pattern starts at the very first module without a margin
	if !strings.HasPrefix(doc.Path.D, "M0 0h1v1h-1z") {
		t.Errorf("path does not start at origin: %.40s", doc.Path.D)
	}
}

func TestSVG_Deterministic(t *testing.T) {
	a, err := SVG("same", Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, err := SVG("same", Options{})
	if err != nil {
		t.Fatal(err)
	}
	if string(a) != string(b) {
		t.Fatal("same input produced different output")
	}
}

func TestSVG_Errors(t *testing.T) {
	if _, err := SVG("", Options{}); err == nil {
		t.Error("empty content: expected error")
	}
	if _, err := SVG(strings.Repeat("a", MaxContentLen+1), Options{}); !errors.Is(err, ErrContentTooLong) {
		t.Errorf("long content err = %v, want ErrContentTooLong", err)
	}
}

func TestTrimQuietZone(t *testing.T) {
	bm := make([][]bool, 29)
	for i := range bm {
		bm[i] = make([]bool, 29)
	}
	bm[4][4] = true
	out := trimQuietZone(bm)
	if len(out) != 21 || len(out[0]) != 21 {
		t.Fatalf("trimmed size = %dx%d, want 21x21", len(out), len(out[0]))
	}
	if !out[0][0] {
		t.Fatal("first symbol module lost")
	}
}
