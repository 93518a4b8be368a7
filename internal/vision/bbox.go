// Package vision runs the background highlight worker: given a pending
// WorkspaceHighlight, a page image, and a mission, it asks a vision model to
// reason about the page and emit rectangle coordinates in its execution
// trace, then turns whatever it finds into normalized bounding boxes (§4.I).
package vision

import (
	"regexp"
	"strconv"

	"maestro/internal/store"
)

// TraceEntry is one step of a vision model's execution trace: generated
// code, that code's output, or plain narration text.
type TraceEntry struct {
	Type    string
	Content string
}

var (
	parenTupleRe = regexp.MustCompile(`\(\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\)`)
	bracketRe    = regexp.MustCompile(`\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]`)
	box2dRe      = regexp.MustCompile(`box_2d\s*=\s*\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]`)
)

// extractBBoxesFromTrace parses every pixel rectangle out of trace's content
// (three accepted syntaxes: `(x1,y1,x2,y2)`, `[x1,y1,x2,y2]`,
// `box_2d=[x1,y1,x2,y2]`), normalizes each to the [0,1] frame, clamps
// out-of-bounds coordinates, discards degenerate rectangles, and dedupes at
// 4-decimal precision. A trace with no parseable rectangle yields an empty,
// non-nil slice.
func extractBBoxesFromTrace(trace []TraceEntry, imageWidth, imageHeight int) []store.BBox {
	boxes := []store.BBox{}
	if imageWidth <= 0 || imageHeight <= 0 {
		return boxes
	}

	for _, entry := range trace {
		for _, re := range []*regexp.Regexp{parenTupleRe, box2dRe, bracketRe} {
			for _, m := range re.FindAllStringSubmatch(entry.Content, -1) {
				box, ok := normalizeRect(m[1], m[2], m[3], m[4], float64(imageWidth), float64(imageHeight))
				if ok {
					boxes = append(boxes, box)
				}
			}
		}
	}

	return dedupeBBoxes(boxes)
}

func normalizeRect(x1s, y1s, x2s, y2s string, width, height float64) (store.BBox, bool) {
	x1, ok1 := parseFloat(x1s)
	y1, ok2 := parseFloat(y1s)
	x2, ok3 := parseFloat(x2s)
	y2, ok4 := parseFloat(y2s)
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return store.BBox{}, false
	}

	xlo, xhi := minmax(x1, x2)
	ylo, yhi := minmax(y1, y2)

	xlo = clamp(xlo, 0, width)
	xhi = clamp(xhi, 0, width)
	ylo = clamp(ylo, 0, height)
	yhi = clamp(yhi, 0, height)

	w, h := xhi-xlo, yhi-ylo
	if w <= 0 || h <= 0 {
		return store.BBox{}, false
	}

	return store.BBox{X: xlo / width, Y: ylo / height, W: w / width, H: h / height}, true
}

func minmax(a, b float64) (float64, float64) {
	if a > b {
		return b, a
	}
	return a, b
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func parseFloat(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	return v, err == nil
}

// dedupeBBoxes rounds every coordinate to 4 decimals and drops exact
// duplicates, preserving first-seen order -- the same rule store applies to
// a completed highlight's final box set (§8's bbox invariant).
func dedupeBBoxes(boxes []store.BBox) []store.BBox {
	type key struct{ x, y, w, h float64 }
	round := func(f float64) float64 {
		return float64(int64(f*10000+0.5)) / 10000
	}
	seen := make(map[key]bool, len(boxes))
	out := make([]store.BBox, 0, len(boxes))
	for _, b := range boxes {
		r := store.BBox{X: round(b.X), Y: round(b.Y), W: round(b.W), H: round(b.H)}
		k := key{r.X, r.Y, r.W, r.H}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, r)
	}
	return out
}
