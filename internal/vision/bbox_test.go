package vision

import (
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

func TestExtractBBoxesFromTraceParenTuple(t *testing.T) {
	trace := []TraceEntry{{Type: "code", Content: `draw.rectangle((100, 200, 400, 500), outline='red')`}}
	boxes := extractBBoxesFromTrace(trace, 1000, 1000)
	require.Equal(t, []store.BBox{{X: 0.1, Y: 0.2, W: 0.3, H: 0.3}}, boxes)
}

func TestExtractBBoxesFromTraceDedupesRepeatedCrop(t *testing.T) {
	trace := []TraceEntry{
		{Type: "code", Content: `crop = image.crop((50, 60, 350, 260))`},
		{Type: "code_result", Content: `image.crop((50,60,350,260))`},
	}
	boxes := extractBBoxesFromTrace(trace, 1000, 1000)
	require.Equal(t, []store.BBox{{X: 0.05, Y: 0.06, W: 0.3, H: 0.2}}, boxes)
}

func TestExtractBBoxesFromTraceBox2D(t *testing.T) {
	trace := []TraceEntry{{Type: "text", Content: `box_2d=[10,20,60,80]`}}
	boxes := extractBBoxesFromTrace(trace, 100, 100)
	require.Equal(t, []store.BBox{{X: 0.1, Y: 0.2, W: 0.5, H: 0.6}}, boxes)
}

func TestExtractBBoxesFromTraceClampsAndDropsDegenerate(t *testing.T) {
	trace := []TraceEntry{{Type: "code", Content: `
draw.rectangle((-10, -10, 120, 120))
draw.rectangle((40, 40, 40, 80))
`}}
	boxes := extractBBoxesFromTrace(trace, 100, 100)
	require.Equal(t, []store.BBox{{X: 0, Y: 0, W: 1, H: 1}}, boxes)
}

func TestExtractBBoxesFromTraceEmptyOnNoise(t *testing.T) {
	trace := []TraceEntry{{Type: "text", Content: "I looked at the page but didn't find anything obvious to box."}}
	boxes := extractBBoxesFromTrace(trace, 1000, 1000)
	require.Empty(t, boxes)
	require.NotNil(t, boxes)
}

func TestExtractBBoxesFromTraceZeroFrameIsEmpty(t *testing.T) {
	trace := []TraceEntry{{Type: "code", Content: `draw.rectangle((1, 2, 3, 4))`}}
	boxes := extractBBoxesFromTrace(trace, 0, 0)
	require.Empty(t, boxes)
}

// fakeCaller returns a canned trace without touching a real vision model.
func fakeCaller(trace []TraceEntry, err error) Caller {
	return func(ctx context.Context, imageData []byte, mission, pageName string) ([]TraceEntry, string, error) {
		return trace, "", err
	}
}

func newVisionTestStore(t *testing.T) *store.Store {
	t.Helper()
	dsn := t.TempDir() + "/maestro.db"
	st, err := store.Open(context.Background(), dsn, logrus.NewEntry(logrus.New()), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

// setupHighlight builds a workspace with one page attached and a pending
// highlight request against it, returning the highlight id.
func setupHighlight(t *testing.T, st *store.Store, pageName string) (projectID, highlightID string) {
	t.Helper()
	ctx := context.Background()
	proj, err := st.GetOrCreateProject(ctx, "p1", "/data/p1")
	require.NoError(t, err)
	ws, err := st.CreateWorkspace(ctx, proj.ID, "East Wing", "")
	require.NoError(t, err)
	_, err = st.AddPage(ctx, proj.ID, ws.Slug, pageName, "")
	require.NoError(t, err)
	h, err := st.AddHighlight(ctx, proj.ID, ws.Slug, pageName, "find the door schedule")
	require.NoError(t, err)
	return proj.ID, h.ID
}

func TestWorkerDispatchMissingPageImageFails(t *testing.T) {
	kb, err := knowledge.NewLoader(logrus.NewEntry(logrus.New())).Load(t.TempDir())
	require.NoError(t, err)
	st := newVisionTestStore(t)
	_, highlightID := setupHighlight(t, st, "A-101")

	var started, failed bool
	emit := func(eventType string, payload map[string]any) {
		switch eventType {
		case store.TypePageHighlightStarted:
			started = true
		case store.TypePageHighlightFailed:
			failed = true
		}
	}

	w := NewWorker(kb, st, emit, fakeCaller(nil, nil), logrus.NewEntry(logrus.New()))

	done := make(chan struct{})
	go func() {
		w.run(highlightID, "A-101", "find the door schedule")
		close(done)
	}()
	<-done

	require.True(t, started)
	require.True(t, failed, "a page absent from the knowledge store must fail the highlight, never strand it pending")

	h, err := st.GetHighlight(context.Background(), highlightID)
	require.NoError(t, err)
	require.Equal(t, store.HighlightFailed, h.Status)
}

func TestWorkerDispatchCompletesOnRectangles(t *testing.T) {
	root := t.TempDir()
	writeFixturePage(t, root, "A-101")
	kb, err := knowledge.NewLoader(logrus.NewEntry(logrus.New())).Load(root)
	require.NoError(t, err)

	st := newVisionTestStore(t)
	_, highlightID := setupHighlight(t, st, "A-101")

	trace := []TraceEntry{{Type: "code", Content: `draw.rectangle((10, 10, 60, 60))`}}
	w := NewWorker(kb, st, nil, fakeCaller(trace, nil), logrus.NewEntry(logrus.New()))

	done := make(chan struct{})
	go func() {
		w.run(highlightID, "A-101", "find the panel")
		close(done)
	}()
	<-done

	h, err := st.GetHighlight(context.Background(), highlightID)
	require.NoError(t, err)
	require.Equal(t, store.HighlightComplete, h.Status)
	require.Len(t, h.BBoxes, 1)
}

// writeFixturePage writes a minimal pages/<name>/pass1.json plus a decodable
// 100x100 page.png so loadPageImage has something real to read.
func writeFixturePage(t *testing.T, root, name string) {
	t.Helper()
	pageDir := filepath.Join(root, "pages", name)
	require.NoError(t, os.MkdirAll(pageDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(pageDir, "pass1.json"), []byte(`{"discipline":"Architectural","page_type":"plan"}`), 0o644))

	img := image.NewRGBA(image.Rect(0, 0, 100, 100))
	f, err := os.Create(filepath.Join(pageDir, "page.png"))
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}
