package vision

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"maestro/internal/knowledge"
	"maestro/internal/store"
)

// Worker runs the background highlight procedure: load the page image, ask
// a vision model to reason about it, extract rectangles from its trace, and
// resolve the pending highlight to complete or failed (§4.I). Highlights are
// best-effort and never sit on the request/response path -- Dispatch starts
// a goroutine and returns immediately.
type Worker struct {
	kb      *knowledge.Store
	st      *store.Store
	emit    store.EventFunc
	call    Caller
	log     *logrus.Entry
	timeout time.Duration
}

// NewWorker builds a Worker. emit publishes page_highlight_started --
// AddHighlight itself never does, since a highlight only starts (in the
// eventbus sense) once the worker actually begins processing it, not when
// the row is created.
func NewWorker(kb *knowledge.Store, st *store.Store, emit store.EventFunc, call Caller, log *logrus.Entry) *Worker {
	return &Worker{kb: kb, st: st, emit: emit, call: call, log: log, timeout: 2 * time.Minute}
}

// Dispatch matches tools.HighlightDispatcher's signature so it can be wired
// in directly without tools importing this package.
func (w *Worker) Dispatch(highlightID, pageName, mission string) {
	go w.run(highlightID, pageName, mission)
}

func (w *Worker) run(highlightID, pageName, mission string) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()

	if w.emit != nil {
		w.emit(store.TypePageHighlightStarted, map[string]any{"highlight_id": highlightID, "page": pageName})
	}

	boxes, err := w.process(ctx, pageName, mission)
	if err != nil || len(boxes) == 0 {
		if w.log != nil {
			w.log.WithError(err).WithField("highlight_id", highlightID).Warn("highlight failed")
		}
		if ferr := w.st.FailHighlight(ctx, highlightID); ferr != nil && w.log != nil {
			w.log.WithError(ferr).WithField("highlight_id", highlightID).Error("failing highlight")
		}
		return
	}

	if cerr := w.st.CompleteHighlight(ctx, highlightID, boxes); cerr != nil && w.log != nil {
		w.log.WithError(cerr).WithField("highlight_id", highlightID).Error("completing highlight")
	}
}

func (w *Worker) process(ctx context.Context, pageName, mission string) ([]store.BBox, error) {
	page, ok := w.kb.Page(pageName)
	if !ok {
		return nil, fmt.Errorf("page %q not found", pageName)
	}

	prepared, err := loadPageImage(filepath.Join(page.Path, "page.png"))
	if err != nil {
		return nil, err
	}

	trace, _, err := w.call(ctx, prepared.Data, mission, pageName)
	if err != nil {
		return nil, err
	}

	boxes := extractBBoxesFromTrace(trace, prepared.Width, prepared.Height)
	if len(boxes) == 0 {
		return nil, fmt.Errorf("no rectangles found in vision trace")
	}
	return boxes, nil
}
