package vcs

import (
	"context"

	"go.uber.org/zap"
)

type (
	// Worker computes the status of a project in the background, so that an
	// editor can show the pending changes without diffing on every edit.
	//
	// The owner captures the live items (VersionControl.Capture) on its own
	// goroutine and sends them to ToWorker; captured items are immutable, so
	// the worker never touches the live project. Requests pile up quickly
	// while the user edits, so the worker only answers the latest request in
	// the channel and drops the rest. Results are sent to FromWorker without
	// blocking; if nobody reads them, they are dropped.
	//
	// To stop the worker, TrySend to Close (it has room for one value) and
	// wait for Finished to be closed, with a timeout:
	//    select {
	//      case <-w.Finished:
	//      case <-time.After(3 * time.Second):
	//    }
	Worker struct {
		ToWorker   chan StatusRequest
		FromWorker chan StatusResult
		Close      chan struct{}
		Finished   chan struct{}

		vcs *VersionControl
		log *zap.Logger
	}

	// StatusRequest asks the worker to diff the captured items against the
	// head. Seq is returned in the result, so the owner can ignore stale
	// results.
	StatusRequest struct {
		Seq   int
		Items []*RevisionItem
	}

	StatusResult struct {
		Seq      int
		Revision *Revision
		Err      error
	}
)

func NewWorker(v *VersionControl, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		ToWorker:   make(chan StatusRequest, 64),
		FromWorker: make(chan StatusResult, 16),
		Close:      make(chan struct{}, 1),
		Finished:   make(chan struct{}),
		vcs:        v,
		log:        log.Named("vcs-worker"),
	}
}

// Run processes requests until the context is cancelled or something is sent
// to Close. Finished is closed when Run returns.
func (w *Worker) Run(ctx context.Context) {
	defer close(w.Finished)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.Close:
			return
		case req := <-w.ToWorker:
			req = w.latest(req)
			rev, err := w.vcs.StatusOf(req.Items)
			if err != nil {
				w.log.Error("status failed", zap.Int("seq", req.Seq), zap.Error(err))
			}
			if !TrySend(w.FromWorker, StatusResult{Seq: req.Seq, Revision: rev, Err: err}) {
				workerResultsDropped.Inc()
			}
		}
	}
}

// latest drains the requests already waiting in ToWorker and returns the
// last one.
func (w *Worker) latest(req StatusRequest) StatusRequest {
	for {
		select {
		case r := <-w.ToWorker:
			req = r
		default:
			return req
		}
	}
}

// TrySend sends v to c only if c has room for it, and reports whether it did.
func TrySend[T any](c chan<- T, v T) bool {
	select {
	case c <- v:
		return true
	default:
		return false
	}
}
