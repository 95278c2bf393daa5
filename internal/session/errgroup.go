package session

import "golang.org/x/sync/errgroup"

// errGroup bounds the number of concurrently-running stage jobs to the
// configured worker pool size, per §5's "max(1, NumCPU-1)" model. It wraps
// golang.org/x/sync/errgroup, which the embedder package already depends on
// (via singleflight) elsewhere in this module.
type errGroup struct {
	g *errgroup.Group
}

func newErrGroup(limit int) *errGroup {
	if limit < 1 {
		limit = 1
	}
	g := &errgroup.Group{}
	g.SetLimit(limit)
	return &errGroup{g: g}
}

func (e *errGroup) Go(fn func() error) {
	e.g.Go(fn)
}

func (e *errGroup) Wait() error {
	return e.g.Wait()
}
