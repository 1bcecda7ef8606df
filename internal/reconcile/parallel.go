package reconcile

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/claudestep/claudestep/internal/types"
)

// maxConcurrentProjects bounds the reconcile-all fan-out so a repository with
// many projects doesn't burst the platform API.
const maxConcurrentProjects = 4

// reconcileProjects runs ApplyCorrections for each project concurrently.
// The first error cancels the remaining work.
func (s *Service) reconcileProjects(ctx context.Context, projects []string, mode types.CorrectionMode) (map[string]*types.CorrectionSummary, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentProjects)

	var mu sync.Mutex
	summaries := make(map[string]*types.CorrectionSummary, len(projects))

	for _, project := range projects {
		g.Go(func() error {
			summary, err := s.ApplyCorrections(gctx, project, mode)
			if err != nil {
				return err
			}
			mu.Lock()
			summaries[project] = summary
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summaries, nil
}
