package merge

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/KadirKcbs/cobratoolbox/internal/model"
)

// DefaultSequentialThreshold is the organism count above which the scheduler
// falls back to a sequential fold to bound peak memory.
const DefaultSequentialThreshold = 500

// Loader loads one organism model by name. The scheduler loads models
// lazily, one pair at a time, so a loader backed by disk keeps peak memory
// proportional to the intermediate merge results rather than to N.
type Loader func(ctx context.Context, name string) (*model.Model, error)

// Options configures the merge-tree scheduler.
type Options struct {
	// Mode is the pairwise merge mode for organism merges. ModeGlue is the
	// default: organisms with disjoint namespaces merge block-diagonally
	// either way, and shared lumen metabolites must unify into one row for
	// cross-feeding to be possible.
	Mode Mode

	// MergeGenes carries gene-association rules through merges.
	MergeGenes bool

	// Workers bounds concurrent merges within one tree level. Merges at the
	// same level are independent; levels are strictly ordered. Values < 1
	// mean sequential execution.
	Workers int

	// SequentialThreshold is the organism count at which the scheduler
	// switches from the balanced tree to a sequential fold. 0 means
	// DefaultSequentialThreshold.
	SequentialThreshold int

	// Logger receives progress events. nil disables logging.
	Logger *slog.Logger
}

// Scheduler merges N organism models into one community model.
type Scheduler struct {
	load Loader
	opts Options
	log  *slog.Logger
}

// NewScheduler creates a merge-tree scheduler.
func NewScheduler(load Loader, opts Options) *Scheduler {
	if opts.SequentialThreshold <= 0 {
		opts.SequentialThreshold = DefaultSequentialThreshold
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Scheduler{load: load, opts: opts, log: log}
}

// Build merges the named organism models into one model. Above the
// sequential threshold it folds left to right, never holding more than two
// full models; below it, it builds a balanced binary merge tree. Both
// strategies produce identical models up to identifier ordering.
func (s *Scheduler) Build(ctx context.Context, names []string) (*model.Model, error) {
	switch {
	case len(names) == 0:
		return nil, fmt.Errorf("merge tree: no organism models given")
	case len(names) == 1:
		return s.load(ctx, names[0])
	case len(names) > s.opts.SequentialThreshold:
		s.log.Debug("merge tree: sequential fold", "organisms", len(names))
		return s.Sequential(ctx, names)
	default:
		s.log.Debug("merge tree: balanced pairwise", "organisms", len(names))
		return s.Balanced(ctx, names)
	}
}

// Sequential folds the models left to right: acc = merge(acc, model[i]).
func (s *Scheduler) Sequential(ctx context.Context, names []string) (*model.Model, error) {
	acc, err := s.load(ctx, names[0])
	if err != nil {
		return nil, fmt.Errorf("merge tree: load %q: %w", names[0], err)
	}
	for _, name := range names[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, err := s.load(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("merge tree: load %q: %w", name, err)
		}
		acc, err = Merge(acc, next, s.opts.Mode, s.opts.MergeGenes)
		if err != nil {
			return nil, err
		}
	}
	return acc, nil
}

// Balanced builds a binary merge tree. At each level, surviving models are
// paired and merged; an odd member is pushed onto a leftover queue rather
// than carried through the pairing. After the tree reduces to one model,
// leftovers are folded back in the order their levels produced them. A
// leftover that fails to fold is a fatal assembly error: the community model
// would be incomplete.
func (s *Scheduler) Balanced(ctx context.Context, names []string) (*model.Model, error) {
	// Level 0 pairs load two models each, so the loader is only ever asked
	// for two models per in-flight merge.
	level, leftoverName, err := s.mergeLeaves(ctx, names)
	if err != nil {
		return nil, err
	}

	var leftovers []*model.Model
	if leftoverName != "" {
		lm, err := s.load(ctx, leftoverName)
		if err != nil {
			return nil, fmt.Errorf("merge tree: load leftover %q: %w", leftoverName, err)
		}
		leftovers = append(leftovers, lm)
	}

	// A single-name input produces no level-1 pairs, only the leftover.
	if len(level) == 0 {
		if len(leftovers) == 1 {
			return leftovers[0], nil
		}
		return nil, fmt.Errorf("merge tree: no organism models given")
	}

	depth := 1
	for len(level) > 1 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next, leftover, err := s.mergeLevel(ctx, level)
		if err != nil {
			return nil, fmt.Errorf("merge tree: level %d: %w", depth, err)
		}
		if leftover != nil {
			leftovers = append(leftovers, leftover)
		}
		level = next
		depth++
	}

	acc := level[0]
	for _, lm := range leftovers {
		acc, err = Merge(acc, lm, s.opts.Mode, s.opts.MergeGenes)
		if err != nil {
			return nil, fmt.Errorf("merge tree: fold leftover %q: %w", lm.Name, err)
		}
	}
	return acc, nil
}

// mergeLeaves merges adjacent name pairs into level-1 models, loading each
// pair on demand. The trailing name of an odd-length list is returned
// unloaded.
func (s *Scheduler) mergeLeaves(ctx context.Context, names []string) ([]*model.Model, string, error) {
	pairs := len(names) / 2
	out := make([]*model.Model, pairs)

	g, gctx := errgroup.WithContext(ctx)
	if s.opts.Workers > 0 {
		g.SetLimit(s.opts.Workers)
	} else {
		g.SetLimit(1)
	}
	for p := 0; p < pairs; p++ {
		g.Go(func() error {
			left, err := s.load(gctx, names[2*p])
			if err != nil {
				return fmt.Errorf("load %q: %w", names[2*p], err)
			}
			right, err := s.load(gctx, names[2*p+1])
			if err != nil {
				return fmt.Errorf("load %q: %w", names[2*p+1], err)
			}
			merged, err := Merge(left, right, s.opts.Mode, s.opts.MergeGenes)
			if err != nil {
				return err
			}
			out[p] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", fmt.Errorf("merge tree: level 0: %w", err)
	}

	var leftover string
	if len(names)%2 == 1 {
		leftover = names[len(names)-1]
	}
	return out, leftover, nil
}

// mergeLevel merges adjacent model pairs of one tree level. The trailing
// model of an odd-length level is returned as the leftover.
func (s *Scheduler) mergeLevel(ctx context.Context, level []*model.Model) ([]*model.Model, *model.Model, error) {
	pairs := len(level) / 2
	out := make([]*model.Model, pairs)

	g, _ := errgroup.WithContext(ctx)
	if s.opts.Workers > 0 {
		g.SetLimit(s.opts.Workers)
	} else {
		g.SetLimit(1)
	}
	for p := 0; p < pairs; p++ {
		g.Go(func() error {
			merged, err := Merge(level[2*p], level[2*p+1], s.opts.Mode, s.opts.MergeGenes)
			if err != nil {
				return err
			}
			out[p] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var leftover *model.Model
	if len(level)%2 == 1 {
		leftover = level[len(level)-1]
	}
	return out, leftover, nil
}
