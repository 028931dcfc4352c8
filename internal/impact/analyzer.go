package impact

import (
	"context"
	"sort"
	"sync"

	"github.com/triagebot/internal/metadata"
)

// Dependent is a package whose metadata declares a dependency on the
// queried target, together with its maintainers.
type Dependent struct {
	Pkgbase     string
	Maintainers []string
}

// Skipped records a package whose metadata could not be read during a
// scan. The scan itself carries on; callers decide whether skips
// matter.
type Skipped struct {
	Pkgbase string
	Reason  error
}

// Analyzer answers reverse-dependency queries by scanning every package
// directory in the checkout. There is no persistent reverse index - the
// metadata files stay the single source of truth, and invocation
// frequency is bounded by human-triggered tracker events.
type Analyzer struct {
	store   *metadata.Store
	workers int
}

func NewAnalyzer(store *metadata.Store) *Analyzer {
	return &Analyzer{store: store, workers: 8}
}

// Dependents returns the names of packages depending on target,
// excluding any in exclude.
func (a *Analyzer) Dependents(ctx context.Context, target string, exclude []string) ([]string, []Skipped, error) {
	deps, skipped, err := a.DependentsWithMaintainers(ctx, target, exclude)
	if err != nil {
		return nil, nil, err
	}
	names := make([]string, 0, len(deps))
	for _, d := range deps {
		names = append(names, d.Pkgbase)
	}
	return names, skipped, nil
}

// DependentsWithMaintainers returns full Dependent records for comment
// composition. Packages whose metadata cannot be read are reported in
// the skipped list rather than aborting the scan.
func (a *Analyzer) DependentsWithMaintainers(ctx context.Context, target string, exclude []string) ([]Dependent, []Skipped, error) {
	pkgs, err := a.store.Packages()
	if err != nil {
		return nil, nil, err
	}

	excluded := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		excluded[name] = true
	}

	jobCh := make(chan string, len(pkgs))
	for _, pkg := range pkgs {
		if !excluded[pkg] {
			jobCh <- pkg
		}
	}
	close(jobCh)

	var (
		mu      sync.Mutex
		found   []Dependent
		skipped []Skipped
		wg      sync.WaitGroup
	)

	workers := a.workers
	if workers > len(pkgs) {
		workers = len(pkgs)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobCh {
				if ctx.Err() != nil {
					return
				}
				md, err := a.store.Load(pkg)
				if err != nil {
					mu.Lock()
					skipped = append(skipped, Skipped{Pkgbase: pkg, Reason: err})
					mu.Unlock()
					continue
				}
				if !md.DependsOn(target) {
					continue
				}
				mu.Lock()
				found = append(found, Dependent{
					Pkgbase:     pkg,
					Maintainers: md.MaintainerIdentities(),
				})
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Pkgbase < found[j].Pkgbase })
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].Pkgbase < skipped[j].Pkgbase })
	return found, skipped, nil
}
