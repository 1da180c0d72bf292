// Package arbiter implements the Source Arbiter (C4): it runs every
// applicable provider scanner for a game, observes unlocked counts, and
// commits exactly one provider's worldview to the store (§4.4). Grounded on
// the teacher's service/refresh.go bounded-worker-pool idiom and
// compare/compare.go's "build one summary row" shape, repurposed from
// "concurrent Steam refresh" into "run N scanners, pick a winner."
package arbiter

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/achievement-tracker/agent/scanner"
	"github.com/achievement-tracker/agent/steamapi"
	"github.com/achievement-tracker/agent/store"
)

// Candidate wraps one eligible provider scanner: one whose backing file
// exists, or RemoteApi, which needs no local file.
type Candidate struct {
	Source scanner.Source
}

// Probe runs every candidate scanner as a dry run, persists each under its
// own provider_tag, and returns the resulting per-provider counts without
// committing (no delete, no re-run). This is the user-facing variant from
// §4.4 that lets an operator pick a provider explicitly.
func Probe(ctx context.Context, repo store.Repo, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64, candidates []Candidate, workers int) ([]store.GameSummary, error) {
	if err := runDryRuns(ctx, repo, gameID, gameName, schema, rates, candidates, workers); err != nil {
		return nil, err
	}
	return summaryForGame(ctx, repo, gameID)
}

// Commit deletes every non-Manual row for gameID and re-persists the
// winning scanner's full output under its provider_tag (§4.4 steps 3-4).
func Commit(ctx context.Context, repo store.Repo, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64, winner scanner.Source) error {
	if err := repo.DeleteByGame(ctx, gameID); err != nil {
		return fmt.Errorf("delete existing rows for game %d: %w", gameID, err)
	}
	rows, err := winner.FullScan(ctx, gameID, gameName, schema, rates)
	if err != nil {
		return fmt.Errorf("re-run winning scanner %s: %w", winner.Tag(), err)
	}
	for _, a := range rows {
		if _, err := repo.Upsert(ctx, a); err != nil {
			return fmt.Errorf("persist winning row %s: %w", a.AchievementKey, err)
		}
	}
	return nil
}

// Arbitrate runs the full automatic cycle: probe every candidate, pick the
// provider with the most unlocks (ties broken by fixed priority —
// PlatformCache > EmulatorA > EmulatorB > RemoteApi), delete the dry-run
// rows, and commit the winner. Returns the winning provider tag.
func Arbitrate(ctx context.Context, repo store.Repo, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64, candidates []Candidate, workers int) (store.ProviderTag, error) {
	if len(candidates) == 0 {
		return "", fmt.Errorf("no eligible provider for game %d", gameID)
	}

	summaries, err := Probe(ctx, repo, gameID, gameName, schema, rates, candidates, workers)
	if err != nil {
		return "", err
	}

	winner := pickWinner(summaries, candidates)
	if winner == nil {
		return "", fmt.Errorf("no candidate produced rows for game %d", gameID)
	}

	if err := Commit(ctx, repo, gameID, gameName, schema, rates, winner); err != nil {
		return "", err
	}
	return winner.Tag(), nil
}

func runDryRuns(ctx context.Context, repo store.Repo, gameID uint32, gameName string, schema []steamapi.SchemaEntry, rates map[string]float64, candidates []Candidate, workers int) error {
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan Candidate, len(candidates))
	for _, c := range candidates {
		jobs <- c
	}
	close(jobs)

	errs := make(chan error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				rows, err := c.Source.FullScan(ctx, gameID, gameName, schema, rates)
				if err != nil {
					// A candidate that fails (file vanished mid-probe, parse
					// error) simply contributes zero rows; it is not fatal
					// to the arbitration as a whole.
					continue
				}
				for _, a := range rows {
					if _, err := repo.Upsert(ctx, a); err != nil {
						select {
						case errs <- err:
						default:
						}
						return
					}
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case err := <-errs:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func summaryForGame(ctx context.Context, repo store.Repo, gameID uint32) ([]store.GameSummary, error) {
	all, err := repo.SummarizeAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []store.GameSummary
	for _, s := range all {
		if s.GameID == gameID && s.ProviderTag != store.Manual {
			out = append(out, s)
		}
	}
	return out, nil
}

// pickWinner selects the candidate with the maximum unlocked_count, ties
// broken by fixed provider priority. A provider with zero rows in summaries
// (its scanner failed outright) is never selected.
func pickWinner(summaries []store.GameSummary, candidates []Candidate) scanner.Source {
	byTag := make(map[store.ProviderTag]store.GameSummary, len(summaries))
	for _, s := range summaries {
		byTag[s.ProviderTag] = s
	}

	type ranked struct {
		src scanner.Source
		sum store.GameSummary
	}
	var eligible []ranked
	for _, c := range candidates {
		sum, ok := byTag[c.Source.Tag()]
		if !ok {
			continue
		}
		eligible = append(eligible, ranked{src: c.Source, sum: sum})
	}
	if len(eligible) == 0 {
		return nil
	}

	sort.SliceStable(eligible, func(i, j int) bool {
		if eligible[i].sum.UnlockedCount != eligible[j].sum.UnlockedCount {
			return eligible[i].sum.UnlockedCount > eligible[j].sum.UnlockedCount
		}
		return eligible[i].src.Tag().Priority() < eligible[j].src.Tag().Priority()
	})
	return eligible[0].src
}
