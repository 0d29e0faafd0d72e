// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/index"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/rules"
)

type side struct {
	name  Side
	fs    fs.FileSystem
	index *index.Index
}

// run is the state of a single walk of a job.
type run struct {
	engine     *Engine
	job        *job.Job
	src        *side
	dst        *side
	verbose    bool
	report     *Report
	lastCommit time.Time
}

func (r *run) other(s *side) *side {
	if s == r.src {
		return r.dst
	}
	return r.src
}

func (r *run) name(s *side, path []string) string {
	return s.fs.Join(path...)
}

func (r *run) start(ctx context.Context, startingPath []string) error {
	if len(startingPath) > 0 {
		found := 0
		for _, s := range []*side{r.src, r.dst} {
			entry, err := s.fs.Lstat(ctx, r.name(s, startingPath))
			if err != nil {
				if s.fs.IsNotExist(err) {
					continue
				}
				return fmt.Errorf("error stating %q on %s: %w", rules.FormatPath(startingPath), s.name, err)
			}
			if !entry.IsDir() {
				return fmt.Errorf("starting path %q on %s is not a directory", rules.FormatPath(startingPath), s.name)
			}
			found++
		}
		if found == 0 {
			return fmt.Errorf("starting path %q does not exist on either side", rules.FormatPath(startingPath))
		}
		for _, s := range []*side{r.src, r.dst} {
			if err := s.fs.MkdirAll(ctx, r.name(s, startingPath), 0755); err != nil {
				return fmt.Errorf("error creating starting path %q on %s: %w", rules.FormatPath(startingPath), s.name, err)
			}
		}
	}
	r.report.Directories++
	return r.walk(ctx, startingPath, nil)
}

func (r *run) list(ctx context.Context, s *side, dir []string) (map[string]*fs.DirectoryEntry, error) {
	directoryEntries, err := s.fs.ReadDir(ctx, r.name(s, dir))
	if err != nil {
		return nil, &EntryError{Path: rules.FormatPath(dir), Op: "list", Side: s.name, Err: err}
	}
	entries := make(map[string]*fs.DirectoryEntry, len(directoryEntries))
	for _, entry := range directoryEntries {
		entries[entry.Name()] = entry
	}
	return entries, nil
}

func names(entries map[string]*fs.DirectoryEntry) mapset.Set[string] {
	set := mapset.NewThreadUnsafeSetWithSize[string](len(entries))
	for name := range entries {
		set.Add(name)
	}
	return set
}

func sorted(set mapset.Set[string]) []string {
	s := set.ToSlice()
	sort.Strings(s)
	return s
}

func child(dir []string, name string) []string {
	path := make([]string, len(dir)+1)
	copy(path, dir)
	path[len(dir)] = name
	return path
}

// walk synchronizes one directory level.  Entries only on the source are handled
// first, then entries only on the destination, then entries on both sides.
func (r *run) walk(ctx context.Context, dir []string, cached *rules.Status) error {
	sourceEntries, err := r.list(ctx, r.src, dir)
	if err != nil {
		return err
	}
	destinationEntries, err := r.list(ctx, r.dst, dir)
	if err != nil {
		return err
	}

	sourceNames := names(sourceEntries)
	destinationNames := names(destinationEntries)

	for _, name := range sorted(sourceNames.Difference(destinationNames)) {
		if err := r.step(ctx); err != nil {
			return err
		}
		path := child(dir, name)
		if err := r.oneSided(ctx, path, r.src, sourceEntries[name], r.resolve(path, cached)); err != nil {
			return err
		}
	}

	for _, name := range sorted(destinationNames.Difference(sourceNames)) {
		if err := r.step(ctx); err != nil {
			return err
		}
		path := child(dir, name)
		if err := r.oneSided(ctx, path, r.dst, destinationEntries[name], r.resolve(path, cached)); err != nil {
			return err
		}
	}

	for _, name := range sorted(sourceNames.Intersect(destinationNames)) {
		if err := r.step(ctx); err != nil {
			return err
		}
		path := child(dir, name)
		if err := r.twoSided(ctx, path, sourceEntries[name], destinationEntries[name], r.resolve(path, cached)); err != nil {
			return err
		}
	}

	return nil
}

// recurse walks a subdirectory.  Failing to list it is an entry error.
func (r *run) recurse(ctx context.Context, path []string, cached *rules.Status) error {
	r.report.Directories++
	r.log(path, "enter")
	err := r.walk(ctx, path, cached)
	r.log(path, "leave")
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		var entryError *EntryError
		if errors.As(err, &entryError) {
			r.record(entryError)
			return nil
		}
		return err
	}
	return nil
}

func (r *run) resolve(path []string, cached *rules.Status) rules.Resolution {
	if cached != nil {
		return rules.Resolution{Status: *cached, Truncated: true, Settled: true}
	}
	return r.job.Layer.Resolve(path)
}

// childCache returns the status to reuse beneath a directory, or nil if it must be resolved again.
func (r *run) childCache(resolution rules.Resolution) *rules.Status {
	if !r.engine.options.CacheStatus || !resolution.Settled {
		return nil
	}
	status := resolution.Status
	return &status
}

// step is called before each entry.  It stops the walk when the context is done
// and commits the indexes when the checkpoint interval has elapsed.
func (r *run) step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	interval := r.engine.options.CheckpointInterval
	if interval > 0 && r.engine.options.Clock().Sub(r.lastCommit) > interval {
		if err := r.commit(ctx); err != nil {
			_ = r.engine.logger.Log("Error committing indexes", map[string]interface{}{
				"job": r.job.Name,
				"err": err.Error(),
			})
		}
	}
	return nil
}

func (r *run) commit(ctx context.Context) error {
	r.lastCommit = r.engine.options.Clock()
	if r.engine.committer == nil {
		return nil
	}
	if err := r.engine.committer.Commit(ctx); err != nil {
		return err
	}
	r.report.Commits++
	return nil
}
