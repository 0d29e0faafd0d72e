// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package engine

import (
	"context"
	"fmt"

	"github.com/navwar/bisync/pkg/fs"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/rules"
)

// Engine synchronizes the two sides of a job.  An engine holds no state
// between runs, so independent jobs can run concurrently.
type Engine struct {
	opener    fs.Opener
	committer Committer
	logger    fs.Logger
	options   Options
}

type NewInput struct {
	Opener    fs.Opener
	Committer Committer
	Logger    fs.Logger
	Options   *Options
}

func New(input *NewInput) *Engine {
	options := DefaultOptions()
	if input.Options != nil {
		o := *input.Options
		options = &o
	}
	if options.Clock == nil {
		options.Clock = DefaultOptions().Clock
	}
	if options.SmallTime <= 0 {
		options.SmallTime = DefaultSmallTime
	}
	logger := input.Logger
	if logger == nil {
		logger = fs.Discard
	}
	return &Engine{
		opener:    input.Opener,
		committer: input.Committer,
		logger:    logger,
		options:   *options,
	}
}

// Run walks the job from the starting directory, given as path segments below the job roots.
// A LocatorOpenError is returned if either root cannot be opened.  Failures of single entries
// do not stop the walk and are returned in the report.
func (e *Engine) Run(ctx context.Context, j *job.Job, startingPath []string, verbose bool) (*Report, error) {
	if j.Layer == nil {
		return nil, &rules.ConfigurationError{Name: j.Name, Reason: "job has no rule layer"}
	}

	source, err := e.opener.Open(ctx, j.SourcePath)
	if err != nil {
		return nil, &LocatorOpenError{Locator: j.SourcePath, Side: Source, Err: err}
	}
	destination, err := e.opener.Open(ctx, j.DestinationPath)
	if err != nil {
		return nil, &LocatorOpenError{Locator: j.DestinationPath, Side: Destination, Err: err}
	}

	now := e.options.Clock()
	r := &run{
		engine:  e,
		job:     j,
		verbose: verbose,
		report: &Report{
			Job:     j.Name,
			Started: now,
			Errors:  []*EntryError{},
		},
		lastCommit: now,
	}
	r.src = &side{name: Source, fs: source, index: j.SourceIndex}
	r.dst = &side{name: Destination, fs: destination, index: j.DestinationIndex}

	_ = e.logger.Log("Synchronizing", map[string]interface{}{
		"job":  j.Name,
		"src":  source.Root(),
		"dst":  destination.Root(),
		"path": rules.FormatPath(startingPath),
	})

	walkErr := r.start(ctx, startingPath)

	// commit whatever was confirmed, even if the walk was interrupted
	commitErr := r.commit(context.WithoutCancel(ctx))

	r.report.Finished = e.options.Clock()

	_ = e.logger.Log("Done synchronizing", r.report.Fields())

	if walkErr != nil {
		return r.report, fmt.Errorf("error synchronizing job %q: %w", j.Name, walkErr)
	}
	if commitErr != nil {
		return r.report, fmt.Errorf("error committing indexes for job %q: %w", j.Name, commitErr)
	}
	return r.report, nil
}
