// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package main

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/navwar/bisync/pkg/engine"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/lfs"
)

func checkSyncConfig(v *viper.Viper, args []string) error {
	if len(args) == 0 && !v.GetBool(flagAll) {
		return errors.New("expecting at least 1 job name or --all")
	}
	if len(args) > 0 && v.GetBool(flagAll) {
		return errors.New("job names cannot be combined with --all")
	}
	if err := checkLogConfig(v); err != nil {
		return fmt.Errorf("error with log configuration: %w", err)
	}
	if partSize := v.GetInt(flagPartSize); partSize < MinimumPartSize {
		return fmt.Errorf("part size %d is less than the minimum part size %d", partSize, MinimumPartSize)
	}
	if threads := v.GetInt(flagThreads); threads < 1 {
		return fmt.Errorf("threads must be at least 1, but found %d", threads)
	}
	if smallTime := v.GetDuration(flagSmallTime); smallTime <= 0 {
		return fmt.Errorf("small time must be positive, but found %s", smallTime)
	}
	if checkpointInterval := v.GetDuration(flagCheckpointInterval); checkpointInterval <= 0 {
		return fmt.Errorf("checkpoint interval must be positive, but found %s", checkpointInterval)
	}
	return nil
}

func newSyncCommand() *cobra.Command {
	syncCommand := &cobra.Command{
		Use:                   "sync [JOB...] [--all]",
		DisableFlagsInUseLine: true,
		Short:                 "synchronize jobs",
		Long:                  "synchronize the source and destination of each job in both directions",
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			v, err := initViper(cmd)
			if err != nil {
				return fmt.Errorf("error initializing viper: %w", err)
			}

			if errConfig := checkSyncConfig(v, args); errConfig != nil {
				return errConfig
			}

			logger, err := initLogger(v.GetString(flagLogPath), v.GetString(flagLogFormat), v.GetString(flagLogPerm))
			if err != nil {
				return fmt.Errorf("error initializing logger: %w", err)
			}

			s, err := openState(ctx, v)
			if err != nil {
				return err
			}
			defer func() { _ = s.close() }()

			jobs := []*job.Job{}
			if v.GetBool(flagAll) {
				jobs = s.jobs.List()
			} else {
				for _, name := range args {
					j, err := getJob(s, name)
					if err != nil {
						return err
					}
					jobs = append(jobs, j)
				}
			}

			startingPath := []string{}
			if p := v.GetString(flagPath); len(p) > 0 {
				startingPath = lfs.Segments(filepath.Clean(p))
			}

			opener := initOpener(v, logger)
			verbose := v.GetBool(flagVerbose)
			debug := v.GetBool(flagDebug)

			failed := 0
			results := make(chan error, len(jobs))

			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(v.GetInt(flagThreads))
			for _, j := range jobs {
				g.Go(func() error {
					options := engine.DefaultOptions()
					options.SmallTime = v.GetDuration(flagSmallTime)
					options.IndexSizeThreshold = v.GetInt64(flagIndexSizeThreshold)
					options.CheckpointInterval = v.GetDuration(flagCheckpointInterval)
					options.PropagateDeletes = v.GetBool(flagPropagateDeletes)
					options.CacheStatus = !v.GetBool(flagNoCache)

					e := engine.New(&engine.NewInput{
						Opener:    opener,
						Committer: s.store.JobCommitter(j),
						Logger:    logger,
						Options:   options,
					})

					if debug {
						_ = logger.Log("Starting job", map[string]interface{}{
							"job":         j.Name,
							"source":      j.SourcePath,
							"destination": j.DestinationPath,
							"layer":       layerPath(j.Layer),
						})
					}

					report, err := e.Run(gctx, j, startingPath, verbose)
					if err != nil {
						_ = logger.Log("Error synchronizing", map[string]interface{}{
							"job": j.Name,
							"err": err.Error(),
						})
						results <- err
						// a failed job does not stop the others
						return nil
					}

					_ = logger.Log("Finished job", map[string]interface{}{
						"job":      j.Name,
						"bytes":    humanize.Bytes(uint64(report.Bytes)),
						"errors":   len(report.Errors),
						"duration": report.Finished.Sub(report.Started).String(),
					})

					if len(report.Errors) > 0 {
						results <- fmt.Errorf("job %q had %d errors", j.Name, len(report.Errors))
					}
					return nil
				})
			}
			_ = g.Wait()
			close(results)

			for err := range results {
				if err != nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d jobs did not synchronize cleanly", failed, len(jobs))
			}
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("synchronization interrupted: %w", err)
			}
			return nil
		},
	}
	initSyncFlags(syncCommand.Flags())
	initAWSFlags(syncCommand.Flags())
	initLogFlags(syncCommand.Flags())
	return syncCommand
}
