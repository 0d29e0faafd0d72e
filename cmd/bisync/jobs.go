// ==================================================================================
//
// Work of the U.S. Department of the Navy, Naval Information Warfare Center Pacific.
// Released as open source under the MIT License.  See LICENSE file.
//
// ==================================================================================

package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/navwar/bisync/pkg/config"
	"github.com/navwar/bisync/pkg/index"
	"github.com/navwar/bisync/pkg/job"
	"github.com/navwar/bisync/pkg/locator"
	"github.com/navwar/bisync/pkg/rules"
	"github.com/navwar/bisync/pkg/ts"
)

const (
	flagName  = "name"
	flagLayer = "layer"
	flagSide  = "side"
)

func getJob(s *state, name string) (*job.Job, error) {
	j := s.jobs.Get(name)
	if j == nil {
		return nil, fmt.Errorf("job %q not found", name)
	}
	return j, nil
}

func newJobCommand() *cobra.Command {
	jobCommand := &cobra.Command{
		Use:   "job",
		Short: "manage synchronization jobs",
	}

	addCommand := &cobra.Command{
		Use:                   "add SOURCE DESTINATION --layer LAYER [--name NAME]",
		DisableFlagsInUseLine: true,
		Short:                 "add a job synchronizing two directories with the rules of a layer",
		Args:                  cobra.ExactArgs(2),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				if err := locator.Check(args[0], args[1]); err != nil {
					return err
				}
				layer, err := getLayer(s, v.GetString(flagLayer))
				if err != nil {
					return err
				}
				j := job.New(args[0], args[1], layer, v.GetString(flagName))
				if err := s.jobs.Add(j); err != nil {
					return err
				}
				fmt.Println(j.Name)
				return nil
			})
		},
	}
	addCommand.Flags().String(flagLayer, "", "name of the rule layer")
	addCommand.Flags().String(flagName, "", "name of the job.  Defaults to a random name.")

	removeCommand := &cobra.Command{
		Use:                   "remove JOB...",
		DisableFlagsInUseLine: true,
		Short:                 "remove jobs and their indexes",
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				for _, name := range args {
					if s.jobs.Remove(name) == nil {
						return fmt.Errorf("job %q not found", name)
					}
				}
				return nil
			})
		},
	}

	listCommand := &cobra.Command{
		Use:                   "list",
		DisableFlagsInUseLine: true,
		Short:                 "list jobs",
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				table := newTable(os.Stdout, []string{"JOB", "SOURCE", "DESTINATION", "LAYER", "MARKERS"})
				for _, j := range s.jobs.List() {
					table.Append([]string{
						j.Name,
						j.SourcePath,
						j.DestinationPath,
						layerPath(j.Layer),
						strconv.Itoa(j.SourceIndex.Len()),
					})
				}
				table.Render()
				return nil
			})
		},
	}

	clearCommand := &cobra.Command{
		Use:                   "clear JOB...",
		DisableFlagsInUseLine: true,
		Short:                 "forget the indexes of jobs, so the next run compares modification times only",
		Args:                  cobra.MinimumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				for _, name := range args {
					j, err := getJob(s, name)
					if err != nil {
						return err
					}
					j.ClearIndexes()
				}
				return nil
			})
		},
	}

	jobCommand.AddCommand(addCommand, removeCommand, listCommand, clearCommand)
	return jobCommand
}

func newIndexCommand() *cobra.Command {
	indexCommand := &cobra.Command{
		Use:   "index",
		Short: "inspect job indexes",
	}

	showCommand := &cobra.Command{
		Use:                   "show JOB [--side source|destination]",
		DisableFlagsInUseLine: true,
		Short:                 "show the synchronized modification times recorded for a job",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				j, err := getJob(s, args[0])
				if err != nil {
					return err
				}
				var i *index.Index
				switch side := v.GetString(flagSide); side {
				case "source":
					i = j.SourceIndex
				case "destination":
					i = j.DestinationIndex
				default:
					return fmt.Errorf("invalid side %q, expecting source or destination", side)
				}
				timeLayout, timeZone, err := parseTimeFlags(v)
				if err != nil {
					return err
				}
				now := time.Now()
				table := newTable(os.Stdout, []string{"PATH", "MARKER", "AGE"})
				err = i.Walk(func(segments []string, marker time.Time) error {
					table.Append([]string{
						rules.FormatPath(segments),
						timeLayout.Format(marker, timeZone),
						ts.Age(marker, now),
					})
					return nil
				})
				if err != nil {
					return err
				}
				table.Render()
				return nil
			})
		},
	}
	showCommand.Flags().String(flagSide, "source", "side of the job, either source or destination")
	initOutputFlags(showCommand.Flags())

	indexCommand.AddCommand(showCommand)
	return indexCommand
}

func newApplyCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "apply FILE",
		DisableFlagsInUseLine: true,
		Short:                 "create or update the layers and jobs declared in a YAML file",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := config.Load(args[0])
			if err != nil {
				return err
			}
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				for _, j := range c.Jobs {
					if err := locator.Check(j.Source, j.Destination); err != nil {
						return fmt.Errorf("error with job %q: %w", j.Name, err)
					}
				}
				return c.Apply(s.layers, s.jobs)
			})
		},
	}
}

func newExportCommand() *cobra.Command {
	return &cobra.Command{
		Use:                   "export",
		DisableFlagsInUseLine: true,
		Short:                 "write the layers and jobs as a YAML file to stdout",
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				return config.Export(s.layers, s.jobs).Write(os.Stdout)
			})
		},
	}
}
