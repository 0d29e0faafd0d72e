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
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/navwar/bisync/pkg/rules"
)

const (
	flagParent  = "parent"
	flagDefault = "default"
	flagForce   = "force"
)

func getLayer(s *state, name string) (*rules.Layer, error) {
	layer := s.layers.Get(name)
	if layer == nil {
		return nil, fmt.Errorf("layer %q not found", name)
	}
	return layer, nil
}

func parseStatusArg(str string) (rules.Status, error) {
	status, err := rules.ParseStatus(str)
	if err != nil {
		return rules.Undefined, fmt.Errorf("%w, expecting include, ignore, stop or undefined", err)
	}
	return status, nil
}

func layerPath(layer *rules.Layer) string {
	return strings.Join(layer.Path(), "->")
}

func newLayerCommand() *cobra.Command {
	layerCommand := &cobra.Command{
		Use:   "layer",
		Short: "manage rule layers",
	}

	addCommand := &cobra.Command{
		Use:                   "add NAME [--parent LAYER] [--default STATUS]",
		DisableFlagsInUseLine: true,
		Short:                 "add a rule layer",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				status, err := parseStatusArg(v.GetString(flagDefault))
				if err != nil {
					return err
				}
				var parent *rules.Layer
				if p := v.GetString(flagParent); len(p) > 0 {
					parent, err = getLayer(s, p)
					if err != nil {
						return err
					}
				}
				_, err = s.layers.NewLayer(args[0], status, parent)
				return err
			})
		},
	}
	addCommand.Flags().String(flagParent, "", "name of the parent layer")
	addCommand.Flags().String(flagDefault, "undefined", "status of paths without a matching rule")

	removeCommand := &cobra.Command{
		Use:                   "remove LAYER [--force]",
		DisableFlagsInUseLine: true,
		Short:                 "remove a rule layer and every layer beneath it",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				using := s.jobs.UsingLayer(layer)
				if len(using) > 0 && !v.GetBool(flagForce) {
					names := make([]string, 0, len(using))
					for _, j := range using {
						names = append(names, j.Name)
					}
					return fmt.Errorf("layer %q is used by jobs %s, use --force to remove them too", args[0], strings.Join(names, ", "))
				}
				for _, j := range using {
					s.jobs.Remove(j.Name)
				}
				s.layers.Remove(layer)
				return nil
			})
		},
	}
	removeCommand.Flags().Bool(flagForce, false, "also remove the jobs using the layer")

	duplicateCommand := &cobra.Command{
		Use:                   "duplicate LAYER",
		DisableFlagsInUseLine: true,
		Short:                 "copy a rule layer and every layer beneath it",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				duplicate, err := s.layers.Duplicate(layer)
				if err != nil {
					return err
				}
				fmt.Println(layerPath(duplicate))
				return nil
			})
		},
	}

	listCommand := &cobra.Command{
		Use:                   "list",
		DisableFlagsInUseLine: true,
		Short:                 "list rule layers",
		Args:                  cobra.NoArgs,
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				table := newTable(os.Stdout, []string{"LAYER", "DEFAULT", "RULES", "JOBS"})
				s.layers.Walk(func(layer *rules.Layer) {
					table.Append([]string{
						layerPath(layer),
						layer.Default().String(),
						strconv.Itoa(len(layer.Rules())),
						strconv.Itoa(len(s.jobs.UsingLayer(layer))),
					})
				})
				table.Render()
				return nil
			})
		},
	}

	showCommand := &cobra.Command{
		Use:                   "show LAYER",
		DisableFlagsInUseLine: true,
		Short:                 "show the rules declared in a layer",
		Args:                  cobra.ExactArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				table := newTable(os.Stdout, []string{"PATH", "STATUS"})
				table.Append([]string{"(default)", layer.Default().String()})
				for _, rule := range layer.Rules() {
					table.Append([]string{rules.FormatPath(rule.Segments), rule.Status.String()})
				}
				table.Render()
				return nil
			})
		},
	}

	ruleCommand := &cobra.Command{
		Use:                   "rule LAYER PATH STATUS",
		DisableFlagsInUseLine: true,
		Short:                 "set the status of a path pattern in a layer",
		Long: strings.Join([]string{
			"set the status of a path pattern in a layer.",
			"Segments are literal names, {regex} to match a single name, or |regex| to match several leading names.",
			"Statuses are include, ignore, stop or undefined.",
		}, "\n"),
		Args:          cobra.ExactArgs(3),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				status, err := parseStatusArg(args[2])
				if err != nil {
					return err
				}
				return layer.SetRule(rules.ParsePath(args[1]), status)
			})
		},
	}

	unruleCommand := &cobra.Command{
		Use:                   "unrule LAYER PATH",
		DisableFlagsInUseLine: true,
		Short:                 "remove a path pattern and every pattern beneath it from a layer",
		Args:                  cobra.ExactArgs(2),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, true, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				if !layer.DeleteRule(rules.ParsePath(args[1])) {
					return fmt.Errorf("layer %q has no rule at %q", args[0], args[1])
				}
				return nil
			})
		},
	}

	lintCommand := &cobra.Command{
		Use:                   "lint [LAYER]",
		DisableFlagsInUseLine: true,
		Short:                 "report sibling rules whose order decides which one applies",
		Args:                  cobra.MaximumNArgs(1),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				layers := []*rules.Layer{}
				if len(args) == 1 {
					layer, err := getLayer(s, args[0])
					if err != nil {
						return err
					}
					layers = append(layers, layer)
				} else {
					s.layers.Walk(func(layer *rules.Layer) {
						layers = append(layers, layer)
					})
				}
				count := 0
				for _, layer := range layers {
					for _, err := range layer.Lint() {
						fmt.Println(err.Error())
						count++
					}
				}
				if count > 0 {
					return fmt.Errorf("found %d ambiguous rules", count)
				}
				return nil
			})
		},
	}

	statusCommand := &cobra.Command{
		Use:                   "status LAYER PATH...",
		DisableFlagsInUseLine: true,
		Short:                 "show the effective status of paths",
		Args:                  cobra.MinimumNArgs(2),
		SilenceErrors:         true,
		SilenceUsage:          true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withState(cmd, false, func(ctx context.Context, v *viper.Viper, s *state) error {
				layer, err := getLayer(s, args[0])
				if err != nil {
					return err
				}
				table := newTable(os.Stdout, []string{"PATH", "STATUS", "DECLARED", "SETTLED"})
				for _, p := range args[1:] {
					segments := rules.ParsePath(p)
					resolution := layer.Resolve(segments)
					table.Append([]string{
						p,
						resolution.Status.String(),
						strconv.FormatBool(layer.PathExists(segments)),
						strconv.FormatBool(resolution.Settled),
					})
				}
				table.Render()
				return nil
			})
		},
	}

	layerCommand.AddCommand(
		addCommand,
		removeCommand,
		duplicateCommand,
		listCommand,
		showCommand,
		ruleCommand,
		unruleCommand,
		lintCommand,
		statusCommand)
	return layerCommand
}
