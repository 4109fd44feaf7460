package main

import (
	"fmt"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

func newTemplateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage coach weekly availability templates",
	}
	cmd.AddCommand(newTemplateImportCmd())
	return cmd
}

func newTemplateImportCmd() *cobra.Command {
	var coachID int64

	cmd := &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Replace the weekly template of a coach with days from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			if _, err := rt.coach(ctx, coachID); err != nil {
				return err
			}
			availability, err := rt.availabilityService()
			if err != nil {
				return err
			}
			tpl, err := availability.ImportTemplate(ctx, coachID, f)
			if err != nil {
				return err
			}

			days, err := tpl.Slots()
			if err != nil {
				return err
			}
			for _, wd := range slices.Sorted(maps.Keys(days)) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:", wd)
				for _, slot := range days[wd] {
					fmt.Fprintf(cmd.OutOrStdout(), " %s-%s", slot.Start, slot.End)
				}
				fmt.Fprintln(cmd.OutOrStdout())
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&coachID, "coach", 0, "coach user id")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}
