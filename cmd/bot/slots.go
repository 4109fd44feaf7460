package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
)

func newSlotsCmd() *cobra.Command {
	var (
		coachID int64
		date    string
		minutes int
	)

	cmd := &cobra.Command{
		Use:   "slots",
		Short: "Print free start times of a coach for a date",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			rt, err := newRuntime(ctx)
			if err != nil {
				return err
			}
			defer rt.Close()

			coach, err := rt.coach(ctx, coachID)
			if err != nil {
				return err
			}
			loc := coach.Location()

			day := model.DateOf(time.Now(), loc)
			if date != "" {
				if day, err = model.ParseDate(date); err != nil {
					return err
				}
			}

			availability, err := rt.availabilityService()
			if err != nil {
				return err
			}
			slots, err := availability.FreeSlots(ctx, coach.ID, day, minutes)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(slots) == 0 {
				fmt.Fprintf(out, "%s: no free slots\n", day)
				return nil
			}
			for _, s := range slots {
				fmt.Fprintf(out, "%s %s-%s\n", day,
					s.In(loc).Format("15:04"),
					s.Add(time.Duration(minutes)*time.Minute).In(loc).Format("15:04"))
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&coachID, "coach", 0, "coach user id")
	cmd.Flags().StringVar(&date, "date", "", "date YYYY-MM-DD, today by default")
	cmd.Flags().IntVar(&minutes, "minutes", 60, "session duration in minutes")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}
