package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Freeeeeet/coach_scheduler/internal/model"
	"github.com/Freeeeeet/coach_scheduler/internal/render"
	"github.com/Freeeeeet/coach_scheduler/internal/service"
)

func newWeekCmd() *cobra.Command {
	var (
		coachID int64
		date    string
		out     string
	)

	cmd := &cobra.Command{
		Use:   "week",
		Short: "Render the weekly schedule of a coach into a PNG file",
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
			now := time.Now()

			day := model.DateOf(now, loc)
			if date != "" {
				if day, err = model.ParseDate(date); err != nil {
					return err
				}
			}

			sessions, monday, err := service.NewSessionService(rt.sessions, rt.users, nil, rt.tx, rt.logger).
				Week(ctx, coach.ID, day, loc)
			if err != nil {
				return err
			}
			availability, err := rt.availabilityService()
			if err != nil {
				return err
			}
			template, err := availability.GetWeeklyTemplate(ctx, coach.ID)
			if err != nil {
				return err
			}
			blocked, err := availability.GetBlockedDates(ctx, coach.ID)
			if err != nil {
				return err
			}

			names := make(map[int64]string)
			for _, s := range sessions {
				if _, ok := names[s.ClientID]; ok {
					continue
				}
				names[s.ClientID] = fmt.Sprintf("#%d", s.ClientID)
				if u, err := rt.users.GetByID(ctx, s.ClientID); err == nil && u != nil {
					names[s.ClientID] = u.DisplayName()
				}
			}

			imageData, err := render.WeekImage(render.Week{
				Start:       monday,
				Location:    loc,
				Now:         now,
				Template:    template,
				Blocked:     blocked,
				Sessions:    sessions,
				ClientNames: names,
			})
			if err != nil {
				return fmt.Errorf("render week: %w", err)
			}
			if err := os.WriteFile(out, imageData, 0o644); err != nil {
				return err
			}

			rt.logger.Info("Week image saved",
				zap.String("path", out),
				zap.Stringer("week_start", monday),
				zap.Int("sessions", len(sessions)),
			)
			return nil
		},
	}
	cmd.Flags().Int64Var(&coachID, "coach", 0, "coach user id")
	cmd.Flags().StringVar(&date, "date", "", "any date of the week YYYY-MM-DD, current week by default")
	cmd.Flags().StringVarP(&out, "out", "o", "week.png", "output file")
	_ = cmd.MarkFlagRequired("coach")
	return cmd
}
