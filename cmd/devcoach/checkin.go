package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/cleaver/open-dev-coach/internal/scheduler"
	"github.com/spf13/cobra"
)

var checkinCmd = &cobra.Command{
	Use:   "checkin",
	Short: "Manage scheduled check-ins",
}

var checkinAddCmd = &cobra.Command{
	Use:   "add [HH:MM|2h 30m] [description...]",
	Short: "Schedule a check-in at a local time or after an interval",
	Example: `  devcoach checkin add 14:00 review the PR
  devcoach checkin add 1h 30m stretch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCheckinAdd,
}

var checkinListCmd = &cobra.Command{
	Use:   "list",
	Short: "List scheduled check-ins",
	RunE:  runCheckinList,
}

var checkinRmCmd = &cobra.Command{
	Use:     "rm [checkin-id]",
	Aliases: []string{"remove", "cancel"},
	Short:   "Cancel a scheduled check-in",
	Args:    cobra.ExactArgs(1),
	RunE:    runCheckinRm,
}

func init() {
	checkinCmd.AddCommand(checkinAddCmd, checkinListCmd, checkinRmCmd)
}

func runCheckinAdd(cmd *cobra.Command, args []string) error {
	spec, desc := scheduler.SplitTimeSpec(args)
	checkin, err := newAPIClient().AddCheckin(cmd.Context(), spec, desc)
	if err != nil {
		return err
	}
	fmt.Printf("Scheduled check-in %s for %s\n", truncateID(checkin.ID), checkin.ScheduledAt.Format("Mon 2 Jan 15:04 MST"))
	return nil
}

func runCheckinList(cmd *cobra.Command, args []string) error {
	checkins, err := newAPIClient().ListCheckins(cmd.Context())
	if err != nil {
		return err
	}

	if len(checkins) == 0 {
		fmt.Println("No check-ins scheduled")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tWHEN\tIN\tDESCRIPTION")
	for _, c := range checkins {
		in := time.Until(c.ScheduledAt).Round(time.Minute)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", truncateID(c.ID), c.ScheduledAt.Format("Mon 15:04"), in, truncate(c.Description, 50))
	}
	w.Flush()
	return nil
}

func runCheckinRm(cmd *cobra.Command, args []string) error {
	c := newAPIClient()
	id, err := c.ResolveCheckinID(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	msg, err := c.RemoveCheckin(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Println(msg)
	return nil
}
