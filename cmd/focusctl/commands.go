package main

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/focus-timer/internal/agent"
	"github.com/example/focus-timer/internal/timerapi"
)

var errNoActiveSession = errors.New("no active session")

func statusCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the active session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			active, err := c.client.GetActive(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if active == nil {
				fmt.Fprintln(out, errNoActiveSession.Error())
				return nil
			}
			printSession(out, *active, time.Now())
			return nil
		},
	}
}

func pauseCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "pause [session-id]",
		Short: "Pause the active session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.resolveSession(cmd, args)
			if err != nil {
				return err
			}
			if err := c.client.Pause(cmd.Context(), session.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "paused %s\n", session.ID)
			return nil
		},
	}
}

func resumeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <session-id>",
		Short: "Resume a paused session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.client.Resume(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "resumed %s\n", args[0])
			return nil
		},
	}
}

func stopCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "stop [session-id]",
		Short: "Complete a session with its elapsed time",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			session, err := c.resolveSession(cmd, args)
			if err != nil {
				return err
			}
			observed := agent.ReconcileElapsed(session, time.Now())
			if observed > session.TargetDurationSeconds {
				observed = session.TargetDurationSeconds
			}
			if err := c.client.Complete(cmd.Context(), session.ID, &observed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "completed %s after %s\n", session.ID, formatSeconds(observed))
			return nil
		},
	}
}

func activityCmd(c *cli) *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "activity",
		Short: "List archived sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := c.client.ListActivity(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DATE\tSUBJECT\tKIND\tMINUTES")
			total := 0
			for _, entry := range entries {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", entry.LocalDate, entry.SubjectTitle, entry.Kind, entry.DurationMinutes)
				total += entry.DurationMinutes
			}
			fmt.Fprintf(w, "\t\tTOTAL\t%d\n", total)
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "first local date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "last local date (YYYY-MM-DD)")
	return cmd
}

func deviceCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "device",
		Short: "Print this installation's device id",
		RunE: func(cmd *cobra.Command, _ []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), c.deviceID)
			return nil
		},
	}
}

// resolveSession returns the session named in args, or the active one.
func (c *cli) resolveSession(cmd *cobra.Command, args []string) (timerapi.Session, error) {
	if len(args) == 1 {
		return c.client.GetSession(cmd.Context(), args[0])
	}
	active, err := c.client.GetActive(cmd.Context())
	if err != nil {
		return timerapi.Session{}, err
	}
	if active == nil {
		return timerapi.Session{}, errNoActiveSession
	}
	return *active, nil
}

func printSession(out io.Writer, session timerapi.Session, now time.Time) {
	elapsed := agent.ReconcileElapsed(session, now)
	fmt.Fprintf(out, "%s  %s (%s)  %s  %s / %s\n",
		session.ID,
		session.SubjectTitle,
		session.Kind,
		session.Status,
		formatSeconds(elapsed),
		formatSeconds(session.TargetDurationSeconds),
	)
}

func formatSeconds(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}
