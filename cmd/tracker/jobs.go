package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chandumcs/opstracker/cmd/tracker/cli"
)

func newJobsCmd() *cobra.Command {
	jobsCmd := &cobra.Command{
		Use:   "jobs",
		Short: "Inspect and trigger background jobs",
	}

	var idleFor time.Duration
	trigger := &cobra.Command{
		Use:   "trigger <job>",
		Short: "Enqueue a job immediately",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			c := cli.NewJobsCLI(cfg.RedisAddr)
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), args[0], idleFor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	trigger.Flags().DurationVar(&idleFor, "idle-for", 0, "override the idle window of users:idle-logout")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadRuntime()
			if err != nil {
				return err
			}
			c := cli.NewJobsCLI(cfg.RedisAddr)
			defer c.Close()
			s, err := c.InspectQueue(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
				s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry)
			return nil
		},
	}

	jobsCmd.AddCommand(trigger, stats)
	return jobsCmd
}
