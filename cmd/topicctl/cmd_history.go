package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) historyCmd() *cobra.Command {
	var at string
	cmd := &cobra.Command{
		Use:   "history PATH",
		Short: "List saved versions, or show the topic as of --at",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if at == "" {
				for _, v := range t.Versions() {
					fmt.Fprintln(cmd.OutOrStdout(), v.UTC().Format(time.RFC3339Nano))
				}
				return nil
			}

			ts, err := time.Parse(time.RFC3339Nano, at)
			if err != nil {
				return fmt.Errorf("invalid --at: %w", err)
			}
			snapshot, err := c.repo.LoadVersion(cmd.Context(), t.ID().String(), ts)
			if err != nil {
				return err
			}
			return c.printTopic(cmd.OutOrStdout(), snapshot, false)
		},
	}
	cmd.Flags().StringVar(&at, "at", "", "RFC 3339 timestamp")
	return cmd
}

func (c *cli) rollbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rollback PATH TIME",
		Short: "Restore the attributes saved at or before TIME as a new version",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ts, err := time.Parse(time.RFC3339Nano, args[1])
			if err != nil {
				return fmt.Errorf("invalid time: %w", err)
			}
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.repo.Rollback(cmd.Context(), t, ts)
		},
	}
}
