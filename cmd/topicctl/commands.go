package main

import (
	"context"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"topicgraph/application/services"
	"topicgraph/pkg/common"
)

// opener returns an open repository and the function releasing it
type opener func(ctx context.Context) (*services.TopicRepository, func(), error)

// cli holds the repository shared by the subcommands of one invocation
type cli struct {
	open    opener
	repo    *services.TopicRepository
	release func()
}

func newRootCmd(open opener) *cobra.Command {
	c := &cli{open: open}

	rootCmd := &cobra.Command{
		Use:           "topicctl",
		Short:         "Inspect and change a versioned topic graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			ctx := common.WithOperationID(cmd.Context(), uuid.New().String())
			ctx = common.WithActor(ctx, os.Getenv("USER"))
			cmd.SetContext(ctx)

			repo, release, err := c.open(ctx)
			if err != nil {
				return err
			}
			c.repo, c.release = repo, release
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.release != nil {
				c.release()
			}
		},
	}

	rootCmd.AddCommand(
		c.seedCmd(),
		c.getCmd(),
		c.treeCmd(),
		c.createCmd(),
		c.setCmd(),
		c.moveCmd(),
		c.deleteCmd(),
		c.historyCmd(),
		c.rollbackCmd(),
	)
	return rootCmd
}
