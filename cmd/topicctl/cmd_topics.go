package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"topicgraph/domain/core/entities"
	"topicgraph/domain/schema"
)

func (c *cli) seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Merge a YAML seed of content types and topics into the graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := schema.LoadSeedFile(args[0])
			if err != nil {
				return err
			}
			if err := c.repo.ApplySeed(cmd.Context(), seed); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", args[0])
			return nil
		},
	}
}

func (c *cli) getCmd() *cobra.Command {
	var resolve bool
	cmd := &cobra.Command{
		Use:   "get PATH",
		Short: "Show a topic, optionally with schema defaults and inherited values",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.printTopic(cmd.OutOrStdout(), t, resolve)
		},
	}
	cmd.Flags().BoolVar(&resolve, "resolve", false, "resolve declared attributes through base topics and defaults")
	return cmd
}

func (c *cli) printTopic(w io.Writer, t *entities.Topic, resolve bool) error {
	sep := t.DomainConfig().PathSeparator
	fmt.Fprintf(w, "id:           %s\n", t.ID())
	fmt.Fprintf(w, "path:         %s\n", t.Path(sep))
	fmt.Fprintf(w, "content type: %s\n", t.ContentType())
	if base := t.Base(); base != nil {
		fmt.Fprintf(w, "base:         %s\n", base.Path(sep))
	}
	fmt.Fprintf(w, "versions:     %d\n", len(t.Versions()))

	values := make(map[string]string)
	for key, value := range t.Attributes().Snapshot() {
		values[strings.ToLower(key)] = value
	}
	if resolve {
		descriptor, err := c.repo.Schemas().DescriptorFor(t)
		if err != nil {
			return err
		}
		budget := t.DomainConfig().DefaultHopBudget
		for _, a := range descriptor.Attributes() {
			value, err := t.Attributes().GetValue(a.Key, a.DefaultValue, a.Inherited, budget)
			if err != nil {
				return err
			}
			if value != "" {
				values[strings.ToLower(a.Key)] = value
			}
		}
	}

	fmt.Fprintln(w, "attributes:")
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(w, "  %s = %s\n", key, values[key])
	}
	if keys := t.Relationships().Keys(); len(keys) > 0 {
		fmt.Fprintln(w, "relationships:")
		for _, key := range keys {
			var paths []string
			for _, target := range t.Relationship(key).Topics() {
				paths = append(paths, target.Path(sep))
			}
			fmt.Fprintf(w, "  %s -> %s\n", key, strings.Join(paths, ", "))
		}
	}
	if keys := t.References().Keys(); len(keys) > 0 {
		fmt.Fprintln(w, "references:")
		for _, key := range keys {
			if target := t.Reference(key); target != nil {
				fmt.Fprintf(w, "  %s -> %s\n", key, target.Path(sep))
			}
		}
	}
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (c *cli) treeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [PATH]",
		Short: "Print the topic hierarchy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			top := c.repo.Graph().Root()
			if len(args) == 1 {
				var err error
				if top, err = c.repo.LoadByPath(cmd.Context(), args[0]); err != nil {
					return err
				}
			}
			printTree(cmd.OutOrStdout(), top, 0)
			return nil
		},
	}
}

func printTree(w io.Writer, t *entities.Topic, depth int) {
	fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), t.Key(), t.ContentType())
	for _, child := range t.Children() {
		printTree(w, child, depth+1)
	}
}

func (c *cli) createCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "create PARENT CONTENT_TYPE KEY [NAME=VALUE...]",
		Short: "Create and save a topic under PARENT",
		Args:  cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			parent, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			t, err := c.repo.NewTopic(args[1], args[2], parent)
			if err != nil {
				return err
			}
			if err := assign(t, args[3:]); err != nil {
				t.Detach()
				return err
			}
			if err := c.repo.Save(cmd.Context(), t, false); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s %s\n", t.Path(t.DomainConfig().PathSeparator), t.ID())
			return nil
		},
	}
}

func (c *cli) setCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set PATH NAME=VALUE...",
		Short: "Set attributes of a topic; an empty value removes the attribute",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := assign(t, args[1:]); err != nil {
				return err
			}
			return c.repo.Save(cmd.Context(), t, false)
		},
	}
}

func assign(t *entities.Topic, pairs []string) error {
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok {
			return fmt.Errorf("expected NAME=VALUE, got %q", pair)
		}
		if err := t.SetAttribute(name, value); err != nil {
			return err
		}
	}
	return nil
}

func (c *cli) moveCmd() *cobra.Command {
	var after string
	cmd := &cobra.Command{
		Use:   "move PATH TARGET",
		Short: "Move a topic under TARGET, optionally after a sibling",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			target, err := c.repo.LoadByPath(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			var sibling *entities.Topic
			if after != "" {
				if sibling = target.ChildByKey(after); sibling == nil {
					return fmt.Errorf("%s has no child %q", args[1], after)
				}
			}
			return c.repo.Move(cmd.Context(), t, target, sibling)
		},
	}
	cmd.Flags().StringVar(&after, "after", "", "key of the sibling to place the topic after")
	return cmd
}

func (c *cli) deleteCmd() *cobra.Command {
	var recursive bool
	cmd := &cobra.Command{
		Use:   "delete PATH",
		Short: "Delete a topic that nothing else depends on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.repo.LoadByPath(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return c.repo.Delete(cmd.Context(), t, recursive)
		},
	}
	cmd.Flags().BoolVarP(&recursive, "recursive", "r", false, "delete the whole subtree")
	return cmd
}
