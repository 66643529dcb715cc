package cmd

import (
	"fmt"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/psantana5/opsim/pkg/lessons"
	"github.com/psantana5/opsim/pkg/models"
)

var lessonsCmd = &cobra.Command{
	Use:   "lessons",
	Short: "Browse the lesson catalog",
}

var lessonsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every lesson by category",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := lessons.LoadRegistry()
		if err != nil {
			return err
		}

		table := tablewriter.NewWriter(cmd.OutOrStdout())
		table.Header("Category", "ID", "Name", "Steps")
		for _, cat := range registry.Categories() {
			for _, l := range cat.Lessons {
				table.Append([]string{cat.Name, l.ID, l.Name, strconv.Itoa(len(l.Steps))})
			}
		}
		table.Render()
		return nil
	},
}

var lessonsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a lesson's description and skills",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := lessons.LoadRegistry()
		if err != nil {
			return err
		}
		l, ok := registry.Get(args[0])
		if !ok {
			return errors.Wrapf(models.ErrNotFound, "lesson %q", args[0])
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", l.Name, l.ID)
		fmt.Fprintf(out, "Category: %s\n", l.Category)
		fmt.Fprintf(out, "%s\n\nSkills:\n", l.Description)
		for _, skill := range l.Skills {
			fmt.Fprintf(out, "- %s\n", skill)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lessonsCmd)
	lessonsCmd.AddCommand(lessonsListCmd)
	lessonsCmd.AddCommand(lessonsShowCmd)
}
