package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/types"
)

var showCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show one task in full",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}

		color := cfg.ColorEnabled()
		statuses := cfg.Statuses()

		fmt.Printf("%s %s\n", render(idStyle, "["+task.ID+"]", color), task.Prop(types.PropName))
		fmt.Printf("%s %s\n", render(headerStyle, "Status:", color), statuses.Format(task.Prop(types.PropStatus), noColor(color)))
		if created := task.Prop(types.PropCreated); created != "" {
			fmt.Printf("%s %s\n", render(headerStyle, "Created:", color), formatEpoch(created))
		}
		if author := task.Prop(types.PropAuthor); author != "" {
			fmt.Printf("%s %s\n", render(headerStyle, "Author:", color), author)
		}

		// Custom properties, stable order.
		var extra []string
		for name := range task.Props {
			switch name {
			case types.PropName, types.PropStatus, types.PropCreated, types.PropAuthor, types.PropDescription:
			default:
				extra = append(extra, name)
			}
		}
		sort.Strings(extra)
		for _, name := range extra {
			fmt.Printf("%s %s\n", render(headerStyle, name+":", color), task.Prop(name))
		}

		if len(task.Labels) > 0 {
			fmt.Printf("%s", render(headerStyle, "Labels:", color))
			for _, l := range task.Labels {
				fmt.Printf(" %s", l.Name)
			}
			fmt.Println()
		}

		if description := task.Prop(types.PropDescription); description != "" {
			fmt.Printf("\n%s\n", description)
		}

		for _, c := range task.Comments {
			fmt.Printf("\n%s", render(dimStyle, "comment "+c.ID, color))
			if author := c.Props[types.PropAuthor]; author != "" {
				fmt.Printf(" %s", render(dimStyle, "by "+author, color))
			}
			if created := c.Props[types.PropCreated]; created != "" {
				fmt.Printf(" %s", render(dimStyle, "on "+formatEpoch(created), color))
			}
			fmt.Printf("\n%s\n", c.Text)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
}
