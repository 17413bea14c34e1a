package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	labelColor       string
	labelDescription string
	labelRemote      bool
)

var labelCmd = &cobra.Command{
	Use:   "label",
	Short: "Manage task labels",
}

var labelAddCmd = &cobra.Command{
	Use:   "add ID NAME",
	Short: "Add a label to a task",
	Long: `Add a label to a task. Adding a name the task already carries
replaces its color and description.

Examples:
  gittask label add 4 bug --color ff0000
  gittask label add 4 backend --description "server side work"`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		label := task.AddLabel(args[1], labelColor, labelDescription)
		if err := store.Update(task); err != nil {
			return err
		}
		fmt.Printf("Added label %s to task %s\n", label.Name, task.ID)

		if labelRemote {
			match, err := matchConnector(store, cfg)
			if err != nil {
				return err
			}
			return match.Connector.CreateLabel(cmd.Context(), match.Scope, task.ID, label)
		}
		return nil
	},
}

var labelDeleteCmd = &cobra.Command{
	Use:   "delete ID NAME",
	Short: "Remove a label from a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		if err := task.DeleteLabel(args[1]); err != nil {
			return err
		}
		if err := store.Update(task); err != nil {
			return err
		}

		if labelRemote {
			match, err := matchConnector(store, cfg)
			if err != nil {
				return err
			}
			return match.Connector.DeleteLabel(cmd.Context(), match.Scope, task.ID, args[1])
		}
		return nil
	},
}

func init() {
	labelAddCmd.Flags().StringVar(&labelColor, "color", "", "label color (hex, no leading #)")
	labelAddCmd.Flags().StringVar(&labelDescription, "description", "", "label description")
	for _, c := range []*cobra.Command{labelAddCmd, labelDeleteCmd} {
		c.Flags().BoolVar(&labelRemote, "remote", false, "propagate to the remote tracker")
		c.Flags().StringVar(&connectorType, "connector", "", "restrict remote matching to one provider type")
	}
	labelCmd.AddCommand(labelAddCmd, labelDeleteCmd)
	rootCmd.AddCommand(labelCmd)
}
