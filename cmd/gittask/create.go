package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/types"
)

var (
	createDescription string
	createStatus      string
)

var createCmd = &cobra.Command{
	Use:   "create NAME [DESCRIPTION]",
	Short: "Create a new task",
	Long: `Create a task in the repository's task store. The id is assigned
automatically as the next free number.

Examples:
  gittask create "Fix the flaky login test"
  gittask create "Ship v2" "Cut the release branch and tag it" --status IN_PROGRESS`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		statuses := cfg.Statuses()
		st := statuses.Starting()
		if createStatus != "" {
			st = statuses.FullName(createStatus)
		}
		description := createDescription
		if len(args) == 2 {
			description = args[1]
		}

		task, err := types.NewTask(args[0], description, st)
		if err != nil {
			return err
		}
		id, err := store.Create(task)
		if err != nil {
			return err
		}
		fmt.Printf("Created task %s\n", render(idStyle, id, cfg.ColorEnabled()))
		return nil
	},
}

func init() {
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "task description")
	createCmd.Flags().StringVarP(&createStatus, "status", "s", "", "initial status (full name or shortcut)")
	rootCmd.AddCommand(createCmd)
}
