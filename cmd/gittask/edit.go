package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/types"
)

// Property-level commands: status is frequent enough to deserve its own
// verb; everything else goes through get/set/unset.

var statusCmd = &cobra.Command{
	Use:   "status ID STATUS",
	Short: "Change a task's status",
	Long: `Change a task's status. Shortcuts from the configured status set
are accepted: with the default set, "c" expands to CLOSED.

Examples:
  gittask status 7 CLOSED
  gittask status 7 c`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProperty(args[0], types.PropStatus, args[1])
	},
}

var getCmd = &cobra.Command{
	Use:   "get ID PROPERTY",
	Short: "Print one property of a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		value, ok := task.Property(args[1])
		if !ok {
			return fmt.Errorf("task %s has no property %q", args[0], args[1])
		}
		fmt.Println(value)
		return nil
	},
}

var setCmd = &cobra.Command{
	Use:   "set ID PROPERTY VALUE",
	Short: "Set a property on a task",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setProperty(args[0], args[1], args[2])
	},
}

var unsetCmd = &cobra.Command{
	Use:   "unset ID PROPERTY",
	Short: "Remove a property from a task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		task, err := mustFind(store, args[0])
		if err != nil {
			return err
		}
		switch args[1] {
		case types.PropName, types.PropStatus:
			return fmt.Errorf("property %q is required and cannot be removed", args[1])
		}
		if !task.DeleteProperty(args[1]) {
			return fmt.Errorf("task %s has no property %q", args[0], args[1])
		}
		return store.Update(task)
	},
}

func setProperty(id, name, value string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	task, err := mustFind(store, id)
	if err != nil {
		return err
	}
	if name == types.PropStatus {
		value = cfg.Statuses().FullName(value)
	}
	task.SetProperty(name, value)
	if err := store.Update(task); err != nil {
		return err
	}
	if name == types.PropStatus {
		fmt.Printf("Task %s is now %s\n",
			render(idStyle, id, cfg.ColorEnabled()),
			cfg.Statuses().Format(value, noColor(cfg.ColorEnabled())))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(statusCmd, getCmd, setCmd, unsetCmd)
}
