package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/connector"
	"github.com/gittask/gittask/internal/types"
)

var (
	deleteStatus string
	deleteRemote bool
)

var deleteCmd = &cobra.Command{
	Use:   "delete [ID...]",
	Short: "Delete tasks",
	Long: `Delete tasks by id, id range, or status.

Deletion is local unless --remote is given, in which case the matching
tracker is asked to delete its counterpart too.

Examples:
  gittask delete 3
  gittask delete 1,4..6
  gittask delete --status CLOSED`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		ids, err := parseIDs(args)
		if err != nil {
			return err
		}
		if deleteStatus != "" {
			want := cfg.Statuses().FullName(deleteStatus)
			tasks, err := store.List()
			if err != nil {
				return err
			}
			for _, task := range tasks {
				if task.Prop(types.PropStatus) == want {
					ids = append(ids, task.ID)
				}
			}
		}
		if len(ids) == 0 {
			return fmt.Errorf("nothing to delete: give ids or --status")
		}

		// Verify before touching anything, so one bad id aborts cleanly.
		for _, id := range ids {
			if _, err := mustFind(store, id); err != nil {
				return err
			}
		}

		if deleteRemote {
			remotes, err := store.Objects().Remotes("")
			if err != nil {
				return err
			}
			match, err := connector.MatchOne(cfg, remotes, connectorType)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if err := match.Connector.DeleteTask(cmd.Context(), match.Scope, id); err != nil {
					fmt.Printf("Remote delete of %s failed: %v\n", id, err)
				}
			}
		}

		if err := store.Delete(ids); err != nil {
			return err
		}
		fmt.Printf("Deleted task %s\n", strings.Join(ids, ", "))
		return nil
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every task",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}
		n, err := store.Clear()
		if err != nil {
			return err
		}
		fmt.Printf("Deleted %d tasks\n", n)
		return nil
	},
}

func init() {
	deleteCmd.Flags().StringVarP(&deleteStatus, "status", "s", "", "delete every task with this status")
	deleteCmd.Flags().BoolVar(&deleteRemote, "remote", false, "also delete the remote counterpart")
	deleteCmd.Flags().StringVar(&connectorType, "connector", "", "restrict remote matching to one provider type")
	rootCmd.AddCommand(deleteCmd, clearCmd)
}
