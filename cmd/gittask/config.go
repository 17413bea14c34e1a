package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/taskcfg"
)

var configMoveRef bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write tracker configuration",
	Long: `Read and write the git configuration keys the tracker consumes.

The special key task.ref names the ref the task database lives under.
Changing it with --move relocates the existing history to the new ref;
without --move the old ref is left behind and a fresh database starts
at the new path.`,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known keys and their effective values",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := openStore()
		if err != nil {
			return err
		}
		for _, key := range taskcfg.Keys() {
			value, _ := cfg.GetKey(key)
			fmt.Printf("%s=%s\n", key, value)
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		if args[0] == taskcfg.KeyRef {
			path, err := store.Objects().RefPath()
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		}
		value, known := cfg.GetKey(args[0])
		if !known {
			return fmt.Errorf("unknown configuration key %q", args[0])
		}
		fmt.Println(value)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Persist a key to the repository configuration",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		key, value := args[0], args[1]

		if key == taskcfg.KeyRef {
			path := normalizeRefPath(value)
			if err := store.Objects().SetRefPath(path, configMoveRef); err != nil {
				return err
			}
			fmt.Printf("Task ref is now %s\n", path)
			return nil
		}

		if _, known := cfg.GetKey(key); !known {
			return fmt.Errorf("unknown configuration key %q", key)
		}
		return cfg.Set(key, value)
	},
}

// normalizeRefPath expands a bare name into a full ref path, so
// "work" becomes "refs/tasks/work".
func normalizeRefPath(path string) string {
	path = strings.Trim(path, "/")
	if strings.HasPrefix(path, "refs/") {
		return path
	}
	return "refs/tasks/" + path
}

func init() {
	configSetCmd.Flags().BoolVar(&configMoveRef, "move", false, "relocate existing task history when changing task.ref")
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd)
	rootCmd.AddCommand(configCmd)
}
