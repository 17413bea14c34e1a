package main

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gittask/gittask/internal/status"
	"github.com/gittask/gittask/internal/types"
)

var (
	listStatuses []string
	listKeyword  string
	listAuthor   string
	listLimit    int
	listColumns  string
	listSort     string
	listAll      bool
	listFrom     string
	listUntil    string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	Long: `List tasks, filtered and sorted.

Columns and sort order default to the task.list.columns and
task.list.sort configuration keys.

Examples:
  gittask list
  gittask list --status OPEN --status IN_PROGRESS
  gittask list --keyword login --sort "created desc" --limit 10
  gittask list --columns "id, status, author, name"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		tasks, err := store.List()
		if err != nil {
			return err
		}

		from, until, err := parseDateWindow(listFrom, listUntil)
		if err != nil {
			return err
		}

		statuses := cfg.Statuses()
		tasks = filterTasks(tasks, statuses, from, until)

		sortSpec := listSort
		if sortSpec == "" {
			sortSpec = cfg.ListSort()
		}
		sortTasks(tasks, sortSpec)

		if listLimit > 0 && len(tasks) > listLimit {
			tasks = tasks[:listLimit]
		}

		columnSpec := listColumns
		if columnSpec == "" {
			columnSpec = cfg.ListColumns()
		}
		columns := splitList(columnSpec)

		rows := make([][]string, 0, len(tasks))
		for _, task := range tasks {
			row := make([]string, len(columns))
			for i, col := range columns {
				row[i] = cell(task, col, statuses, cfg.ColorEnabled())
			}
			rows = append(rows, row)
		}

		headers := make([]string, len(columns))
		for i, col := range columns {
			headers[i] = strings.ToUpper(col)
		}
		fmt.Print(table(headers, rows, cfg.ColorEnabled()))
		return nil
	},
}

// parseDateWindow turns --from/--until values into an epoch range. Dates
// are YYYY-MM-DD in local time; --until includes the whole named day.
func parseDateWindow(from, until string) (int64, int64, error) {
	lo, hi := int64(0), int64(0)
	if from != "" {
		t, err := time.ParseInLocation("2006-01-02", from, time.Local)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --from date %q: expected YYYY-MM-DD", from)
		}
		lo = t.Unix()
	}
	if until != "" {
		t, err := time.ParseInLocation("2006-01-02", until, time.Local)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid --until date %q: expected YYYY-MM-DD", until)
		}
		hi = t.AddDate(0, 0, 1).Unix()
	}
	return lo, hi, nil
}

func filterTasks(tasks []*types.Task, statuses *status.Manager, from, until int64) []*types.Task {
	wanted := make(map[string]bool, len(listStatuses))
	for _, s := range listStatuses {
		wanted[statuses.FullName(s)] = true
	}

	var out []*types.Task
	for _, task := range tasks {
		st := task.Prop(types.PropStatus)
		if len(wanted) > 0 && !wanted[st] {
			continue
		}
		// Hide finished tasks unless asked for explicitly.
		if len(wanted) == 0 && !listAll && statuses.IsDone(st) {
			continue
		}
		if listAuthor != "" && !strings.EqualFold(task.Prop(types.PropAuthor), listAuthor) {
			continue
		}
		if listKeyword != "" && !matchesKeyword(task, listKeyword) {
			continue
		}
		if from > 0 || until > 0 {
			created, err := strconv.ParseInt(task.Prop(types.PropCreated), 10, 64)
			if err != nil {
				continue
			}
			if from > 0 && created < from {
				continue
			}
			if until > 0 && created >= until {
				continue
			}
		}
		out = append(out, task)
	}
	return out
}

func matchesKeyword(task *types.Task, keyword string) bool {
	keyword = strings.ToLower(keyword)
	if strings.Contains(strings.ToLower(task.Prop(types.PropName)), keyword) ||
		strings.Contains(strings.ToLower(task.Prop(types.PropDescription)), keyword) {
		return true
	}
	for _, c := range task.Comments {
		if strings.Contains(strings.ToLower(c.Text), keyword) {
			return true
		}
	}
	return false
}

// sortTasks orders by a spec such as "status, created desc". Numeric
// fields compare numerically so id 10 sorts after id 9.
func sortTasks(tasks []*types.Task, spec string) {
	type key struct {
		field string
		desc  bool
	}
	var keys []key
	for _, part := range splitList(spec) {
		field, rest, _ := strings.Cut(part, " ")
		keys = append(keys, key{field: field, desc: strings.TrimSpace(rest) == "desc"})
	}

	slices.SortStableFunc(tasks, func(a, b *types.Task) int {
		for _, k := range keys {
			va, vb := fieldValue(a, k.field), fieldValue(b, k.field)
			c := compareValues(va, vb)
			if c == 0 {
				continue
			}
			if k.desc {
				return -c
			}
			return c
		}
		return 0
	})
}

func fieldValue(task *types.Task, field string) string {
	if field == "id" {
		return task.ID
	}
	return task.Prop(field)
}

func compareValues(a, b string) int {
	na, errA := strconv.ParseInt(a, 10, 64)
	nb, errB := strconv.ParseInt(b, 10, 64)
	if errA == nil && errB == nil {
		switch {
		case na < nb:
			return -1
		case na > nb:
			return 1
		default:
			return 0
		}
	}
	return strings.Compare(a, b)
}

func cell(task *types.Task, column string, statuses *status.Manager, colorEnabled bool) string {
	switch column {
	case "id":
		return render(idStyle, task.ID, colorEnabled)
	case "created":
		return render(dimStyle, formatEpoch(task.Prop(types.PropCreated)), colorEnabled)
	case "status":
		return statuses.Format(task.Prop(types.PropStatus), noColor(colorEnabled))
	default:
		return task.Prop(column)
	}
}

func splitList(spec string) []string {
	var out []string
	for _, part := range strings.Split(spec, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	listCmd.Flags().StringArrayVarP(&listStatuses, "status", "s", nil, "filter by status (repeatable)")
	listCmd.Flags().StringVarP(&listKeyword, "keyword", "k", "", "filter by keyword in name, description or comments")
	listCmd.Flags().StringVar(&listAuthor, "author", "", "filter by author")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "maximum number of rows")
	listCmd.Flags().StringVar(&listColumns, "columns", "", "columns to print (default from task.list.columns)")
	listCmd.Flags().StringVar(&listSort, "sort", "", "sort order, e.g. \"created desc\" (default from task.list.sort)")
	listCmd.Flags().BoolVarP(&listAll, "all", "a", false, "include finished tasks")
	listCmd.Flags().StringVar(&listFrom, "from", "", "only tasks created on or after this date (YYYY-MM-DD)")
	listCmd.Flags().StringVar(&listUntil, "until", "", "only tasks created on or before this date (YYYY-MM-DD)")
	rootCmd.AddCommand(listCmd)
}
