package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"

	"cybertodo/internal/app"
	"cybertodo/internal/config"
	"cybertodo/internal/model"
	"cybertodo/internal/storage"
	"cybertodo/internal/task"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

type env struct {
	app   *app.App
	store *task.Store
	in    io.Reader
	out   io.Writer
}

type command struct {
	args string
	run  func(e *env, args []string) error
}

var commands = map[string]command{
	"add":             {"<text>", cmdAdd},
	"list":            {"[-filter all|active|completed] [-q term]", cmdList},
	"search":          {"<term>", cmdSearch},
	"toggle":          {"<id>", cmdToggle},
	"edit":            {"<id> <text>", cmdEdit},
	"rm":              {"<id>", cmdRemove},
	"priority":        {"<id> <low|medium|high>", cmdPriority},
	"category":        {"<id> <category>", cmdCategory},
	"clear-completed": {"", cmdClearCompleted},
	"complete-all":    {"", cmdCompleteAll},
	"reorder":         {"<from> <to>", cmdReorder},
	"bulk-delete":     {"<id>...", cmdBulkDelete},
	"bulk-complete":   {"<id>...", cmdBulkComplete},
	"bulk-priority":   {"<priority> <id>...", cmdBulkPriority},
	"filter":          {"[all|active|completed]", cmdFilter},
	"stats":           {"", cmdStats},
	"export":          {"[-format json|yaml] [-out file]", cmdExport},
	"import":          {"[-format json|yaml] <file|->", cmdImport},
	"reset":           {"-yes", cmdReset},
	"dump":            {"", cmdDump},
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("todo", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", config.DefaultPath, "config file (optional)")
	dataDir := fs.String("data-dir", "", "data directory (overrides config)")
	fs.Usage = func() { printUsage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		printUsage(stderr)
		return 2
	}
	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(stderr, "unknown command %q\n", name)
		printUsage(stderr)
		return 2
	}

	cfg, err := config.LoadOptional(*configPath)
	if err != nil {
		fmt.Fprintln(stderr, "load config:", err)
		return 1
	}
	cfg.ApplyEnv()
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}

	a, err := app.Open(cfg, app.Options{LogOutput: stderr})
	if err != nil {
		fmt.Fprintln(stderr, "open store:", err)
		return 1
	}

	e := &env{app: a, store: a.Store, in: stdin, out: stdout}
	if err := cmd.run(e, rest); err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", name, err)
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "usage: todo %s %s\n", name, cmd.args)
			return 2
		}
		return 1
	}
	return 0
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: todo [-config file] [-data-dir dir] <command> [args]")
	fmt.Fprintln(w, "commands:")
	names := make([]string, 0, len(commands))
	for n := range commands {
		names = append(names, n)
	}
	sort.Strings(names)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, n := range names {
		fmt.Fprintf(tw, "  %s\t%s\n", n, commands[n].args)
	}
	_ = tw.Flush()
}

var errUsage = errors.New("bad arguments")

func usagef(format string, a ...any) error {
	return fmt.Errorf("%w: %s", errUsage, fmt.Sprintf(format, a...))
}

// resolveID accepts a full id or an unambiguous prefix of one.
func (e *env) resolveID(arg string) (model.TaskID, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return "", usagef("id is required")
	}
	if _, ok := e.store.Get(model.TaskID(arg)); ok {
		return model.TaskID(arg), nil
	}
	var match model.TaskID
	for _, t := range e.store.Tasks() {
		if !strings.HasPrefix(string(t.ID), arg) {
			continue
		}
		if match != "" {
			return "", fmt.Errorf("id prefix %q is ambiguous", arg)
		}
		match = t.ID
	}
	if match == "" {
		return "", fmt.Errorf("no task %q", arg)
	}
	return match, nil
}

func (e *env) resolveIDs(args []string) ([]model.TaskID, error) {
	if len(args) == 0 {
		return nil, usagef("at least one id is required")
	}
	ids := make([]model.TaskID, 0, len(args))
	for _, a := range args {
		id, err := e.resolveID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func shortID(id model.TaskID) string {
	if len(id) > 8 {
		return string(id[:8])
	}
	return string(id)
}

func (e *env) printTasks(tasks []model.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(e.out, "no tasks")
		return
	}
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDONE\tPRIORITY\tCATEGORY\tTEXT")
	for _, t := range tasks {
		done := "[ ]"
		if t.Completed {
			done = "[x]"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", shortID(t.ID), done, t.Priority, t.Category, t.Text)
	}
	_ = tw.Flush()
}

func notFound(id model.TaskID) error {
	return fmt.Errorf("no task %q", id)
}

func cmdAdd(e *env, args []string) error {
	t, err := e.store.AddTask(strings.Join(args, " "))
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, t.ID)
	return nil
}

func cmdList(e *env, args []string) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	filter := fs.String("filter", "", "status filter (persisted)")
	query := fs.String("q", "", "search term")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if *filter != "" {
		f, ok := model.ParseFilter(*filter)
		if !ok {
			return task.ErrUnknownFilter
		}
		if err := e.store.SetFilter(f); err != nil {
			return err
		}
	}
	e.store.SetSearchTerm(*query)
	e.printTasks(e.store.FilteredTasks())
	return nil
}

func cmdSearch(e *env, args []string) error {
	if len(args) == 0 {
		return usagef("search term is required")
	}
	e.printTasks(e.store.Search(strings.Join(args, " ")))
	return nil
}

func cmdToggle(e *env, args []string) error {
	if len(args) != 1 {
		return usagef("expected one id")
	}
	id, err := e.resolveID(args[0])
	if err != nil {
		return err
	}
	if _, err := e.store.ToggleTask(id); err != nil {
		return err
	}
	t, _ := e.store.Get(id)
	state := "active"
	if t.Completed {
		state = "completed"
	}
	fmt.Fprintf(e.out, "%s %s\n", shortID(id), state)
	return nil
}

func cmdEdit(e *env, args []string) error {
	if len(args) < 2 {
		return usagef("expected an id and new text")
	}
	id, err := e.resolveID(args[0])
	if err != nil {
		return err
	}
	ok, err := e.store.EditTask(id, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	if !ok {
		return notFound(id)
	}
	return nil
}

func cmdRemove(e *env, args []string) error {
	if len(args) != 1 {
		return usagef("expected one id")
	}
	id, err := e.resolveID(args[0])
	if err != nil {
		return err
	}
	_, err = e.store.DeleteTask(id)
	return err
}

func cmdPriority(e *env, args []string) error {
	if len(args) != 2 {
		return usagef("expected an id and a priority")
	}
	id, err := e.resolveID(args[0])
	if err != nil {
		return err
	}
	p, ok := model.ParsePriority(args[1])
	if !ok {
		return task.ErrUnknownPriority
	}
	_, err = e.store.SetPriority(id, p)
	return err
}

func cmdCategory(e *env, args []string) error {
	if len(args) < 2 {
		return usagef("expected an id and a category")
	}
	id, err := e.resolveID(args[0])
	if err != nil {
		return err
	}
	_, err = e.store.SetCategory(id, strings.Join(args[1:], " "))
	return err
}

func cmdClearCompleted(e *env, _ []string) error {
	n, err := e.store.ClearCompleted()
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "removed %d\n", n)
	return nil
}

func cmdCompleteAll(e *env, _ []string) error {
	if e.store.Len() == 0 {
		fmt.Fprintln(e.out, "no tasks")
		return nil
	}
	done, err := e.store.CompleteAll()
	if err != nil {
		return err
	}
	if done {
		fmt.Fprintln(e.out, "all completed")
	} else {
		fmt.Fprintln(e.out, "all active")
	}
	return nil
}

func cmdReorder(e *env, args []string) error {
	if len(args) != 2 {
		return usagef("expected from and to positions")
	}
	from, err := strconv.Atoi(args[0])
	if err != nil {
		return usagef("from: %v", err)
	}
	to, err := strconv.Atoi(args[1])
	if err != nil {
		return usagef("to: %v", err)
	}
	return e.store.Reorder(from, to)
}

func cmdBulkDelete(e *env, args []string) error {
	ids, err := e.resolveIDs(args)
	if err != nil {
		return err
	}
	n, err := e.store.BulkDelete(ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "removed %d\n", n)
	return nil
}

func cmdBulkComplete(e *env, args []string) error {
	ids, err := e.resolveIDs(args)
	if err != nil {
		return err
	}
	n, err := e.store.BulkComplete(ids)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "completed %d\n", n)
	return nil
}

func cmdBulkPriority(e *env, args []string) error {
	if len(args) < 2 {
		return usagef("expected a priority and at least one id")
	}
	p, ok := model.ParsePriority(args[0])
	if !ok {
		return task.ErrUnknownPriority
	}
	ids, err := e.resolveIDs(args[1:])
	if err != nil {
		return err
	}
	n, err := e.store.BulkSetPriority(ids, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "updated %d\n", n)
	return nil
}

func cmdFilter(e *env, args []string) error {
	switch len(args) {
	case 0:
		fmt.Fprintln(e.out, e.store.View().Filter)
		return nil
	case 1:
		f, ok := model.ParseFilter(args[0])
		if !ok {
			return task.ErrUnknownFilter
		}
		return e.store.SetFilter(f)
	}
	return usagef("expected at most one filter")
}

func cmdStats(e *env, _ []string) error {
	st := e.store.Statistics()
	tw := tabwriter.NewWriter(e.out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "total\t%d\n", st.Total)
	fmt.Fprintf(tw, "active\t%d\n", st.Active)
	fmt.Fprintf(tw, "completed\t%d\n", st.Completed)
	for _, p := range model.Priorities {
		fmt.Fprintf(tw, "priority %s\t%d\n", p, st.ByPriority[p])
	}
	cats := make([]string, 0, len(st.ByCategory))
	for c := range st.ByCategory {
		cats = append(cats, c)
	}
	sort.Strings(cats)
	for _, c := range cats {
		fmt.Fprintf(tw, "category %s\t%d\n", c, st.ByCategory[c])
	}
	return tw.Flush()
}

func cmdExport(e *env, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "json", "json or yaml")
	out := fs.String("out", "", "output file (default stdout)")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	f, err := task.ParseFormat(*format)
	if err != nil {
		return usagef("%v", err)
	}
	b, err := e.store.ExportSnapshotAs(f)
	if err != nil {
		return err
	}
	if *out == "" {
		_, err = e.out.Write(b)
		return err
	}
	return os.WriteFile(*out, b, 0o644)
}

func cmdImport(e *env, args []string) error {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	format := fs.String("format", "json", "json or yaml")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() != 1 {
		return usagef("expected one file, or - for stdin")
	}
	f, err := task.ParseFormat(*format)
	if err != nil {
		return usagef("%v", err)
	}

	var b []byte
	if src := fs.Arg(0); src == "-" {
		b, err = io.ReadAll(e.in)
	} else {
		b, err = os.ReadFile(src)
	}
	if err != nil {
		return err
	}
	if err := e.store.ImportSnapshotAs(b, f); err != nil {
		return err
	}
	fmt.Fprintf(e.out, "imported %d\n", e.store.Len())
	return nil
}

func cmdReset(e *env, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	yes := fs.Bool("yes", false, "confirm deleting every task")
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if !*yes {
		return usagef("reset deletes every task; pass -yes to confirm")
	}
	return e.store.Reset()
}

func cmdDump(e *env, _ []string) error {
	if err := storage.Dump(e.app.KV, e.app.Slot.Key, e.out); err != nil {
		return err
	}
	fmt.Fprintln(e.out)
	return nil
}
