package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	flag "github.com/spf13/pflag"

	"github.com/holophrastic/kiokudb-backend-files/pkg/files"
	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

func newShellCommand() *Command {
	flags := flag.NewFlagSet("shell", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "shell",
		Short: "Interactive store session",
		Long:  "Open a readline-style session against the store. Type 'help' inside for commands.",
		Exec: func(env *Env, args []string) error {
			if len(args) > 0 {
				return errTooManyArguments
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			sh := &shell{env: env, store: store}

			return sh.run()
		},
	}
}

// shell is the interactive command loop.
type shell struct {
	env   *Env
	store *files.Store
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".kiokufiles_history")
}

func (sh *shell) run() error {
	sh.liner = liner.NewLiner()
	defer sh.liner.Close()

	sh.liner.SetCtrlCAborts(true)
	sh.liner.SetCompleter(sh.complete)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = sh.liner.ReadHistory(f)
		f.Close()
	}

	sh.env.IO.Printf("kiokufiles shell (dir=%s)\n", sh.store.Dir())
	sh.env.IO.Println("Type 'help' for available commands.")
	sh.env.IO.Println()

	for {
		if sh.env.Ctx.Err() != nil {
			sh.saveHistory()

			return sh.env.Ctx.Err()
		}

		line, err := sh.liner.Prompt("kiokufiles> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				sh.env.IO.Println()
				sh.saveHistory()

				return nil
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		sh.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			sh.saveHistory()

			return nil

		case "help", "?":
			sh.printHelp()

		case "get":
			sh.cmdGet(args)

		case "put":
			sh.cmdPut(args, line)

		case "rm", "del":
			sh.cmdRm(args)

		case "ls", "list":
			sh.cmdLs(args)

		case "roots":
			sh.cmdRoots()

		case "isroot":
			sh.cmdIsRoot(args)

		case "exists":
			sh.cmdExists(args)

		case "count":
			sh.cmdCount()

		case "clear":
			sh.cmdClear()

		case "cls":
			sh.env.IO.Printf("\033[H\033[2J")

		default:
			sh.env.IO.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (sh *shell) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			_, _ = sh.liner.WriteHistory(f)
			f.Close()
		}
	}
}

// complete provides tab completion for command names.
func (sh *shell) complete(line string) []string {
	commands := []string{
		"get", "put", "rm", "del",
		"ls", "list", "roots", "isroot",
		"exists", "count", "clear", "cls",
		"help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (sh *shell) printHelp() {
	sh.env.IO.Println("Commands:")
	sh.env.IO.Println("  get <id>               Print an entry's document")
	sh.env.IO.Println("  put [-r] <id> <json>   Insert or replace an entry, -r marks it root")
	sh.env.IO.Println("  rm <id>                Delete an entry")
	sh.env.IO.Println("  ls [limit]             List entry ids")
	sh.env.IO.Println("  roots                  List root ids")
	sh.env.IO.Println("  isroot <id>            Check root set membership")
	sh.env.IO.Println("  exists <id>...         Check entries without decoding them")
	sh.env.IO.Println("  count                  Count entries")
	sh.env.IO.Println("  clear                  Delete every entry (asks for confirmation)")
	sh.env.IO.Println("  help                   Show this help")
	sh.env.IO.Println("  exit / quit / q        Exit")
}

func (sh *shell) cmdGet(args []string) {
	if len(args) != 1 {
		sh.env.IO.Println("Usage: get <id>")

		return
	}

	entry, err := sh.store.Get(args[0])
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	doc, err := jspon.Marshal(entry, true)
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	sh.env.IO.Printf("%s\n", doc)

	if entry.Root {
		sh.env.IO.Println("(root)")
	}
}

// cmdPut parses "put [-r] <id> <json>". The JSON value is everything after
// the id, taken verbatim from the raw line so strings keep their spaces.
func (sh *shell) cmdPut(args []string, line string) {
	root := false
	if len(args) > 0 && args[0] == "-r" {
		root = true
		args = args[1:]
	}

	if len(args) < 2 {
		sh.env.IO.Println("Usage: put [-r] <id> <json>")

		return
	}

	id := args[0]

	idx := strings.Index(line, id)
	raw := strings.TrimSpace(line[idx+len(id):])

	data, err := decodeData([]byte(raw))
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	if err := sh.store.Insert(&jspon.Entry{ID: id, Data: data, Root: root}); err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	sh.env.IO.Printf("OK: stored %s (root=%v)\n", id, root)
}

func (sh *shell) cmdRm(args []string) {
	if len(args) != 1 {
		sh.env.IO.Println("Usage: rm <id>")

		return
	}

	if err := sh.store.Delete(args[0]); err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	sh.env.IO.Printf("OK: deleted %s\n", args[0])
}

func (sh *shell) cmdLs(args []string) {
	limit := 20

	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			sh.env.IO.Printf("Error parsing limit: %v\n", err)

			return
		}

		limit = n
	}

	shown := 0
	truncated := false

	for entry, err := range sh.store.All() {
		if err != nil {
			sh.env.IO.Printf("Error: %v\n", err)

			continue
		}

		if shown == limit {
			truncated = true

			break
		}

		marker := ""
		if entry.Root {
			marker = "  (root)"
		}

		sh.env.IO.Printf("%s%s\n", entry.ID, marker)
		shown++
	}

	if shown == 0 {
		sh.env.IO.Println("(empty)")
	}

	if truncated {
		sh.env.IO.Printf("... (showing first %d, use 'ls <limit>' for more)\n", limit)
	}
}

func (sh *shell) cmdRoots() {
	ids, err := sh.store.RootIDs()
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	if len(ids) == 0 {
		sh.env.IO.Println("(no roots)")

		return
	}

	sort.Strings(ids)

	for _, id := range ids {
		sh.env.IO.Println(id)
	}
}

func (sh *shell) cmdIsRoot(args []string) {
	if len(args) != 1 {
		sh.env.IO.Println("Usage: isroot <id>")

		return
	}

	root, err := sh.store.IsRoot(args[0])
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	sh.env.IO.Println(root)
}

func (sh *shell) cmdExists(args []string) {
	if len(args) == 0 {
		sh.env.IO.Println("Usage: exists <id>...")

		return
	}

	found, err := sh.store.Exists(args...)
	if err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	for i, id := range args {
		sh.env.IO.Printf("%s: %v\n", id, found[i])
	}
}

func (sh *shell) cmdCount() {
	count := 0

	for _, err := range sh.store.All() {
		if err != nil {
			sh.env.IO.Printf("Error: %v\n", err)

			continue
		}

		count++
	}

	sh.env.IO.Printf("Entries: %d\n", count)
}

func (sh *shell) cmdClear() {
	answer, err := sh.liner.Prompt("Delete every entry? (yes/no): ")
	if err != nil {
		sh.env.IO.Println("Cancelled.")

		return
	}

	answer = strings.TrimSpace(strings.ToLower(answer))
	if answer != "yes" && answer != "y" {
		sh.env.IO.Println("Cancelled.")

		return
	}

	if err := sh.store.Clear(); err != nil {
		sh.env.IO.Printf("Error: %v\n", err)

		return
	}

	sh.env.IO.Println("Store cleared.")
}
