package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"github.com/holophrastic/kiokudb-backend-files/pkg/files"
)

// Env carries everything a command needs to execute.
type Env struct {
	Ctx    context.Context
	IO     *IO
	Config Config
	Log    *slog.Logger

	store *files.Store
}

// Store opens the entry store on first use and caches it.
func (e *Env) Store() (*files.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	store, err := files.Open(files.Config{
		Dir:            e.Config.StoreDir,
		Pretty:         e.Config.Pretty,
		DisableLocking: e.Config.NoLock,
		LockTimeout:    e.Config.LockTimeout,
	})
	if err != nil {
		return nil, err
	}

	e.Log.Debug("store opened", "dir", e.Config.StoreDir, "locking", !e.Config.NoLock)

	e.store = store

	return store, nil
}

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	o := NewIO(in, out, errOut)

	flags := flag.NewFlagSet("kiokufiles", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(&strings.Builder{}) // discard pflag output

	workDir := flags.StringP("cwd", "C", "", "run as if started in this directory")
	configPath := flags.StringP("config", "c", "", "use the specified config file")
	storeDir := flags.StringP("dir", "d", "", "store directory")
	pretty := flags.Bool("pretty", false, "indent stored documents")
	noLock := flags.Bool("no-lock", false, "skip the advisory write lock")
	lockTimeout := flags.Duration("lock-timeout", 0, "how long writes wait for the lock")
	logLevel := flags.String("log-level", "warn", "log level (debug, info, warn, error)")

	if err := flags.Parse(args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			printUsage(o)
			return 0
		}

		o.ErrPrintln("error:", err)

		return 1
	}

	logger, err := newLogger(errOut, *logLevel)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	wd := *workDir
	if wd == "" {
		wd, err = os.Getwd()
		if err != nil {
			o.ErrPrintln("error: cannot get working directory:", err)

			return 1
		}
	}

	cfg, sources, err := LoadConfig(wd, *configPath, env)
	if err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	if flags.Changed("dir") {
		cfg.StoreDir = *storeDir
	}

	if flags.Changed("pretty") {
		cfg.Pretty = *pretty
	}

	if flags.Changed("no-lock") {
		cfg.NoLock = *noLock
	}

	if flags.Changed("lock-timeout") {
		cfg.LockTimeout = *lockTimeout
	}

	if cfg.StoreDir == "" {
		o.ErrPrintln("error:", errStoreDirEmpty)

		return 1
	}

	if !filepath.IsAbs(cfg.StoreDir) {
		cfg.StoreDir = filepath.Join(wd, cfg.StoreDir)
	}

	remaining := flags.Args()
	if len(remaining) == 0 {
		printUsage(o)

		return 0
	}

	name := remaining[0]
	if name == "-h" || name == "--help" || name == "help" {
		printUsage(o)

		return 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case <-sigCh:
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	cmdEnv := &Env{Ctx: ctx, IO: o, Config: cfg, Log: logger}

	if name == "print-config" {
		if err := cmdPrintConfig(cmdEnv, sources); err != nil {
			o.ErrPrintln("error:", err)

			return 1
		}

		return o.Finish()
	}

	var cmd *Command

	for _, c := range commands() {
		if c.Name() == name {
			cmd = c
			break
		}
	}

	if cmd == nil {
		o.ErrPrintln("error:", fmt.Errorf("%w: %s", errUnknownCommand, name))
		printUsage(o)

		return 1
	}

	if code := cmd.Run(cmdEnv, remaining[1:]); code != 0 {
		return code
	}

	return o.Finish()
}

// commands returns the command table in help order.
func commands() []*Command {
	return []*Command{
		newPutCommand(),
		newGetCommand(),
		newLsCommand(),
		newRootsCommand(),
		newRmCommand(),
		newClearCommand(),
		newDumpCommand(),
		newShellCommand(),
	}
}

// newLogger builds a tinted slog logger writing to errOut.
// Color is enabled only when errOut is a terminal.
func newLogger(errOut io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level

	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %q", level)
	}

	w := errOut
	noColor := true

	if f, ok := errOut.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		w = colorable.NewColorable(f)
		noColor = false
	}

	handler := tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		NoColor:    noColor,
		TimeFormat: time.TimeOnly,
	})

	return slog.New(handler), nil
}

func cmdPrintConfig(env *Env, sources ConfigSources) error {
	formatted, err := FormatConfig(env.Config)
	if err != nil {
		return err
	}

	env.IO.Println(formatted)

	env.IO.Println("")
	env.IO.Println("# Sources:")

	if sources.Global != "" {
		env.IO.Println("#   global:", sources.Global)
	}

	if sources.Project != "" {
		env.IO.Println("#   project:", sources.Project)
	}

	if sources.Global == "" && sources.Project == "" {
		env.IO.Println("#   (using defaults only)")
	}

	return nil
}

func printUsage(o *IO) {
	o.Println(`kiokufiles - file-backed JSPON entry store

Usage: kiokufiles [options] <command> [args]

Options:
  -C, --cwd <dir>       Run as if started in <dir>
  -c, --config <file>   Use specified config file
  -d, --dir <dir>       Store directory (default .kiokufiles)
      --pretty          Indent stored documents
      --no-lock         Skip the advisory write lock
      --lock-timeout    How long writes wait for the lock
      --log-level       Log level (debug, info, warn, error)

Commands:`)

	for _, c := range commands() {
		o.Println(c.HelpLine())
	}

	o.Println(fmt.Sprintf("  %-24s %s", "print-config", "Show resolved configuration"))
}
