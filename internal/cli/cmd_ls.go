package cli

import (
	"sort"

	flag "github.com/spf13/pflag"
)

func newLsCommand() *Command {
	flags := flag.NewFlagSet("ls", flag.ContinueOnError)
	long := flags.BoolP("long", "l", false, "show class and root status")

	return &Command{
		Flags: flags,
		Usage: "ls [flags]",
		Short: "List all entries",
		Long: `List every entry in the store, one id per line.

Entries that cannot be decoded are reported as warnings and skipped,
the listing continues.`,
		Exec: func(env *Env, args []string) error {
			if len(args) > 0 {
				return errTooManyArguments
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			for entry, err := range store.All() {
				if env.Ctx.Err() != nil {
					return env.Ctx.Err()
				}

				if err != nil {
					env.IO.Warn("%v", err)

					continue
				}

				if !*long {
					env.IO.Println(entry.ID)

					continue
				}

				class := entry.Class
				if class == "" {
					class = "-"
				}

				marker := ""
				if entry.Root {
					marker = "\troot"
				}

				env.IO.Printf("%s\t%s%s\n", entry.ID, class, marker)
			}

			return nil
		},
	}
}

func newRootsCommand() *Command {
	flags := flag.NewFlagSet("roots", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "roots",
		Short: "List root entry ids",
		Long:  "List the ids in the root set, one per line, without decoding entries.",
		Exec: func(env *Env, args []string) error {
			if len(args) > 0 {
				return errTooManyArguments
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			ids, err := store.RootIDs()
			if err != nil {
				return err
			}

			sort.Strings(ids)

			for _, id := range ids {
				env.IO.Println(id)
			}

			return nil
		},
	}
}
