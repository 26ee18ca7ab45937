package cli

import (
	"fmt"

	flag "github.com/spf13/pflag"
)

func newRmCommand() *Command {
	flags := flag.NewFlagSet("rm", flag.ContinueOnError)

	return &Command{
		Flags: flags,
		Usage: "rm <id>...",
		Short: "Delete entries",
		Long:  "Delete the given entries and drop them from the root set. Missing ids are ignored.",
		Exec: func(env *Env, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: <id>", errMissingArgument)
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			if err := store.Delete(args...); err != nil {
				return err
			}

			env.IO.Println("deleted", len(args), "entries")

			return nil
		},
	}
}

func newClearCommand() *Command {
	flags := flag.NewFlagSet("clear", flag.ContinueOnError)
	force := flags.Bool("force", false, "confirm deleting every entry")

	return &Command{
		Flags: flags,
		Usage: "clear --force",
		Short: "Delete every entry in the store",
		Exec: func(env *Env, args []string) error {
			if len(args) > 0 {
				return errTooManyArguments
			}

			if !*force {
				return fmt.Errorf("refusing to clear the store without --force")
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			if err := store.Clear(); err != nil {
				return err
			}

			env.IO.Println("store cleared")

			return nil
		},
	}
}
