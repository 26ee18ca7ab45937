package cli

import (
	"fmt"

	flag "github.com/spf13/pflag"

	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

func newGetCommand() *Command {
	flags := flag.NewFlagSet("get", flag.ContinueOnError)
	compact := flags.Bool("compact", false, "print documents on a single line")

	return &Command{
		Flags: flags,
		Usage: "get <id>...",
		Short: "Print entries as documents",
		Long:  "Print each entry's document to stdout. Missing ids are an error.",
		Exec: func(env *Env, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("%w: <id>", errMissingArgument)
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			entries, err := store.GetMulti(args...)
			if err != nil {
				return err
			}

			for _, entry := range entries {
				data, err := jspon.Marshal(entry, !*compact)
				if err != nil {
					return err
				}

				env.IO.Printf("%s\n", data)
			}

			return nil
		},
	}
}
