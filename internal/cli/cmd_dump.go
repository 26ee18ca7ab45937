package cli

import (
	"bytes"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

func newDumpCommand() *Command {
	flags := flag.NewFlagSet("dump", flag.ContinueOnError)
	output := flags.StringP("output", "o", "", "write to this file instead of stdout")
	rootsOnly := flags.Bool("roots", false, "dump only root entries")

	return &Command{
		Flags: flags,
		Usage: "dump [flags]",
		Short: "Export the store as JSON lines",
		Long: `Write every entry's document on its own line in compact JSON.

With -o the dump is written to the file atomically, a partial dump
never replaces an existing file. Entries that cannot be decoded are
reported as warnings and skipped.`,
		Exec: func(env *Env, args []string) error {
			if len(args) > 0 {
				return errTooManyArguments
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			scan := store.All()
			if *rootsOnly {
				scan = store.Roots()
			}

			var buf bytes.Buffer

			for entry, err := range scan {
				if env.Ctx.Err() != nil {
					return env.Ctx.Err()
				}

				if err != nil {
					env.IO.Warn("%v", err)

					continue
				}

				line, err := jspon.Marshal(entry, false)
				if err != nil {
					return err
				}

				if *output == "" {
					env.IO.Printf("%s\n", line)

					continue
				}

				buf.Write(line)
				buf.WriteByte('\n')
			}

			if *output != "" {
				if err := atomic.WriteFile(*output, &buf); err != nil {
					return err
				}

				env.Log.Info("dump written", "path", *output, "bytes", buf.Len())
			}

			return nil
		},
	}
}
