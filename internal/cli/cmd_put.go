package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/holophrastic/kiokudb-backend-files/pkg/jspon"
)

func newPutCommand() *Command {
	flags := flag.NewFlagSet("put", flag.ContinueOnError)
	root := flags.BoolP("root", "r", false, "mark the entry as a root of the object graph")
	class := flags.String("class", "", "type tag stored alongside the data")
	doc := flags.Bool("doc", false, "input is a full document instead of a bare data value")

	return &Command{
		Flags: flags,
		Usage: "put <id> [file]",
		Short: "Insert or replace an entry",
		Long: `Insert or replace an entry. The data value is read as JSON from <file>,
or from stdin when <file> is omitted or "-".

With --doc the input is a full document carrying its own id, class and
data. The <id> argument must then match the document's id.`,
		Exec: func(env *Env, args []string) error {
			if len(args) < 1 {
				return fmt.Errorf("%w: <id>", errMissingArgument)
			}

			if len(args) > 2 {
				return fmt.Errorf("%w: put takes at most <id> and <file>", errTooManyArguments)
			}

			id := args[0]

			input, err := readInput(env.IO, args[1:])
			if err != nil {
				return err
			}

			var entry *jspon.Entry

			if *doc {
				entry, err = jspon.Unmarshal(input, jspon.ExtraAttrs{Root: *root})
				if err != nil {
					return err
				}

				if entry.ID != id {
					return fmt.Errorf("document id %q does not match argument %q", entry.ID, id)
				}

				if *class != "" {
					entry.Class = *class
				}
			} else {
				data, err := decodeData(input)
				if err != nil {
					return err
				}

				entry = &jspon.Entry{ID: id, Class: *class, Data: data, Root: *root}
			}

			store, err := env.Store()
			if err != nil {
				return err
			}

			if err := store.Insert(entry); err != nil {
				return err
			}

			env.IO.Println("stored", entry.ID)

			return nil
		},
	}
}

// readInput returns the bytes of the optional file argument, falling back
// to stdin for a missing argument or "-".
func readInput(o *IO, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(o.In())
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", args[0], err)
	}

	return data, nil
}

// decodeData parses a bare JSON data value. Numbers stay json.Number so
// they survive a later write unchanged.
func decodeData(input []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(input))
	dec.UseNumber()

	var data any

	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("invalid JSON data: %w", err)
	}

	if err := dec.Decode(new(any)); err != io.EOF {
		return nil, fmt.Errorf("invalid JSON data: trailing content")
	}

	return data, nil
}
