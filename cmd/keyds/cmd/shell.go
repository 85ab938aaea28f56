package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/kballard/go-shellquote"
	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
	"github.com/ssargent/keyds/pkg/keyds"
)

const shellHelp = `Commands:
  find <key>              read the record with this key
  findge <key>            read the first record at or after key
  first | last            read the record with the lowest or highest key
  next                    read the record after the last one read
  write <field=value>...  insert a record
  update <field=value>... replace the record last read (all fields)
  delete                  delete the record last read
  fupdate <key> <field=value>...
                          set fields on every record with key
  fdelete <key>           delete every record with key
  dump [limit]            print records from the first one
  help                    show this help
  exit | quit             leave the shell
Values containing spaces can be quoted: write key=001 "name=JOHN SMITH"`

func newShellCmd() *cobra.Command {
	shellCmd := &cobra.Command{
		Use:   "shell <dataset>",
		Short: "Work with a dataset interactively",
		Long: `Open a dataset and read commands from standard input until 'exit'.
The shell keeps the dataset open, so 'next', 'update' and 'delete' act on the
record most recently read.

Example:
  keyds shell customers`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			e, err := envFrom(cmd)
			if err != nil {
				return err
			}
			readOnly, _ := cmd.Flags().GetBool("read-only")
			mode := ""
			if readOnly {
				mode = "rb,type=record"
			}

			f, err := e.open(e.resolve(cmd, args[0]), mode)
			if err != nil {
				return err
			}
			defer closeFile(context.Background(), f, &err)

			sh := &shell{file: f, out: cmd.OutOrStdout()}
			return sh.run(cmd.Context(), cmd.InOrStdin())
		},
	}

	shellCmd.Flags().StringP("schema", "s", "", "Schema file (YAML or JSON)")
	shellCmd.Flags().Bool("read-only", false, "Open the dataset for input only")
	return shellCmd
}

type shell struct {
	file *keyds.File
	out  io.Writer
}

func (s *shell) run(ctx context.Context, in io.Reader) error {
	fmt.Fprintf(s.out, "Opened %s (record length %d). Type 'help' for commands.\n", s.file.Path(), s.file.RecordLength())

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "keyds> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if s.exec(ctx, scanner.Text()) {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

var errUsage = errors.New("wrong number of arguments, see 'help'")

// exec runs one command line and reports whether the shell should exit
func (s *shell) exec(ctx context.Context, line string) bool {
	words, err := shellquote.Split(line)
	if err != nil {
		fmt.Fprintln(s.out, "parse error:", err)
		return false
	}
	if len(words) == 0 {
		return false
	}

	cmd, args := strings.ToLower(words[0]), words[1:]
	if cmd == "exit" || cmd == "quit" {
		return true
	}
	if err := s.dispatch(ctx, cmd, args); err != nil {
		fmt.Fprintln(s.out, "error:", err)
	}
	return false
}

func (s *shell) dispatch(ctx context.Context, cmd string, args []string) error {
	f := s.file
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, shellHelp)
		return nil

	case "find", "findge":
		if len(args) != 1 {
			return errUsage
		}
		find := f.Find
		if cmd == "findge" {
			find = f.FindGE
		}
		rec, err := find(ctx, args[0])
		return s.print(rec, err)

	case "first", "last", "next":
		if len(args) != 0 {
			return errUsage
		}
		read := map[string]func(context.Context) (codec.Values, error){
			"first": f.FindFirst,
			"last":  f.FindLast,
			"next":  f.Read,
		}[cmd]
		rec, err := read(ctx)
		return s.print(rec, err)

	case "write", "update":
		values, err := parseAssignments(args)
		if err != nil {
			return err
		}
		if cmd == "write" {
			err = f.Write(ctx, values)
		} else {
			err = f.Update(ctx, values)
		}
		if err == nil {
			fmt.Fprintln(s.out, "ok")
		}
		return err

	case "delete":
		if len(args) != 0 {
			return errUsage
		}
		if err := f.Delete(ctx); err != nil {
			return err
		}
		fmt.Fprintln(s.out, "ok")
		return nil

	case "fupdate":
		if len(args) < 2 {
			return errUsage
		}
		values, err := parseAssignments(args[1:])
		if err != nil {
			return err
		}
		n, err := f.FindUpdate(ctx, args[0], values)
		fmt.Fprintf(s.out, "%d record(s) updated\n", n)
		return err

	case "fdelete":
		if len(args) != 1 {
			return errUsage
		}
		n, err := f.FindDelete(ctx, args[0])
		fmt.Fprintf(s.out, "%d record(s) deleted\n", n)
		return err

	case "dump":
		limit := 0
		if len(args) > 1 {
			return errUsage
		}
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 0 {
				return fmt.Errorf("invalid limit %q", args[0])
			}
			limit = n
		}
		records, err := f.Scan(ctx, "", dataset.KeyFirst, limit)
		if err != nil {
			return err
		}
		return printRecords(s.out, f.Layout(), formatTable, records...)

	default:
		return fmt.Errorf("unknown command %q, see 'help'", cmd)
	}
}

func (s *shell) print(rec codec.Values, err error) error {
	if err != nil {
		return err
	}
	if rec == nil {
		fmt.Fprintln(s.out, "no record found")
		return nil
	}
	return printRecords(s.out, s.file.Layout(), formatJSON, rec)
}
