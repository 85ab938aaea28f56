package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/keyds"
)

// datasetRef identifies a dataset either by its name in the config or by a
// path with a schema file
type datasetRef struct {
	name   string
	path   string
	schema string
	mode   string
}

// resolve turns a dataset argument into a reference. Names listed in the
// config take their path, schema and mode from it; anything else is a path
// used as given.
func (e *env) resolve(cmd *cobra.Command, arg string) datasetRef {
	ref := datasetRef{name: arg, path: arg}
	if d, ok := e.cfg.Dataset(arg); ok {
		ref = datasetRef{
			name:   d.Name,
			path:   e.cfg.ResolvePath(d.Path),
			schema: e.cfg.ResolvePath(d.Schema),
			mode:   d.Mode,
		}
	}
	if cmd.Flags().Lookup("schema") != nil {
		if schema, _ := cmd.Flags().GetString("schema"); schema != "" {
			ref.schema = schema
		}
	}
	return ref
}

func (e *env) layout(ref datasetRef) (*codec.Layout, error) {
	if ref.schema == "" {
		return nil, fmt.Errorf("dataset %s: a schema is required (--schema)", ref.name)
	}
	return codec.LoadSchema(ref.schema)
}

func (e *env) options(ref datasetRef) []keyds.Option {
	return []keyds.Option{
		keyds.WithMethod(e.method),
		keyds.WithTranscoder(e.transcoder),
		keyds.WithLogger(e.logger.With("dataset", ref.name)),
		keyds.WithName(ref.name),
		keyds.WithReadOnlyRouting(e.cfg.Storage.RouteReadOnly),
	}
}

// open opens ref. An empty mode uses the dataset's configured mode, then
// read-write.
func (e *env) open(ref datasetRef, mode string) (*keyds.File, error) {
	layout, err := e.layout(ref)
	if err != nil {
		return nil, err
	}
	if mode == "" {
		mode = ref.mode
	}
	return keyds.Open(ref.path, layout, mode, e.options(ref)...)
}

// closeFile closes f and keeps its error in *errp unless one is already set
func closeFile(ctx context.Context, f *keyds.File, errp *error) {
	if err := f.Close(ctx); err != nil && *errp == nil {
		*errp = err
	}
}

// parseAssignments parses field=value arguments
func parseAssignments(args []string) (codec.Values, error) {
	values := make(codec.Values, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("expected field=value, got %q", arg)
		}
		if _, dup := values[name]; dup {
			return nil, fmt.Errorf("field %q given more than once", name)
		}
		values[name] = value
	}
	return values, nil
}

const (
	formatJSON  = "json"
	formatTable = "table"
)

// printRecords writes records as JSON lines or as a table in layout order
func printRecords(w io.Writer, layout *codec.Layout, format string, records ...codec.Values) error {
	switch format {
	case "", formatJSON:
		enc := json.NewEncoder(w)
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
		return nil
	case formatTable:
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fields := layout.Fields()
		names := make([]string, len(fields))
		for i, f := range fields {
			names[i] = strings.ToUpper(f.Name)
		}
		fmt.Fprintln(tw, strings.Join(names, "\t"))
		for _, rec := range records {
			row := make([]string, len(fields))
			for i, f := range fields {
				row[i] = rec[f.Name]
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		return tw.Flush()
	default:
		return errors.New("format must be json or table")
	}
}
