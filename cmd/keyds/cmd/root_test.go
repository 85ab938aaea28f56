package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssargent/keyds/pkg/access"
	"github.com/ssargent/keyds/pkg/codec"
	"github.com/ssargent/keyds/pkg/dataset"
	"github.com/ssargent/keyds/pkg/di"
	"github.com/ssargent/keyds/pkg/keyds"
)

const testSchema = `key:
  type: string
  maxLength: 5
name:
  type: string
  minLength: 1
  maxLength: 10
amount:
  type: hexadecimal
  maxLength: 4
`

type testEnv struct {
	t          *testing.T
	dir        string
	configPath string
	schemaPath string
}

// newTestEnv writes a schema into a temp dir and points --config at a file
// that does not exist yet. With a nil method datasets are stored with pebble
// under the temp dir.
func newTestEnv(t *testing.T, method access.Method) *testEnv {
	t.Helper()
	dir := t.TempDir()

	c := di.NewContainer()
	if method != nil {
		c.SetMethod(method)
	}
	SetContainer(c)

	schemaPath := filepath.Join(dir, "customers.yaml")
	require.NoError(t, os.WriteFile(schemaPath, []byte(testSchema), 0600))

	return &testEnv{
		t:          t,
		dir:        dir,
		configPath: filepath.Join(dir, "keyds.yaml"),
		schemaPath: schemaPath,
	}
}

func (e *testEnv) runWithInput(in io.Reader, args ...string) (string, error) {
	e.t.Helper()

	root := NewRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(in)
	root.SetArgs(append([]string{"--config", e.configPath, "--log-level", "error"}, args...))

	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func (e *testEnv) run(args ...string) (string, error) {
	e.t.Helper()
	return e.runWithInput(strings.NewReader(""), args...)
}

func (e *testEnv) mustRun(args ...string) string {
	e.t.Helper()
	out, err := e.run(args...)
	require.NoError(e.t, err, out)
	return out
}

func TestDatasetLifecycle(t *testing.T) {
	e := newTestEnv(t, nil)
	ds := filepath.Join(e.dir, "customers")

	assert.Equal(t, "false\n", e.mustRun("exist", ds))

	out := e.mustRun("alloc", ds, "--schema", e.schemaPath)
	assert.Contains(t, out, "record length 19, key offset 0, key length 5")
	assert.Equal(t, "true\n", e.mustRun("exist", ds))

	_, err := e.run("alloc", ds, "--schema", e.schemaPath)
	assert.ErrorIs(t, err, dataset.ErrAlreadyExists)

	e.mustRun("write", ds, "-s", e.schemaPath, "key=00100", "name=JOHN", "amount=0x1f")
	e.mustRun("write", ds, "-s", e.schemaPath, "key=00200", "name=MARY")

	_, err = e.run("write", ds, "-s", e.schemaPath, "key=00100", "name=DUPE")
	assert.ErrorIs(t, err, dataset.ErrDuplicateKey)

	_, err = e.run("write", ds, "-s", e.schemaPath, "key=00300", "name=ABCDEFGHIJK")
	require.Error(t, err)
	assert.Equal(t, "write error: length of 'name' is 11, must be 10 or less.", err.Error())

	out = e.mustRun("find", ds, "00100", "-s", e.schemaPath)
	assert.JSONEq(t, `{"key":"00100","name":"JOHN","amount":"1f"}`, out)

	out = e.mustRun("find", ds, "00150", "-s", e.schemaPath, "--mode", "ge")
	assert.JSONEq(t, `{"key":"00200","name":"MARY","amount":"00"}`, out)

	out = e.mustRun("find", ds, "-s", e.schemaPath, "--mode", "last")
	assert.Contains(t, out, `"MARY"`)

	assert.Contains(t, e.mustRun("update", ds, "00100", "amount=20", "-s", e.schemaPath), "Updated 1 record(s)")
	assert.Contains(t, e.mustRun("update", ds, "00900", "amount=20", "-s", e.schemaPath), "Updated 0 record(s)")

	out = e.mustRun("dump", ds, "-s", e.schemaPath, "--format", "table")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, []string{"KEY", "NAME", "AMOUNT"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"00100", "JOHN", "20"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"00200", "MARY", "00"}, strings.Fields(lines[2]))

	out = e.mustRun("dump", ds, "-s", e.schemaPath, "--from", "00150")
	assert.Equal(t, 1, strings.Count(out, "\n"))

	assert.Contains(t, e.mustRun("delete", ds, "00100", "-s", e.schemaPath), "Deleted 1 record(s)")
	_, err = e.run("find", ds, "00100", "-s", e.schemaPath)
	assert.ErrorIs(t, err, dataset.ErrNoRecord)

	e.mustRun("dealloc", ds)
	assert.Equal(t, "false\n", e.mustRun("exist", ds))
}

func TestFindArguments(t *testing.T) {
	e := newTestEnv(t, access.NewMemory())
	e.mustRun("alloc", "customers", "-s", e.schemaPath)

	_, err := e.run("find", "customers", "-s", e.schemaPath)
	assert.EqualError(t, err, "a key is required for modes eq and ge")

	_, err = e.run("find", "customers", "00100", "-s", e.schemaPath, "--mode", "first")
	assert.EqualError(t, err, "modes first and last take no key")

	_, err = e.run("find", "customers", "00100")
	assert.EqualError(t, err, "dataset customers: a schema is required (--schema)")

	_, err = e.run("write", "customers", "-s", e.schemaPath, "novalue")
	assert.EqualError(t, err, `expected field=value, got "novalue"`)
}

func TestFindApplyReportsPartialCount(t *testing.T) {
	var armed bool
	calls := map[string]int{}
	method := access.NewMemory(access.WithDuplicateKeys(), access.WithFault(func(op string, key []byte) error {
		if !armed {
			return nil
		}
		calls[op]++
		if calls[op] == 2 {
			return errors.New("device error")
		}
		return nil
	}))
	e := newTestEnv(t, method)
	e.mustRun("alloc", "orders", "-s", e.schemaPath)
	for _, name := range []string{"A", "B", "C"} {
		e.mustRun("write", "orders", "-s", e.schemaPath, "key=00010", "name="+name)
	}
	armed = true

	out, err := e.run("update", "orders", "00010", "name=Z", "-s", e.schemaPath)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device error")
	assert.Contains(t, out, "Updated 1 record(s)")

	out, err = e.run("delete", "orders", "00010", "-s", e.schemaPath)
	require.Error(t, err)
	assert.Contains(t, out, "Deleted 1 record(s)")
}

func TestCloseFileKeepsFirstError(t *testing.T) {
	ctx := context.Background()
	layout, err := codec.ParseSchema([]byte(testSchema))
	require.NoError(t, err)
	f, err := keyds.Alloc("orders", layout, keyds.WithMethod(access.NewMemory()))
	require.NoError(t, err)

	var runErr error
	closeFile(ctx, f, &runErr)
	assert.NoError(t, runErr)

	closeFile(ctx, f, &runErr)
	assert.ErrorIs(t, runErr, dataset.ErrNotOpen)

	runErr = dataset.ErrDuplicateKey
	closeFile(ctx, f, &runErr)
	assert.ErrorIs(t, runErr, dataset.ErrDuplicateKey)
}

func TestConfiguredDatasets(t *testing.T) {
	e := newTestEnv(t, nil)
	dataDir := filepath.Join(e.dir, "data")

	cfg := `data_dir: ` + dataDir + `
storage:
  compression: zstd
  sync: false
datasets:
  - name: customers
    path: customers
    schema: ` + e.schemaPath + `
`
	require.NoError(t, os.WriteFile(e.configPath, []byte(cfg), 0600))

	e.mustRun("alloc", "customers")
	assert.DirExists(t, filepath.Join(dataDir, "customers"))

	e.mustRun("write", "customers", "key=00100", "name=JOHN")
	out := e.mustRun("find", "customers", "00100")
	assert.JSONEq(t, `{"key":"00100","name":"JOHN","amount":"00"}`, out)
}

func TestInvalidConfiguration(t *testing.T) {
	e := newTestEnv(t, access.NewMemory())

	_, err := e.run("exist", "customers", "--compression", "brotli")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestParseAssignments(t *testing.T) {
	values, err := parseAssignments([]string{"key=001", "name=A=B", "amount="})
	require.NoError(t, err)
	assert.Equal(t, "001", values["key"])
	assert.Equal(t, "A=B", values["name"])
	assert.Equal(t, "", values["amount"])

	_, err = parseAssignments([]string{"=x"})
	assert.Error(t, err)

	_, err = parseAssignments([]string{"a=1", "a=2"})
	assert.Error(t, err)
}
