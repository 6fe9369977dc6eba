package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tugtool/tugtool-sub001/pkg/compression"
	"github.com/tugtool/tugtool-sub001/pkg/testutil"
)

const report = `{"name":"report","data":{"id":[3,1,2],"city":["oslo","rome","oslo"],"meta":{"v":1}}}`

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	testutil.TestLogger(t)

	root := newRootCmd()
	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return viper.BindPFlags(cmd.Flags())
	}
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "tabula v"+version)
}

func TestDiscover(t *testing.T) {
	path := testutil.WriteFile(t, "report.json", []byte(report))
	out, err := run(t, "discover", path)
	require.NoError(t, err)
	assert.Contains(t, out, `"path": "data"`)
	assert.Contains(t, out, `"rows": 3`)
	assert.NotContains(t, out, `"path": ""`)
}

func TestView(t *testing.T) {
	path := testutil.WriteFile(t, "report.json", []byte(report))

	out, err := run(t, "view", path, "--path", "data", "--sort", "id", "--head", "2")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":1,\"city\":\"rome\"}\n{\"id\":2,\"city\":\"oslo\"}\n", out)

	out, err = run(t, "view", path, "--distinct", "city", "--columns", "city")
	require.NoError(t, err)
	assert.Equal(t, "{\"city\":\"oslo\"}\n{\"city\":\"rome\"}\n", out)

	out, err = run(t, "view", path, "--sort", "id", "--desc", "--exclude", "city")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":3}\n{\"id\":2}\n{\"id\":1}\n", out)

	_, err = run(t, "view", path, "--path", "data.nope")
	assert.Error(t, err)
}

func TestView_CompressedNDJSON(t *testing.T) {
	data, err := compression.Compress([]byte(report+"\n"+report+"\n"), compression.Gzip, compression.Default)
	require.NoError(t, err)
	path := testutil.WriteFile(t, "reports.ndjson.gz", data)

	out, err := run(t, "view", path, "--doc", "1", "--path", "data", "--head", "1")
	require.NoError(t, err)
	assert.Equal(t, "{\"id\":3,\"city\":\"oslo\"}\n", out)
}

func TestExport(t *testing.T) {
	path := testutil.WriteFile(t, "report.json", []byte(report))
	dest := filepath.Join(t.TempDir(), "out.arrow")

	out, err := run(t, "export", path, "--path", "data", "--out", dest, "--compression", "zstd")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "wrote 3 rows, 2 columns"))

	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	r, err := ipc.NewFileReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer r.Close()

	rec, err := r.Record(0)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, rec.Column(0).(*array.Int64).Int64Values())
}

func TestResolvePath(t *testing.T) {
	viper.Reset()
	ctx, cancel := testutil.TestContext(t)
	defer cancel()
	c, err := loadCollection(ctx, testutil.WriteFile(t, "r.json", []byte(`{"a":[{"b":{"c":[1]}}]}`)))
	require.NoError(t, err)
	defer c.Close()

	a := c.Arena()
	root, _ := c.Root(0)
	id, ok := resolvePath(a, root, "a.0.b")
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, a.FieldNames(id))

	_, ok = resolvePath(a, root, "a.x")
	assert.False(t, ok)
	_, ok = resolvePath(a, root, "a.1")
	assert.False(t, ok)

	assert.Equal(t, "a.0.b", nodePaths(a, root)[id])
}
