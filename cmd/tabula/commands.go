package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/tugtool/tugtool-sub001/pkg/arena"
	"github.com/tugtool/tugtool-sub001/pkg/compression"
	"github.com/tugtool/tugtool-sub001/pkg/config"
	"github.com/tugtool/tugtool-sub001/pkg/errors"
	"github.com/tugtool/tugtool-sub001/pkg/export"
	"github.com/tugtool/tugtool-sub001/pkg/expr"
	"github.com/tugtool/tugtool-sub001/pkg/json"
	"github.com/tugtool/tugtool-sub001/pkg/logger"
	"github.com/tugtool/tugtool-sub001/pkg/tabular"
	"github.com/tugtool/tugtool-sub001/pkg/value"
)

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover <file>",
		Short: "List objects that look like tables",
		Args:  cobra.ExactArgs(1),
		RunE:  runDiscover,
	}

	key := "threshold"
	cmd.Flags().Float64(key, tabular.DefaultDiscoveryThreshold, WrapString("Minimum share of array-valued fields for an object to qualify"))

	key = "ignore"
	cmd.Flags().StringSlice(key, nil, WrapString("Scalar field names left out of the share, e.g. metadata like version"))
	return cmd
}

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view <file>",
		Short: "Print the rows of a view as NDJSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runView,
	}
	addViewFlags(cmd)
	return cmd
}

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the primitive columns of a view as Apache Arrow",
		Args:  cobra.ExactArgs(1),
		RunE:  runExport,
	}
	addViewFlags(cmd)

	key := "out"
	cmd.Flags().StringP(key, "o", "", WrapString("Output path; a compression extension such as .zst compresses the whole file"))
	_ = cmd.MarkFlagRequired(key)

	key = "format"
	cmd.Flags().String(key, string(export.FormatFile), WrapString("Arrow IPC framing (file, stream)"))

	key = "compression"
	cmd.Flags().String(key, string(export.None), WrapString("Arrow IPC body compression (none, lz4, zstd)"))

	key = "skip-unsupported"
	cmd.Flags().Bool(key, false, WrapString("Drop nested, mixed or empty columns instead of failing"))
	return cmd
}

func addViewFlags(cmd *cobra.Command) {
	key := "doc"
	cmd.Flags().Int(key, 0, WrapString("Index of the document holding the table"))

	key = "path"
	cmd.Flags().String(key, "", WrapString("Dotted path from the document root to the table object; array elements are addressed by index. Defaults to the first discovered table"))

	key = "length-policy"
	cmd.Flags().String(key, tabular.Strict.String(), WrapString("How columns of different lengths are handled (strict, ragged)"))

	key = "columns"
	cmd.Flags().StringSlice(key, nil, WrapString("Columns to select, in order"))

	key = "exclude"
	cmd.Flags().StringSlice(key, nil, WrapString("Columns to leave out"))

	key = "sort"
	cmd.Flags().StringSlice(key, nil, WrapString("Sort keys as dotted paths within a row"))

	key = "desc"
	cmd.Flags().Bool(key, false, WrapString("Sort every key in descending order"))

	key = "distinct"
	cmd.Flags().StringSlice(key, nil, WrapString("Keep the first row of each distinct key"))

	key = "head"
	cmd.Flags().Int(key, -1, WrapString("Keep at most this many rows"))
}

func runDiscover(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	c, err := loadCollection(commandContext(cmd, args[0]), args[0])
	if err != nil {
		return err
	}
	defer c.Close()

	type candidate struct {
		Document int      `json:"document"`
		Path     string   `json:"path"`
		Columns  []string `json:"columns"`
		Rows     int      `json:"rows"`
	}
	found := []candidate{}

	a := c.Arena()
	for i, root := range c.Roots() {
		paths := nodePaths(a, root)
		for _, id := range tabular.Discover(a, root, cfg.DiscoveryOptions()) {
			v, err := tabular.NewView(a, id, tabular.WithLengthPolicy(tabular.Ragged))
			if err != nil {
				return err
			}
			found = append(found, candidate{Document: i, Path: paths[id], Columns: v.ColumnNames(), Rows: v.Len()})
			v.Close()
		}
	}

	data, err := json.MarshalIndent(found, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return err
}

func runView(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	v, cleanup, err := buildView(commandContext(cmd, args[0]), cfg, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	return json.EncodeView(cmd.OutOrStdout(), v)
}

func runExport(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	opts, err := cfg.ExportOptions()
	if err != nil {
		return err
	}
	ctx := commandContext(cmd, args[0])
	v, cleanup, err := buildView(ctx, cfg, args[0])
	if err != nil {
		return err
	}
	defer cleanup()

	out := viper.GetString("out")
	w, err := compression.Create(out, compression.Default)
	if err != nil {
		return err
	}
	stats, err := export.WriteArrow(w, v, opts)
	if cerr := w.Close(); err == nil && cerr != nil {
		err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output")
	}
	if err != nil {
		os.Remove(out)
		return err
	}

	if len(stats.Skipped) > 0 {
		logger.WithContext(ctx).Warn("columns skipped", zap.Strings("columns", stats.Skipped))
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s to %s\n", stats, out)
	return err
}

// commandContext tags ctx with the running command and the input path so
// log lines can be traced back to them.
func commandContext(cmd *cobra.Command, path string) context.Context {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = context.WithValue(ctx, logger.OperationKey, cmd.Name())
	return context.WithValue(ctx, logger.DocumentKey, path)
}

func loadCollection(ctx context.Context, path string) (*tabular.Collection, error) {
	var r io.ReadCloser
	if path == "-" {
		r = io.NopCloser(os.Stdin)
	} else {
		var err error
		if r, err = compression.Open(path); err != nil {
			return nil, err
		}
	}
	defer r.Close()

	var opts []json.ParseOption
	if viper.GetBool("split-array") {
		opts = append(opts, json.SplitArray())
	}
	c, err := json.ParseCollection(r, opts...)
	if err != nil {
		return nil, err
	}
	logger.WithContext(ctx).Info("loaded documents",
		zap.Int("documents", c.Len()),
		zap.Int("nodes", c.Arena().Len()))
	return c, nil
}

// buildView loads the input, resolves the target object and applies the
// distinct, sort and head flags in that order.
func buildView(ctx context.Context, cfg *config.Config, path string) (*tabular.View, func(), error) {
	c, err := loadCollection(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	defer c.Close()

	root, ok := c.Root(viper.GetInt("doc"))
	if !ok {
		return nil, nil, errors.Newf(errors.ErrorTypeValidation,
			"document %d out of range, input has %d", viper.GetInt("doc"), c.Len())
	}

	a := c.Arena()
	target := root
	if p := viper.GetString("path"); p != "" {
		if target, ok = resolvePath(a, root, p); !ok {
			return nil, nil, errors.Newf(errors.ErrorTypeValidation, "path %q not found", p)
		}
	} else if found := tabular.Discover(a, root, cfg.DiscoveryOptions()); len(found) > 0 {
		target = found[0]
	}

	viewOpts, err := cfg.ViewOptions()
	if err != nil {
		return nil, nil, err
	}
	v, err := tabular.NewView(a, target, viewOpts...)
	if err != nil {
		return nil, nil, err
	}

	handles := []*tabular.View{v}
	cleanup := func() {
		for _, h := range handles {
			h.Close()
		}
	}

	if keys := viper.GetStringSlice("distinct"); len(keys) > 0 {
		if v, err = v.Distinct(paths(keys)); err != nil {
			cleanup()
			return nil, nil, err
		}
		handles = append(handles, v)
	}
	if keys := viper.GetStringSlice("sort"); len(keys) > 0 {
		desc := make([]bool, len(keys))
		for i := range desc {
			desc[i] = viper.GetBool("desc")
		}
		if v, err = v.SortBy(paths(keys), desc); err != nil {
			cleanup()
			return nil, nil, err
		}
		handles = append(handles, v)
	}
	if n := viper.GetInt("head"); n >= 0 {
		v = v.Head(n)
		handles = append(handles, v)
	}
	return v, cleanup, nil
}

func paths(keys []string) []expr.Expr {
	out := make([]expr.Expr, len(keys))
	for i, k := range keys {
		out[i] = expr.ParsePath(k)
	}
	return out
}

// resolvePath follows a dotted path of field names and array indexes.
func resolvePath(a *arena.Arena, root arena.NodeID, dotted string) (arena.NodeID, bool) {
	id := root
	for _, seg := range strings.Split(dotted, ".") {
		var ok bool
		if a.Tag(id) == value.TagArray {
			n, err := strconv.Atoi(seg)
			if err != nil {
				return arena.NoNode, false
			}
			id, ok = a.Child(id, n)
		} else {
			id, ok = a.Lookup(id, seg)
		}
		if !ok {
			return arena.NoNode, false
		}
	}
	return id, true
}

// nodePaths maps every container node under root to its dotted path.
func nodePaths(a *arena.Arena, root arena.NodeID) map[arena.NodeID]string {
	out := map[arena.NodeID]string{root: ""}
	var walk func(id arena.NodeID, prefix string)
	walk = func(id arena.NodeID, prefix string) {
		if !a.Tag(id).IsContainer() {
			return
		}
		for i := 0; i < a.ChildCount(id); i++ {
			child, _ := a.Child(id, i)
			seg, ok := a.Key(child)
			if !ok {
				seg = strconv.Itoa(i)
			}
			if prefix != "" {
				seg = prefix + "." + seg
			}
			out[child] = seg
			walk(child, seg)
		}
	}
	walk(root, "")
	return out
}
