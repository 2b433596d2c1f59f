package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/relief/internal/core"
)

func (a *App) familiesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List registered families",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			w := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "KEY\tLABEL\tTRASH\tCOLUMNS")
			for _, f := range a.rt.Service.Families() {
				fmt.Fprintf(w, "%s\t%s\t%v\t%d\n", f.Key, f.Label, f.Trash, len(f.Template))
			}
			return w.Flush()
		},
	}
}

func (a *App) templateCommand() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:     "template <family>",
		Short:   "Write the blank import template of a family",
		Example: "  reliefctl template grids --out .",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			family := args[0]
			data, err := a.rt.Service.Template(cmd.Context(), a.actor(), family)
			if err != nil {
				return err
			}
			return a.writeOutput(out, family+"_template.csv", data)
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "directory to write into (default: stdout)")
	return cmd
}

func (a *App) importCommand() *cobra.Command {
	var opts core.ImportOptions

	cmd := &cobra.Command{
		Use:   "import <family> <file>",
		Short: "Reconcile a CSV file into a family",
		Long: `Reconcile a CSV file into a family. Use - as the file to read stdin.

Rows that match an existing record by id or natural key update it; other rows
are inserted. With --trash the file is a trash export and matched records are
moved back into the deleted state instead of being duplicated.`,
		Example: "  reliefctl import grids grids.csv --skip-duplicates",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			family, path := args[0], args[1]

			var r io.Reader = a.stdin
			if path != "-" {
				f, err := os.Open(path)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}

			res, err := a.rt.Service.Import(cmd.Context(), a.actor(), family, r, opts)
			if encErr := a.printJSON(res); encErr != nil && err == nil {
				err = encErr
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&opts.SkipDuplicates, "skip-duplicates", false, "leave matched records untouched")
	cmd.Flags().BoolVar(&opts.Trash, "trash", false, "import a trash export")
	return cmd
}

func (a *App) exportCommand() *cobra.Command {
	var (
		trash bool
		all   bool
		out   string
	)

	cmd := &cobra.Command{
		Use:   "export [family]",
		Short: "Export a family, or every family with --all",
		Example: `  reliefctl export grids > grids.csv
  reliefctl export --all --trash --out backups/`,
		Args: func(cmd *cobra.Command, args []string) error {
			if all {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(1)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if !all {
				res, err := a.rt.Service.Export(cmd.Context(), a.actor(), args[0], trash)
				if err != nil {
					return err
				}
				return a.writeOutput(out, res.Filename(), res.Data)
			}

			if out == "" {
				out = "."
			}
			return a.exportAll(cmd, trash, out)
		},
	}

	cmd.Flags().BoolVar(&trash, "trash", false, "export the trash view; with --all, also export trash of families that have one")
	cmd.Flags().BoolVar(&all, "all", false, "export every registered family")
	cmd.Flags().StringVar(&out, "out", "", "directory to write into (default: stdout, or . with --all)")
	return cmd
}

// exportAll writes one file per family (and per trash view when requested)
// into dir, exporting concurrently.
func (a *App) exportAll(cmd *cobra.Command, trash bool, dir string) error {
	type job struct {
		family string
		trash  bool
	}

	var jobs []job
	for _, f := range a.rt.Service.Families() {
		jobs = append(jobs, job{family: f.Key})
		if trash && f.Trash {
			jobs = append(jobs, job{family: f.Key, trash: true})
		}
	}

	written := make([]string, len(jobs))
	g, ctx := errgroup.WithContext(cmd.Context())
	g.SetLimit(4)
	for i, j := range jobs {
		g.Go(func() error {
			res, err := a.rt.Service.Export(ctx, a.actor(), j.family, j.trash)
			if err != nil {
				return fmt.Errorf("export %s: %w", j.family, err)
			}
			path := filepath.Join(dir, res.Filename())
			if err := os.WriteFile(path, res.Data, 0o644); err != nil {
				return err
			}
			written[i] = fmt.Sprintf("%s\t%d rows", path, res.Rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	fmt.Fprintln(a.stdout, strings.Join(written, "\n"))
	return nil
}

// writeOutput writes data into dir/name, or to stdout when dir is empty.
func (a *App) writeOutput(dir, name string, data []byte) error {
	if dir == "" {
		_, err := a.stdout.Write(data)
		return err
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, path)
	return nil
}

func (a *App) printJSON(v any) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
