package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"duck-pipeline/internal/domain"
)

type tableJSON struct {
	Namespace string `json:"namespace"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Rows      int64  `json:"rows"`
}

// countWorkers bounds concurrent COUNT(*) queries against the catalog.
const countWorkers = 4

func newTablesCmd(a *app) *cobra.Command {
	var flags pipelineFlags

	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables in the raw and curated namespaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := flags.load()
			if err != nil {
				return err
			}
			cat, err := openExistingCatalog(cmd.Context(), a, p)
			if err != nil {
				return err
			}
			if cat == nil {
				return domain.ErrNotFound("catalog %s does not exist; run the pipeline first", p.RawDB.Path)
			}
			defer func() { _ = cat.Close() }()

			tables, err := cat.ListTables(cmd.Context())
			if err != nil {
				return err
			}
			out := make([]tableJSON, len(tables))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(countWorkers)
			for i, t := range tables {
				g.Go(func() error {
					n, err := cat.CountRows(ctx, t.Ref)
					if err != nil {
						return err
					}
					out[i] = tableJSON{Namespace: string(t.Ref.Namespace), Name: t.Ref.Name, Type: t.Type, Rows: n}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), out)
			}
			rows := make([][]string, len(out))
			for i, t := range out {
				rows[i] = []string{t.Namespace, t.Name, t.Type, fmt.Sprint(t.Rows)}
			}
			return PrintTable(cmd.OutOrStdout(), []string{"NAMESPACE", "TABLE", "TYPE", "ROWS"}, rows)
		},
	}

	flags.register(cmd.Flags(), false)
	return cmd
}
