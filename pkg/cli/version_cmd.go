package cli

import (
	"database/sql"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

type versionInfo struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Go      string `json:"go"`
	DuckDB  string `json:"duckdb,omitempty"`
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the duckpipe, Go and DuckDB versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versionInfo{Version: version, Commit: commit, Go: runtime.Version()}
			if info.Version == "dev" {
				if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
					info.Version = bi.Main.Version
				}
			}
			info.DuckDB = duckDBVersion()

			if getOutputFormat(cmd) == "json" {
				return PrintJSON(cmd.OutOrStdout(), info)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "duckpipe %s (commit: %s, %s, duckdb %s)\n",
				info.Version, info.Commit, info.Go, info.DuckDB)
			return nil
		},
	}
}

// duckDBVersion asks an in-memory DuckDB instance for its library version.
func duckDBVersion() string {
	conn, err := sql.Open("duckdb", "")
	if err != nil {
		return "unknown"
	}
	defer closeDB(conn)

	var v string
	if err := conn.QueryRow("SELECT version()").Scan(&v); err != nil {
		return "unknown"
	}
	return v
}
