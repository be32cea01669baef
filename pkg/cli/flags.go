package cli

import (
	"github.com/spf13/pflag"

	"duck-pipeline/internal/config"
)

const defaultConfigPath = "pipeline.yaml"

// pipelineFlags are shared by every command that reads a pipeline file.
type pipelineFlags struct {
	configPath string
	skipTarget bool
}

func (f *pipelineFlags) register(fs *pflag.FlagSet, withSkipTarget bool) {
	fs.StringVarP(&f.configPath, "config", "c", defaultConfigPath, "Pipeline definition file (YAML or JSON)")
	if withSkipTarget {
		fs.BoolVar(&f.skipTarget, "skip-target", false, "Stop after transformations; do not publish to the target database")
	}
}

func (f *pipelineFlags) load() (*config.Pipeline, error) {
	return config.LoadPipeline(f.configPath)
}

// historyPath resolves the run ledger location: --history wins over
// DUCKPIPE_HISTORY_DB.
func historyPath(fs *pflag.FlagSet, flagValue string, cfg *config.Config) string {
	if fs.Changed("history") {
		return flagValue
	}
	return cfg.HistoryDBPath
}
