package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/batch"
	"github.com/offalexp/ceSSHar/pkg/config"
	"github.com/offalexp/ceSSHar/pkg/display"
	"github.com/offalexp/ceSSHar/pkg/inventory"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/output"
)

func newFetchCmd(v *viper.Viper) *cobra.Command {
	keys := map[string]string{
		"run.switches":        "switches",
		"run.connect_timeout": "connect-timeout",
		"run.output_dir":      "output-dir",
		"run.workers":         "workers",
	}

	cmd := &cobra.Command{
		Use:     "fetch remote-path...",
		Short:   "Download files from every device over SFTP",
		Example: `  cesshar fetch -s switches.txt flash:/config.text`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd, keys); err != nil {
				return err
			}
			return runFetch(cmd, v, args)
		},
	}
	flags := cmd.Flags()
	flags.StringP("switches", "s", "", "file with one device per line")
	flags.Float64P("connect-timeout", "T", config.DefaultConnectTimeout.Seconds(), "seconds to wait for a connection")
	flags.StringP("output-dir", "o", ".", "directory for downloaded files")
	flags.IntP("workers", "j", config.DefaultWorkers, "devices to work on at once")
	addAuthFlags(cmd)
	return cmd
}

func runFetch(cmd *cobra.Command, v *viper.Viper, paths []string) error {
	cfg, err := loadConfig(v, cmd)
	if err != nil {
		return err
	}
	if cfg.SwitchesFile == "" {
		return fmt.Errorf("%w: a device file (-s)", errMissingInput)
	}
	hosts, err := inventory.ReadLines(cfg.SwitchesFile)
	if err != nil {
		return err
	}

	console := display.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Quiet)
	auth, err := resolveAuth(newResolver(cmd, cfg, console, newPrompter()), cfg)
	if err != nil {
		return err
	}

	f := &batch.Fetcher{
		Dial:    newBootstrapper(cfg).Dial,
		Namer:   output.NewNamer(cfg.OutputDir),
		Workers: cfg.Workers,
	}
	start := time.Now()
	results, err := f.Fetch(cmd.Context(), buildTargets(hosts, cfg, auth), paths)

	var files []string
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			if models.FailureKindOf(r.Err) == models.FailureUnknown {
				console.Notice(fmt.Sprintf("%s %s: %v", r.Address, r.RemotePath, r.Err))
			} else {
				console.ConnectionFailed(r.Err)
			}
			continue
		}
		console.Dim(fmt.Sprintf("%s %s -> %s (%d bytes)", r.Address, r.RemotePath, r.LocalPath, r.Bytes))
		files = append(files, r.LocalPath)
	}
	console.Finished(files, time.Time{}, time.Since(start))
	if err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d download(s) failed", failed, len(results))
	}
	return nil
}
