package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/batch"
	"github.com/offalexp/ceSSHar/pkg/config"
	"github.com/offalexp/ceSSHar/pkg/credentials"
	"github.com/offalexp/ceSSHar/pkg/display"
	"github.com/offalexp/ceSSHar/pkg/inventory"
	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/table"
)

func newPortsCmd(v *viper.Viper) *cobra.Command {
	keys := map[string]string{
		"ports.inventory":     "inventory",
		"ports.timeout":       "timeout",
		"run.connect_timeout": "connect-timeout",
		"run.workers":         "workers",
		"run.quiet":           "quiet",
	}

	cmd := &cobra.Command{
		Use:   "ports",
		Short: "Check interface health on the devices of a YAML inventory",
		Long: `Runs "show interfaces <name>" for every interface listed in the inventory and flags ports
whose reliability, load, CRC, input error or collision counters cross the configured thresholds.

Inventory format:

  devices:
    - host: 192.168.1.20
      username: admin
      interfaces: [GigabitEthernet0/4, GigabitEthernet0/11]`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(v, cmd, keys); err != nil {
				return err
			}
			return runPorts(cmd, v)
		},
	}
	flags := cmd.Flags()
	flags.StringP("inventory", "i", "", "YAML inventory of devices and interfaces")
	flags.Float64P("timeout", "t", config.DefaultPortTimeout.Seconds(), "seconds to wait for each interface")
	flags.Float64P("connect-timeout", "T", config.DefaultConnectTimeout.Seconds(), "seconds to wait for a connection")
	flags.IntP("workers", "j", config.DefaultWorkers, "devices to work on at once")
	flags.Bool("quiet", false, "no spinner")
	addAuthFlags(cmd)
	return cmd
}

func runPorts(cmd *cobra.Command, v *viper.Viper) error {
	l := logger.FromContext(cmd.Context())
	cfg, err := loadConfig(v, cmd)
	if err != nil {
		return err
	}
	if cfg.InventoryFile == "" {
		return fmt.Errorf("%w: an inventory file (-i)", errMissingInput)
	}
	inv, err := inventory.LoadInventory(cfg.InventoryFile)
	if err != nil {
		return err
	}

	console := display.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Quiet)
	if holdsPasswords(inv) {
		if err := credentials.CheckPermissions(cfg.InventoryFile); errors.Is(err, credentials.ErrInsecurePermissions) {
			l.Warnf("Inventory holds passwords: %v", err)
			console.Notice(fmt.Sprintf("** Inventory %s holds passwords and is readable by group or others **",
				cfg.InventoryFile))
		}
	}
	defaults := models.Credentials{Username: cfg.Username, Password: cfg.Password}
	if needsDefaultCredentials(inv, defaults) {
		if defaults, err = newResolver(cmd, cfg, console, newPrompter()).Resolve(defaults); err != nil {
			return err
		}
	}

	jobs := make([]batch.PortJob, 0, len(inv.Devices))
	for _, d := range inv.Devices {
		target := d.Target(defaults)
		target.ConnectTimeout = cfg.ConnectTimeout
		if target.Enable && target.EnablePassword == "" {
			target.EnablePassword = cfg.EnablePassword
		}
		jobs = append(jobs, batch.PortJob{Target: target, Interfaces: d.Interfaces})
	}

	checker := &batch.PortChecker{
		Connector:   batch.BootstrapConnector{Bootstrapper: newBootstrapper(cfg)},
		Thresholds:  cfg.Ports,
		BailTimeout: cfg.PortTimeout,
		Workers:     cfg.Workers,
	}

	s := display.NewSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Checking %d device(s)", len(jobs)), cfg.Quiet)
	rows, err := checker.Check(cmd.Context(), jobs)
	s.Stop()

	pt := table.NewPortTable(cmd.OutOrStdout())
	for _, row := range rows {
		pt.AddRow(row)
	}
	pt.Render()
	if err != nil {
		return err
	}
	if n := pt.Unhealthy(); n > 0 {
		l.Warnf("%d unhealthy port(s)", n)
		return fmt.Errorf("%d of %d port(s) need attention", n, len(rows))
	}
	return nil
}

func needsDefaultCredentials(inv *inventory.Inventory, defaults models.Credentials) bool {
	for _, d := range inv.Devices {
		if !d.Target(defaults).Credentials.IsComplete() {
			return true
		}
	}
	return false
}

func holdsPasswords(inv *inventory.Inventory) bool {
	for _, d := range inv.Devices {
		if d.Password != "" || d.EnablePassword != "" {
			return true
		}
	}
	return false
}
