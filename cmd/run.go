package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/batch"
	"github.com/offalexp/ceSSHar/pkg/config"
	"github.com/offalexp/ceSSHar/pkg/credentials"
	"github.com/offalexp/ceSSHar/pkg/display"
	"github.com/offalexp/ceSSHar/pkg/inventory"
	"github.com/offalexp/ceSSHar/pkg/logger"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/safety"
	"github.com/offalexp/ceSSHar/pkg/session"
	"github.com/offalexp/ceSSHar/pkg/table"
)

var errMissingInput = errors.New("missing required input")

// newPrompter is replaced in tests so nothing reads the real terminal.
var newPrompter = func() credentials.Prompter { return credentials.NewTerminalPrompter() }

func newRunCmd(v *viper.Viper) *cobra.Command {
	keys := map[string]string{
		"run.switches":        "switches",
		"run.commands":        "commands",
		"run.timeout":         "timeout",
		"run.connect_timeout": "connect-timeout",
		"run.delay":           "delay",
		"run.print":           "print",
		"run.quiet":           "quiet",
		"run.strict_safety":   "strict-safety",
		"run.output_dir":      "output-dir",
		"run.workers":         "workers",
	}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a command list on every device of a device list",
		Example: `  cesshar run -s switches.txt -c commands.txt
  cesshar run -s switches.txt -c commands.txt -U nick -e -p -t 30
  cesshar run -s switches.txt -c commands.txt -B breakglass -E`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := bindFlags(v, cmd, keys); err != nil {
				return err
			}
			return runRun(cmd, v)
		},
	}

	flags := cmd.Flags()
	flags.StringP("switches", "s", "", "file with one device per line")
	flags.StringP("commands", "c", "", "file with one command per line")
	flags.Float64P("timeout", "t", config.DefaultBailTimeout.Seconds(), "seconds to wait for a command before bailing")
	flags.Float64P("connect-timeout", "T", config.DefaultConnectTimeout.Seconds(), "seconds to wait for a connection")
	flags.Float64P("delay", "d", 0, "seconds to wait between commands")
	flags.BoolP("print", "p", false, "print command output to the console instead of writing files")
	flags.BoolP("write", "w", false, "write output files, also when printing with -p")
	flags.BoolP("allow-harmful", "X", false, "disable the do no harm check")
	flags.BoolP("continue-on-failure", "Q", false, "skip devices that cannot be reached instead of stopping")
	flags.Bool("quiet", false, "only print failures and requested output")
	flags.Bool("strict-safety", false, "stop before connecting if any command is harmful")
	flags.StringP("output-dir", "o", ".", "directory for output files")
	flags.IntP("workers", "j", config.DefaultWorkers, "devices to work on at once")
	addAuthFlags(cmd)

	return cmd
}

// addAuthFlags registers the credential flags shared by every command that connects.
func addAuthFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringP("auth-file", "A", config.DefaultAuthFile, "credential file with username: and password: lines")
	flags.StringP("username", "U", "", "username")
	flags.StringP("password", "P", "", "password")
	flags.StringP("backup-username", "B", "", "username to try when the primary one fails")
	flags.StringP("backup-password", "b", "", "password for the backup username")
	flags.StringP("backup-enable-password", "E", "", "enable secret for the backup username")
	flags.BoolP("enable", "e", false, "enter privileged mode after login")
	flags.String("enable-password", "", "enable secret")
}

// bindFlags ties viper keys to the flags of the command being run. Sibling commands share keys,
// so binding happens at run time rather than when the tree is built.
func bindFlags(v *viper.Viper, cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := v.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return fmt.Errorf("failed to bind --%s: %w", name, err)
		}
	}
	return nil
}

// applyFlagOverrides copies explicitly set flags into viper. Auth flags and the inverted switches
// are handled here rather than bound, since binding would let their defaults mask the config file.
// -p stops file writing unless -w asks for it.
func applyFlagOverrides(v *viper.Viper, cmd *cobra.Command) {
	flags := cmd.Flags()
	stringFlags := map[string]string{
		"auth-file":              "auth.file",
		"username":               "auth.username",
		"password":               "auth.password",
		"backup-username":        "auth.backup_username",
		"backup-password":        "auth.backup_password",
		"backup-enable-password": "auth.backup_enable_password",
		"enable-password":        "auth.enable_password",
	}
	for name, key := range stringFlags {
		if f := flags.Lookup(name); f != nil && f.Changed {
			v.Set(key, f.Value.String())
		}
	}
	inverted := map[string]string{
		"allow-harmful":       "run.safety",
		"continue-on-failure": "run.exit_on_failure",
	}
	for name, key := range inverted {
		if on, err := flags.GetBool(name); err == nil && on {
			v.Set(key, false)
		}
	}
	if on, err := flags.GetBool("enable"); err == nil && on {
		v.Set("auth.enable", true)
	}
	printing, _ := flags.GetBool("print")
	write, _ := flags.GetBool("write")
	switch {
	case write:
		v.Set("run.write", true)
	case printing:
		v.Set("run.write", false)
	}
}

func newResolver(
	cmd *cobra.Command,
	cfg *config.Config,
	console *display.Console,
	prompter credentials.Prompter,
) *credentials.Resolver {
	explicit := false
	if f := cmd.Flags().Lookup("auth-file"); f != nil && f.Changed {
		explicit = true
	}
	r := credentials.NewResolver(cfg.AuthFile, explicit || cfg.AuthFile != config.DefaultAuthFile, prompter)
	r.Notices = console.Notice
	return r
}

// resolvedAuth is everything needed to log in, after files and prompts were consulted.
type resolvedAuth struct {
	primary        models.Credentials
	enablePassword string
	backup         *models.Credentials
	backupEnable   string
}

func resolveAuth(r *credentials.Resolver, cfg *config.Config) (*resolvedAuth, error) {
	primary, err := r.Resolve(models.Credentials{Username: cfg.Username, Password: cfg.Password})
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials: %w", err)
	}
	auth := &resolvedAuth{primary: primary}
	if cfg.Enable {
		if auth.enablePassword, err = r.Secret(cfg.EnablePassword, "Enable password: "); err != nil {
			return nil, err
		}
		cfg.EnablePassword = auth.enablePassword
	}
	if cfg.HasBackup() {
		password, err := r.Secret(cfg.BackupPassword, "Enter your backup SSH password: ")
		if err != nil {
			return nil, err
		}
		auth.backup = &models.Credentials{Username: cfg.BackupUsername, Password: password}
		auth.backupEnable = cfg.BackupEnable()
	}
	return auth, nil
}

func buildTargets(hosts []string, cfg *config.Config, auth *resolvedAuth) []models.DeviceTarget {
	targets := make([]models.DeviceTarget, 0, len(hosts))
	for _, host := range hosts {
		targets = append(targets, models.DeviceTarget{
			Host:           host,
			Credentials:    auth.primary,
			Enable:         cfg.Enable,
			EnablePassword: auth.enablePassword,
			ConnectTimeout: cfg.ConnectTimeout,
		})
	}
	return targets
}

func newBootstrapper(cfg *config.Config) *session.Bootstrapper {
	b := session.NewBootstrapper()
	b.DialRetries = cfg.DialRetries
	return b
}

// linesOrPrompt reads one entry per line from path, or asks for a single entry when no file was
// given.
func linesOrPrompt(path string, p credentials.Prompter, label, what string) ([]string, error) {
	if path != "" {
		return inventory.ReadLines(path)
	}
	answer, err := p.Prompt(label)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", errMissingInput, what, err)
	}
	if answer = strings.TrimSpace(answer); answer == "" {
		return nil, fmt.Errorf("%w: %s", errMissingInput, what)
	}
	return []string{answer}, nil
}

func loadConfig(v *viper.Viper, cmd *cobra.Command) (*config.Config, error) {
	applyFlagOverrides(v, cmd)
	return config.FromViper(v)
}

func runRun(cmd *cobra.Command, v *viper.Viper) error {
	l := logger.FromContext(cmd.Context())
	cfg, err := loadConfig(v, cmd)
	if err != nil {
		return err
	}
	prompter := newPrompter()
	hosts, err := linesOrPrompt(cfg.SwitchesFile, prompter, "Enter the switch to connect to: ", "a device (-s)")
	if err != nil {
		return err
	}
	commands, err := linesOrPrompt(cfg.CommandsFile, prompter, "The switch command you want to run: ", "a command (-c)")
	if err != nil {
		return err
	}

	console := display.NewConsole(cmd.OutOrStdout(), cmd.ErrOrStderr(), cfg.Quiet)
	filter := safety.NewFilter()
	if !cfg.Safety {
		filter = safety.Disabled()
	}
	if err := batch.ScreenCommands(filter, commands, cfg.StrictSafety, console, l); err != nil {
		return err
	}

	auth, err := resolveAuth(newResolver(cmd, cfg, console, prompter), cfg)
	if err != nil {
		return err
	}

	o, err := batch.New(batch.Options{
		Targets:              buildTargets(hosts, cfg, auth),
		Commands:             commands,
		Backup:               auth.backup,
		BackupEnablePassword: auth.backupEnable,
		BailTimeout:          cfg.BailTimeout,
		Delay:                cfg.Delay,
		DevicePause:          cfg.DevicePause,
		Workers:              cfg.Workers,
		ExitOnFailure:        cfg.ExitOnFailure,
		WriteOutput:          cfg.WriteOutput,
		PrintOutput:          cfg.PrintOutput,
		OutputDir:            cfg.OutputDir,
		Filter:               filter,
		StrictSafety:         cfg.StrictSafety,
		Prescreened:          true,
	}, batch.BootstrapConnector{Bootstrapper: newBootstrapper(cfg)}, console)
	if err != nil {
		return err
	}

	summary, runErr := o.Run(cmd.Context())
	if summary != nil && len(summary.Records()) > 0 {
		st := table.NewSummaryTable(cmd.OutOrStdout())
		st.AddSummary(summary)
		st.Render()
	}
	if runErr != nil {
		l.Errorf("Run stopped: %v", runErr)
		return runErr
	}
	if failed := summary.Failed(); len(failed) > 0 {
		l.Warnf("%d device(s) failed", len(failed))
	}
	return nil
}
