package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/config"
	"github.com/offalexp/ceSSHar/pkg/goroutine"
	"github.com/offalexp/ceSSHar/pkg/logger"
)

const DefaultEnvFile = ".env"

type rootOptions struct {
	v       *viper.Viper
	cfgFile string
	envFile string
}

// NewRootCmd builds the command tree around its own viper instance.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:   "cesshar",
		Short: "Run CLI commands on Cisco devices over SSH",
		Long: `ceSSHar logs in to a list of Cisco IOS devices over SSH, runs a list of commands on each
and saves what the device printed. Destructive commands are refused unless explicitly allowed.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.initConfig(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is $HOME/.cesshar.yaml)")
	flags.StringVar(&opts.envFile, "env-file", DefaultEnvFile, "dotenv file with CESSHAR_ variables")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-path", "", "log file (default is $TMPDIR/cesshar.log)")
	flags.Bool("verbose", false, "also log to the console")
	cobra.CheckErr(opts.v.BindPFlag("general.log_level", flags.Lookup("log-level")))
	cobra.CheckErr(opts.v.BindPFlag("general.log_path", flags.Lookup("log-path")))
	cobra.CheckErr(opts.v.BindPFlag("general.verbose", flags.Lookup("verbose")))

	rootCmd.AddCommand(
		newRunCmd(opts.v),
		newCheckCmd(opts.v),
		newPortsCmd(opts.v),
		newFetchCmd(opts.v),
		getCompletionCmd(),
	)
	return rootCmd
}

// initConfig loads the dotenv file, the config file and the logger, in that order.
func (o *rootOptions) initConfig(cmd *cobra.Command) error {
	if o.envFile != "" {
		envFile, err := homedir.Expand(o.envFile)
		if err != nil {
			return err
		}
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	if err := config.ReadFile(o.v, o.cfgFile); err != nil {
		return err
	}

	logPath := o.v.GetString("general.log_path")
	if logPath == "" {
		logPath = logger.DefaultLogPath
	} else if expanded, err := homedir.Expand(logPath); err == nil {
		logPath = expanded
	}
	if err := logger.Initialize(logger.Config{
		Level:         o.v.GetString("general.log_level"),
		FilePath:      logPath,
		Format:        o.v.GetString("general.log_format"),
		EnableConsole: o.v.GetBool("general.verbose"),
	}); err != nil {
		return err
	}

	l := logger.Get()
	if ctx := cmd.Context(); ctx != nil {
		cmd.SetContext(logger.IntoContext(ctx, l))
	}
	if used := o.v.ConfigFileUsed(); used != "" {
		l.Debugf("Using config file: %s", used)
	}
	l.Debugf("Running %s", strings.Join(os.Args, " "))
	return nil
}

// Execute runs the root command with a context cancelled by SIGINT or SIGTERM.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		if active := goroutine.ActiveNames(); len(active) > 0 {
			logger.Get().Warnf("Interrupted with %d worker(s) in flight: %s",
				len(active), strings.Join(active, ", "))
		}
	}()

	defer logger.Sync()
	return NewRootCmd().ExecuteContext(ctx)
}
