package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/offalexp/ceSSHar/pkg/inventory"
	"github.com/offalexp/ceSSHar/pkg/models"
	"github.com/offalexp/ceSSHar/pkg/safety"
	"github.com/offalexp/ceSSHar/pkg/table"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	keys := map[string]string{"run.commands": "commands"}

	cmd := &cobra.Command{
		Use:   "check [command...]",
		Short: "Screen commands for harmful ones without connecting anywhere",
		Example: `  cesshar check -c commands.txt
  cesshar check "show version" "reload in 5"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := bindFlags(v, cmd, keys); err != nil {
				return err
			}
			commands := args
			if file := v.GetString("run.commands"); file != "" {
				fromFile, err := inventory.ReadLines(file)
				if err != nil {
					return err
				}
				commands = append(fromFile, commands...)
			}
			if len(commands) == 0 {
				return fmt.Errorf("%w: commands as arguments or a command file (-c)", errMissingInput)
			}

			vt := table.NewVerdictTable(cmd.OutOrStdout())
			filter := safety.NewFilter()
			for _, c := range commands {
				vt.AddVerdict(filter.Check(c))
			}
			vt.Render()
			if n := vt.Blocked(); n > 0 {
				return fmt.Errorf("%w: %d of %d command(s)", models.ErrCommandBlocked, n, len(commands))
			}
			return nil
		},
	}
	cmd.Flags().StringP("commands", "c", "", "file with one command per line")
	return cmd
}
