package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/securewipe/wipe-agent/pkg/identity"
)

var idCmd = &cobra.Command{
	Use:   "id",
	Short: "Print the machine identity used for registration",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(identity.NewProvider(cfg.MachineID).MachineID())
	},
}

func init() {
	rootCmd.AddCommand(idCmd)
}
