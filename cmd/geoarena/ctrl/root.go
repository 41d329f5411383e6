package ctrl

import (
	"github.com/openziti/geoarena/cmd/geoarena/geoarena"
	"github.com/spf13/cobra"
)

func init() {
	geoarena.RootCmd.AddCommand(ctrlCmd)
}

var ctrlCmd = &cobra.Command{
	Use:   "ctrl",
	Short: "Control metrics instruments",
}
