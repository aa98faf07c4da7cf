package tool

import (
	"github.com/spf13/cobra"

	"github.com/streamvault/bookie/cmd/tool/journal"
)

const (
	toolUsage     = "tool"
	toolShortDesc = "Executes tools as subcommands"
	toolLongDesc  = "This command executes the specified tool"
	toolExample   = "bookie tool journal [flags]"
)

// Cmd is the tool command.
var Cmd = &cobra.Command{
	Use:        toolUsage,
	Short:      toolShortDesc,
	Long:       toolLongDesc,
	SuggestFor: []string{"journal"},
	Example:    toolExample,
}

func init() {
	Cmd.AddCommand(journal.Cmd)
}
