package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List discovered test binaries and cases without running them",
	Long: `List discovers the test binaries under --binary-dir, lists each
case they report, and prints them without executing anything — the
same discovery path "run" uses, stopped short of the scheduler.`,
	RunE: listTests,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().String("binary-dir", ".", "directory of compiled test binaries to discover")
}

func listTests(cmd *cobra.Command, args []string) error {
	binaryDir, _ := cmd.Flags().GetString("binary-dir")

	binaries, err := discoverBinaries(binaryDir)
	if err != nil {
		return err
	}
	list, err := buildTestList(binaries)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, entry := range list.Binaries {
		fmt.Fprintf(out, "%s:\n", entry.BinaryID)
		for _, c := range entry.Cases {
			fmt.Fprintf(out, "    %s\n", c.Name)
		}
	}
	return nil
}
