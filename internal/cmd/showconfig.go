package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jpequegn/paratest/internal/profile"
)

// showConfigCmd represents the show-config command
var showConfigCmd = &cobra.Command{
	Use:   "show-config",
	Short: "Print the resolved default profile settings",
	Long: `Show-config prints the effective default-layer settings (test
threads, retries, slow/leak timeouts, output policy) for the named
profile, after loading .config/nextest.toml if present — useful for
confirming what "run" will actually use before a real invocation.`,
	RunE: showConfig,
}

func init() {
	rootCmd.AddCommand(showConfigCmd)
	showConfigCmd.Flags().String("profile", "default", "named profile to resolve settings from")
}

func showConfig(cmd *cobra.Command, args []string) error {
	profileName, _ := cmd.Flags().GetString("profile")
	r := loadResolver(profileName)
	p := r.Default

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "profile: %s\n", profileName)
	fmt.Fprintf(out, "test-threads: %d\n", p.TestThreads)
	fmt.Fprintf(out, "threads-required: %d\n", p.ThreadsRequired)
	fmt.Fprintf(out, "retries: %d\n", p.Retries.Count)
	fmt.Fprintf(out, "slow-timeout: period=%s terminate-after=%d grace-period=%s\n",
		p.SlowTimeout.Period, p.SlowTimeout.TerminateAfter, p.SlowTimeout.GracePeriod)
	fmt.Fprintf(out, "leak-timeout: period=%s result=%s\n", p.LeakTimeout.Period, leakResultString(p.LeakTimeout.Result))
	fmt.Fprintf(out, "global-timeout: %s\n", p.GlobalTimeout)
	fmt.Fprintf(out, "success-output: %s\n", p.SuccessOutput)
	fmt.Fprintf(out, "failure-output: %s\n", p.FailureOutput)
	fmt.Fprintf(out, "status-level: %d\n", p.StatusLevel)
	fmt.Fprintf(out, "final-status-level: %d\n", p.FinalStatusLevel)
	return nil
}

func leakResultString(r profile.LeakResult) string {
	if r == profile.LeakFail {
		return "fail"
	}
	return "pass"
}
