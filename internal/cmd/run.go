package cmd

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jpequegn/paratest/internal/capture"
	"github.com/jpequegn/paratest/internal/event"
	"github.com/jpequegn/paratest/internal/inputsrc"
	"github.com/jpequegn/paratest/internal/launcher"
	"github.com/jpequegn/paratest/internal/profile"
	"github.com/jpequegn/paratest/internal/reporter"
	"github.com/jpequegn/paratest/internal/retry"
	"github.com/jpequegn/paratest/internal/runner"
	"github.com/jpequegn/paratest/internal/signalsrc"
	"github.com/jpequegn/paratest/internal/storage"
	"github.com/jpequegn/paratest/internal/target"
	"github.com/jpequegn/paratest/internal/testid"
	"github.com/jpequegn/paratest/internal/unit"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Discover and run every test binary in a directory",
	Long: `Run runs every test case exposed by the test binaries found in
--binary-dir, one child process per test case, under the concurrent
scheduler.

Example:
  paratest run --binary-dir ./target/debug/deps
  paratest run --binary-dir ./bin --test-threads 8 --retries 2`,
	RunE: runTests,
}

// runRetries backs the --retries flag; a custom pflag.Value so the CLI
// can express a backoff policy, not just a bare count (see flags.go).
var runRetries retryPolicyFlag

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("binary-dir", ".", "directory of compiled test binaries to discover and run")
	runCmd.Flags().String("profile", "default", "named profile to resolve settings from")
	runCmd.Flags().Int("test-threads", 0, "global parallelism budget (0 = profile default)")
	runCmd.Flags().Var(&runRetries, "retries", "retry count override, optionally with backoff: N, N,fixed=10ms, N,exponential=initial:factor:max[:jitter]")
	runCmd.Flags().Duration("global-timeout", 0, "whole-run wall clock limit (0 = no limit)")
	runCmd.Flags().String("junit-output", "", "write a JUnit XML report to this path")
	runCmd.Flags().String("store-dir", "", "directory to persist the run's event log into (empty = disabled)")
	runCmd.Flags().String("history-db", "", "sqlite database path for the run-history index (empty = disabled)")
	runCmd.Flags().Bool("no-capture", false, "disable output capture entirely")
	runCmd.Flags().String("target-runner-triple", "", "target triple to resolve a target runner for (empty = host, no runner)")
	runCmd.Flags().String("filter", "", "glob over test names; non-matching tests are scheduled as skipped")
}

func runTests(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	binaryDir, _ := cmd.Flags().GetString("binary-dir")
	profileName, _ := cmd.Flags().GetString("profile")
	testThreads, _ := cmd.Flags().GetInt("test-threads")
	globalTimeout, _ := cmd.Flags().GetDuration("global-timeout")
	junitPath, _ := cmd.Flags().GetString("junit-output")
	storeDir, _ := cmd.Flags().GetString("store-dir")
	historyDB, _ := cmd.Flags().GetString("history-db")
	noCapture, _ := cmd.Flags().GetBool("no-capture")
	runnerTriple, _ := cmd.Flags().GetString("target-runner-triple")
	filterGlob, _ := cmd.Flags().GetString("filter")

	if req := requiredVersion(configPath()); req != "" && !versionAtLeast(rootCmd.Version, req) {
		return &codedError{
			code: exitRequiredVersionNotMet,
			msg:  fmt.Sprintf("run: config requires version %s, this is %s", req, rootCmd.Version),
		}
	}
	if filterGlob != "" {
		if _, err := path.Match(filterGlob, "probe"); err != nil {
			return &codedError{code: exitInvalidFilter, msg: fmt.Sprintf("run: invalid filter %q: %v", filterGlob, err)}
		}
	}

	binaries, err := discoverBinaries(binaryDir)
	if err != nil {
		return err
	}
	list, err := buildTestList(binaries)
	if err != nil {
		return err
	}
	if filterGlob != "" {
		applyFilter(list, filterGlob)
	}
	matched := 0
	for _, ti := range list.Instances() {
		if ti.FilterMatch == testid.FilterMatched {
			matched++
		}
	}
	if matched == 0 {
		return &codedError{code: exitNoTestsRun, msg: fmt.Sprintf("run: no tests matched in %s", binaryDir)}
	}

	resolver := loadResolver(profileName)
	if testThreads > 0 {
		resolver.Default.TestThreads = testThreads
	}
	if runRetries.set {
		resolver.Default.Retries = runRetries.policy
	}
	if globalTimeout > 0 {
		resolver.Default.GlobalTimeout = globalTimeout
	}

	captureStrategy := capture.Split
	if noCapture {
		captureStrategy = capture.None
	}

	obs := &runObserver{}
	sinks := event.MultiSink{
		reporter.NewTerminal(cmd.OutOrStdout(), resolver.Default.StatusLevel, resolver.Default.FinalStatusLevel, 0),
		obs,
	}

	var junitFile *os.File
	if junitPath != "" {
		junitFile, err = os.Create(junitPath)
		if err != nil {
			return fmt.Errorf("cmd: create junit output %s: %w", junitPath, err)
		}
		defer junitFile.Close()
		sinks = append(sinks, reporter.NewJUnit(junitFile, "paratest"))
	}

	runID := viper.GetString("run_id")
	if runID == "" {
		runID = uuid.New().String()
	}

	var evLog *storage.EventLog
	if storeDir != "" {
		evLog, err = storage.NewEventLog(storeDir, runID)
		if err != nil {
			return err
		}
		defer evLog.Close()
		_ = evLog.WriteMetadata(storage.RunMetadata{
			RunID:       runID,
			ProfileName: profileName,
			StartTime:   time.Now().UTC().Format(time.RFC3339),
		})
		sinks = append(sinks, evLog)
	}

	var historyStore *storage.HistoryStore
	if historyDB != "" {
		historyStore, err = storage.NewHistoryStore(historyDB)
		if err != nil {
			return err
		}
		if err := historyStore.Init(); err != nil {
			return err
		}
		defer historyStore.Close()
	}

	runnerCfg := runner.Config{
		RunID:       runID,
		ProfileName: profileName,
		CLIArgs:     args,
		TestList:    list,
		Resolver:    resolver,
		Scheduler:   runner.NewScheduler(resolver.Default, nil),
		NewLaunch:   newLaunchFunc(runnerTriple, captureStrategy),
		Sink:        sinks,
		Signals:     signalsrc.New(),
		Input:       inputsrc.NewNoop(),
	}
	c := runner.New(runnerCfg)

	started := time.Now()
	stats := c.Run(ctx)

	if historyStore != nil {
		for i := range obs.tests {
			obs.tests[i].RunID = c.RunID()
		}
		_ = historyStore.SaveRun(storage.RunRecord{
			RunID:       c.RunID(),
			ProfileName: profileName,
			StartTime:   started,
			Elapsed:     time.Since(started),
			Stats:       stats,
		}, obs.tests)
		_ = reporter.NewHistory(historyStore).WriteFlakyTrend(cmd.OutOrStdout(), 5, 2)
	}

	return runExitError(stats, obs.cancel)
}

// loadResolver loads the named profile from .config/nextest.toml if
// present; otherwise falls back to the hardcoded default profile, the
// minimal path that still lets `paratest run` work in a directory with
// no config file at all.
func loadResolver(profileName string) *profile.Resolver {
	p := configPath()
	if _, err := os.Stat(p); err == nil {
		if resolvers, err := profile.Load(p); err == nil {
			if r, ok := resolvers[profileName]; ok {
				return r
			}
		}
	}
	return profile.NewResolver()
}

// configPath is the --config file when one was given, otherwise the
// conventional config file location, relative to the working directory.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return filepath.Join(".config", "nextest.toml")
}

// applyFilter marks every test case whose name doesn't match the glob
// as a filter mismatch, so the controller schedules it as skipped.
func applyFilter(list *testid.TestList, glob string) {
	for bi := range list.Binaries {
		cases := list.Binaries[bi].Cases
		for ci := range cases {
			if cases[ci].Match != testid.FilterMatched {
				continue
			}
			if ok, _ := path.Match(glob, cases[ci].Name); !ok {
				cases[ci].Match = testid.FilterMismatch
			}
		}
	}
}

// runObserver is an event.Sink that collects what the CLI needs after
// the run is over: one TestRecord per finished test for the history
// index, and the run's highest cancellation reason for exit-code
// mapping.
type runObserver struct {
	tests  []storage.TestRecord
	cancel event.CancelReason
}

func (o *runObserver) Emit(e event.TestEvent) {
	switch e.Kind {
	case event.KindRunBeginCancel:
		o.cancel = o.cancel.Escalate(e.Reason)

	case event.KindTestFinished:
		n := len(e.RunStatuses)
		if n == 0 {
			return
		}
		o.tests = append(o.tests, storage.TestRecord{
			TestKey:   e.Instance.Key(),
			TestName:  e.Instance.TestName,
			BinaryID:  e.Instance.BinaryID,
			Result:    e.RunStatuses[n-1].Kind,
			Flaky:     retry.IsFlaky(e.RunStatuses),
			Attempts:  n,
			Timestamp: e.Timestamp,
		})
	}
}

// newLaunchFunc builds the per-instance LaunchFunc the controller needs,
// resolving a target runner once (triple is process-wide, not
// per-test) and reusing it for every launched test.
func newLaunchFunc(triple string, strategy capture.Strategy) func(ti testid.TestInstance) unit.LaunchFunc {
	cwd, _ := os.Getwd()
	cargoHome := os.Getenv("CARGO_HOME")
	var runnerBin *target.Runner
	if triple != "" {
		runnerBin, _ = target.For(triple, cwd, cargoHome, os.LookupEnv)
	}

	return func(ti testid.TestInstance) unit.LaunchFunc {
		return func(attempt int, published map[string]string) (*launcher.Child, error) {
			program, programArgs := ti.BinaryPath, []string{}
			if runnerBin != nil {
				program, programArgs = runnerBin.Command(ti.BinaryPath, programArgs)
			}
			return launcher.Launch(launcher.Spec{
				Program:   program,
				Args:      programArgs,
				Cwd:       ti.Cwd,
				Instance:  ti,
				Published: published,
				Capture:   strategy,
			})
		}
	}
}

// runExitError maps the run's final disposition to the error (and
// therefore exit code, via main's ExitCode check) for it: setup-script
// failure, exec failure, and test failure each get their own code.
func runExitError(stats event.RunStats, cancel event.CancelReason) error {
	switch {
	case cancel == event.CancelSetupScriptFailure:
		return &codedError{code: exitSetupScriptFailed, msg: "run: a setup script failed"}
	case stats.ExecFailed > 0:
		return &codedError{code: exitExecFailed, msg: fmt.Sprintf("run: %d test(s) failed to execute", stats.ExecFailed)}
	case stats.Failed > 0 || stats.TimedOut > 0:
		return &codedError{code: exitTestRunFailed, msg: fmt.Sprintf("run: %d failed, %d timed out", stats.Failed, stats.TimedOut)}
	default:
		return nil
	}
}
