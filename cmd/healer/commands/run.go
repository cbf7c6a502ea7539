package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/spf13/cobra"

	"github.com/forgeline/healer/internal/ciwatcher"
	"github.com/forgeline/healer/internal/completion"
	healerconfig "github.com/forgeline/healer/internal/config"
	"github.com/forgeline/healer/internal/eventbus"
	"github.com/forgeline/healer/internal/journal"
	"github.com/forgeline/healer/internal/logging"
	"github.com/forgeline/healer/internal/metrics"
	"github.com/forgeline/healer/internal/model"
	"github.com/forgeline/healer/internal/orchestrator"
	"github.com/forgeline/healer/internal/scorer"
	"github.com/forgeline/healer/internal/synthesizer"
)

// NewRunCommand builds `healer run <repo-url>`: it clones the repo,
// drives it through the repair pipeline in-process, and prints a colored
// event trace followed by a results summary table.
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <repo-url>",
		Short: "Run the repair pipeline against a repository",
		Args:  cobra.ExactArgs(1),
		RunE:  runRun,
	}

	flags := cmd.Flags()
	flags.String("repo_url", "", "repository URL to heal")
	_ = flags.MarkHidden("repo_url")
	flags.String("config", "", "path to a run config file (yaml)")
	flags.String("base_branch", "", "branch to clone and base the healing branch on (default main)")
	flags.String("team_name", "", "team name, used to derive the healing branch")
	flags.String("leader_name", "", "leader name, used to derive the healing branch")
	flags.Int("max_iterations", 0, "maximum repair iterations (default 10)")
	flags.Int("time_budget_secs", 0, "wall-clock budget in seconds (default 1800)")
	flags.Bool("use_completion", false, "fall back to the completion service when rule-based analysis/synthesis misses")
	flags.String("completion_model", "", "model name passed to the completion provider")
	flags.String("remote", "origin", "git remote name to push the healing branch to")
	flags.String("work_root", "", "parent directory for run clones (default a temp dir)")
	flags.String("outputs_dir", "", "parent directory for results.json/report.pdf (default a temp dir)")
	flags.String("forge_base_url", "", "CI forge API base URL (e.g. https://api.github.com)")
	flags.String("s3_bucket", "", "S3 bucket for the journal (default: in-memory journal)")
	flags.Bool("verbose", false, "print a diff for every applied fix")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	if err := cmd.Flags().Set("repo_url", args[0]); err != nil {
		return fmt.Errorf("set repo_url: %w", err)
	}
	spec, err := healerconfig.Load(mustFlag(cmd, "config"), cmd.Flags())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	logger, err := logging.NewCLI(false)
	if err != nil {
		return fmt.Errorf("build logger: %w", err)
	}
	defer logger.Sync()

	j, err := buildJournal(ctx, mustFlag(cmd, "s3_bucket"))
	if err != nil {
		return err
	}

	comp := completion.NewClient()
	registerCompletionProviders(comp)

	synth := synthesizer.New(comp, spec.CompletionModel)

	forgeBaseURL := mustFlag(cmd, "forge_base_url")
	var forge ciwatcher.Forge
	if forgeBaseURL != "" {
		forge = ciwatcher.NewHTTPForge(forgeBaseURL, os.Getenv("GITHUB_TOKEN"))
	} else {
		forge = noForge{}
	}
	watcher := ciwatcher.New(forge)

	workRoot := mustFlag(cmd, "work_root")
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	outputsDir := mustFlag(cmd, "outputs_dir")
	if outputsDir == "" {
		outputsDir = os.TempDir()
	}

	verbose, _ := cmd.Flags().GetBool("verbose")
	out := cmd.OutOrStdout()

	broadcaster := eventbus.NewBroadcaster()
	go printEvents(out, broadcaster, verbose)

	orch := orchestrator.New(j, broadcaster, metrics.New(), logger, synth, comp, watcher, workRoot, outputsDir, mustFlag(cmd, "remote"))

	results, runErr := orch.Execute(ctx, spec)
	printResults(out, results)
	if runErr != nil {
		return runErr
	}
	if results.FinalStatus != string(model.RunPassed) {
		os.Exit(1)
	}
	return nil
}

func mustFlag(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func buildJournal(ctx context.Context, bucket string) (journal.Journal, error) {
	if bucket == "" {
		return journal.NewMemoryJournal(), nil
	}
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	return journal.NewS3Journal(client, bucket, "healer/"), nil
}

// registerCompletionProviders wires a primary/secondary provider pair from
// environment variables, matching spec.md §6's "primary provider with
// round-robin keys; on missing keys, secondary provider" behavior.
func registerCompletionProviders(c *completion.Client) {
	var primaryKeys []string
	if endpoint := os.Getenv("HEALER_COMPLETION_PRIMARY_URL"); endpoint != "" {
		adapter := completion.NewHTTPAdapter("primary", endpoint)
		primaryKeys = splitNonEmpty(os.Getenv("HEALER_COMPLETION_PRIMARY_KEYS"))
		c.Register(adapter, primaryKeys...)
	}
	if endpoint := os.Getenv("HEALER_COMPLETION_SECONDARY_URL"); endpoint != "" {
		adapter := completion.NewHTTPAdapter("secondary", endpoint)
		keys := splitNonEmpty(os.Getenv("HEALER_COMPLETION_SECONDARY_KEYS"))
		c.Register(adapter, keys...)
		if len(primaryKeys) == 0 {
			c.SetDefaultProvider("secondary")
		}
	}
}

func splitNonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if i > start {
				out = append(out, s[start:i])
			}
			start = i + 1
		}
	}
	return out
}

// noForge reports that a CI workflow exists but never has a run: every
// poll observes model.CINoCI. It stands in for a real forge on
// offline/local repairs.
type noForge struct{}

func (noForge) LatestRun(ctx context.Context, repoSlug, branch string) (ciwatcher.Observation, error) {
	return ciwatcher.Observation{Status: model.CINoCI}, nil
}
func (noForge) HasWorkflow(ctx context.Context, repoSlug string) (bool, error) { return true, nil }

// printEvents renders a run's live event stream to out, colored by kind.
// With verbose set, a fix_applied event also prints a diff of the
// snippet it replaced.
func printEvents(out io.Writer, b *eventbus.Broadcaster, verbose bool) {
	events, _, unsub := b.Subscribe()
	defer unsub()

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	for ev := range events {
		line := fmt.Sprintf("[%s] %s", ev.Node, ev.Kind)
		if ev.Message != "" {
			line += ": " + ev.Message
		}
		switch ev.Kind {
		case model.EventFixApplied:
			green.Fprintln(out, line)
			if verbose {
				printFixDiff(out, ev.Data)
			}
		case model.EventFailureFound:
			yellow.Fprintln(out, line)
		case model.EventRunComplete:
			cyan.Fprintln(out, line)
		default:
			fmt.Fprintln(out, line)
		}
	}
}

func printFixDiff(out io.Writer, data map[string]any) {
	before, _ := data["original_snippet"].(string)
	after, _ := data["fixed_snippet"].(string)
	if before == "" && after == "" {
		return
	}
	fmt.Fprintln(out, diffSnippets(before, after))
}

// diffSnippets renders a colorized diff between a fix's before/after
// snippets.
func diffSnippets(before, after string) string {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(before, after, false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	var out string
	for _, d := range diffs {
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			out += color.GreenString(d.Text)
		case diffmatchpatch.DiffDelete:
			out += color.RedString(d.Text)
		default:
			out += d.Text
		}
	}
	return out
}

// printResults renders a run's final results.json summary as a table.
func printResults(out io.Writer, results scorer.Results) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false

	t.AppendHeader(table.Row{"Field", "Value"})
	t.AppendRow(table.Row{"Run ID", results.RunID})
	t.AppendRow(table.Row{"Status", results.FinalStatus})
	if results.QuarantineReason != "" {
		t.AppendRow(table.Row{"Quarantine reason", results.QuarantineReason})
	}
	t.AppendRow(table.Row{"Branch", results.HealBranch})
	t.AppendRow(table.Row{"Failures found", results.TotalFailures})
	t.AppendRow(table.Row{"Fixes applied", results.TotalFixes})
	t.AppendRow(table.Row{"Time (s)", fmt.Sprintf("%.1f", results.TotalTimeSecs)})
	t.AppendRow(table.Row{"Score", fmt.Sprintf("%.2f", results.Score.Total)})
	t.Render()

	if len(results.Fixes) == 0 {
		return
	}

	ft := table.NewWriter()
	ft.SetOutputMirror(out)
	ft.SetStyle(table.StyleLight)
	ft.AppendHeader(table.Row{"File", "Bug type", "Line", "Status", "Commit"})
	for _, f := range results.Fixes {
		ft.AppendRow(table.Row{f.File, f.BugType, f.Line, f.Status, f.CommitMessage})
	}
	ft.Render()
}
