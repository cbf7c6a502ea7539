package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/forgeline/healer/internal/ciwatcher"
	"github.com/forgeline/healer/internal/completion"
	"github.com/forgeline/healer/internal/logging"
	"github.com/forgeline/healer/internal/metrics"
	"github.com/forgeline/healer/internal/server"
	"github.com/forgeline/healer/internal/synthesizer"
)

// NewServeCommand builds `healer serve`, which starts the HTTP API
// gateway so multiple runs can be submitted and watched over the network
// instead of one run per CLI invocation.
func NewServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the healer HTTP API server",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	flags := cmd.Flags()
	flags.String("addr", ":8080", "address to listen on")
	flags.String("work_root", "", "parent directory for run clones (default a temp dir)")
	flags.String("outputs_dir", "", "parent directory for results.json/report.pdf (default a temp dir)")
	flags.String("remote", "origin", "git remote name to push healing branches to")
	flags.String("completion_model", "", "default model name passed to the completion provider")
	flags.String("s3_bucket", "", "S3 bucket for the journal (default: in-memory journal)")
	flags.String("redis_addr", "", "Redis address to relay run events to (default: no relay)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
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
	synth := synthesizer.New(comp, mustFlag(cmd, "completion_model"))
	watcher := ciwatcher.New(noForge{})

	workRoot := mustFlag(cmd, "work_root")
	if workRoot == "" {
		workRoot = os.TempDir()
	}
	outputsDir := mustFlag(cmd, "outputs_dir")
	if outputsDir == "" {
		outputsDir = os.TempDir()
	}

	var redisClient *redis.Client
	if addr := mustFlag(cmd, "redis_addr"); addr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: addr})
		defer redisClient.Close()
	}

	srv := server.New(server.Config{Addr: mustFlag(cmd, "addr")}, server.Deps{
		Journal:    j,
		Metrics:    metrics.New(),
		Synth:      synth,
		Completion: comp,
		Watcher:    watcher,
		WorkRoot:   workRoot,
		OutputsDir: outputsDir,
		Remote:     mustFlag(cmd, "remote"),
		Redis:      redisClient,
	}, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		srv.Shutdown()
	}()

	return srv.ListenAndServe()
}
