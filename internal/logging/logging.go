// Package logging builds the per-run structured logger every stage of a
// repair run writes through.
package logging

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger writing to stderr, pre-populated with the
// fields that should appear on every line emitted during a run.
func New(runID, teamName, branchName string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stderr"}
	cfg.ErrorOutputPaths = []string{"stderr"}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	fields := []zap.Field{zap.String("run_id", runID)}
	if teamName != "" {
		fields = append(fields, zap.String("team_name", teamName))
	}
	if branchName != "" {
		fields = append(fields, zap.String("branch_name", branchName))
	}
	return logger.With(fields...), nil
}

// NewCLI builds a logger suited for interactive CLI use: console-encoded,
// no run context, lower verbosity by default.
func NewCLI(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if !verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	cfg.DisableStacktrace = true
	return cfg.Build()
}
