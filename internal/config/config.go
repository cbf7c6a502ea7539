// Package config loads CLI/run-start configuration, layering flags over
// environment over file over default, and validates the declarative
// run-start command against a JSON Schema before any repo is cloned.
package config

import (
	"bytes"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/forgeline/healer/internal/model"
)

// Load merges a config file, environment variables (HEALER_ prefix), and
// already-parsed CLI flags, returning a validated RunSpec.
func Load(configPath string, flags *pflag.FlagSet) (model.RunSpec, error) {
	v := viper.New()
	v.SetEnvPrefix("HEALER")
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return model.RunSpec{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return model.RunSpec{}, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	spec := model.RunSpec{
		RunID:           v.GetString("run_id"),
		RepoURL:         v.GetString("repo_url"),
		BaseBranch:      v.GetString("base_branch"),
		TeamName:        v.GetString("team_name"),
		LeaderName:      v.GetString("leader_name"),
		MaxIterations:   v.GetInt("max_iterations"),
		TimeBudgetSec:   v.GetInt("time_budget_secs"),
		UseCompletion:   v.GetBool("use_completion"),
		CompletionModel: v.GetString("completion_model"),
	}

	if err := Validate(spec); err != nil {
		return model.RunSpec{}, err
	}

	return spec.ApplyDefaults(), nil
}

// Validate checks a RunSpec against RunSpecSchema. It round-trips through
// YAML/JSON so callers can build a spec with Go structs while still
// getting schema-grade validation of the wire shape.
func Validate(spec model.RunSpec) error {
	y, err := yaml.Marshal(spec)
	if err != nil {
		return fmt.Errorf("marshal spec: %w", err)
	}
	var asMap map[string]any
	if err := yaml.Unmarshal(y, &asMap); err != nil {
		return fmt.Errorf("normalize spec: %w", err)
	}
	// zero-valued optional fields serialize as present-but-empty under yaml
	// tags without omitempty elsewhere; strip anything falsy so the schema's
	// additionalProperties:false doesn't choke on legitimate zero values.
	pruneEmpty(asMap)

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("runspec.json", bytes.NewReader([]byte(RunSpecSchema))); err != nil {
		return fmt.Errorf("load schema: %w", err)
	}
	schema, err := compiler.Compile("runspec.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(asMap); err != nil {
		return fmt.Errorf("run-start command failed validation: %w", err)
	}
	return nil
}

func pruneEmpty(m map[string]any) {
	for k, v := range m {
		switch val := v.(type) {
		case string:
			if val == "" {
				delete(m, k)
			}
		case int:
			if val == 0 {
				delete(m, k)
			}
		case bool:
			if !val {
				delete(m, k)
			}
		case nil:
			delete(m, k)
		}
	}
}
