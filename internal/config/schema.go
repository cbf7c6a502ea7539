package config

// RunSpecSchema is the JSON Schema a run-start command must satisfy
// before the orchestrator touches the network. Mirrors the fields in
// model.RunSpec.
const RunSpecSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["repo_url"],
  "properties": {
    "run_id": {
      "type": "string"
    },
    "repo_url": {
      "type": "string",
      "minLength": 1,
      "pattern": "^(https://|git@)"
    },
    "base_branch": {
      "type": "string"
    },
    "team_name": {
      "type": "string"
    },
    "leader_name": {
      "type": "string"
    },
    "max_iterations": {
      "type": "integer",
      "minimum": 1,
      "maximum": 100
    },
    "time_budget_secs": {
      "type": "integer",
      "minimum": 1
    },
    "use_completion": {
      "type": "boolean"
    },
    "completion_model": {
      "type": "string"
    }
  },
  "additionalProperties": false
}`
