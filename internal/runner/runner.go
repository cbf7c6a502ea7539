package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// installTimeout bounds dependency-installation steps (npm install,
// dotnet restore/build, bundle install, ...); testTimeout bounds the
// test-suite invocation itself.
const (
	installTimeout = 120 * time.Second
	testTimeout    = 120 * time.Second
)

// Result is the raw outcome of executing a repo's test suite: the
// framework actually used (which differs from the one passed in when a
// fallback kicked in), the combined stdout/stderr, the process exit code,
// and whether the run timed out.
type Result struct {
	Framework string
	Output    string
	ExitCode  int
	TimedOut  bool
}

// Passed reports whether the run exited zero.
func (r Result) Passed() bool { return r.ExitCode == 0 }

// Run installs dependencies if the framework needs them, then executes
// the framework's test command, applying the same JS/TS fallback ladder
// as the original implementation: npm test, then a direct pytest probe
// for mixed-language repos.
func Run(ctx context.Context, repoDir, framework, language string) (Result, error) {
	if framework == "" || framework == "unknown" {
		if language == "javascript" || language == "typescript" {
			framework = resolveJSFramework(repoDir)
		} else {
			framework = "pytest"
		}
	}

	switch {
	case nodeFrameworks[framework]:
		ensureNodeDeps(ctx, repoDir)
	case dotnetFrameworks[framework]:
		ensureDotnetDeps(ctx, repoDir)
	case rubyFrameworks[framework]:
		ensureRubyDeps(ctx, repoDir)
	case phpFrameworks[framework]:
		ensurePHPDeps(ctx, repoDir)
	case elixirFrameworks[framework]:
		ensureElixirDeps(ctx, repoDir)
	case dartFrameworks[framework]:
		ensureDartDeps(ctx, repoDir)
	}

	output, code, timedOut := runCmd(ctx, commandFor(framework), repoDir, testTimeout, extraEnvFor(framework, repoDir)...)

	if (code == 5 || code == 127) && (language == "javascript" || language == "typescript") && framework != "npm-test" {
		fallbackOutput, fallbackCode, fallbackTimedOut := runCmd(ctx, []string{"npm", "test"}, repoDir, testTimeout, extraEnvFor("npm-test", repoDir)...)
		if len(fallbackOutput) > len(output) || fallbackCode == 0 {
			output, code, timedOut = fallbackOutput, fallbackCode, fallbackTimedOut
			framework = "npm-test"
		}
	}

	if (code == 5 || code == 127) && len(output) < 100 && (language == "javascript" || language == "typescript") {
		if hasPythonTestFiles(repoDir) {
			pyOutput, pyCode, pyTimedOut := runCmd(ctx, commandFor("pytest"), repoDir, testTimeout, extraEnvFor("pytest", repoDir)...)
			if len(pyOutput) > len(output) {
				output, code, timedOut = pyOutput, pyCode, pyTimedOut
				framework = "pytest"
			}
		}
	}

	return Result{Framework: framework, Output: output, ExitCode: code, TimedOut: timedOut}, nil
}

// extraEnvFor adds the scope-limited environment variables a framework's
// toolchain expects on top of the always-on CI/Python vars: dotnet's
// telemetry opt-out for dotnet-test, Mix's test environment for
// mix-test.
func extraEnvFor(framework, repoDir string) []string {
	switch framework {
	case "dotnet-test":
		return []string{"DOTNET_CLI_TELEMETRY_OPTOUT=1"}
	case "mix-test":
		return []string{"MIX_ENV=test"}
	}
	return nil
}

func runCmd(ctx context.Context, cmd []string, cwd string, timeout time.Duration, extraEnv ...string) (string, int, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c := exec.CommandContext(ctx, cmd[0], cmd[1:]...)
	c.Dir = cwd
	c.Env = append(os.Environ(), "CI=true", "PYTHONDONTWRITEBYTECODE=1", "PYTHONPATH="+cwd)
	c.Env = append(c.Env, extraEnv...)

	var buf bytes.Buffer
	c.Stdout = &buf
	c.Stderr = &buf

	err := c.Run()
	if ctx.Err() == context.DeadlineExceeded {
		return fmt.Sprintf("ERROR: Test execution timed out after %s", timeout), 1, true
	}
	if err != nil {
		if _, ok := err.(*exec.ExitError); !ok {
			return fmt.Sprintf("ERROR: Test command not found — %s", cmd[0]), 127, false
		}
	}
	return buf.String(), c.ProcessState.ExitCode(), false
}

func resolveJSFramework(repoDir string) string {
	pkg, err := readPackageJSON(repoDir)
	if err != nil {
		return "npm-test"
	}
	for dep := range mergeDeps(pkg) {
		switch dep {
		case "vitest":
			return "vitest"
		case "jest", "@jest/core", "react-scripts":
			return "jest"
		case "mocha":
			return "mocha"
		}
	}
	return "npm-test"
}

func hasPythonTestFiles(repoDir string) bool {
	found := false
	_ = filepath.WalkDir(repoDir, func(path string, d os.DirEntry, err error) error {
		if err != nil || found {
			return nil
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if filepath.Ext(name) == ".py" && (strings.HasPrefix(name, "test_") || strings.HasSuffix(name, "_test.py")) {
			found = true
		}
		return nil
	})
	return found
}

func ensureNodeDeps(ctx context.Context, repoDir string) {
	if _, err := os.Stat(filepath.Join(repoDir, "package.json")); err != nil {
		return
	}
	if _, err := os.Stat(filepath.Join(repoDir, "node_modules")); err == nil {
		return
	}
	runCmd(ctx, []string{"npm", "install", "--no-audit", "--no-fund", "--prefer-offline"}, repoDir, installTimeout)
}

func ensureDotnetDeps(ctx context.Context, repoDir string) {
	env := extraEnvFor("dotnet-test", repoDir)
	if _, _, timedOut := runCmd(ctx, []string{"dotnet", "restore"}, repoDir, installTimeout*1, env...); timedOut {
		return
	}
	runCmd(ctx, []string{"dotnet", "build", "--no-restore"}, repoDir, installTimeout*1+60*time.Second, env...)
}

func ensureRubyDeps(ctx context.Context, repoDir string) {
	if _, err := os.Stat(filepath.Join(repoDir, "Gemfile")); err != nil {
		return
	}
	runCmd(ctx, []string{"bundle", "install"}, repoDir, installTimeout)
}

func ensurePHPDeps(ctx context.Context, repoDir string) {
	if _, err := os.Stat(filepath.Join(repoDir, "composer.json")); err != nil {
		return
	}
	runCmd(ctx, []string{"composer", "install"}, repoDir, installTimeout)
}

func ensureElixirDeps(ctx context.Context, repoDir string) {
	if _, err := os.Stat(filepath.Join(repoDir, "mix.exs")); err != nil {
		return
	}
	runCmd(ctx, []string{"mix", "deps.get"}, repoDir, installTimeout, extraEnvFor("mix-test", repoDir)...)
}

func ensureDartDeps(ctx context.Context, repoDir string) {
	if _, err := os.Stat(filepath.Join(repoDir, "pubspec.yaml")); err != nil {
		return
	}
	runCmd(ctx, []string{"dart", "pub", "get"}, repoDir, installTimeout)
}
