// Package runner executes a repo's test suite for the framework the
// scanner detected and reports the raw outcome back to the orchestrator.
package runner

// commands maps a framework name to the command line that runs its test
// suite. Frameworks not listed fall back to pytest, matching the
// original implementation's default.
var commands = map[string][]string{
	"pytest": {"python", "-m", "pytest", "--tb=short", "-q", "--no-header"},

	"jest":       {"npx", "jest", "--no-coverage", "--verbose"},
	"vitest":     {"npx", "vitest", "run", "--reporter=verbose"},
	"mocha":      {"npx", "mocha", "--recursive"},
	"ava":        {"npx", "ava", "--verbose"},
	"tap":        {"npx", "tap"},
	"jasmine":    {"npx", "jasmine"},
	"cypress":    {"npx", "cypress", "run"},
	"playwright": {"npx", "playwright", "test"},
	"npm-test":   {"npm", "test", "--", "--no-coverage"},

	"hardhat":    {"npx", "hardhat", "test"},
	"truffle":    {"npx", "truffle", "test"},
	"forge-test": {"forge", "test", "-vv"},

	"dotnet-test": {"dotnet", "test", "--verbosity", "normal"},

	"maven":  {"mvn", "test", "-B"},
	"gradle": {"./gradlew", "test"},

	"sbt-test": {"sbt", "test"},

	"go-test": {"go", "test", "-v", "./..."},

	"cargo-test": {"cargo", "test"},

	"rspec":    {"bundle", "exec", "rspec"},
	"minitest": {"bundle", "exec", "rake", "test"},
	"bundler":  {"bundle", "exec", "rake", "test"},

	"phpunit": {"./vendor/bin/phpunit"},

	"swift-test": {"swift", "test"},

	"dart-test":    {"dart", "test"},
	"flutter-test": {"flutter", "test"},

	"mix-test": {"mix", "test"},

	"cabal-test": {"cabal", "test"},
	"stack-test": {"stack", "test"},

	"lein-test": {"lein", "test"},
	"clj-test":  {"clojure", "-M:test"},

	"busted": {"busted", "--verbose"},

	"testthat": {"Rscript", "-e", "testthat::test_dir('tests')"},

	"prove": {"prove", "-v", "-r", "t"},

	"julia-test": {"julia", "--project=.", "-e", "using Pkg; Pkg.test()"},

	"zig-test": {"zig", "build", "test"},

	"nim-test": {"nimble", "test"},

	"ctest":     {"ctest", "--test-dir", "build", "--output-on-failure"},
	"make-test": {"make", "test"},
}

func commandFor(framework string) []string {
	if cmd, ok := commands[framework]; ok {
		return cmd
	}
	return commands["pytest"]
}

var nodeFrameworks = set("jest", "vitest", "mocha", "ava", "tap", "jasmine",
	"cypress", "playwright", "npm-test", "hardhat", "truffle")

var dotnetFrameworks = set("dotnet-test")
var rubyFrameworks = set("rspec", "minitest", "bundler")
var phpFrameworks = set("phpunit")
var elixirFrameworks = set("mix-test")
var dartFrameworks = set("dart-test", "flutter-test")

func set(vals ...string) map[string]bool {
	m := make(map[string]bool, len(vals))
	for _, v := range vals {
		m[v] = true
	}
	return m
}
