// Package scanner detects a cloned repo's dominant language and its test
// framework, and enumerates the files that framework will run.
package scanner

// extLang maps a file extension (including the leading dot) to the
// language bucket it counts toward when the scanner tallies a repo's
// dominant language.
var extLang = map[string]string{
	".py": "python", ".pyx": "python", ".pyi": "python",

	".js": "javascript", ".jsx": "javascript", ".mjs": "javascript", ".cjs": "javascript",
	".ts": "typescript", ".tsx": "typescript", ".mts": "typescript", ".cts": "typescript",
	".vue": "javascript", ".svelte": "javascript",

	".cs": "csharp", ".fs": "fsharp", ".fsi": "fsharp", ".vb": "vbnet",

	".java": "java", ".kt": "kotlin", ".kts": "kotlin", ".scala": "scala",

	".go": "go",

	".rs": "rust",

	".rb": "ruby", ".rake": "ruby",

	".php": "php",

	".swift": "swift", ".m": "objc", ".mm": "objc",

	".c": "c", ".h": "c", ".cpp": "cpp", ".cc": "cpp", ".cxx": "cpp",
	".hpp": "cpp", ".hh": "cpp",

	".dart": "dart",

	".ex": "elixir", ".exs": "elixir", ".erl": "erlang",

	".hs": "haskell", ".lhs": "haskell",

	".lua": "lua",

	".r": "r", ".R": "r",

	".pl": "perl", ".pm": "perl", ".t": "perl",

	".sh": "shell", ".bash": "shell", ".zsh": "shell",

	".clj": "clojure", ".cljs": "clojure", ".cljc": "clojure",

	".groovy": "groovy",

	".zig": "zig",

	".nim": "nim",

	".jl": "julia",

	".sol": "solidity",
}

// globFramework is one (glob, framework) candidate for a language, in
// priority order.
type globFramework struct {
	Glob      string
	Framework string
}

// detectionMap is the per-language ordered list of test-file glob
// patterns and the framework each implies.
var detectionMap = map[string][]globFramework{
	"python": {
		{"**/test_*.py", "pytest"},
		{"**/tests.py", "pytest"},
		{"**/*_test.py", "pytest"},
		{"**/tests/**/*.py", "pytest"},
	},
	"javascript": {
		{"**/*.test.js", "jest"},
		{"**/*.spec.js", "jest"},
		{"**/*.test.mjs", "jest"},
		{"**/*.test.jsx", "jest"},
		{"**/test/**/*.js", "mocha"},
		{"**/__tests__/**/*.js", "jest"},
	},
	"typescript": {
		{"**/*.test.ts", "jest"},
		{"**/*.spec.ts", "jest"},
		{"**/*.test.tsx", "jest"},
		{"**/*.spec.tsx", "jest"},
		{"**/test/**/*.ts", "vitest"},
		{"**/__tests__/**/*.ts", "jest"},
	},
	"csharp": {
		{"**/*Tests.cs", "dotnet-test"},
		{"**/*Test.cs", "dotnet-test"},
		{"**/*Spec.cs", "dotnet-test"},
		{"**/Tests/**/*.cs", "dotnet-test"},
		{"**/*.Tests/**/*.cs", "dotnet-test"},
		{"**/*.Test/**/*.cs", "dotnet-test"},
	},
	"fsharp": {
		{"**/*Tests.fs", "dotnet-test"},
		{"**/*Test.fs", "dotnet-test"},
	},
	"vbnet": {
		{"**/*Tests.vb", "dotnet-test"},
		{"**/*Test.vb", "dotnet-test"},
	},
	"java": {
		{"**/src/test/**/*.java", "maven"},
		{"**/*Test.java", "maven"},
		{"**/*Tests.java", "maven"},
		{"**/*Spec.java", "maven"},
	},
	"kotlin": {
		{"**/src/test/**/*.kt", "gradle"},
		{"**/*Test.kt", "gradle"},
		{"**/*Tests.kt", "gradle"},
		{"**/*Spec.kt", "gradle"},
	},
	"scala": {
		{"**/src/test/**/*.scala", "sbt-test"},
		{"**/*Spec.scala", "sbt-test"},
		{"**/*Test.scala", "sbt-test"},
	},
	"go": {
		{"**/*_test.go", "go-test"},
	},
	"rust": {
		{"**/tests/**/*.rs", "cargo-test"},
		{"**/src/**/*.rs", "cargo-test"},
	},
	"ruby": {
		{"**/spec/**/*_spec.rb", "rspec"},
		{"**/test/**/*_test.rb", "minitest"},
		{"**/test/**/*.rb", "minitest"},
	},
	"php": {
		{"**/tests/**/*Test.php", "phpunit"},
		{"**/tests/**/*.php", "phpunit"},
		{"**/*Test.php", "phpunit"},
	},
	"swift": {
		{"**/Tests/**/*.swift", "swift-test"},
		{"**/*Tests.swift", "swift-test"},
	},
	"dart": {
		{"**/test/**/*_test.dart", "dart-test"},
		{"**/*_test.dart", "dart-test"},
	},
	"elixir": {
		{"**/test/**/*_test.exs", "mix-test"},
		{"**/*_test.exs", "mix-test"},
	},
	"haskell": {
		{"**/test/**/*.hs", "cabal-test"},
		{"**/Test/**/*.hs", "cabal-test"},
	},
	"c": {
		{"**/test*/**/*.c", "ctest"},
		{"**/*_test.c", "ctest"},
	},
	"cpp": {
		{"**/test*/**/*.cpp", "ctest"},
		{"**/*_test.cpp", "ctest"},
		{"**/*_test.cc", "ctest"},
	},
	"clojure": {
		{"**/test/**/*.clj", "lein-test"},
		{"**/*_test.clj", "lein-test"},
	},
	"lua": {
		{"**/test*/**/*.lua", "busted"},
		{"**/*_spec.lua", "busted"},
	},
	"r": {
		{"**/tests/**/*.R", "testthat"},
		{"**/tests/testthat/**/*.R", "testthat"},
	},
	"perl": {
		{"**/t/**/*.t", "prove"},
		{"**/*.t", "prove"},
	},
	"groovy": {
		{"**/src/test/**/*.groovy", "gradle"},
		{"**/*Test.groovy", "gradle"},
		{"**/*Spec.groovy", "gradle"},
	},
	"julia": {
		{"**/test/**/*.jl", "julia-test"},
		{"**/test/runtests.jl", "julia-test"},
	},
	"zig": {
		{"**/test*.zig", "zig-test"},
	},
	"nim": {
		{"**/tests/**/*.nim", "nim-test"},
		{"**/*_test.nim", "nim-test"},
	},
	"solidity": {
		{"**/test/**/*.sol", "hardhat"},
		{"**/test/**/*.js", "hardhat"},
		{"**/test/**/*.ts", "hardhat"},
	},
}

// projectFileHint is a fallback (glob, language, framework) triple used
// when extension counting finds nothing (e.g. an empty or config-only
// repo).
type projectFileHint struct {
	Glob      string
	Language  string
	Framework string
}

var projectFileHints = []projectFileHint{
	{"**/*.sln", "csharp", "dotnet-test"},
	{"**/*.csproj", "csharp", "dotnet-test"},
	{"**/*.fsproj", "fsharp", "dotnet-test"},
	{"**/*.vbproj", "vbnet", "dotnet-test"},
	{"pom.xml", "java", "maven"},
	{"build.gradle", "java", "gradle"},
	{"build.gradle.kts", "kotlin", "gradle"},
	{"build.sbt", "scala", "sbt-test"},
	{"go.mod", "go", "go-test"},
	{"Cargo.toml", "rust", "cargo-test"},
	{"Gemfile", "ruby", "bundler"},
	{"composer.json", "php", "phpunit"},
	{"Package.swift", "swift", "swift-test"},
	{"pubspec.yaml", "dart", "dart-test"},
	{"mix.exs", "elixir", "mix-test"},
	{"*.cabal", "haskell", "cabal-test"},
	{"stack.yaml", "haskell", "stack-test"},
	{"project.clj", "clojure", "lein-test"},
	{"deps.edn", "clojure", "clj-test"},
	{"*.nimble", "nim", "nim-test"},
	{"Project.toml", "julia", "julia-test"},
	{"build.zig", "zig", "zig-test"},
	{"package.json", "javascript", "npm-test"},
	{"pyproject.toml", "python", "pytest"},
	{"setup.py", "python", "pytest"},
	{"setup.cfg", "python", "pytest"},
	{"requirements.txt", "python", "pytest"},
}

// skipDirs are directory names pruned from both language counting and
// test-file glob matching.
var skipDirs = map[string]bool{
	"node_modules": true, ".git": true, "__pycache__": true, ".tox": true,
	".venv": true, "venv": true, "vendor": true, "dist": true, "build": true,
	"_build": true, ".build": true, ".dart_tool": true, "Pods": true,
	".gradle": true, ".idea": true, ".vs": true, "bin": true, "obj": true,
	"target": true, "_deps": true, "deps": true, "zig-cache": true, "zig-out": true,
}
