package scanner

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/forgeline/healer/internal/gitutil"
)

// Result is what the Scanner node hands to the Runner: the detected
// language, the test framework to invoke, and the test files that
// framework will exercise.
type Result struct {
	Language  string
	Framework string
	TestFiles []string
}

// Scan walks repoDir, detects its dominant language by counting file
// extensions (skipping noisy directories), then resolves a test
// framework for that language via the glob detection table, falling back
// to project-file hints when extension counting finds nothing.
func Scan(repoDir string) (Result, error) {
	lang, err := detectLanguage(repoDir)
	if err != nil {
		return Result{}, err
	}
	framework, files := detectFramework(repoDir, lang)
	return Result{Language: lang, Framework: framework, TestFiles: files}, nil
}

// Acquire gets a fresh, depth-1 working copy of repoURL at workDir, then
// creates and checks out healBranch. Any pre-existing directory at
// workDir is removed first, so a retried run never scans stale state
// left over from a previous attempt. A clone failure is fatal for the
// run — the caller should not proceed to Scan.
func Acquire(repoURL, workDir, baseBranch, healBranch string) error {
	if err := os.RemoveAll(workDir); err != nil {
		return fmt.Errorf("remove stale working directory: %w", err)
	}
	if err := gitutil.ShallowClone(repoURL, workDir, baseBranch); err != nil {
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}
	if err := gitutil.CheckoutNewOrExisting(workDir, healBranch); err != nil {
		return fmt.Errorf("checkout healing branch %s: %w", healBranch, err)
	}
	return nil
}

func detectLanguage(repoDir string) (string, error) {
	counts := map[string]int{}
	err := filepath.WalkDir(repoDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if skipDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if pathHasSkippedDir(repoDir, path) {
			return nil
		}
		ext := filepath.Ext(path)
		if lang, ok := extLang[ext]; ok {
			counts[lang]++
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if js, ok := counts["javascript"]; ok {
		if ts, ok2 := counts["typescript"]; ok2 {
			counts["typescript"] = ts + js
			delete(counts, "javascript")
		}
	}

	if len(counts) > 0 {
		best, bestCount := "", -1
		for lang, n := range counts {
			if n > bestCount || (n == bestCount && lang < best) {
				best, bestCount = lang, n
			}
		}
		return best, nil
	}

	for _, hint := range projectFileHints {
		matches, err := doublestar.Glob(os.DirFS(repoDir), hint.Glob)
		if err == nil && len(matches) > 0 {
			return hint.Language, nil
		}
	}

	return "python", nil
}

func detectFramework(repoDir, language string) (string, []string) {
	fsys := os.DirFS(repoDir)
	for _, gf := range detectionMap[language] {
		matches, err := doublestar.Glob(fsys, gf.Glob)
		if err != nil {
			continue
		}
		filtered := matches[:0]
		for _, m := range matches {
			if !pathHasSkippedDir(repoDir, filepath.Join(repoDir, m)) {
				filtered = append(filtered, m)
			}
		}
		if len(filtered) > 0 {
			sort.Strings(filtered)
			return gf.Framework, filtered
		}
	}
	return configFileFramework(repoDir, language), nil
}

// configFileFramework checks for framework-identifying config files when
// no test files were found by glob — a project may declare its test
// runner without test files being checked in yet, or the glob table
// may simply miss an unconventional layout.
func configFileFramework(repoDir, language string) string {
	checks := []struct {
		file      string
		framework string
	}{
		{"pytest.ini", "pytest"},
		{"tox.ini", "pytest"},
		{"jest.config.js", "jest"},
		{"jest.config.ts", "jest"},
		{"jest.config.mjs", "jest"},
		{"jest.config.cjs", "jest"},
		{"vitest.config.ts", "vitest"},
		{"vitest.config.js", "vitest"},
		{".mocharc.yml", "mocha"},
		{".mocharc.json", "mocha"},
		{".mocharc.js", "mocha"},
		{".rspec", "rspec"},
		{"phpunit.xml", "phpunit"},
		{"phpunit.xml.dist", "phpunit"},
		{"hardhat.config.js", "hardhat"},
	}
	for _, c := range checks {
		if _, err := os.Stat(filepath.Join(repoDir, c.file)); err == nil {
			return c.framework
		}
	}
	if language == "javascript" || language == "typescript" {
		if fw, ok := packageJSONFramework(repoDir); ok {
			return fw
		}
	}
	return defaultFrameworkFor(language)
}

// npmFrameworkDeps maps a package.json dependency name to the test
// framework its presence implies, checked before falling back to a
// bare "scripts.test" hint.
var npmFrameworkDeps = map[string]string{
	"jest":                      "jest",
	"@jest/core":                "jest",
	"react-scripts":             "jest",
	"vitest":                    "vitest",
	"mocha":                     "mocha",
	"ava":                       "ava",
	"tap":                       "tap",
	"jasmine":                   "jasmine",
	"cypress":                   "cypress",
	"playwright":                "playwright",
	"@playwright/test":          "playwright",
	"@vue/test-utils":           "vitest",
	"@testing-library/jest-dom": "jest",
	"@testing-library/react":    "jest",
	"@testing-library/vue":      "vitest",
}

// packageJSONFramework reads package.json's dependency and script
// fields for a test-framework hint, the last JS/TS-specific detection
// step before configFileFramework falls back to defaultFrameworkFor.
func packageJSONFramework(repoDir string) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(repoDir, "package.json"))
	if err != nil {
		return "", false
	}
	var pkg struct {
		Dependencies     map[string]string `json:"dependencies"`
		DevDependencies  map[string]string `json:"devDependencies"`
		PeerDependencies map[string]string `json:"peerDependencies"`
		Scripts          map[string]string `json:"scripts"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return "", false
	}

	for dep, fw := range npmFrameworkDeps {
		if _, ok := pkg.Dependencies[dep]; ok {
			return fw, true
		}
		if _, ok := pkg.DevDependencies[dep]; ok {
			return fw, true
		}
		if _, ok := pkg.PeerDependencies[dep]; ok {
			return fw, true
		}
	}

	testScript := strings.ToLower(pkg.Scripts["test"])
	switch {
	case strings.Contains(testScript, "vitest"):
		return "vitest", true
	case strings.Contains(testScript, "jest"):
		return "jest", true
	case strings.Contains(testScript, "mocha"):
		return "mocha", true
	}
	if strings.TrimSpace(pkg.Scripts["test"]) != "" {
		return "npm-test", true
	}
	return "", false
}

// defaultFrameworkFor is the last-resort framework choice when nothing
// else in the repo hints at one, keyed by the project-file table's own
// framework assignment for that language.
func defaultFrameworkFor(language string) string {
	for _, hint := range projectFileHints {
		if hint.Language == language {
			return hint.Framework
		}
	}
	return "pytest"
}

func pathHasSkippedDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if skipDirs[part] {
			return true
		}
	}
	return false
}
