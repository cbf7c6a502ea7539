package ciwatcher

import "fmt"

// workflowTemplates holds a minimal GitHub-Actions-shaped CI workflow per
// language, good enough to give a repo with no CI at all something to
// report back on the next poll.
var workflowTemplates = map[string]string{
	"python": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: actions/setup-python@v5\n        with:\n          python-version: '3.12'\n      - run: pip install -r requirements.txt || true\n      - run: pytest\n",
	"go":     "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: actions/setup-go@v5\n        with:\n          go-version: '1.22'\n      - run: go test ./...\n",
	"javascript": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: actions/setup-node@v4\n        with:\n          node-version: '20'\n      - run: npm install\n      - run: npm test\n",
	"typescript": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: actions/setup-node@v4\n        with:\n          node-version: '20'\n      - run: npm install\n      - run: npm test\n",
	"ruby": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: ruby/setup-ruby@v1\n      - run: bundle install\n      - run: bundle exec rspec\n",
	"java": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - uses: actions/setup-java@v4\n        with:\n          distribution: temurin\n          java-version: '21'\n      - run: mvn -B test\n",
	"rust": "name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - run: cargo test\n",
}

// WorkflowPath is the standard location a bootstrapped workflow is
// written to, relative to the repo root.
const WorkflowPath = ".github/workflows/healer-ci.yml"

// BootstrapWorkflow returns the minimal CI workflow content for language.
// A language with no dedicated template gets a placeholder workflow whose
// only step echoes that no template exists for it.
func BootstrapWorkflow(language string) string {
	if tmpl, ok := workflowTemplates[language]; ok {
		return tmpl
	}
	return fmt.Sprintf("name: ci\non: [push]\njobs:\n  test:\n    runs-on: ubuntu-latest\n    steps:\n      - uses: actions/checkout@v4\n      - run: echo 'no CI template for %s; add one manually'\n", language)
}
