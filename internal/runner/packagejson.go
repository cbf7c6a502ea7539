package runner

import (
	"encoding/json"
	"os"
	"path/filepath"
)

type packageJSON struct {
	Dependencies    map[string]string `json:"dependencies"`
	DevDependencies map[string]string `json:"devDependencies"`
}

func readPackageJSON(repoDir string) (packageJSON, error) {
	var pkg packageJSON
	b, err := os.ReadFile(filepath.Join(repoDir, "package.json"))
	if err != nil {
		return pkg, err
	}
	if err := json.Unmarshal(b, &pkg); err != nil {
		return pkg, err
	}
	return pkg, nil
}

func mergeDeps(pkg packageJSON) map[string]string {
	out := make(map[string]string, len(pkg.Dependencies)+len(pkg.DevDependencies))
	for k, v := range pkg.Dependencies {
		out[k] = v
	}
	for k, v := range pkg.DevDependencies {
		out[k] = v
	}
	return out
}
