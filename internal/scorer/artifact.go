package scorer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// WriteResultsJSON writes results as the run's primary artifact,
// results.json, under outputsDir/<run_id>/.
func WriteResultsJSON(outputsDir string, results Results) (string, error) {
	dir := filepath.Join(outputsDir, results.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create outputs dir: %w", err)
	}
	path := filepath.Join(dir, "results.json")
	body, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("write results.json: %w", err)
	}
	return path, nil
}

// Finalize writes results.json (fatal on failure — it's the primary
// artifact) and then attempts to render report.pdf, which is best-effort:
// a failure there is logged by the caller and does not change the run's
// final_status or score, matching the original scorer node's try/except
// around report generation.
func Finalize(outputsDir string, results Results) (resultsPath string, pdfBytes []byte, pdfErr error) {
	resultsPath, err := WriteResultsJSON(outputsDir, results)
	if err != nil {
		return "", nil, err
	}
	pdfBytes, pdfErr = GenerateReportPDF(results)
	return resultsPath, pdfBytes, pdfErr
}
