package synthesizer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/forgeline/healer/internal/model"
)

// ruleConfidence/completionConfidence are the two confidence levels a
// synthesized fix can carry, matching the original's fixed-point scoring
// for a rule-based patch versus a completion-sourced one.
const (
	ruleConfidence       = 0.95
	completionConfidence = 0.75
)

// manifestNames is the retarget/fallback order for IMPORT failures
// without a usable source-level target: requirements.txt first, then
// package.json.
var manifestNames = []string{"requirements.txt", "package.json"}

func findManifest(repoDir string) (string, bool) {
	for _, name := range manifestNames {
		p := filepath.Join(repoDir, name)
		if _, err := os.Stat(p); err == nil {
			return name, true
		}
	}
	return "", false
}

func fileExistsInRepo(repoDir, relPath string) bool {
	if relPath == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(repoDir, relPath))
	return err == nil
}

// Process runs the full per-failure synthesis pipeline: guard
// retargeting, the rule path, the completion fallback, and — for IMPORT
// failures only — a manifest-level fallback when neither path patched
// the original source target. It reads and writes files under repoDir
// directly and returns a FixRecord ready for the Publisher.
func (s *Synthesizer) Process(ctx context.Context, repoDir, language string, failure model.TestFailure) model.FixRecord {
	rec := model.FixRecord{
		FailureID: failure.ID,
		FilePath:  failure.File,
		Line:      failure.Line,
		BugType:   failure.BugType,
		Status:    model.FixFailed,
	}

	// Guard: an IMPORT failure with no resolvable source target retargets
	// to a dependency manifest, or is skipped outright.
	if failure.BugType == model.BugImport && !fileExistsInRepo(repoDir, failure.File) {
		manifest, ok := findManifest(repoDir)
		if !ok {
			rec.Status = model.FixSkipped
			rec.Description = "no source file or dependency manifest to target for import failure"
			return rec
		}
		failure.File = manifest
		rec.FilePath = manifest
	}

	fullPath := filepath.Join(repoDir, failure.File)
	content, err := os.ReadFile(fullPath)
	if err != nil {
		rec.Status = model.FixFailed
		rec.ErrorMessage = "could not read target file: " + err.Error()
		return rec
	}
	original := string(content)

	if fix, ok := ApplyRule(repoDir, failure, original); ok {
		return s.applyFix(rec, fullPath, original, fix.NewContent, fix.Description, true, ruleConfidence)
	}

	if result, ok := s.Synthesize(ctx, repoDir, failure, original, language); ok {
		return s.applyFix(rec, fullPath, original, result.NewContent, result.Description, false, completionConfidence)
	}

	// Manifest fallback: only for IMPORT, and only when the source-level
	// attempt above (not a guard retarget, which already targets the
	// manifest) came up empty.
	if failure.BugType == model.BugImport && filepath.Base(failure.File) != "requirements.txt" && filepath.Base(failure.File) != "package.json" {
		if manifest, ok := findManifest(repoDir); ok {
			manifestPath := filepath.Join(repoDir, manifest)
			manifestContent, err := os.ReadFile(manifestPath)
			if err == nil {
				manifestFailure := failure
				manifestFailure.File = manifest
				if fix, ok := ApplyRule(repoDir, manifestFailure, string(manifestContent)); ok {
					rec.FilePath = manifest
					return s.applyFix(rec, manifestPath, string(manifestContent), fix.NewContent, fix.Description, true, ruleConfidence)
				}
			}
		}
	}

	rec.Status = model.FixFailed
	rec.Description = "no rule or completion fix available for this failure"
	return rec
}

func (s *Synthesizer) applyFix(rec model.FixRecord, fullPath, original, fixed, description string, ruleBased bool, confidence float64) model.FixRecord {
	if err := os.WriteFile(fullPath, []byte(fixed), 0o644); err != nil {
		rec.Status = model.FixFailed
		rec.ErrorMessage = "could not write patched file: " + err.Error()
		return rec
	}
	rec.Status = model.FixApplied
	rec.Description = description
	rec.OriginalSnippet = truncate(original, maxFileChars)
	rec.FixedSnippet = truncate(fixed, maxFileChars)
	rec.RuleBased = ruleBased
	rec.Confidence = confidence
	if s.Model != "" && !ruleBased {
		rec.ModelIdentity = s.Model
	}
	return rec
}
