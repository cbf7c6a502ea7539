package scorer

import (
	"bytes"
	"fmt"
	"strings"
)

// GenerateReportPDF renders a single-page PDF summary of results: no
// pack example imports a PDF library, so this writes the minimal valid
// PDF object structure directly (one page, one Helvetica text stream) —
// the standard-library-only path is a deliberate choice, not an oversight
// (see DESIGN.md).
func GenerateReportPDF(results Results) ([]byte, error) {
	lines := reportLines(results)

	var content bytes.Buffer
	content.WriteString("BT /F1 12 Tf 72 760 Td 14 TL\n")
	for _, line := range lines {
		fmt.Fprintf(&content, "(%s) Tj T*\n", escapePDFString(line))
	}
	content.WriteString("ET")

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, 0, 5)
	writeObj := func(n int, body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", n, body)
	}

	writeObj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	writeObj(2, "<< /Type /Pages /Kids [3 0 R] /Count 1 >>")
	writeObj(3, "<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 4 0 R >> >> /MediaBox [0 0 612 792] /Contents 5 0 R >>")
	writeObj(4, "<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>")
	writeObj(5, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", content.Len(), content.String()))

	xrefStart := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF", len(offsets)+1, xrefStart)

	return buf.Bytes(), nil
}

func reportLines(results Results) []string {
	lines := []string{
		"Repair Run Report",
		fmt.Sprintf("Run: %s", results.RunID),
		fmt.Sprintf("Repo: %s", results.RepoURL),
		fmt.Sprintf("Branch: %s", results.HealBranch),
		fmt.Sprintf("Final status: %s", results.FinalStatus),
		fmt.Sprintf("Failures: %d  Fixes applied: %d", results.TotalFailures, results.TotalFixes),
		fmt.Sprintf("Elapsed: %.1fs", results.TotalTimeSecs),
		fmt.Sprintf("Score: %.1f (base=%.1f speed=%.1f penalty=%.1f)",
			results.Score.Total, results.Score.Base, results.Score.SpeedBonus, results.Score.EfficiencyPenalty),
		"",
		"CI log:",
	}
	for _, cr := range results.CILog {
		lines = append(lines, fmt.Sprintf("  iter %d: %s regression=%v", cr.Iteration, cr.Status, cr.Regression))
	}
	return lines
}

func escapePDFString(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
