// File: internal/assemble/assemble.go

// Package assemble combines per-lesson artifacts into the single course-level
// outputs, ordered by lesson sequence index.
package assemble

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/xkilldash9x/coursepack/internal/pipeline"
)

// Assembler merges lesson artifacts into course outputs.
type Assembler struct {
	logger *zap.Logger
}

// New creates an Assembler.
func New(logger *zap.Logger) *Assembler {
	return &Assembler{logger: logger.Named("assemble")}
}

// MergePDFs merges every successful lesson PDF into outPath in ascending
// sequence-index order. With nothing to merge it returns an empty path and
// no error; a course with zero PDFs is a reportable outcome, not a crash.
func (a *Assembler) MergePDFs(artifacts []pipeline.Artifact, outPath string) (string, error) {
	var inputs []string
	for _, art := range sortedByIndex(artifacts) {
		if art.Err == nil && art.PDFPath != "" {
			inputs = append(inputs, art.PDFPath)
		}
	}
	if len(inputs) == 0 {
		a.logger.Warn("No lesson PDFs to merge.")
		return "", nil
	}

	if err := api.MergeCreateFile(inputs, outPath, false, nil); err != nil {
		return "", fmt.Errorf("merging %d lesson PDFs: %w", len(inputs), err)
	}
	a.logger.Info("Merged course PDF written.",
		zap.String("path", outPath), zap.Int("lessons", len(inputs)))
	return outPath, nil
}

// WriteText concatenates every successful lesson's text block into outPath
// in ascending sequence-index order. With nothing to write it returns an
// empty path and no error.
func (a *Assembler) WriteText(artifacts []pipeline.Artifact, outPath string) (string, error) {
	var blocks []string
	for _, art := range sortedByIndex(artifacts) {
		if art.Err == nil && art.TextBlock != "" {
			blocks = append(blocks, art.TextBlock)
		}
	}
	if len(blocks) == 0 {
		a.logger.Warn("No lesson text to combine.")
		return "", nil
	}

	if err := os.WriteFile(outPath, []byte(strings.Join(blocks, "")), 0o644); err != nil {
		return "", fmt.Errorf("writing combined course text: %w", err)
	}
	a.logger.Info("Combined course text written.",
		zap.String("path", outPath), zap.Int("lessons", len(blocks)))
	return outPath, nil
}

func sortedByIndex(artifacts []pipeline.Artifact) []pipeline.Artifact {
	out := make([]pipeline.Artifact, len(artifacts))
	copy(out, artifacts)
	sort.Slice(out, func(i, j int) bool { return out[i].Index < out[j].Index })
	return out
}
