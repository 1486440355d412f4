package services

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"

	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/domain"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driven"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/core/ports/driving"
	"github.com/mnajjaa/tunisie-valeurs-RAG/internal/logger"
)

// Classification thresholds for structuring raw blocks.
const (
	// titleFontRatio marks a line as a title when its font exceeds the
	// page median by this factor.
	titleFontRatio = 1.2

	// maxBoldTitleLen is the longest bold line still treated as a title.
	maxBoldTitleLen = 120

	// maxMergeTitleLen bounds title merging across consecutive lines.
	maxMergeTitleLen = 80
)

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	pageNumberRe = regexp.MustCompile(`^\d{1,3}$`)
	listPrefixRe = regexp.MustCompile(`^\s*(?:[-*\x{2022}\x{2013}\x{25a0}\x{25cf}\x{00b7}]|\d{1,3}[.)]|[a-zA-Z][.)]|\([a-zA-Z0-9]{1,3}\))\s+`)
)

// StructuringService converts raw extracted blocks into ordered structured
// text blocks per page and records extracted assets for captioning.
type StructuringService struct {
	store     driven.DocumentStore
	extractor driven.PDFExtractor
	runner    *stageRunner
}

// NewStructuringService creates a structuring service.
func NewStructuringService(store driven.DocumentStore, extractor driven.PDFExtractor, runner *stageRunner) *StructuringService {
	return &StructuringService{store: store, extractor: extractor, runner: runner}
}

// Run extracts and structures the document's text. Prior blocks are
// replaced wholesale; success advances the document to parsed.
func (s *StructuringService) Run(ctx context.Context, documentID string) (*driving.StageReport, error) {
	return s.runner.run(ctx, documentID, domain.StageStructuring, s.structure)
}

// structure is the stage work function.
func (s *StructuringService) structure(ctx context.Context, doc *domain.Document) (int, error) {
	if doc.LocalPath == "" {
		return 0, fmt.Errorf("%w: document has no stored PDF", domain.ErrExtraction)
	}
	data, err := os.ReadFile(doc.LocalPath)
	if err != nil {
		return 0, fmt.Errorf("%w: reading original: %v", domain.ErrExtraction, err)
	}

	result, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}

	blocks := structureBlocks(doc.ID, result.Blocks)
	if err := s.store.ReplaceBlocks(ctx, doc.ID, blocks); err != nil {
		return 0, fmt.Errorf("replace blocks: %w", err)
	}

	assets := make([]domain.DocumentAsset, 0, len(result.Assets))
	for _, raw := range result.Assets {
		assets = append(assets, domain.DocumentAsset{
			ID:         uuid.New().String(),
			DocumentID: doc.ID,
			Page:       raw.Page,
			Kind:       raw.Kind,
			LocalPath:  raw.LocalPath,
			Status:     domain.AssetPending,
		})
	}
	if err := s.store.ReplaceAssets(ctx, doc.ID, assets); err != nil {
		return 0, fmt.Errorf("replace assets: %w", err)
	}

	doc.PageCount = result.PageCount
	if err := s.store.SaveDocument(ctx, doc); err != nil {
		return 0, fmt.Errorf("save page count: %w", err)
	}

	logger.Debug("Structured %s: %d blocks, %d assets over %d pages",
		doc.ID, len(blocks), len(assets), result.PageCount)
	return len(blocks), nil
}

// lineBlock is a classified line being accumulated into a block.
type lineBlock struct {
	page     int
	kind     domain.BlockType
	text     string
	fontSize float64
	bold     bool
}

// structureBlocks classifies and merges raw lines into typed blocks.
func structureBlocks(documentID string, raw []driven.RawBlock) []domain.DocumentBlock {
	medians := pageMedianFontSizes(raw)

	var out []domain.DocumentBlock
	var cur *lineBlock

	flush := func() {
		if cur == nil {
			return
		}
		kind := finaliseType(cur.kind, cur.text)
		out = append(out, domain.DocumentBlock{
			ID:         uuid.New().String(),
			DocumentID: documentID,
			Index:      len(out),
			Page:       cur.page,
			Type:       kind,
			Text:       cur.text,
			FontSize:   cur.fontSize,
			Bold:       cur.bold,
		})
		cur = nil
	}

	for _, rb := range raw {
		text := normaliseText(rb.Text)
		if text == "" || pageNumberRe.MatchString(text) {
			continue
		}

		kind := classifyText(text, rb.FontSize, rb.Bold, medians[rb.Page])
		next := lineBlock{page: rb.Page, kind: kind, text: text, fontSize: rb.FontSize, bold: rb.Bold}

		if cur != nil && shouldMerge(cur, &next) {
			cur.text = appendText(cur.text, next.text, kind)
			if next.fontSize > cur.fontSize {
				cur.fontSize = next.fontSize
			}
			cur.bold = cur.bold || next.bold
			continue
		}

		flush()
		cur = &next
	}
	flush()

	return out
}

// pageMedianFontSizes computes the median font size per page, the baseline
// for title detection.
func pageMedianFontSizes(raw []driven.RawBlock) map[int]float64 {
	sizes := make(map[int][]float64)
	for _, rb := range raw {
		if rb.FontSize > 0 {
			sizes[rb.Page] = append(sizes[rb.Page], rb.FontSize)
		}
	}

	medians := make(map[int]float64, len(sizes))
	for page, vals := range sizes {
		sort.Float64s(vals)
		mid := len(vals) / 2
		if len(vals)%2 == 1 {
			medians[page] = vals[mid]
		} else {
			medians[page] = (vals[mid-1] + vals[mid]) / 2
		}
	}
	return medians
}

// classifyText assigns a block type to one raw line.
func classifyText(text string, fontSize float64, bold bool, medianFont float64) domain.BlockType {
	if listPrefixRe.MatchString(text) {
		return domain.BlockListItem
	}

	isTitle := false
	if medianFont > 0 && fontSize > medianFont*titleFontRatio {
		isTitle = true
	} else if bold && len(text) < maxBoldTitleLen {
		isTitle = true
	}

	if isTitle {
		if startsWithLower(text) {
			return domain.BlockParagraph
		}
		if len(text) > maxMergeTitleLen && uppercaseRatio(text) < 0.5 {
			return domain.BlockParagraph
		}
		return domain.BlockTitle
	}
	return domain.BlockParagraph
}

// finaliseType downgrades long mostly-lowercase titles accumulated through
// merging.
func finaliseType(kind domain.BlockType, text string) domain.BlockType {
	if kind == domain.BlockTitle && len(text) > maxMergeTitleLen && uppercaseRatio(text) < 0.5 {
		return domain.BlockParagraph
	}
	return kind
}

// shouldMerge decides whether the next line continues the current block.
func shouldMerge(cur, next *lineBlock) bool {
	if cur.kind != next.kind {
		return false
	}
	switch next.kind {
	case domain.BlockTitle:
		return cur.page == next.page && len(cur.text) <= maxMergeTitleLen && len(next.text) <= maxMergeTitleLen
	case domain.BlockListItem:
		return true
	case domain.BlockParagraph:
		// A sentence end followed by a capitalised start is a new block.
		return !(strings.HasSuffix(strings.TrimRight(cur.text, " "), ".") && startsWithUpper(next.text))
	}
	return false
}

// appendText joins a continuation line onto a block.
func appendText(base, addition string, kind domain.BlockType) string {
	if kind == domain.BlockListItem {
		return base + "\n" + addition
	}
	return normaliseText(base + " " + addition)
}

// normaliseText collapses whitespace runs and trims.
func normaliseText(text string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func startsWithLower(text string) bool {
	for _, r := range text {
		return unicode.IsLower(r)
	}
	return false
}

func startsWithUpper(text string) bool {
	for _, r := range text {
		return unicode.IsUpper(r)
	}
	return false
}

func uppercaseRatio(text string) float64 {
	letters, upper := 0, 0
	for _, r := range text {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	if letters == 0 {
		return 0
	}
	return float64(upper) / float64(letters)
}
