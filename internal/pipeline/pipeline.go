// Package pipeline orchestrates one upload batch: concurrent document
// extraction under a bounded fan-out, deterministic merge, field parsing,
// bank analysis, and reconciliation into a single ApplicationRecord.
package pipeline

import (
	"context"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/appparser"
	"github.com/brokerkit/fundmatch/internal/bankanalysis"
	"github.com/brokerkit/fundmatch/internal/extraction"
	"github.com/brokerkit/fundmatch/internal/models"
	"github.com/brokerkit/fundmatch/internal/reconcile"
	"github.com/brokerkit/fundmatch/internal/remote"
)

// bankFileHints route a document to the bank analyzer by filename.
var bankFileHints = []string{"statement", "bank", "checking", "account"}

// Processor runs the extraction-to-record pipeline for upload batches.
type Processor struct {
	adapter    *extraction.Adapter
	parser     *appparser.Parser
	analyzer   *bankanalysis.Analyzer
	reconciler *reconcile.Reconciler
	remote     *remote.Client
	maxWorkers int
	logger     *zap.Logger
}

// NewProcessor creates a batch processor. maxWorkers caps concurrent
// document extraction; values below 1 are clamped to 1. remoteClient may be
// nil or disabled, in which case all bank analysis runs locally.
func NewProcessor(
	adapter *extraction.Adapter,
	parser *appparser.Parser,
	analyzer *bankanalysis.Analyzer,
	reconciler *reconcile.Reconciler,
	remoteClient *remote.Client,
	maxWorkers int,
	logger *zap.Logger,
) *Processor {
	if maxWorkers < 1 {
		maxWorkers = 1
	}
	return &Processor{
		adapter:    adapter,
		parser:     parser,
		analyzer:   analyzer,
		reconciler: reconciler,
		remote:     remoteClient,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// extractedDoc pairs a file with its extraction outcome. Each instance is
// written by exactly one worker goroutine and read only after all workers
// are done.
type extractedDoc struct {
	file   extraction.File
	result *extraction.Result
	err    error
}

// ProcessBatch extracts every file, parses application fields, analyzes bank
// statements, and reconciles everything into one record. Extraction failures
// degrade to manual entry; they never abort the batch.
func (p *Processor) ProcessBatch(ctx context.Context, files []extraction.File) (models.ApplicationRecord, models.ExtractionProvenance) {
	// Deterministic merge order regardless of completion order.
	sorted := make([]extraction.File, len(files))
	copy(sorted, files)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	docs := make([]extractedDoc, len(sorted))
	sem := make(chan struct{}, p.maxWorkers)
	var wg sync.WaitGroup

	for i := range sorted {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			docs[i].file = sorted[i]
			docs[i].result, docs[i].err = p.adapter.Extract(ctx, sorted[i])
			if docs[i].err != nil {
				p.logger.Warn("Document extraction failed",
					zap.String("file", sorted[i].Name),
					zap.Error(docs[i].err))
			}
		}(i)
	}
	wg.Wait()

	var appText strings.Builder
	var bankDocs []bankanalysis.SourceDoc
	var failures []string
	fallbackName := ""

	for _, doc := range docs {
		if doc.err != nil {
			failures = append(failures, doc.file.Name)
			continue
		}
		if isBankDocument(doc.file.Name, doc.result) {
			bankDocs = append(bankDocs, bankanalysis.SourceDoc{
				FileName: doc.file.Name,
				Method:   doc.result.Method,
				Text:     doc.result.Text,
				Table:    doc.result.Table,
			})
			continue
		}
		appText.WriteString(doc.result.Text)
		appText.WriteString("\n")
		if fallbackName == "" {
			fallbackName = doc.file.Name
		}
	}

	parsed := p.parser.Parse(appText.String(), fallbackName)
	bankResult := p.analyzeBankDocs(ctx, bankDocs)

	record, prov := p.reconciler.Reconcile(parsed, bankResult)

	if len(failures) > 0 {
		prov.RequiresManualEntry = true
		if prov.Error == "" {
			prov.Error = "extraction failed for: " + strings.Join(failures, ", ")
		}
	}

	p.logger.Info("Batch processed",
		zap.Int("documents", len(files)),
		zap.Int("bank_documents", len(bankDocs)),
		zap.Int("extraction_failures", len(failures)),
		zap.Bool("requires_manual_entry", prov.RequiresManualEntry))

	return record, prov
}

// analyzeBankDocs prefers the remote analysis backend when one is
// configured, falling back to the local analyzer on any remote failure.
func (p *Processor) analyzeBankDocs(ctx context.Context, bankDocs []bankanalysis.SourceDoc) models.BankAnalysisResult {
	if p.remote != nil && p.remote.Enabled() && len(bankDocs) > 0 {
		statements := make([]string, len(bankDocs))
		for i, doc := range bankDocs {
			statements[i] = doc.Text
		}
		result, err := p.remote.AnalyzeStatements(ctx, statements)
		if err == nil {
			return *result
		}
		p.logger.Warn("Remote analysis failed, falling back to local analyzer", zap.Error(err))
	}
	return p.analyzer.Analyze(bankDocs)
}

// isBankDocument routes tabular extracts and statement-named files to the
// bank analyzer.
func isBankDocument(fileName string, result *extraction.Result) bool {
	if result.Table != nil && len(result.Table.Rows) > 0 {
		return true
	}
	lowered := strings.ToLower(fileName)
	for _, hint := range bankFileHints {
		if strings.Contains(lowered, hint) {
			return true
		}
	}
	return false
}
