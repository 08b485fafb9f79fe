package documents

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"underwriting-backend/internal/llm"
	"underwriting-backend/internal/shared/metrics"
	"underwriting-backend/internal/shared/telemetry"
)

const defaultConcurrency = 4

// Resolver hands out model clients; *llm.Registry satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, sel llm.Selection) (llm.Client, error)
}

// Service groups uploaded PDFs by type and merges each group.
type Service struct {
	Models      Resolver
	Merger      Merger
	Concurrency int
}

// MergeByType classifies paths (unless explicitType is set) and merges each
// group into one artifact. Merged files already written are left in place
// when a later group fails.
func (s *Service) MergeByType(ctx context.Context, paths []string, explicitType string, sel llm.Selection) (MergeResult, error) {
	result := MergeResult{Merged: map[string]string{}}
	if len(paths) == 0 {
		telemetry.Warn("documents.empty_input", map[string]any{"request_id": llm.RequestIDFromContext(ctx)})
		return result, nil
	}

	if explicitType != "" {
		if !validExplicitType(explicitType) {
			return MergeResult{}, fmt.Errorf("%w: document_type %q", ErrInvalidInput, explicitType)
		}
		key := KeyFor(DocumentType(explicitType))
		out, err := s.Merger.Merge(paths, filePrefix(key))
		if err != nil {
			return MergeResult{}, err
		}
		result.Merged[key] = out
		telemetry.Info("documents.merged", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"key":        key,
			"inputs":     len(paths),
			"output":     out,
			"explicit":   true,
		})
		return result, nil
	}

	client, err := s.Models.Resolve(ctx, sel)
	if err != nil {
		return MergeResult{}, err
	}
	classes, err := s.classifyAll(ctx, Classifier{Client: client}, paths)
	if err != nil {
		return MergeResult{}, err
	}

	var bank, tax []string
	for i, path := range paths {
		c := classes[i]
		metrics.IncClassification(string(c.DocumentType))
		switch c.DocumentType {
		case BankStatement:
			bank = append(bank, path)
		case TaxReturn:
			tax = append(tax, path)
		default:
			telemetry.Warn("documents.unclassified", map[string]any{
				"request_id":    llm.RequestIDFromContext(ctx),
				"path":          path,
				"document_type": string(c.DocumentType),
				"explanation":   c.Explanation,
			})
			result.Unclassified = append(result.Unclassified, Unclassified{
				Path:         path,
				DocumentType: string(c.DocumentType),
				Explanation:  c.Explanation,
			})
		}
	}

	for _, group := range []struct {
		key   string
		paths []string
	}{{KeyBankStatements, bank}, {KeyTaxReturns, tax}} {
		if len(group.paths) == 0 {
			continue
		}
		out, err := s.Merger.Merge(group.paths, filePrefix(group.key))
		if err != nil {
			return MergeResult{}, err
		}
		result.Merged[group.key] = out
		telemetry.Info("documents.merged", map[string]any{
			"request_id": llm.RequestIDFromContext(ctx),
			"key":        group.key,
			"inputs":     len(group.paths),
			"output":     out,
		})
	}
	return result, nil
}

// classifyAll runs classifications concurrently; results keep input order.
func (s *Service) classifyAll(ctx context.Context, classifier Classifier, paths []string) ([]Classification, error) {
	limit := s.Concurrency
	if limit <= 0 {
		limit = defaultConcurrency
	}
	out := make([]Classification, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			c, err := classifier.Classify(gctx, path)
			if err != nil {
				return err
			}
			telemetry.Info("documents.classified", map[string]any{
				"request_id":    llm.RequestIDFromContext(ctx),
				"path":          path,
				"document_type": string(c.DocumentType),
				"confidence":    c.ConfidenceScore,
			})
			out[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
