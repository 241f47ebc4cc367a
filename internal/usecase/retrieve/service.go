// Package retrieve implements the intent retrieval pipeline: match, extract,
// translate, execute, format.
package retrieve

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arcware-ai/intentq/internal/domain"
	"github.com/arcware-ai/intentq/internal/domain/binding"
	"github.com/arcware-ai/intentq/internal/domain/contextdoc"
	"github.com/arcware-ai/intentq/internal/domain/match"
	"github.com/arcware-ai/intentq/internal/domain/template"
	"github.com/arcware-ai/intentq/internal/logger"
	"github.com/arcware-ai/intentq/internal/metrics"
	"github.com/arcware-ai/intentq/internal/repository/templates"
	"github.com/arcware-ai/intentq/internal/translator"
	"github.com/arcware-ai/intentq/internal/usecase/executor"
	"github.com/arcware-ai/intentq/internal/usecase/formatter"
	"github.com/arcware-ai/intentq/internal/usecase/matcher"
)

// Error codes surfaced in failure document metadata. Raw errors stay in logs.
const (
	codeEmbedding  = "embedding_unavailable"
	codeExtraction = "extraction_failed"
	codeValidation = "parameter_validation"
	codeTranslate  = "translation_failed"
	codeTimeout    = "execution_timeout"
	codeCircuit    = "circuit_open"
	codeExecution  = "execution_failed"
	codeNoAdapter  = "no_adapter"
)

// Settings configures matching defaults.
type Settings struct {
	ConfidenceThreshold float64
	MaxTemplates        int
}

// Service is the retrieval pipeline over all configured knowledge domains.
type Service struct {
	stores    map[string]*templates.Store
	matcher   Matcher
	extractor Extractor
	engine    *executor.Engine
	format    *formatter.Service
	pools     *executor.Pools
	cfg       Settings

	sqlT  *translator.SQL
	duckT *translator.SQL
	esT   *translator.Elastic
}

// New wires the pipeline. Stores are keyed by domain name.
func New(
	stores map[string]*templates.Store,
	m Matcher,
	ex Extractor,
	engine *executor.Engine,
	pools *executor.Pools,
	cfg Settings,
) *Service {
	return &Service{
		stores:    stores,
		matcher:   m,
		extractor: ex,
		engine:    engine,
		format:    formatter.New(),
		pools:     pools,
		cfg:       cfg,
		sqlT:      translator.NewSQL(translator.DialectQuestion),
		duckT:     translator.NewDuckDB(),
		esT:       translator.NewElastic(),
	}
}

// Retrieve answers one natural-language query against a knowledge domain.
// Caller mistakes (unknown domain, unknown strategy) return errors; internal
// failures return a failure document carrying the domain's canned message.
func (s *Service) Retrieve(ctx context.Context, domainName, queryText, strategyName string) ([]contextdoc.Document, error) {
	store, ok := s.stores[domainName]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrDomainNotFound, domainName)
	}
	strategy, err := executor.ParseStrategy(strategyName)
	if err != nil {
		return nil, err
	}
	gen := store.Generation()
	if gen == nil {
		return nil, fmt.Errorf("%w: domain %q has no loaded templates", domain.ErrDomainNotFound, domainName)
	}

	requestID := uuid.NewString()
	kn := gen.Knowledge()
	log := logger.FromContext(ctx).With(
		zap.String("domain", domainName),
		zap.String("retrieval_id", requestID),
	)
	ctx = logger.ContextWithLogger(ctx, log)

	candidates, err := s.matchStage(ctx, gen, queryText)
	if err != nil {
		log.Error("query embedding failed", zap.Error(err))
		return failure(kn.ErrorResponse(), codeEmbedding, requestID), nil
	}
	metrics.MatchCandidates.WithLabelValues(domainName).Observe(float64(len(candidates)))
	if len(candidates) == 0 {
		log.Info("no template cleared the confidence threshold")
		return []contextdoc.Document{{
			Content:    kn.NoResultsResponse(),
			Metadata:   map[string]any{contextdoc.MetaSource: "intent", contextdoc.MetaRequestID: requestID},
			Confidence: 0,
		}}, nil
	}

	tasks, failCode := s.buildTasks(ctx, gen, candidates, queryText)
	if len(tasks) == 0 {
		log.Warn("no executable candidate", zap.Int("candidates", len(candidates)), zap.String("reason", failCode))
		return failure(kn.ErrorResponse(), failCode, requestID), nil
	}

	execStart := time.Now()
	results := s.engine.Run(ctx, strategy, tasks)
	metrics.StageDuration.WithLabelValues("execute").Observe(time.Since(execStart).Seconds())

	fmtStart := time.Now()
	docs := s.formatResults(kn, strategy, results, requestID)
	metrics.StageDuration.WithLabelValues("format").Observe(time.Since(fmtStart).Seconds())

	log.Info("retrieval finished",
		zap.Int("candidates", len(candidates)),
		zap.Int("tasks", len(tasks)),
		zap.Int("documents", len(docs)),
		zap.String("strategy", string(strategy)))
	return docs, nil
}

// matchStage embeds the query under the embedding pool and reranks the
// candidates with bounded tag overlap.
func (s *Service) matchStage(ctx context.Context, gen *templates.Generation, queryText string) ([]match.Candidate, error) {
	start := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	}()

	var out []match.Candidate
	err := s.pools.Embedding.Run(ctx, func(ctx context.Context) error {
		candidates, err := s.matcher.Match(ctx, gen, queryText, s.cfg.MaxTemplates, s.cfg.ConfidenceThreshold)
		if err != nil {
			return err
		}
		out = matcher.Rerank(gen, candidates, queryText)
		return nil
	})
	return out, err
}

// buildTasks extracts parameters per candidate and translates the usable
// ones. Candidates with unusable bindings are skipped in rank order; the
// returned code explains an empty task list.
func (s *Service) buildTasks(
	ctx context.Context,
	gen *templates.Generation,
	candidates []match.Candidate,
	queryText string,
) ([]executor.Task, string) {
	log := logger.FromContext(ctx)
	failCode := codeValidation

	extractStart := time.Now()
	defer func() {
		metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(extractStart).Seconds())
	}()

	var tasks []executor.Task
	for _, cand := range candidates {
		tpl, err := gen.Get(cand.TemplateID())
		if err != nil {
			continue
		}

		adapters := s.engine.ForDomain(gen.Knowledge().Name(), tpl.Backend())
		if len(adapters) == 0 {
			log.Warn("no adapter for backend",
				zap.String("template_id", tpl.ID()),
				zap.String("backend", string(tpl.Backend())))
			failCode = codeNoAdapter
			continue
		}

		var b *binding.Binding
		err = s.pools.LLM.Run(ctx, func(ctx context.Context) error {
			bd, extractErr := s.extractor.Extract(ctx, tpl, queryText)
			b = bd
			return extractErr
		})
		if err != nil {
			log.Warn("parameter extraction failed", zap.String("template_id", tpl.ID()), zap.Error(err))
			failCode = codeExtraction
			continue
		}
		if !b.Usable() {
			log.Info("binding failed validation, trying next candidate",
				zap.String("template_id", tpl.ID()),
				zap.Int("errors", len(b.Errors())))
			continue
		}

		q, err := s.translate(gen, tpl, b)
		if err != nil {
			log.Warn("translation failed", zap.String("template_id", tpl.ID()), zap.Error(err))
			failCode = codeTranslate
			continue
		}

		tasks = append(tasks, executor.Task{
			Adapter:    adapters[0],
			Query:      q,
			TemplateID: tpl.ID(),
			Similarity: cand.Similarity(),
		})
	}
	return tasks, failCode
}

func (s *Service) translate(gen *templates.Generation, tpl template.Template, b *binding.Binding) (translator.Query, error) {
	switch tpl.Backend() {
	case template.BackendSQL:
		return s.sqlT.Translate(tpl, b)
	case template.BackendDuckDB:
		return s.duckT.Translate(tpl, b)
	case template.BackendElasticsearch:
		return s.esT.Translate(tpl, b)
	case template.BackendHTTP:
		return translator.NewHTTP(gen.Knowledge()).Translate(tpl, b)
	default:
		return nil, fmt.Errorf("%w: unsupported backend %q", domain.ErrTranslation, tpl.Backend())
	}
}

// formatResults renders successes and, for the all strategy, failures too.
// An empty document list collapses into one canned failure document.
func (s *Service) formatResults(
	kn domain.Knowledge,
	strategy executor.Strategy,
	results []executor.Result,
	requestID string,
) []contextdoc.Document {
	var docs []contextdoc.Document
	lastCode := codeExecution
	for _, res := range results {
		if res.Err == nil {
			docs = append(docs, s.format.Format(kn, res, requestID))
			continue
		}
		lastCode = errorCode(res.Err)
		if strategy == executor.StrategyAll {
			docs = append(docs, contextdoc.Failure(kn.ErrorResponse(), lastCode, requestID))
		}
	}
	if len(docs) == 0 {
		docs = failure(kn.ErrorResponse(), lastCode, requestID)
	}
	return docs
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrExecutionTimeout):
		return codeTimeout
	case errors.Is(err, domain.ErrCircuitOpen):
		return codeCircuit
	default:
		return codeExecution
	}
}

func failure(message, code, requestID string) []contextdoc.Document {
	return []contextdoc.Document{contextdoc.Failure(message, code, requestID)}
}
