// Package qa runs the two request flows of the service: turning an uploaded
// document into a new store generation, and answering a question from the
// current generation.
package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-pdf-qa/progress"
	"go-pdf-qa/rag"
)

const (
	defaultEmbedTimeout     = 30 * time.Second
	defaultGenerateTimeout  = 60 * time.Second
	defaultEmbedConcurrency = 4

	// progress ranges of an upload; reading the body is reported by the caller
	extractProgress = 45
	embedFrom       = 50
	embedTo         = 100
)

// Config tunes the pipeline.
type Config struct {
	// ChunkSize is the chunk window length in characters.
	ChunkSize int

	// TopK is the number of chunks forwarded to the generator.
	TopK int

	// EmbedTimeout bounds each embedding call.
	EmbedTimeout time.Duration

	// GenerateTimeout bounds each generation call.
	GenerateTimeout time.Duration

	// EmbedConcurrency is the number of chunks embedded in parallel.
	EmbedConcurrency int
}

func (c *Config) applyDefaults() {
	if c.ChunkSize <= 0 {
		c.ChunkSize = rag.DefaultChunkSize
	}
	if c.TopK <= 0 {
		c.TopK = rag.DefaultTopK
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = defaultEmbedTimeout
	}
	if c.GenerateTimeout <= 0 {
		c.GenerateTimeout = defaultGenerateTimeout
	}
	if c.EmbedConcurrency <= 0 {
		c.EmbedConcurrency = defaultEmbedConcurrency
	}
}

// Upload is one document submitted for processing.
type Upload struct {
	Name string
	Data []byte

	// Progress receives extraction and embedding progress. Optional.
	Progress *progress.Tracker
}

// IngestResult describes the generation an upload produced.
type IngestResult struct {
	Generation  uint64
	Source      string
	ChunksCount int
}

// Answer is the reply to a question.
type Answer struct {
	Answer    string `json:"answer"`
	Citations []int  `json:"citations"`
}

// Service owns the retrieval store and its collaborators. It is safe for
// concurrent use.
type Service struct {
	store     *rag.Store
	extractor rag.Extractor
	embedder  rag.Embedder
	generator rag.Generator
	cfg       Config
	logger    *zap.Logger

	// mu guards the upload ticket and the commit into the store; it is never
	// held across a provider call.
	mu           sync.Mutex
	ticket       uint64
	cancelActive context.CancelFunc

	ingest stage[Upload, embedded]
}

func NewService(store *rag.Store, extractor rag.Extractor, embedder rag.Embedder, generator rag.Generator, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		store:     store,
		extractor: extractor,
		embedder:  embedder,
		generator: generator,
		cfg:       cfg,
		logger:    logger,
	}
	s.ingest = then(then(s.extract, s.chunk), s.embedChunks)
	return s
}

// Store returns the retrieval store the service writes to.
func (s *Service) Store() *rag.Store {
	return s.store
}

type extracted struct {
	Upload
	text string
}

type chunked struct {
	Upload
	chunks []string
}

type embedded struct {
	Upload
	docs []rag.Document
}

func (s *Service) extract(_ context.Context, up Upload) (extracted, error) {
	if len(up.Data) == 0 {
		return extracted{}, rag.NewValidationError("pdf", "empty document")
	}
	text, err := s.extractor.ExtractText(up.Data)
	if err != nil {
		return extracted{}, classify(err, rag.ErrExtraction)
	}
	up.Progress.Set(extractProgress)
	return extracted{Upload: up, text: text}, nil
}

func (s *Service) chunk(_ context.Context, ex extracted) (chunked, error) {
	return chunked{Upload: ex.Upload, chunks: rag.ChunkText(ex.text, s.cfg.ChunkSize)}, nil
}

// embedChunks embeds every chunk with bounded parallelism. The embedding of
// chunk i is always stored at index i.
func (s *Service) embedChunks(ctx context.Context, ch chunked) (embedded, error) {
	docs := make([]rag.Document, len(ch.chunks))
	if len(docs) == 0 {
		return embedded{Upload: ch.Upload, docs: docs}, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.EmbedConcurrency)

	var done atomic.Int64
	for i, text := range ch.chunks {
		g.Go(func() error {
			v, err := s.embed(gctx, text)
			if err != nil {
				return fmt.Errorf("chunk %d: %w", i, err)
			}
			docs[i] = rag.Document{Text: text, Embedding: v}
			ch.Progress.Phase(embedFrom, embedTo, int(done.Add(1)), len(docs))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return embedded{}, err
	}
	return embedded{Upload: ch.Upload, docs: docs}, nil
}

func (s *Service) embed(ctx context.Context, text string) ([]float64, error) {
	v, err := callWithTimeout(ctx, s.cfg.EmbedTimeout, "embedding", func(ctx context.Context) ([]float64, error) {
		return s.embedder.Embed(ctx, text)
	})
	if err != nil {
		return nil, classify(err, rag.ErrEmbedding)
	}
	return v, nil
}

// classify tags err with kind unless it already carries a taxonomy error or
// is a plain cancellation.
func classify(err, kind error) error {
	for _, known := range []error{kind, rag.ErrDependencyTimeout, rag.ErrValidation, context.Canceled} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// Ingest extracts, chunks and embeds an upload and then replaces the store
// with the result. Starting an upload cancels the one still in flight; an
// upload that finishes after a newer one started returns rag.ErrSuperseded
// and leaves the store alone. On any failure the store keeps its previous
// generation.
func (s *Service) Ingest(ctx context.Context, up Upload) (IngestResult, error) {
	if up.Progress == nil {
		up.Progress = progress.NewTracker(progress.Discard)
	}

	ctx, ticket, finish := s.begin(ctx)
	defer finish()

	start := time.Now()
	log := s.logger.With(zap.String("source", up.Name), zap.Uint64("ticket", ticket))
	log.Info("processing upload", zap.Int("bytes", len(up.Data)))

	out, err := s.ingest(ctx, up)
	if err != nil {
		if s.stale(ticket) {
			err = fmt.Errorf("%w: %w", rag.ErrSuperseded, err)
		}
		log.Error("upload failed", zap.Error(err))
		return IngestResult{}, err
	}

	gen, err := s.commit(ticket, up.Name, out.docs)
	if err != nil {
		log.Error("upload not committed", zap.Error(err))
		return IngestResult{}, err
	}

	log.Info("upload processed",
		zap.Uint64("generation", gen.Number),
		zap.Int("chunks", len(gen.Chunks)),
		zap.Int("dimension", gen.Dimension),
		zap.Duration("took", time.Since(start)),
	)
	return IngestResult{Generation: gen.Number, Source: gen.Source, ChunksCount: len(gen.Chunks)}, nil
}

// begin takes a new ticket and cancels the previous upload.
func (s *Service) begin(ctx context.Context) (context.Context, uint64, func()) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	if s.cancelActive != nil {
		s.cancelActive()
	}
	s.ticket++
	ticket := s.ticket
	s.cancelActive = cancel
	s.mu.Unlock()

	return ctx, ticket, func() {
		s.mu.Lock()
		if s.ticket == ticket {
			s.cancelActive = nil
		}
		s.mu.Unlock()
		cancel()
	}
}

func (s *Service) stale(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket != s.ticket
}

func (s *Service) commit(ticket uint64, source string, docs []rag.Document) (rag.Generation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket != s.ticket {
		return rag.Generation{}, rag.ErrSuperseded
	}
	return s.store.Replace(source, docs)
}

// Search embeds query and returns the topK closest chunks of the current
// generation. topK <= 0 uses the configured default.
func (s *Service) Search(ctx context.Context, query string, topK int) ([]rag.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, rag.NewValidationError("query", "must not be empty")
	}
	if topK <= 0 {
		topK = s.cfg.TopK
	}
	v, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}
	return s.store.Query(v, topK)
}

// Ask answers question from the current generation. With no document loaded
// the generator is still asked, with an empty context.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	if strings.TrimSpace(question) == "" {
		return Answer{}, rag.NewValidationError("question", "must not be empty")
	}

	results, err := s.Search(ctx, question, s.cfg.TopK)
	if err != nil {
		return Answer{}, err
	}
	if len(results) == 0 {
		s.logger.Warn("answering without document context")
	}

	prompt := rag.BuildPrompt(rag.BuildContext(results), question)
	text, err := callWithTimeout(ctx, s.cfg.GenerateTimeout, "generation", func(ctx context.Context) (string, error) {
		return s.generator.Generate(ctx, prompt)
	})
	if err != nil {
		return Answer{}, classify(err, rag.ErrGeneration)
	}

	citations := rag.Citations(results)
	s.logger.Debug("question answered",
		zap.Int("question_len", len(question)),
		zap.Ints("citations", citations),
	)
	return Answer{Answer: text, Citations: citations}, nil
}
