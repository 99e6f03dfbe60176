package qa

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"go-pdf-qa/progress"
	"go-pdf-qa/rag"
)

type eventLog struct {
	mu     sync.Mutex
	events []progress.Event
}

func (l *eventLog) Publish(ev progress.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) Events() []progress.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]progress.Event(nil), l.events...)
}

var _ = Describe("Service", func() {
	var (
		ctx       context.Context
		store     *rag.Store
		extractor *textExtractor
		embedder  *letterEmbedder
		generator *recordingGenerator
		cfg       Config
		svc       *Service
	)

	newService := func() *Service {
		return NewService(store, extractor, embedder, generator, cfg, nil)
	}

	BeforeEach(func() {
		ctx = context.Background()
		store = rag.NewStore()
		extractor = &textExtractor{}
		embedder = &letterEmbedder{}
		generator = &recordingGenerator{answer: "an answer"}
		cfg = Config{ChunkSize: 5, TopK: 3, EmbedTimeout: time.Second, GenerateTimeout: time.Second, EmbedConcurrency: 4}
	})

	JustBeforeEach(func() {
		svc = newService()
	})

	Describe("Ingest", func() {
		It("chunks, embeds and replaces the store", func() {
			res, err := svc.Ingest(ctx, Upload{Name: "abc.pdf", Data: []byte("AAAA BBBB CCCC")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ChunksCount).To(Equal(3))
			Expect(res.Source).To(Equal("abc.pdf"))

			gen := store.Current()
			Expect(gen.Number).To(Equal(res.Generation))
			Expect(gen.Chunks).To(HaveLen(3))
			for i, want := range []string{"AAAA ", "BBBB ", "CCCC"} {
				Expect(gen.Chunks[i].ID).To(Equal(i))
				Expect(gen.Chunks[i].Text).To(Equal(want))
			}
		})

		It("finds the chunk whose embedding matches the query", func() {
			_, err := svc.Ingest(ctx, Upload{Name: "abc.pdf", Data: []byte("AAAA BBBB CCCC")})
			Expect(err).NotTo(HaveOccurred())

			results, err := svc.Search(ctx, "BBBB ", 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal(1))
			Expect(results[0].Similarity).To(BeNumerically("~", 1.0, 1e-9))
		})

		It("records every embedding at its chunk id when calls finish out of order", func() {
			embedder.Jitter = true
			cfg.ChunkSize = 10
			cfg.EmbedConcurrency = 8

			var blocks []string
			for i := range 40 {
				a := i % 10
				blocks = append(blocks, strings.Repeat("A", a)+strings.Repeat("B", 10-a))
			}

			_, err := newService().Ingest(ctx, Upload{Name: "many.pdf", Data: []byte(strings.Join(blocks, ""))})
			Expect(err).NotTo(HaveOccurred())

			gen := store.Current()
			Expect(gen.Chunks).To(HaveLen(40))
			for i, ch := range gen.Chunks {
				a := float64(i % 10)
				Expect(ch.Text).To(Equal(blocks[i]))
				Expect(ch.Embedding).To(Equal([]float64{a, 10 - a, 0, 1}))
			}
		})

		It("only returns chunks of the latest document", func() {
			_, err := svc.Ingest(ctx, Upload{Name: "first.pdf", Data: []byte("AAAA BBBB CCCC")})
			Expect(err).NotTo(HaveOccurred())
			_, err = svc.Ingest(ctx, Upload{Name: "second.pdf", Data: []byte("CCCCC")})
			Expect(err).NotTo(HaveOccurred())

			results, err := svc.Search(ctx, "AAAA ", 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal(0))
			Expect(results[0].Text).To(Equal("CCCCC"))
			Expect(store.Current().Source).To(Equal("second.pdf"))
		})

		It("accepts a document without text and leaves an empty generation", func() {
			_, err := svc.Ingest(ctx, Upload{Name: "first.pdf", Data: []byte("AAAA BBBB")})
			Expect(err).NotTo(HaveOccurred())

			extractor.blank = true
			res, err := svc.Ingest(ctx, Upload{Name: "scan.pdf", Data: []byte("%PDF-1.4 images only")})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.ChunksCount).To(Equal(0))
			Expect(store.Len()).To(Equal(0))
			Expect(store.Current().Source).To(Equal("scan.pdf"))

			answer, err := svc.Ask(ctx, "what does it say?")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Citations).To(BeEmpty())
		})

		It("rejects an empty upload", func() {
			_, err := svc.Ingest(ctx, Upload{Name: "empty.pdf"})
			Expect(errors.Is(err, rag.ErrValidation)).To(BeTrue())
			Expect(embedder.Calls()).To(Equal(0))
		})

		Context("when a provider fails", func() {
			BeforeEach(func() {
				_, err := newService().Ingest(ctx, Upload{Name: "first.pdf", Data: []byte("AAAA BBBB")})
				Expect(err).NotTo(HaveOccurred())
			})

			It("keeps the previous generation on extraction failure", func() {
				before := store.Current()
				extractor.err = errors.New("corrupt xref")

				_, err := newService().Ingest(ctx, Upload{Name: "bad.pdf", Data: []byte("junk")})
				Expect(err).To(MatchError(rag.ErrExtraction))
				Expect(store.Current().Number).To(Equal(before.Number))
			})

			It("keeps the previous generation on embedding failure", func() {
				before := store.Current()
				embedder.FailOn = "CCCC "

				_, err := svc.Ingest(ctx, Upload{Name: "second.pdf", Data: []byte("CCCC DDDD EEEE")})
				Expect(err).To(MatchError(rag.ErrEmbedding))
				Expect(store.Current().Number).To(Equal(before.Number))
				Expect(store.Current().Source).To(Equal("first.pdf"))
			})

			It("keeps the previous generation when embeddings disagree on dimension", func() {
				before := store.Current()
				svc := NewService(store, extractor, raggedEmbedder{}, generator, cfg, nil)

				_, err := svc.Ingest(ctx, Upload{Name: "ragged.pdf", Data: []byte("AAAAABBBB")})
				Expect(err).To(MatchError(rag.ErrDimensionMismatch))
				Expect(store.Current().Number).To(Equal(before.Number))
			})

			It("times out an embedding call that ignores its context", func() {
				before := store.Current()
				stubborn := &stubbornEmbedder{release: make(chan struct{})}
				defer close(stubborn.release)
				cfg.EmbedTimeout = 30 * time.Millisecond
				svc := NewService(store, extractor, stubborn, generator, cfg, nil)

				_, err := svc.Ingest(ctx, Upload{Name: "slow.pdf", Data: []byte("AAAA")})
				Expect(err).To(MatchError(rag.ErrDependencyTimeout))
				Expect(store.Current().Number).To(Equal(before.Number))
			})
		})

		It("reports monotonic progress up to 99", func() {
			log := &eventLog{}
			_, err := svc.Ingest(ctx, Upload{
				Name:     "abc.pdf",
				Data:     []byte("AAAA BBBB CCCC"),
				Progress: progress.NewTracker(log),
			})
			Expect(err).NotTo(HaveOccurred())

			events := log.Events()
			Expect(events).NotTo(BeEmpty())
			for i := 1; i < len(events); i++ {
				Expect(events[i].Progress).To(BeNumerically(">", events[i-1].Progress))
			}
			Expect(events[0].Progress).To(Equal(45))
			Expect(events[len(events)-1].Progress).To(Equal(99))
		})

		It("lets the newer upload win and reports the older one as superseded", func() {
			embedder.Block = "X"

			firstErr := make(chan error, 1)
			go func() {
				defer GinkgoRecover()
				_, err := svc.Ingest(ctx, Upload{Name: "old.pdf", Data: []byte("XXXXX")})
				firstErr <- err
			}()
			Eventually(embedder.Calls).Should(BeNumerically(">=", 1))

			_, err := svc.Ingest(ctx, Upload{Name: "new.pdf", Data: []byte("AAAA BBBB")})
			Expect(err).NotTo(HaveOccurred())

			var old error
			Eventually(firstErr).Should(Receive(&old))
			Expect(old).To(MatchError(rag.ErrSuperseded))
			Expect(store.Current().Source).To(Equal("new.pdf"))

			results, err := svc.Search(ctx, "AAAA ", 10)
			Expect(err).NotTo(HaveOccurred())
			for _, r := range results {
				Expect(r.Text).NotTo(ContainSubstring("X"))
			}
		})

		It("does not let a finished stale upload overwrite a newer one", func() {
			_, _ = svc.Ingest(ctx, Upload{Name: "current.pdf", Data: []byte("AAAA")})

			ticket := svc.ticket - 1
			_, err := svc.commit(ticket, "stale.pdf", []rag.Document{{Text: "stale", Embedding: []float64{1, 0, 0, 1}}})
			Expect(err).To(MatchError(rag.ErrSuperseded))
			Expect(store.Current().Source).To(Equal("current.pdf"))
		})
	})

	Describe("Ask", func() {
		It("forwards the top chunks as context and cites them in rank order", func() {
			_, err := svc.Ingest(ctx, Upload{Name: "abc.pdf", Data: []byte("AAAA BBBB CCCC")})
			Expect(err).NotTo(HaveOccurred())

			answer, err := svc.Ask(ctx, "BBBB ")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Answer).To(Equal("an answer"))
			Expect(answer.Citations).To(Equal([]int{1, 0, 2}))

			prompt := generator.LastPrompt()
			Expect(prompt).To(ContainSubstring("Context:\nBBBB \n\nAAAA \n\nCCCC"))
			Expect(prompt).To(HaveSuffix("Question:\nBBBB "))
		})

		It("still asks the generator when no document is loaded", func() {
			answer, err := svc.Ask(ctx, "anything?")
			Expect(err).NotTo(HaveOccurred())
			Expect(answer.Citations).NotTo(BeNil())
			Expect(answer.Citations).To(BeEmpty())
			Expect(generator.LastPrompt()).To(ContainSubstring("Context:\n\n\nQuestion:\nanything?"))
		})

		It("rejects an empty question", func() {
			_, err := svc.Ask(ctx, "   ")
			Expect(err).To(MatchError(rag.ErrValidation))
		})

		It("surfaces generator faults", func() {
			generator.err = errors.New("quota exceeded")

			_, err := svc.Ask(ctx, "question")
			Expect(err).To(MatchError(rag.ErrGeneration))
		})

		It("surfaces embedding faults without calling the generator", func() {
			embedder.FailOn = "question"

			_, err := svc.Ask(ctx, "question")
			Expect(err).To(MatchError(rag.ErrEmbedding))
			Expect(generator.LastPrompt()).To(BeEmpty())
		})

		It("times out a slow generator", func() {
			cfg.GenerateTimeout = 20 * time.Millisecond
			slow := &blockingGenerator{release: make(chan struct{})}
			defer close(slow.release)

			_, err := NewService(store, extractor, embedder, slow, cfg, nil).Ask(ctx, "question")
			Expect(err).To(MatchError(rag.ErrDependencyTimeout))
		})
	})

	It("applies defaults to an empty config", func() {
		c := Config{}
		c.applyDefaults()
		Expect(c.ChunkSize).To(Equal(rag.DefaultChunkSize))
		Expect(c.TopK).To(Equal(rag.DefaultTopK))
		Expect(c.EmbedConcurrency).To(BeNumerically(">", 0))
		Expect(c.EmbedTimeout).To(BeNumerically(">", 0))
		Expect(c.GenerateTimeout).To(BeNumerically(">", 0))
	})
})

type blockingGenerator struct {
	release chan struct{}
}

func (g *blockingGenerator) Generate(_ context.Context, _ string) (string, error) {
	<-g.release
	return "too late", nil
}
