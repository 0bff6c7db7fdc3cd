package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/w-h-a/recall/buffer"
	"github.com/w-h-a/recall/embedder"
	googleembedder "github.com/w-h-a/recall/embedder/google"
	openaiembedder "github.com/w-h-a/recall/embedder/openai"
	"github.com/w-h-a/recall/extractor"
	"github.com/w-h-a/recall/generator"
	"github.com/w-h-a/recall/generator/anthropic"
	openaigenerator "github.com/w-h-a/recall/generator/openai"
	"github.com/w-h-a/recall/internal/handler"
	"github.com/w-h-a/recall/internal/service/recall"
	"github.com/w-h-a/recall/memory"
	"github.com/w-h-a/recall/relationship"
	relationshipfile "github.com/w-h-a/recall/relationship/file"
	"github.com/w-h-a/recall/retention"
	"github.com/w-h-a/recall/store"
	memorystore "github.com/w-h-a/recall/store/memory"
	"github.com/w-h-a/recall/store/postgres"
	"github.com/w-h-a/recall/store/qdrant"
)

var (
	cfg struct {
		// Server config
		Address string `help:"HTTP bind address" default:":4040"`

		// Store config
		Store         string `help:"Vector store backend (qdrant, postgres, memory)" default:"memory"`
		StoreLocation string `help:"Address of the vector store" default:"http://localhost:6333"`
		StoreApiKey   string `help:"API key for the vector store" default:""`
		Collection    string `help:"Collection or table name for memories" default:"memories"`
		VectorSize    int    `help:"Dimensionality of the embedding vectors" default:"1536"`

		// Embedder config
		Embedder       string `help:"Embedding provider (openai, google)" default:"openai"`
		EmbedderApiKey string `help:"API key for the embedding provider" default:""`
		EmbedderModel  string `help:"Model identifier for vector embeddings" default:"text-embedding-3-small"`

		// Generator config
		Generator       string `help:"Extraction model provider (openai, anthropic)" default:"openai"`
		GeneratorApiKey string `help:"API key for the extraction model" default:""`
		GeneratorModel  string `help:"Model identifier for extraction" default:"gpt-4o-mini"`

		// Buffer config
		SilenceWindow   time.Duration `help:"Quiet period after which the buffer flushes" default:"5m"`
		VolumeThreshold int           `help:"Buffered event count that forces a flush" default:"25"`
		TokenCap        int           `help:"Estimated token total that forces a flush" default:"3000"`

		// Retrieval config
		UserFactCount      int           `help:"User facts retrieved per context block" default:"5"`
		ServerLoreCount    int           `help:"Server lore records retrieved per context block" default:"5"`
		SimilarityWeight   float64       `help:"Weight of raw similarity in the retrieval score" default:"0.55"`
		ImportanceWeight   float64       `help:"Weight of normalized importance in the retrieval score" default:"0.25"`
		RecencyWeight      float64       `help:"Weight of recency in the retrieval score" default:"0.20"`
		RecencyWindow      time.Duration `help:"Age at which the recency component reaches zero" default:"720h"`
		StaleAge           time.Duration `help:"Age after which mid-importance records are penalized" default:"72h"`
		StalePenalty       float64       `help:"Score multiplier for penalized records" default:"0.1"`
		StaleMinImportance int           `help:"Lowest importance subject to the staleness penalty" default:"5"`
		StaleMaxImportance int           `help:"Highest importance subject to the staleness penalty" default:"6"`
		ScoreThreshold     float32       `help:"Minimum raw similarity for a search hit" default:"0.3"`

		// Retention config
		SweepInterval time.Duration `help:"How often the retention sweep runs" default:"6h"`
		LowWindow     time.Duration `help:"Retention window for importance 1-4" default:"168h"`
		MediumWindow  time.Duration `help:"Retention window for importance 5-7" default:"720h"`
		HighWindow    time.Duration `help:"Retention window for importance 8-9" default:"2160h"`

		// Ledger config
		LedgerLocation string `help:"Path to the relationship ledger file" default:"relationships.json"`
	}
)

func main() {
	// Parse inputs
	_ = kong.Parse(&cfg)
	ctx := context.Background()

	// Create store
	var s store.Store

	switch cfg.Store {
	case "qdrant":
		s = qdrant.NewStore(
			store.WithLocation(cfg.StoreLocation),
			store.WithApiKey(cfg.StoreApiKey),
			store.WithCollection(cfg.Collection),
			store.WithVectorSize(cfg.VectorSize),
		)
	case "postgres":
		s = postgres.NewStore(
			store.WithLocation(cfg.StoreLocation),
			store.WithCollection(cfg.Collection),
			store.WithVectorSize(cfg.VectorSize),
		)
	default:
		s = memorystore.NewStore()
	}

	// Create embedder
	var e embedder.Embedder

	switch cfg.Embedder {
	case "google":
		e = googleembedder.NewEmbedder(
			embedder.WithApiKey(cfg.EmbedderApiKey),
			embedder.WithModel(cfg.EmbedderModel),
		)
	default:
		e = openaiembedder.NewEmbedder(
			embedder.WithApiKey(cfg.EmbedderApiKey),
			embedder.WithModel(cfg.EmbedderModel),
		)
	}

	// Create generator
	var g generator.Generator

	switch cfg.Generator {
	case "anthropic":
		g = anthropic.NewGenerator(
			generator.WithApiKey(cfg.GeneratorApiKey),
			generator.WithModel(cfg.GeneratorModel),
		)
	default:
		g = openaigenerator.NewGenerator(
			generator.WithApiKey(cfg.GeneratorApiKey),
			generator.WithModel(cfg.GeneratorModel),
		)
	}

	// Create ledger
	ledger := relationshipfile.NewLedger(
		relationship.WithLocation(cfg.LedgerLocation),
	)

	// Create service
	bank := memory.NewBank(
		memory.WithEmbedder(e),
		memory.WithStore(s),
		memory.WithLedger(ledger),
		memory.WithWeights(memory.Weights{
			Similarity: cfg.SimilarityWeight,
			Importance: cfg.ImportanceWeight,
			Recency:    cfg.RecencyWeight,
		}),
		memory.WithDecay(memory.Decay{
			RecencyWindow:        cfg.RecencyWindow,
			PenaltyAge:           cfg.StaleAge,
			Penalty:              cfg.StalePenalty,
			PenaltyMinImportance: cfg.StaleMinImportance,
			PenaltyMaxImportance: cfg.StaleMaxImportance,
		}),
		memory.WithCounts(memory.Counts{
			UserFacts:  cfg.UserFactCount,
			ServerLore: cfg.ServerLoreCount,
		}),
		memory.WithScoreThreshold(cfg.ScoreThreshold),
	)

	sweeper := retention.NewSweeper(
		retention.WithStore(s),
		retention.WithInterval(cfg.SweepInterval),
		retention.WithWindows(retention.Windows{
			Low:    cfg.LowWindow,
			Medium: cfg.MediumWindow,
			High:   cfg.HighWindow,
		}),
	)

	svc := recall.New(
		extractor.NewExtractor(extractor.WithGenerator(g)),
		bank,
		ledger,
		sweeper,
		buffer.WithSilenceWindow(cfg.SilenceWindow),
		buffer.WithVolumeThreshold(cfg.VolumeThreshold),
		buffer.WithTokenCap(cfg.TokenCap),
	)

	if err := svc.Start(ctx); err != nil {
		log.Fatalf("failed to start retention sweeps: %v", err)
	}

	// Serve
	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: handler.New(svc).Routes(),
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("listening", "address", cfg.Address)
		errCh <- srv.ListenAndServe()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server stopped: %v", err)
	case sig := <-sigCh:
		slog.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shut down cleanly", "error", err)
	}

	// Flush whatever is still buffered before exit
	svc.Drain()
	svc.Close()
}
