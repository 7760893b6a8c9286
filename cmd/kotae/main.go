// Package main is the Kotae CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/config"
	"github.com/hyperjump/kotae/internal/database"
	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/extract"
	"github.com/hyperjump/kotae/internal/generate"
	"github.com/hyperjump/kotae/internal/history"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/rag"
	"github.com/hyperjump/kotae/internal/server"
	"github.com/hyperjump/kotae/internal/watcher"
	"github.com/hyperjump/kotae/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/kotae/config.yaml"

// seedDocuments is loaded into an empty database on first start so the
// service answers something useful before any documents are added.
var seedDocuments = []string{
	"Employees are entitled to 10 days of paid leave per year.",
	"A bonus is paid to employees with at least one year of tenure.",
	"Remote work is allowed up to three days per week with manager approval.",
	"Health insurance enrollment opens within 30 days of the hire date.",
	"The training budget covers one external course per employee per year.",
}

// loadConfig loads config from path. When path is the default, config.yaml in
// the current directory takes precedence so running from the project dir picks
// up the project's config. Returns the config and the path actually loaded.
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "ask":
		runAsk()
	case "add":
		runAdd()
	case "status":
		runStatus()
	case "version", "--version", "-v":
		fmt.Printf("kotae version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	components, err := initializeComponents(cfg, logger)
	if err != nil {
		logger.Fatal("Failed to initialize components", zap.Error(err))
	}
	defer components.Close()

	engine := components.Engine
	if len(cfg.Watch.Directories) > 0 {
		watchSvc := watcher.New(
			cfg.Watch.Directories,
			cfg.Watch.Extensions,
			cfg.Watch.RecursiveOrDefault(),
			func(path string) {
				text, xerr := extract.Text(path)
				if xerr != nil {
					logger.Warn("extract failed", zap.String("path", path), zap.Error(xerr))
					return
				}
				if strings.TrimSpace(text) == "" {
					return
				}
				req := &models.AddDocumentsRequest{
					Documents: []string{text},
					Metadata:  []models.Metadata{{"source": path}},
				}
				if _, aerr := engine.AddDocuments(context.Background(), req); aerr != nil {
					logger.Warn("ingest failed", zap.String("path", path), zap.Error(aerr))
					return
				}
				logger.Info("ingested file", zap.String("path", path))
			},
			logger,
		)
		watchCtx, watchCancel := context.WithCancel(context.Background())
		defer watchCancel()
		if err := watchSvc.Start(watchCtx); err != nil {
			logger.Fatal("Failed to start watcher", zap.Error(err))
		}
		defer watchSvc.Stop()
	}

	srv := server.NewServer(engine, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	if cfg.Storage.DatabasePath != "" {
		if err := components.Database.Save(cfg.Storage.DatabasePath); err != nil {
			logger.Warn("database save failed", zap.Error(err))
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

func runAsk() {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:5000", "server URL")
	k := fs.Int("k", 0, "number of documents to retrieve (0 = server default)")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae ask [flags] <question>")
		os.Exit(1)
	}
	question := strings.TrimSpace(strings.Join(fs.Args(), " "))

	req := models.QueryRequest{Question: question, K: *k}
	var resp models.QueryResponse
	if err := postJSON(*serverURL+"/query", req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(resp.Answer)
	fmt.Printf("\n(retrieved %d documents in %.2fs, model %s)\n",
		resp.RetrievalInfo.RetrievedCount, resp.ResponseTime, resp.Model)
}

func runAdd() {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:5000", "server URL")
	_ = fs.Parse(os.Args[2:])

	if fs.NArg() < 1 {
		fmt.Println("Usage: kotae add [flags] <file>...")
		os.Exit(1)
	}

	req := models.AddDocumentsRequest{}
	for _, path := range fs.Args() {
		text, err := extract.Text(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Extract %s failed: %v\n", path, err)
			os.Exit(1)
		}
		req.Documents = append(req.Documents, text)
		req.Metadata = append(req.Metadata, models.Metadata{"source": path})
	}

	var resp models.AddDocumentsResponse
	if err := postJSON(*serverURL+"/add_document", req, &resp); err != nil {
		fmt.Fprintf(os.Stderr, "Add failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Added %d document(s); database now holds %d\n",
		len(resp.DocumentIDs), resp.TotalDocuments)
}

func runStatus() {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:5000", "server URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/stats")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Server returned %d: %s\n", resp.StatusCode, string(b))
		os.Exit(1)
	}
	var stats rag.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		fmt.Fprintf(os.Stderr, "Parse failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("documents:       %d\n", stats.Database.TotalDocuments)
	fmt.Printf("vectors:         %d\n", stats.Database.TotalVectors)
	fmt.Printf("dimension:       %d\n", stats.Database.Dimension)
	fmt.Printf("index_type:      %s\n", stats.Database.IndexType)
	fmt.Printf("queries:         %d\n", stats.Queries.TotalQueries)
	fmt.Printf("avg_response_s:  %.3f\n", stats.Queries.AverageResponseTime)
}

func postJSON(url string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(b))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Components holds initialized services.
type Components struct {
	Embedder embedding.Embedder
	Database *database.VectorDatabase
	Engine   *rag.Engine
}

func (c *Components) Close() {
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	var embedder embedding.Embedder
	onnxEmbedder, err := embedding.NewONNXEmbedder(
		cfg.Embedding.ModelPath,
		cfg.VectorDB.Dimension,
		cfg.Embedding.MaxTokens,
		cfg.Embedding.CacheSize,
	)
	if err != nil {
		logger.Warn("ONNX embedder unavailable, using deterministic hash embedder", zap.Error(err))
		embedder = embedding.NewMockEmbedder(cfg.VectorDB.Dimension)
	} else {
		embedder = onnxEmbedder
	}

	db, err := database.New(
		cfg.VectorDB.Dimension,
		cfg.VectorDB.NList,
		cfg.VectorDB.NProbe,
		cfg.VectorDB.IndexType,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize vector database: %w", err)
	}
	if cfg.Storage.DatabasePath != "" {
		if loadErr := db.Load(cfg.Storage.DatabasePath); loadErr != nil {
			return nil, fmt.Errorf("failed to load vector database: %w", loadErr)
		}
	}

	generator := generate.NewOpenAIGenerator(cfg.Generation)
	hist := history.NewLog(cfg.History.Capacity)
	engine := rag.NewEngine(db, embedder, generator, hist, cfg.Query, cfg.Storage.DatabasePath, logger)

	if db.Stats().TotalDocuments == 0 {
		req := &models.AddDocumentsRequest{Documents: seedDocuments}
		if _, seedErr := engine.AddDocuments(context.Background(), req); seedErr != nil {
			logger.Warn("seeding example documents failed", zap.Error(seedErr))
		} else {
			logger.Info("seeded example documents", zap.Int("count", len(seedDocuments)))
		}
	}

	return &Components{
		Embedder: embedder,
		Database: db,
		Engine:   engine,
	}, nil
}

func printUsage() {
	fmt.Println(`kotae - retrieval-augmented question answering service

Usage:
  kotae server [flags]          Start the HTTP server
  kotae ask [flags] <question>  Ask a question against a running server
  kotae add [flags] <file>...   Extract files and add them as documents
  kotae status [flags]          Show database and query statistics
  kotae version                 Show version
  kotae help                    Show this help

Server Flags:
  --config string    Config file path (default: /usr/local/etc/kotae/config.yaml)
  --debug            Enable debug logging

Client Flags (ask, add, status):
  --server string    Server URL (default: http://localhost:5000)
  --k int            Documents to retrieve per question (ask only)

Examples:
  kotae server
  kotae ask "How many paid leave days do employees get?"
  kotae add handbook.pdf notes.md
  kotae status`)
}
