package main

import (
	"context"
	"log"
	"net/http"

	httpadapter "github.com/jperalta/sciquery-agent/internal/adapters/http"
	"github.com/jperalta/sciquery-agent/internal/adapters/llm"
	"github.com/jperalta/sciquery-agent/internal/adapters/search"
	memstore "github.com/jperalta/sciquery-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/jperalta/sciquery-agent/internal/adapters/storage/sqlite"
	"github.com/jperalta/sciquery-agent/internal/app/agentflow"
	"github.com/jperalta/sciquery-agent/internal/app/chat"
	"github.com/jperalta/sciquery-agent/internal/app/planner"
	"github.com/jperalta/sciquery-agent/internal/config"
	"github.com/jperalta/sciquery-agent/internal/domain"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()

	// LLM: mock for local dev, Gemini otherwise
	var (
		llmClient domain.LLMClient
		err       error
	)
	if cfg.UseMockLLM {
		log.Println("[LLM] Using MOCK LLM client")
		llmClient = llm.NewMockLLM()
	} else {
		log.Println("[LLM] Using Gemini LLM client")
		llmClient, err = llm.NewGeminiClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
		if err != nil {
			log.Fatalf("error initializing Gemini LLM client: %v", err)
		}
	}

	// Storage: sqlite or memory
	var threadStore domain.ThreadStore
	var messageStore domain.MessageStore

	switch cfg.StorageBackend {
	case "sqlite":
		log.Printf("[STORE] Using sqlite storage (path=%s)", cfg.SQLitePath)
		store, err := sqlitestore.Open(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("error initializing sqlite store: %v", err)
		}
		defer store.Close()

		// 1 store, implements 2 interfaces
		threadStore = store
		messageStore = store

	default:
		log.Println("[STORE] Using in-memory storage")
		msgs := memstore.NewMessageStore()
		messageStore = msgs
		threadStore = memstore.NewThreadStore(msgs)
	}

	searchClient := search.NewClient(search.Options{
		UserAgent:        cfg.SearchUserAgent,
		WikiMinInterval:  cfg.WikiMinInterval,
		ArxivMinInterval: cfg.ArxivMinInterval,
	})

	agent := agentflow.New(llmClient, searchClient,
		planner.New(llmClient, nil), cfg.MaxAgentSteps, cfg.SearchLimit)

	svc := chat.NewService(agent, threadStore, messageStore)
	handler := httpadapter.NewServer(svc)

	addr := ":" + cfg.Port
	log.Println("sciquery API listening on", addr)
	if err := http.ListenAndServe(addr, handler); err != nil {
		log.Fatal(err)
	}
}
