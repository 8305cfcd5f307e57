package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/dana/mimic/config"
	"github.com/dana/mimic/internal/chat"
	"github.com/dana/mimic/internal/db"
	"github.com/dana/mimic/internal/discord"
	"github.com/dana/mimic/internal/enrich"
	"github.com/dana/mimic/internal/llm"
	"github.com/dana/mimic/internal/persona"
	"github.com/dana/mimic/internal/price"
	"github.com/dana/mimic/internal/scheduler"
	"github.com/dana/mimic/internal/search"
	"github.com/dana/mimic/internal/service"
)

func main() {
	if len(os.Args) > 1 {
		if handled, err := runServiceCommand(os.Args[1]); handled {
			if err != nil {
				log.Fatal(err)
			}
			return
		}
	}

	run()
}

// runServiceCommand dispatches launchd management subcommands. "run" and
// unknown args fall through to the main loop.
func runServiceCommand(cmd string) (bool, error) {
	switch cmd {
	case "install":
		return true, service.Install()
	case "uninstall":
		return true, service.Uninstall()
	case "start":
		return true, service.Start()
	case "stop":
		return true, service.Stop()
	case "restart":
		return true, service.Restart()
	case "status":
		return true, service.Status()
	case "logs":
		return true, service.Logs()
	}
	return false, nil
}

func run() {
	cfg := config.Load()

	database, err := db.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	personas, err := persona.NewStore(cfg.PersonasDir)
	if err != nil {
		log.Fatalf("failed to open persona store: %v", err)
	}

	client, err := llm.NewClient(llm.ProviderConfig{
		Provider: cfg.LLMProvider,
		APIKey:   cfg.OpenAIKey,
		Model:    cfg.LLMModel,
		BaseURL:  baseURL(cfg),
		Defaults: llm.Options{
			Temperature:   cfg.Temperature,
			TopP:          cfg.TopP,
			RepeatPenalty: cfg.RepeatPenalty,
			NumPredict:    cfg.NumPredict,
		},
	})
	if err != nil {
		log.Fatalf("failed to create LLM client: %v", err)
	}
	if !client.Health(context.Background()) {
		log.Printf("warning: generation backend at %s is not responding", baseURL(cfg))
	}

	var searcher enrich.Searcher
	if cfg.BraveKey != "" {
		searcher = search.NewBrave(cfg.BraveKey)
	}
	gecko := price.NewCoinGecko(cfg.CoinGeckoKey)

	orch := chat.NewOrchestrator(personas, database, client, enrich.New(searcher, gecko))

	sched := scheduler.New(database, cfg.PollInterval, cfg.HandlerTimeout)
	scheduler.RegisterBuiltins(sched, orch, searcher, gecko)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	go sched.Run(ctx)

	// If a Discord token is set, run as bot
	if cfg.DiscordToken != "" {
		runBot(ctx, cfg, database, orch, personas, sched)
		return
	}

	// Otherwise, CLI mode
	runCLI(orch)
}

func baseURL(cfg *config.Config) string {
	if cfg.LLMProvider == "openai" {
		return cfg.OpenAIBaseURL
	}
	return cfg.OllamaBaseURL
}

func runCLI(orch *chat.Orchestrator) {
	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)
	sessions := chat.NewSessions("default")

	// Check if stdin is a pipe (non-interactive)
	stat, _ := os.Stdin.Stat()
	isPipe := (stat.Mode() & os.ModeCharDevice) == 0

	if !isPipe {
		fmt.Print("mimic> ")
	}

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			if !isPipe {
				fmt.Print("mimic> ")
			}
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}
		if rest, ok := strings.CutPrefix(input, "/persona "); ok {
			sessions.Select("cli", strings.TrimSpace(rest))
			fmt.Printf("persona set to %s\n", sessions.Current("cli"))
			if !isPipe {
				fmt.Print("mimic> ")
			}
			continue
		}

		reply, err := orch.Respond(ctx, chat.Request{
			PersonaID: sessions.Current("cli"),
			UserID:    "cli",
			Channel:   "cli",
			Message:   input,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		} else {
			fmt.Println(reply.Content)
		}

		if isPipe {
			break // single exchange in pipe mode
		}
		fmt.Print("mimic> ")
	}
}

func runBot(ctx context.Context, cfg *config.Config, database *db.DB, orch *chat.Orchestrator, personas *persona.Store, sched *scheduler.Scheduler) {
	sessions := chat.NewSessions("default")

	// Per-user secondary connections share the primary's collaborators.
	manager := discord.NewManager(database, func(token string) (discord.Connection, error) {
		return discord.NewBot(token, orch, sessions, personas, sched, nil)
	})
	defer manager.StopAll()

	bot, err := discord.NewBot(cfg.DiscordToken, orch, sessions, personas, sched, manager)
	if err != nil {
		log.Fatalf("failed to start Discord bot: %v", err)
	}
	defer bot.Close()

	log.Println("bot is running. Press Ctrl+C to exit.")
	<-ctx.Done()
	log.Println("shutting down.")
}
