package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"

	"github.com/dmpilot-bot/dmpilot/pkg/bus"
	"github.com/dmpilot-bot/dmpilot/pkg/channels"
	"github.com/dmpilot-bot/dmpilot/pkg/config"
	"github.com/dmpilot-bot/dmpilot/pkg/humanize"
	"github.com/dmpilot-bot/dmpilot/pkg/intent"
	"github.com/dmpilot-bot/dmpilot/pkg/logger"
	"github.com/dmpilot-bot/dmpilot/pkg/responder"
	"github.com/joho/godotenv"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
	goVersion string
)

const appName = "dmpilot"

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func printVersion() {
	fmt.Printf("%s %s\n", appName, formatVersion())
	if buildTime != "" {
		fmt.Printf("  Build: %s\n", buildTime)
	}
	goVer := goVersion
	if goVer == "" {
		goVer = runtime.Version()
	}
	fmt.Printf("  Go: %s\n", goVer)
}

func main() {
	_ = godotenv.Load()
	logger.Preinit()

	if err := executeCLI(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dmpilot", "config.json")
}

func loadConfig() (*config.Config, error) {
	return config.LoadConfig(getConfigPath())
}

// buildEngine assembles the store-backed responder engine from config. The
// caller owns closing the returned store.
func buildEngine(ctx context.Context, cfg *config.Config) (*responder.SQLiteStore, *responder.Service, *responder.Learner, error) {
	store, err := responder.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open responder store: %w", err)
	}
	if err := store.EnsureSeedResponses(ctx); err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("seed responses: %w", err)
	}

	opts := humanize.DefaultOptions()
	opts.AckRate = cfg.Responder.AckRate
	opts.MuseRate = cfg.Responder.MuseRate
	opts.TypoRate = cfg.Responder.TypoRate

	svc := responder.NewService(store, intent.NewClassifier(nil), humanize.NewShaper(opts), slog.Default())
	learner := responder.NewLearner(store, cfg.Learning.MinOccurrences, cfg.Learning.MaxCandidates, slog.Default())
	return store, svc, learner, nil
}

func onboard() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		fmt.Printf("Config already exists at %s\n", configPath)
		fmt.Print("Overwrite? (y/n): ")
		reader := bufio.NewReader(os.Stdin)
		response, readErr := reader.ReadString('\n')
		if readErr != nil {
			fmt.Println("Aborted.")
			return nil
		}
		response = strings.ToLower(strings.TrimSpace(response))
		if response != "y" && response != "yes" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	cfg := config.DefaultConfig()
	if err := config.SaveConfig(configPath, cfg); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DatabasePath()), 0o755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	fmt.Printf("%s is ready!\n", appName)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Add your Discord bot token to channels.discord.token in", configPath)
	fmt.Println("  2. Try it locally: dmpilot chat")
	fmt.Println("  3. Run the bot: dmpilot run")
	fmt.Println("  4. Check readiness: dmpilot status")
	return nil
}

// runBot starts the full gateway: Discord channel, responder loop, and the
// scheduled learning pass. Blocks until interrupted.
func runBot() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.JSONFile); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Channels.Discord.Token) == "" {
		return fmt.Errorf("channels.discord.token is required in %s or DMPILOT_CHANNELS_DISCORD_TOKEN", getConfigPath())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, svc, learner, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	msgBus := bus.NewMessageBus()
	manager, err := channels.NewManager(cfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}
	manager.SetOutcomeFunc(func(responseID int64, delivered bool) {
		if err := svc.RecordOutcome(context.Background(), responseID, delivered); err != nil {
			slog.Error("record delivery outcome", "response_id", responseID, "error", err)
		}
	})

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	loop := responder.NewLoop(msgBus, svc, learner, cfg.Learning.Schedule, slog.Default())
	go loop.Run(ctx)

	fmt.Printf("%s running. Channels: %s. Press Ctrl+C to stop.\n",
		appName, strings.Join(manager.GetEnabledChannels(), ", "))

	<-ctx.Done()

	fmt.Println("\nShutting down...")
	shutdownCtx := context.Background()
	if err := manager.StopAll(shutdownCtx); err != nil {
		slog.Error("stop channels", "error", err)
	}
	msgBus.Close()
	fmt.Println("Stopped.")
	return nil
}

// runChat starts an interactive console session against the same engine the
// bot uses, without needing a Discord token.
func runChat() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.JSONFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, svc, learner, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	msgBus := bus.NewMessageBus()

	// Chat mode talks to the console only; the Discord token is ignored.
	chatCfg := *cfg
	chatCfg.Channels.Discord.Token = ""
	manager, err := channels.NewManager(&chatCfg, msgBus)
	if err != nil {
		return fmt.Errorf("create channel manager: %w", err)
	}

	console, err := channels.NewConsoleChannel(msgBus)
	if err != nil {
		return err
	}
	manager.RegisterChannel("console", console)

	manager.SetOutcomeFunc(func(responseID int64, delivered bool) {
		if err := svc.RecordOutcome(context.Background(), responseID, delivered); err != nil {
			slog.Error("record delivery outcome", "response_id", responseID, "error", err)
		}
	})

	if err := manager.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}

	loop := responder.NewLoop(msgBus, svc, learner, cfg.Learning.Schedule, slog.Default())
	go loop.Run(ctx)

	fmt.Printf("%s interactive mode (Ctrl+C to exit)\n\n", appName)

	<-ctx.Done()
	fmt.Println("\nGoodbye!")
	_ = manager.StopAll(context.Background())
	msgBus.Close()
	return nil
}

// runLearn executes one learning pass immediately, outside the schedule.
func runLearn() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.JSONFile); err != nil {
		return err
	}

	ctx := context.Background()
	store, _, learner, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	added, err := learner.Run(ctx)
	if err != nil {
		return fmt.Errorf("learning pass: %w", err)
	}
	fmt.Printf("Learning pass complete: %d new response pattern(s)\n", added)
	return nil
}

func statusCmd() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	configPath := getConfigPath()

	fmt.Printf("%s Status\n", appName)
	fmt.Printf("Version: %s\n", formatVersion())
	fmt.Println()

	mark := func(ok bool) string {
		if ok {
			return "✓"
		}
		return "✗"
	}

	_, cfgErr := os.Stat(configPath)
	fmt.Println("Config:", configPath, mark(cfgErr == nil))

	workspace := cfg.WorkspacePath()
	_, wsErr := os.Stat(workspace)
	fmt.Println("Workspace:", workspace, mark(wsErr == nil))

	dbPath := cfg.DatabasePath()
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Println("Responder DB:", dbPath, "✓")
	} else {
		fmt.Println("Responder DB:", dbPath, "not initialized")
	}

	discordReady := strings.TrimSpace(cfg.Channels.Discord.Token) != ""
	fmt.Println("Discord token:", mark(discordReady))
	fmt.Println("Learning schedule:", cfg.Learning.Schedule)
	fmt.Println("Bot ready:", mark(cfgErr == nil && discordReady))
	return nil
}
