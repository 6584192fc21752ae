package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/sahmacademy/sahmbot/internal/bus"
	"github.com/sahmacademy/sahmbot/internal/channel"
	"github.com/sahmacademy/sahmbot/internal/config"
	"github.com/sahmacademy/sahmbot/internal/cron"
	"github.com/sahmacademy/sahmbot/internal/dialog"
	"github.com/sahmacademy/sahmbot/internal/engine"
	"github.com/sahmacademy/sahmbot/internal/history"
	"github.com/sahmacademy/sahmbot/internal/llm"
	"github.com/sahmacademy/sahmbot/internal/orchestrator"
	"github.com/sahmacademy/sahmbot/internal/session"
	"github.com/sahmacademy/sahmbot/internal/tools"
)

var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "sahmbot",
	Short: "sahmbot - trading education assistant",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the bot (channels + engine + cron)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config",
	RunE:  runOnboard,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sahmbot status",
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, onboardCmd, statusCmd, versionCmd)
}

func main() {
	_ = godotenv.Load()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// academyFacts adapts the platform's purchase records to the engine.
type academyFacts struct {
	courses *tools.CoursesClient
}

func (f *academyFacts) Purchases(ctx context.Context, channel, userID string) ([]orchestrator.Purchase, error) {
	records, err := f.courses.Purchases(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]orchestrator.Purchase, 0, len(records))
	for _, r := range records {
		out = append(out, orchestrator.Purchase{CourseID: r.CourseID, Status: r.Status})
	}
	return out, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	var hist history.Store
	if cfg.History.DBPath != "" {
		s, err := history.NewSQLiteStore(cfg.History.DBPath)
		if err != nil {
			return fmt.Errorf("open history store: %w", err)
		}
		hist = s
	} else {
		hist = history.NewMemoryStore()
	}
	defer hist.Close()

	sessions := session.NewMemoryStore(cfg.Lang)

	clients := tools.NewClients(cfg.Services)
	router := tools.NewRouterFor(clients)

	gw := llm.NewGateway(llm.NewOpenAIClient(cfg.LLM.BaseURL, cfg.LLM.APIKey), cfg.LLM)

	machine := dialog.NewMachine(clients.Booking)
	orch := orchestrator.New(gw, router)

	b := bus.NewMessageBus(config.DefaultBufSize)
	eng := engine.New(cfg, sessions, hist, machine, orch, b, &academyFacts{courses: clients.Courses})

	mgr, err := channel.NewChannelManager(cfg.Channels, cfg.Gateway, b, eng)
	if err != nil {
		return fmt.Errorf("create channels: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := cron.NewService()
	sched.AddJob("refresh-courses", "@hourly", clients.Courses.Refresh)
	sched.AddJob("usage-snapshot", "@daily", func(ctx context.Context) error {
		msgs, err := hist.Count()
		if err != nil {
			return err
		}
		log.Printf("[gateway] usage snapshot: sessions=%d messages=%d", sessions.Count(), msgs)
		return nil
	})
	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start cron: %w", err)
	}
	defer sched.Stop()

	if err := mgr.StartAll(ctx); err != nil {
		return fmt.Errorf("start channels: %w", err)
	}
	defer mgr.StopAll()

	go eng.Run(ctx)
	log.Printf("[gateway] sahmbot %s running, channels: %v", version, mgr.EnabledChannels())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Printf("[gateway] shutting down")
	return nil
}

func runOnboard(cmd *cobra.Command, args []string) error {
	cfgDir := config.ConfigDir()
	cfgPath := config.ConfigPath()

	if err := os.MkdirAll(cfgDir, 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		cfg := config.DefaultConfig()
		data, _ := json.MarshalIndent(cfg, "", "  ")
		if err := os.WriteFile(cfgPath, data, 0644); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Printf("Created config: %s\n", cfgPath)
	} else {
		fmt.Printf("Config already exists: %s\n", cfgPath)
	}

	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to point at your services\n", cfgPath)
	fmt.Println("  2. Set SAHMBOT_TELEGRAM_TOKEN to enable the telegram channel")
	fmt.Println("  3. Run 'sahmbot serve'")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Model: %s (fallback %s)\n", cfg.LLM.Model, cfg.LLM.FallbackModel)
	fmt.Printf("LLM endpoint: %s\n", cfg.LLM.BaseURL)
	fmt.Printf("Default language: %s\n", cfg.Lang)
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("Messenger: enabled=%v\n", cfg.Channels.Messenger.Enabled)
	fmt.Printf("Web: enabled=%v port=%d\n", cfg.Channels.Web.Enabled, cfg.Gateway.Port)
	if cfg.History.DBPath != "" {
		fmt.Printf("History: sqlite (%s)\n", cfg.History.DBPath)
	} else {
		fmt.Println("History: in-memory")
	}
	return nil
}
