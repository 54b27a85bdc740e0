package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/serenlab/serenia/internal/config"
	"github.com/serenlab/serenia/internal/gateway"
	"github.com/serenlab/serenia/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "serenia",
	Short: "serenia - conversational wellness companion",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gateway (channels + maintenance jobs)",
	RunE:  runServe,
}

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Initialize config and data directory",
	RunE:  runOnboard,
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the default wellness content and emergency resources",
	RunE:  runSeed,
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat through the pipeline in single message or REPL mode",
	RunE:  runChat,
}

var moodCmd = &cobra.Command{
	Use:   "mood",
	Short: "Log a mood entry or list recent ones",
	RunE:  runMood,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show serenia status",
	RunE:  runStatus,
}

var (
	messageFlag  string
	userFlag     string
	scoreFlag    int
	descFlag     string
	notesFlag    string
	tagsFlag     []string
	listMoodFlag bool
)

func init() {
	chatCmd.Flags().StringVarP(&messageFlag, "message", "m", "", "Single message to send")
	chatCmd.Flags().StringVarP(&userFlag, "user", "u", "cli", "User ID")
	moodCmd.Flags().StringVarP(&userFlag, "user", "u", "cli", "User ID")
	moodCmd.Flags().IntVarP(&scoreFlag, "score", "s", 0, "Mood score (1-10)")
	moodCmd.Flags().StringVarP(&descFlag, "desc", "d", "", "Short mood description")
	moodCmd.Flags().StringVar(&notesFlag, "notes", "", "Free-form notes")
	moodCmd.Flags().StringSliceVar(&tagsFlag, "tag", nil, "Tags (repeatable)")
	moodCmd.Flags().BoolVar(&listMoodFlag, "list", false, "List recent entries instead of logging")
	rootCmd.AddCommand(serveCmd, onboardCmd, seedCmd, chatCmd, moodCmd, statusCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	return gw.Run(context.Background())
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

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	fmt.Printf("Database ready: %s\n", cfg.Storage.DBPath)
	fmt.Println("\nNext steps:")
	fmt.Printf("  1. Edit %s to set your API key (or set SERENIA_API_KEY)\n", cfgPath)
	fmt.Println("  2. Run 'serenia seed' to load the wellness content")
	fmt.Println("  3. Run 'serenia chat -m \"Hola\"' to test")

	return nil
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.Channels = config.ChannelsConfig{}

	gw, err := gateway.New(cfg)
	if err != nil {
		return fmt.Errorf("create gateway: %w", err)
	}

	ctx := context.Background()
	conversationID := "cli:" + userFlag

	if messageFlag != "" {
		resp := gw.Process(ctx, userFlag, conversationID, messageFlag)
		printResponse(os.Stdout, resp.Text, resp.RiskTier, resp.SuggestedActions)
		return nil
	}

	fmt.Println("serenia chat (type 'exit' to quit)")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		resp := gw.Process(ctx, userFlag, conversationID, input)
		printResponse(os.Stdout, resp.Text, resp.RiskTier, resp.SuggestedActions)
	}
	return nil
}

func printResponse(w io.Writer, text, tier string, actions []string) {
	fmt.Fprintln(w, text)
	if tier != "low" {
		fmt.Fprintf(w, "\n[%s]\n", tier)
		for _, action := range actions {
			fmt.Fprintf(w, "  - %s\n", action)
		}
	}
}

func runMood(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if listMoodFlag {
		moods, err := st.RecentMoods(userFlag, time.Time{}, 14)
		if err != nil {
			return fmt.Errorf("list moods: %w", err)
		}
		if len(moods) == 0 {
			fmt.Println("No mood entries yet.")
			return nil
		}
		for _, m := range moods {
			line := fmt.Sprintf("%s  %2d", m.CreatedAt.Local().Format("2006-01-02 15:04"), m.Score)
			if m.Description != "" {
				line += "  " + m.Description
			}
			fmt.Println(line)
		}
		return nil
	}

	if scoreFlag < 1 || scoreFlag > 10 {
		return fmt.Errorf("score must be between 1 and 10")
	}

	entry := &store.MoodEntry{
		UserID:      userFlag,
		Score:       scoreFlag,
		Description: descFlag,
		Notes:       notesFlag,
		Tags:        tagsFlag,
	}
	if err := st.SaveMoodEntry(entry); err != nil {
		return fmt.Errorf("save mood entry: %w", err)
	}
	fmt.Printf("Logged mood %d for %s\n", scoreFlag, userFlag)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Config: error (%v)\n", err)
		return nil
	}

	fmt.Printf("Config: %s\n", config.ConfigPath())
	fmt.Printf("Database: %s\n", cfg.Storage.DBPath)
	fmt.Printf("Chat model: %s\n", cfg.Provider.ChatModel)
	fmt.Printf("Embedding model: %s\n", cfg.Provider.EmbeddingModel)
	if cfg.Provider.APIKey != "" && len(cfg.Provider.APIKey) > 8 {
		masked := cfg.Provider.APIKey[:4] + "..." + cfg.Provider.APIKey[len(cfg.Provider.APIKey)-4:]
		fmt.Printf("API Key: %s\n", masked)
	} else if cfg.Provider.APIKey != "" {
		fmt.Println("API Key: set")
	} else {
		fmt.Println("API Key: not set (semantic search and generation disabled)")
	}
	fmt.Printf("Telegram: enabled=%v\n", cfg.Channels.Telegram.Enabled)
	fmt.Printf("HTTP API: enabled=%v port=%d\n", cfg.Channels.API.Enabled, cfg.Gateway.Port)

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	defer st.Close()

	counts, err := st.Stats()
	if err != nil {
		fmt.Printf("Store: error (%v)\n", err)
		return nil
	}
	fmt.Printf("Mood entries: %d\n", counts["mood_entries"])
	fmt.Printf("Messages: %d\n", counts["messages"])
	fmt.Printf("Wellness content: %d\n", counts["wellness_content"])
	fmt.Printf("Emergency resources: %d\n", counts["emergency_resources"])
	fmt.Printf("Escalations: %d\n", counts["escalation_log"])

	return nil
}
