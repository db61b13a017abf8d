// Package main implements tripctl, a local console for the travel dialogue
// service.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"travel-agent/internal/app"
	"travel-agent/internal/config"
	"travel-agent/internal/domain"
	"travel-agent/internal/extraction"
	"travel-agent/internal/usecase"
)

var (
	conversationID string
	verbose        bool
	version        = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tripctl",
	Short: "Local console for the travel dialogue service",
	Long: `tripctl runs the travel dialogue service in-process.

Configuration comes from the same TRAVEL_* environment variables as the
server. Without TRAVEL_REMOTE_PROVIDER only the pattern rules are used.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log service events to stderr")
	chatCmd.Flags().StringVar(&conversationID, "id", "", "conversation id (random when empty)")
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(extractCmd)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Hold a dialogue on stdin/stdout",
	Long: `Read one message per line and print the service reply.

Examples:
  tripctl chat
  echo "Из Москвы в Сочи 20.07" | tripctl chat --id demo`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		id := conversationID
		if id == "" {
			id = uuid.NewString()
		}
		return runChat(cmd.Context(), a.Service, id, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract <text>",
	Short: "Print the entities extracted from one message",
	Long: `Run extraction on a single message and print the result as JSON.

Examples:
  tripctl extract "Из Петербурга в Москву завтра на поезде"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()
		return runExtract(cmd.Context(), a.Orchestrator, strings.Join(args, " "), time.Now(), cmd.OutOrStdout())
	},
}

func buildApp(ctx context.Context) (*app.App, error) {
	if os.Getenv("TRAVEL_REMOTE_PROVIDER") == "" {
		_ = os.Setenv("TRAVEL_REMOTE_PROVIDER", config.ProviderNone)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := slog.LevelError
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return app.New(ctx, cfg, logger)
}

type messageService interface {
	HandleMessage(ctx context.Context, in usecase.Input) (domain.Response, error)
}

func runChat(ctx context.Context, svc messageService, id string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "conversation %s\n> ", id)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			fmt.Fprint(out, "> ")
			continue
		}
		resp, err := svc.HandleMessage(ctx, usecase.Input{ConversationID: id, Text: line})
		if err != nil {
			fmt.Fprintf(out, "error: %v\n> ", err)
			continue
		}
		printResponse(out, resp)
		fmt.Fprint(out, "> ")
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func printResponse(out io.Writer, resp domain.Response) {
	if resp.Type == domain.ResponseMessage {
		fmt.Fprintln(out, resp.Text)
		return
	}
	for _, o := range resp.Objects {
		start := time.Unix(o.TimeStartUTC, 0).UTC().Format("2006-01-02 15:04")
		end := time.Unix(o.TimeEndUTC, 0).UTC().Format("15:04")
		fmt.Fprintf(out, "%-6s %s → %s  %s–%s UTC\n", o.Type, o.PlaceStart, o.PlaceFinish, start, end)
	}
}

type extractOutput struct {
	Provenance extraction.Provenance `json:"provenance"`
	Entities   domain.TravelEntities `json:"entities"`
	Missing    []domain.FieldID      `json:"missing"`
}

func runExtract(ctx context.Context, o *extraction.Orchestrator, text string, now time.Time, out io.Writer) error {
	res, merged := o.Run(ctx, extraction.Request{Text: text, Now: now})
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(extractOutput{
		Provenance: res.Provenance,
		Entities:   merged,
		Missing:    merged.MissingFields(),
	})
}
