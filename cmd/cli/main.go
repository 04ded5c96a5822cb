package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/KH-Pua/ai-chatbot/internal/domain/entity"
	"github.com/KH-Pua/ai-chatbot/internal/domain/service"
	"github.com/KH-Pua/ai-chatbot/internal/interfaces/cli"
)

const (
	cliVersion     = "0.1.0"
	cliName        = "support"
	defaultGateway = "http://localhost:8080"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   cliName + " [message]",
		Short: "Chat with the customer support assistant",
		Long:  "Interactive terminal client for the support gateway: streaming chat, order lookups and tickets",
		Args:  cobra.ArbitraryArgs,
		RunE:  runInteractive,
	}

	rootCmd.Flags().StringP("gateway", "g", envOr("SUPPORT_GATEWAY_URL", defaultGateway), "gateway base URL")
	rootCmd.Flags().StringP("email", "e", os.Getenv("SUPPORT_EMAIL"), "your email, used for order lookups")
	rootCmd.Flags().Duration("timeout", 30*time.Second, "timeout of non-streaming calls")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "classify [message...]",
		Short: "Classify the sentiment of messages, one per argument or stdin line",
		RunE:  runClassify,
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s v%s\n", cliName, cliVersion)
		},
	})

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runInteractive(cmd *cobra.Command, args []string) error {
	gateway, _ := cmd.Flags().GetString("gateway")
	email, _ := cmd.Flags().GetString("email")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if email != "" && !entity.IsValidEmail(email) {
		return fmt.Errorf("invalid email: %s", email)
	}

	return cli.RunREPL(cli.NewClient(gateway, timeout), cli.REPLConfig{
		Gateway:    gateway,
		Email:      email,
		InitPrompt: strings.Join(args, " "),
	})
}

// runClassify runs the sentiment classifier locally over the given
// messages, treated as consecutive customer messages.
func runClassify(cmd *cobra.Command, args []string) error {
	lines := args
	if len(lines) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				lines = append(lines, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return err
		}
	}
	if len(lines) == 0 {
		return fmt.Errorf("no messages to classify")
	}

	history := make([]service.ChatMessage, 0, len(lines))
	for _, l := range lines {
		history = append(history, service.ChatMessage{Role: entity.RoleUser, Content: l})
		fmt.Printf("%-11s %s\n", service.ClassifySentiment(history), l)
	}
	return nil
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
