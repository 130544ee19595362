// Command server runs the FireFlies chat backend.
//
// @title                       FireFlies API
// @version                     1.0
// @description                 Chat backend with web search, page scraping and calculator commands on top of Ollama.
// @BasePath                    /api
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"fireflies/backend/internal/app"
)

var migrateSteps int

var rootCmd = &cobra.Command{
	Use:   "fireflies",
	Short: "FireFlies chat backend",
	Long: `FireFlies wraps an Ollama server behind chat commands:
  /cari <query>              search the web and answer from the results
  /web <question> <url>      answer a question about one page
  /kalkulator <expression>   evaluate arithmetic and explain it
  /clear                     reset the conversation context

Without a subcommand the HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:       "migrate [up|down|version]",
	Short:     "Apply, roll back or inspect the database schema",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{app.MigrateUp, app.MigrateDown, app.MigrateVersion},
	RunE:      runMigrate,
}

var askCmd = &cobra.Command{
	Use:   `ask "<message>"`,
	Short: "Run one chat message and print the reply",
	Long: `Routes the message exactly like the chat does and prints the reply.
Commands go through the proxy at PROXY_URL; when it is unset the proxy is
served in-process. Plain messages are a single inference call without history.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back with down")
	rootCmd.AddCommand(serveCmd, migrateCmd, askCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if code := app.Run(cmd.Context()); code != 0 {
		return fmt.Errorf("server exited with code %d", code)
	}
	return nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := app.Setup()
	if err != nil {
		return err
	}
	direction := app.MigrateUp
	if len(args) == 1 {
		direction = args[0]
	}
	out, err := app.Migrate(cfg, direction, migrateSteps)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
	return err
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := app.Setup()
	if err != nil {
		return err
	}
	answer, err := app.Ask(cmd.Context(), cfg, strings.Join(args, " "))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), answer)
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
