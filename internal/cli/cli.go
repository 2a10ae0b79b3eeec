package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/JvSe/deep-logs/internal/config"
	"github.com/JvSe/deep-logs/internal/services"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gorm.io/gorm"
)

var (
	db             *gorm.DB
	cfg            *config.Config
	deviceKeys     *services.DeviceKeyService
	userService    *services.UserService
	summaryService *services.SummaryService
	stdin          = bufio.NewReader(os.Stdin)
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "deep-logs",
	Short: "Device log ingestion and daily summary server",
	Long: `deep-logs collects log events from mobile devices and keeps one
summary row per UTC day with a counter for each log level.

Run without arguments to start the HTTP server. The subcommands manage
the server's data directly:
  deep-logs key list          # list device API keys
  deep-logs key show [NAME]   # print a device API key
  deep-logs key create NAME   # add a device API key
  deep-logs key reset [NAME]  # give a device API key a new secret
  deep-logs key revoke NAME   # stop accepting a device API key
  deep-logs user create       # create a dashboard user
  deep-logs user list         # list dashboard users
  deep-logs user reset-pwd    # reset a user's password
  deep-logs user disable ID   # block a user from logging in
  deep-logs user enable ID    # allow a user to log in again
  deep-logs summary rebuild   # recompute daily summaries from stored logs`,
	SilenceUsage: true,
}

// Execute runs the CLI with the provided database and config
func Execute(database *gorm.DB, config *config.Config) {
	db = database
	cfg = config

	deviceKeys = services.NewDeviceKeyService(db)
	if _, err := deviceKeys.EnsureDefault(context.Background(), filepath.Join(cfg.DataDir, services.LegacyDeviceKeyFile)); err != nil {
		fail("cannot initialize device keys: %v", err)
	}

	userService = services.NewUserService(db)
	summaryService = services.NewSummaryService(db, nil)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(keyCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(summaryCmd)
}

// fail prints an error and exits with status 1
func fail(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// readLine prompts and returns one trimmed line from stdin
func readLine(prompt string) string {
	fmt.Print(prompt)
	line, err := stdin.ReadString('\n')
	if err != nil && line == "" {
		fail("reading input: %v", err)
	}
	return strings.TrimSpace(line)
}

// readPassword prompts twice without echo and returns the password
func readPassword(prompt string) string {
	fmt.Print(prompt)
	first, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fail("reading password: %v", err)
	}
	if len(first) < services.MinPasswordLength {
		fail("password must be at least %d characters", services.MinPasswordLength)
	}

	fmt.Print("Repeat password: ")
	second, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		fail("reading password: %v", err)
	}
	if string(first) != string(second) {
		fail("passwords do not match")
	}
	return string(first)
}

// confirm asks a yes/no question
func confirm(question string) bool {
	answer := strings.ToLower(readLine(question + " (yes/no): "))
	return answer == "yes" || answer == "y"
}
