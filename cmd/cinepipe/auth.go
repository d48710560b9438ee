package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"cinepipe/pkg/auth"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage TMDB credentials",
	Long: `Manage stored TMDB credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only fallback)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store TMDB credentials securely",
	Long: `Store TMDB credentials in the system keychain or an encrypted file.

You will be prompted for:
  - API Read Access Token (v4 bearer token, preferred)
  - API Key (v3, optional when a read token is provided)

To get these values:
1. Log into https://www.themoviedb.org
2. Go to Settings > API
3. Copy the "API Read Access Token" (and optionally the "API Key")`,
	Args: cobra.NoArgs,
	Run:  runAuthLogin,
}

// statusCmd represents the auth status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored credential status",
	Long:  `Show whether TMDB credentials are stored and which fields are present.`,
	Args:  cobra.NoArgs,
	Run:   runAuthStatus,
}

// logoutCmd represents the auth logout command
var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove stored credentials",
	Long:  `Remove stored TMDB credentials from every storage backend.`,
	Args:  cobra.NoArgs,
	Run:   runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(statusCmd)
	authCmd.AddCommand(logoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	reader := bufio.NewReader(os.Stdin)

	if manager.Exists() {
		fmt.Print("Credentials already stored. Replace them? (y/N): ")
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("Enter your TMDB credentials (hidden as you type):")
	fmt.Println()

	fmt.Print("API Read Access Token (v4): ")
	readToken, err := readSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read token:", err)
		os.Exit(1)
	}

	fmt.Print("API Key (v3, optional): ")
	apiKey, err := readSecret()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to read API key:", err)
		os.Exit(1)
	}

	creds := &auth.Credentials{
		APIKey:    apiKey,
		ReadToken: readToken,
	}
	if !creds.Valid() {
		fmt.Fprintln(os.Stderr, "At least one of the token or the API key is required.")
		os.Exit(1)
	}

	if err := manager.Store(creds); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to store credentials:", err)
		os.Exit(1)
	}

	fmt.Println("\nCredentials stored.")
	fmt.Println("\nStart the pipeline with:")
	fmt.Println("  cinepipe run")
}

func runAuthStatus(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	creds, err := manager.Retrieve()
	if err != nil {
		fmt.Println("No credentials stored.")
		fmt.Println("\nRun 'cinepipe auth login' to store them.")
		return
	}

	fmt.Println("Credentials found:")
	fmt.Printf("  Read Token: %s\n", maskSecret(creds.ReadToken))
	fmt.Printf("  API Key:    %s\n", maskSecret(creds.APIKey))
	if !creds.LastModified.IsZero() {
		fmt.Printf("  Updated:    %s\n", creds.LastModified.Format("2006-01-02 15:04:05"))
	}
}

func runAuthLogout(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize credential manager:", err)
		os.Exit(1)
	}

	if !manager.Exists() {
		fmt.Println("No credentials stored.")
		return
	}

	if err := manager.Delete(); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to remove credentials:", err)
		os.Exit(1)
	}
	fmt.Println("Credentials removed.")
}

// readSecret reads a value from stdin without echoing
func readSecret() (string, error) {
	if term.IsTerminal(int(syscall.Stdin)) {
		secret, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err == nil {
			return strings.TrimSpace(string(secret)), nil
		}
	}

	reader := bufio.NewReader(os.Stdin)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(input), nil
}

// maskSecret shows only enough of a secret to recognize it
func maskSecret(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}
