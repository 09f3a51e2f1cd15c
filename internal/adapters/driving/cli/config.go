package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/supplymatch/internal/core/domain"
)

var errNoSettings = errors.New("settings service not configured")

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View the effective configuration and set up the embedding provider.

Matching thresholds, storage and cache settings live in config.toml under
the configuration directory.`,
	Annotations: map[string]string{annotationBootstrap: levelConfig},
	RunE:        runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Long: `Configure the embedding provider used to match item titles.

Without --provider an interactive prompt is shown. The provider is pinged
after saving unless --skip-validation is set.

Changing the model changes the vector dimensions; run
'supplymatch items reindex' against a new collection afterwards.`,
	RunE: runConfigEmbedding,
}

func init() {
	f := configEmbeddingCmd.Flags()
	f.String("provider", "", "embedding provider (ollama, openai)")
	f.String("model", "", "model name (default depends on provider)")
	f.String("api-key", "", "API key (prompted when required and omitted)")
	f.String("base-url", "", "API endpoint override")
	f.Bool("skip-validation", false, "do not ping the provider")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configEmbeddingCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Configuration")
	cmd.Println("=====================")
	cmd.Println()

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	if settings.Embedding.Provider.RequiresAPIKey() {
		if settings.Embedding.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(settings.Embedding.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	if settings.Embedding.RatePerSecond > 0 {
		cmd.Printf("  Rate limit: %.1f/s\n", settings.Embedding.RatePerSecond)
	}
	cmd.Println()

	m := settings.Matching
	cmd.Println("[Matching]")
	cmd.Printf("  Collection: %s\n", m.Collection)
	cmd.Printf("  Default K: %d\n", m.DefaultK)
	cmd.Printf("  Hard cutoff: %.3f\n", m.HardCutoff)
	if m.DistanceCutoff > 0 {
		cmd.Printf("  Distance cutoff: %.3f\n", m.DistanceCutoff)
	} else {
		cmd.Printf("  Distance cutoff: none\n")
	}
	cmd.Printf("  Auto-association: hard %.3f, within %.3f\n", m.AutoHardCutoff, m.AutoDistanceCutoff)
	cmd.Printf("  Max batch size: %d\n", m.MaxBatchSize)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Driver: %s\n", settings.Storage.Driver)
	if settings.Storage.DSN != "" {
		cmd.Printf("  DSN: %s\n", maskDSN(settings.Storage.DSN))
	}
	cmd.Printf("  Vector backend: %s\n", settings.Storage.VectorBackend)
	cmd.Println()

	if settings.Cache.RedisURL != "" {
		cmd.Println("[Cache]")
		cmd.Printf("  Redis: %s\n", maskDSN(settings.Cache.RedisURL))
		cmd.Printf("  TTL: %s\n", settings.Cache.TTL)
		cmd.Println()
	}

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'supplymatch config embedding' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func runConfigEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNoSettings
	}
	flags := cmd.Flags()
	providerName, _ := flags.GetString("provider") //nolint:errcheck // registered above
	model, _ := flags.GetString("model")           //nolint:errcheck
	apiKey, _ := flags.GetString("api-key")        //nolint:errcheck
	baseURL, _ := flags.GetString("base-url")      //nolint:errcheck
	skip, _ := flags.GetBool("skip-validation")    //nolint:errcheck

	reader := bufio.NewReader(cmd.InOrStdin())

	var provider domain.AIProvider
	if providerName == "" {
		provider, model = promptProvider(cmd, reader)
	} else {
		provider = domain.AIProvider(strings.ToLower(providerName))
		if !provider.IsValid() {
			return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, providerName)
		}
	}

	if provider.RequiresAPIKey() && apiKey == "" && os.Getenv("OPENAI_API_KEY") == "" {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	if err := settingsService.SetEmbeddingProvider(provider, model, apiKey); err != nil {
		return fmt.Errorf("failed to configure embedding provider: %w", err)
	}
	if baseURL != "" {
		settings, err := settingsService.Get()
		if err != nil {
			return err
		}
		settings.Embedding.BaseURL = baseURL
		if err := settingsService.Save(settings); err != nil {
			return fmt.Errorf("failed to save base URL: %w", err)
		}
	}

	if !skip {
		// Validate the configuration by pinging the service
		cmd.Print("Validating configuration... ")
		if err := settingsService.ValidateEmbeddingConfig(); err != nil {
			cmd.Printf("FAILED: %v\n", err)
			return fmt.Errorf("embedding configuration validation failed: %w", err)
		}
		cmd.Println("OK")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return err
	}
	cmd.Printf("Embedding provider configured: %s (%s)\n",
		settings.Embedding.Provider.Description(), settings.Embedding.Model)
	return nil
}

func promptProvider(cmd *cobra.Command, reader *bufio.Reader) (domain.AIProvider, string) {
	cmd.Println("Select Embedding Provider")
	providers := domain.AllEmbeddingProviders()
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	defaultModel := domain.DefaultEmbeddingModels()[selected]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}
	return selected, model
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}

// maskDSN hides the password in a URL-style connection string.
func maskDSN(dsn string) string {
	scheme, rest, ok := strings.Cut(dsn, "://")
	if !ok {
		return dsn
	}
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return dsn
	}
	creds, host := rest[:at], rest[at+1:]
	user, _, hasPass := strings.Cut(creds, ":")
	if !hasPass {
		return dsn
	}
	return scheme + "://" + user + ":****@" + host
}
