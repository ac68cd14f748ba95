package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/cliniq/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change settings stored in ~/.cliniq/config.toml.

Every key can also be set through the environment, e.g. CLINIQ_RETRIEVAL_CHUNK_K.`,
	RunE: runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print the effective value of a key",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a key",
	Long: `Sets a key in the config file. When the value is omitted it is read from
the terminal; API keys are read without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runConfigSet,
}

var configUnsetCmd = &cobra.Command{
	Use:   "unset [key]",
	Short: "Remove a key so its default applies",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigUnset,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every recognised key",
	Args:  cobra.NoArgs,
	RunE:  runConfigKeys,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping the AI providers",
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

var configWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive provider setup",
	Long:  `Run an interactive wizard to choose the embedding and language model providers.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigWizard,
}

// passwordReader reads a secret from the terminal. Replaced in tests.
var passwordReader = readPassword

func init() {
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configUnsetCmd)
	configCmd.AddCommand(configKeysCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configWizardCmd)
	rootCmd.AddCommand(configCmd)
}

func isSecretKey(key string) bool {
	return strings.HasSuffix(key, "api_key")
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	for _, key := range settingsService.Keys() {
		value, err := settingsService.Value(key)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", key, err)
		}
		if isSecretKey(key) {
			if value == "" {
				value = "(not set)"
			} else {
				value = maskAPIKey(value)
			}
		}
		cmd.Printf("%-32s %s\n", key, value)
	}

	cmd.Println()
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'cliniq config wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	value, err := settingsService.Value(args[0])
	if err != nil {
		return err
	}
	cmd.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	key := args[0]
	var value string
	if len(args) == 2 {
		value = args[1]
	} else {
		cmd.Printf("%s: ", key)
		if isSecretKey(key) {
			value = passwordReader()
			cmd.Println()
		} else {
			value = readLine(bufio.NewReader(cmd.InOrStdin()))
		}
	}

	if err := settingsService.Set(key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}

	if isSecretKey(key) {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

func runConfigUnset(cmd *cobra.Command, args []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	if err := settingsService.Unset(args[0]); err != nil {
		return fmt.Errorf("failed to unset %s: %w", args[0], err)
	}
	cmd.Printf("Unset %s\n", args[0])
	return nil
}

func runConfigKeys(cmd *cobra.Command, _ []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	for _, key := range settingsService.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cmd.Println("Settings: OK")

	cmd.Print("Embedding provider: ")
	if err := settingsService.ValidateEmbeddingConfig(); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Print("LLM provider: ")
	if err := settingsService.ValidateLLMConfig(); err != nil {
		// Retrieval and validation work without a language model.
		cmd.Printf("unavailable (%v)\n", err)
		return nil
	}
	cmd.Println("OK")
	return nil
}

func runConfigWizard(cmd *cobra.Command, _ []string) error {
	if err := initSettings(); err != nil {
		return err
	}

	cmd.Println("cliniq Setup Wizard")
	cmd.Println("===================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	embedProviders := []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI}
	if err := configureProvider(cmd, reader, "embedding", embedProviders); err != nil {
		return err
	}
	cmd.Println()

	cmd.Println("Step 2: Language Model Provider")
	cmd.Println("-------------------------------")
	llmProviders := []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderAnthropic}
	if err := configureProvider(cmd, reader, "llm", llmProviders); err != nil {
		return err
	}
	cmd.Println()

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}
	return nil
}

// configureProvider prompts for the provider, model, and credentials of
// one settings section ("embedding" or "llm").
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, section string, providers []domain.AIProvider) error {
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p)
	}
	cmd.Print("\nEnter choice [1]: ")
	selected := providers[parseChoice(readLine(reader), len(providers), 1)-1]
	if err := settingsService.Set(section+".provider", selected.String()); err != nil {
		return fmt.Errorf("failed to set provider: %w", err)
	}

	current, _ := settingsService.Value(section + ".model")
	cmd.Printf("Model [%s]: ", current)
	if model := readLine(reader); model != "" {
		if err := settingsService.Set(section+".model", model); err != nil {
			return fmt.Errorf("failed to set model: %w", err)
		}
	}

	if selected.RequiresAPIKey() {
		cmd.Print("API key (leave blank to use the environment): ")
		if key := strings.TrimSpace(passwordReader()); key != "" {
			if err := settingsService.Set(section+".api_key", key); err != nil {
				return fmt.Errorf("failed to set API key: %w", err)
			}
		}
		cmd.Println()
	} else {
		cmd.Print("Base URL (blank for default): ")
		if url := readLine(reader); url != "" {
			if err := settingsService.Set(section+".base_url", url); err != nil {
				return fmt.Errorf("failed to set base URL: %w", err)
			}
		}
	}

	cmd.Printf("%s provider configured: %s\n", section, selected)
	return nil
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

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(bufio.NewReader(os.Stdin))
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
