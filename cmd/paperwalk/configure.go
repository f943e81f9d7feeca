package main

import (
	"bufio"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/paperwalk/internal/config"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Store the Semantic Scholar API key (with OS keychain support)",
	Long: `Save a Semantic Scholar API key for higher rate limits.

The key goes to the OS keychain when one is available, otherwise to
~/.config/paperwalk/credentials.yaml. The SEMANTIC_SCHOLAR_API_KEY
environment variable always takes precedence.`,
	RunE: runConfigure,
}

var (
	configureDelete bool
	configCheck     string
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration with secrets redacted",
	RunE: func(cmd *cobra.Command, args []string) error {
		redacted := cfg.Redacted()
		out, err := yaml.Marshal(&redacted)
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		fmt.Print(string(out))
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(configPath())
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the current configuration to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath()
		if err := cfg.Save(path); err != nil {
			return err
		}
		fmt.Printf("✅ Wrote %s\n", path)
		return nil
	},
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration for a command",
	RunE: func(cmd *cobra.Command, args []string) error {
		result := cfg.Validate(config.ValidationContext(configCheck))
		if result.HasErrors() {
			return result.Err()
		}
		for _, w := range result.Warnings {
			fmt.Printf("⚠️  %s\n", w)
		}
		fmt.Println("✅ Configuration is valid")
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <paper-id>",
	Short: "Open a paper's Semantic Scholar page in the browser",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		u := "https://www.semanticscholar.org/paper/" + url.PathEscape(args[0])
		if err := browser.OpenURL(u); err != nil {
			fmt.Println(u)
			return fmt.Errorf("failed to open browser: %w", err)
		}
		return nil
	},
}

func init() {
	configureCmd.Flags().BoolVar(&configureDelete, "delete", false, "remove the key from the OS keychain")

	configValidateCmd.Flags().StringVar(&configCheck, "for", string(config.ValidationContextAll),
		"context: fetch, expand, analytics, serve or all")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configValidateCmd)
}

func runConfigure(cmd *cobra.Command, args []string) error {
	km := config.NewKeyringManager()

	if configureDelete {
		if err := km.DeleteAPIKey(); err != nil {
			return err
		}
		fmt.Println("✅ API key removed from OS keychain")
		return nil
	}

	fmt.Println("🔧 paperwalk configuration")
	fmt.Println()

	source := km.GetAPIKeySource(cfg)
	if source.Source != "none" {
		fmt.Printf("Current: %s\n", config.MaskAPIKey(cfg.Provider.APIKey))
		fmt.Printf("Source: %s\n", source.Recommended)
		fmt.Print("Replace it? (y/N): ")

		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		if answer != "y" && answer != "yes" {
			return nil
		}
	} else {
		fmt.Println("An API key is optional but raises the Semantic Scholar rate limit.")
		fmt.Println("Request one at: https://www.semanticscholar.org/product/api")
		fmt.Println()
	}

	if !km.IsAvailable() {
		fmt.Println("⚠️  OS keychain not available (headless system or Linux without libsecret)")
		fmt.Println("   The key will be stored in a credentials file instead.")
	}

	cm := config.NewCredentialManager()
	key, err := cm.PromptAPIKey(os.Stdin, os.Stdout)
	if err != nil {
		return fmt.Errorf("failed to read API key: %w", err)
	}

	where, err := cm.SaveAPIKey(key)
	if err != nil {
		return err
	}

	if where == "keychain" {
		fmt.Println("✅ API key saved to OS keychain (secure)")
		fmt.Printf("   📍 %s\n", keychainLocation())
	} else {
		fmt.Printf("✅ API key saved to %s\n", where)
	}
	return nil
}

// configPath is --config when set, otherwise ~/.paperwalk/config.yaml.
func configPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".paperwalk", "config.yaml")
}

func keychainLocation() string {
	switch runtime.GOOS {
	case "darwin":
		return "macOS Keychain (Keychain Access.app)"
	case "windows":
		return "Windows Credential Manager"
	default:
		return "Secret Service (GNOME Keyring / KWallet)"
	}
}
