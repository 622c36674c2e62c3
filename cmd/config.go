package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"github.com/chew-z/workers-ai-proxy/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage configuration settings for workers-ai-proxy.`,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Set a configuration value. Supported keys:
- access_token: Bearer token clients must present to the gateway
- account_id: Cloudflare account ID
- api_token: Cloudflare API token for Workers AI
- base_url: Cloudflare API base URL (default: https://api.cloudflare.com/client/v4)
- host: Host to bind server to (default: 127.0.0.1)
- port: Port to listen on (default: 8787)`,
	Args: cobra.ExactArgs(2),
	Run:  runConfigSet,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Get a configuration value",
	Long: `Get a configuration value. Secret values (access_token, api_token)
are masked in the output.`,
	Args: cobra.ExactArgs(1),
	Run:  runConfigGet,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configGetCmd)
}

var secretKeys = map[string]bool{
	"access_token": true,
	"api_token":    true,
}

func runConfigSet(cmd *cobra.Command, args []string) {
	key := args[0]
	value := args[1]

	validKeys := map[string]bool{
		"access_token": true,
		"account_id":   true,
		"api_token":    true,
		"base_url":     true,
		"host":         true,
		"port":         true,
	}
	if !validKeys[key] {
		log.Fatalf("Invalid key: %s. Valid keys are: access_token, account_id, api_token, base_url, host, port", key)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	switch key {
	case "access_token":
		cfg.AccessToken = value
	case "account_id":
		cfg.AccountID = value
	case "api_token":
		cfg.APIToken = value
	case "base_url":
		cfg.BaseURL = value
	case "host":
		cfg.Host = value
	case "port":
		var portInt int
		if _, err := fmt.Sscanf(value, "%d", &portInt); err != nil {
			log.Fatalf("Invalid port value: %s. Must be an integer.", value)
		}
		cfg.Port = portInt
	}

	if err := config.Save(cfg); err != nil {
		log.Fatalf("Failed to save configuration: %v", err)
	}

	fmt.Printf("Configuration updated: %s = %s\n", key, maskIfSecret(key, value))
}

func runConfigGet(cmd *cobra.Command, args []string) {
	key := args[0]

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var value string
	switch key {
	case "access_token":
		value = maskIfSecret(key, cfg.AccessToken)
	case "account_id":
		value = cfg.AccountID
	case "api_token":
		value = maskIfSecret(key, cfg.APIToken)
	case "base_url":
		value = cfg.BaseURL
	case "host":
		value = cfg.Host
	case "port":
		if cfg.Port != 0 {
			value = fmt.Sprintf("%d", cfg.Port)
		}
	default:
		log.Fatalf("Invalid key: %s. Valid keys are: access_token, account_id, api_token, base_url, host, port", key)
	}

	if value == "" {
		fmt.Printf("%s is not set\n", key)
	} else {
		fmt.Printf("%s = %s\n", key, value)
	}
}

func maskIfSecret(key, value string) string {
	if secretKeys[key] && value != "" {
		return "********"
	}
	return value
}
