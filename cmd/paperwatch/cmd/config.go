package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

var configFormat string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective client configuration",
	Long: `Prints the configuration the client resolves from flags, environment
variables and the config file, in the order viper applies them.`,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)

	configShowCmd.Flags().StringVarP(&configFormat, "format", "F", "text",
		"Output format: text, json, yaml")
}

type clientConfig struct {
	APIURL       string `json:"api_url" yaml:"api_url"`
	APIKeySet    bool   `json:"api_key_set" yaml:"api_key_set"`
	PollInterval string `json:"poll_interval" yaml:"poll_interval"`
	Output       string `json:"output" yaml:"output"`
	ConfigFile   string `json:"config_file,omitempty" yaml:"config_file,omitempty"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := clientConfig{
		APIURL:       GetAPIURL(),
		APIKeySet:    viper.GetString("api_key") != "",
		PollInterval: GetPollInterval().String(),
		Output:       outputFormat,
		ConfigFile:   viper.ConfigFileUsed(),
	}

	switch configFormat {
	case "json":
		data, err := json.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
		fmt.Print(string(data))
	case "text":
		fmt.Printf("API URL:       %s\n", cfg.APIURL)
		fmt.Printf("API key set:   %v\n", cfg.APIKeySet)
		fmt.Printf("Poll interval: %s\n", cfg.PollInterval)
		fmt.Printf("Output:        %s\n", cfg.Output)
		if cfg.ConfigFile != "" {
			fmt.Printf("Config file:   %s\n", cfg.ConfigFile)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown format %q, use text, json or yaml\n", configFormat)
		os.Exit(1)
	}
	return nil
}
