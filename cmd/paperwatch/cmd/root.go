package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"paperwatch/internal/poller"
	"paperwatch/pkg/logging"
)

var (
	cfgFile      string
	apiURL       string
	apiKey       string
	outputFormat string
	logLevel     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "paperwatch",
	Short: "CLI for the research-paper verification service",
	Long: `paperwatch submits a research paper (plus optional experiment logs,
scripts and a BibTeX file) to the verification backend, follows the
multi-agent analysis pipeline live, and renders the final report.`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.paperwatch/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "backend API URL (default from config or http://localhost:8000)")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "output", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("poll-interval", "", "status polling interval, e.g. 800ms (default from config)")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".paperwatch"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	viper.BindEnv("api_url", "PAPERWATCH_API_URL")
	viper.BindEnv("api_key", "PAPERWATCH_API_KEY")
	viper.BindPFlag("poll_interval", rootCmd.PersistentFlags().Lookup("poll-interval"))
	viper.SetDefault("api_url", "http://localhost:8000")
	viper.SetDefault("poll_interval", poller.DefaultInterval.String())

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetString("api_url") != "" && apiURL == "" {
			apiURL = viper.GetString("api_url")
		}
		if viper.GetString("api_key") != "" && apiKey == "" {
			apiKey = viper.GetString("api_key")
		}
	}

	if apiURL == "" {
		apiURL = viper.GetString("api_url")
	}
	if apiKey == "" {
		apiKey = viper.GetString("api_key")
	}
}

// GetAPIURL returns the resolved backend API URL
func GetAPIURL() string {
	return apiURL
}

// GetPollInterval returns the resolved polling interval
func GetPollInterval() time.Duration {
	d, err := time.ParseDuration(viper.GetString("poll_interval"))
	if err != nil || d <= 0 {
		return poller.DefaultInterval
	}
	return d
}

// IsJSONOutput returns true when --output json was requested
func IsJSONOutput() bool {
	return outputFormat == "json"
}

// NewClient builds a backend client from the resolved configuration
func NewClient() *poller.Client {
	client := poller.NewClient(GetAPIURL())
	if apiKey != "" {
		client.SetAPIKey(apiKey)
	}
	return client
}

// NewLogger builds a CLI logger honoring --log-level
func NewLogger() *logging.Logger {
	return logging.NewLogger(logging.ParseLevel(logLevel), false)
}
