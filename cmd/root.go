package cmd

import (
	"errors"
	"log"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/resume-analyzer/internal/ai/claude"
	"github.com/spigell/resume-analyzer/internal/ai/gemini"
	"github.com/spigell/resume-analyzer/internal/ai/kimi"
)

const (
	app = "resume-analyzer"
)

type Config struct {
	Provider     string          `mapstructure:"provider"`
	MaxAttempts  int             `mapstructure:"max-attempts"`
	Timeout      time.Duration   `mapstructure:"timeout"`
	MaxLogLength int             `mapstructure:"max-log-length"`
	Kimi         *ProviderConfig `mapstructure:"kimi"`
	Gemini       *ProviderConfig `mapstructure:"gemini"`
	Anthropic    *ProviderConfig `mapstructure:"anthropic"`
}

type ProviderConfig struct {
	APIKey      string   `mapstructure:"api-key"`
	APIKeyFile  string   `mapstructure:"api-key-file"`
	Model       string   `mapstructure:"model"`
	Endpoint    string   `mapstructure:"endpoint"`
	Temperature *float64 `mapstructure:"temperature"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "resume-analyzer splits a resume into sections and scores each of them with an AI model",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	for key, env := range map[string]string{
		"provider":               "RESUME_ANALYZER_PROVIDER",
		"kimi.api-key-file":      "KIMI_API_KEY_FILE",
		"gemini.api-key-file":    "GEMINI_API_KEY_FILE",
		"anthropic.api-key-file": "ANTHROPIC_API_KEY_FILE",
	} {
		if err := viper.BindEnv(key, env); err != nil {
			log.Fatalf("binding %s environment variable: %v", env, err)
		}
	}

	viper.SetDefault("provider", providerKimi)
	viper.SetDefault("max-attempts", 3)
	viper.SetDefault("timeout", 60*time.Second)
	viper.SetDefault("max-log-length", 200)
	viper.SetDefault("kimi.endpoint", kimi.DefaultEndpoint)
	viper.SetDefault("kimi.model", kimi.DefaultModel)
	viper.SetDefault("kimi.temperature", kimi.DefaultTemperature)
	viper.SetDefault("gemini.model", gemini.DefaultModel)
	viper.SetDefault("anthropic.model", claude.DefaultModel)
	viper.SetDefault("anthropic.temperature", claude.DefaultTemperature)

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is resume-analyzer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// Only analyze talks to a provider. Other commands work without a config.
	if analyzeCmd.CalledAs() == "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			log.Fatal(err)
		}
		return
	}

	viper.AddConfigPath(".")
	viper.SetConfigName(app)
	viper.SetConfigType("yaml")

	// The default config file is optional, the environment may carry everything.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	if config == nil {
		config = &Config{}
	}
	if config.Kimi == nil {
		config.Kimi = &ProviderConfig{}
	}
	if config.Gemini == nil {
		config.Gemini = &ProviderConfig{}
	}
	if config.Anthropic == nil {
		config.Anthropic = &ProviderConfig{}
	}

	return config, nil
}
