package main

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/go-go-golems/cogchat/pkg/providers"
	"github.com/go-go-golems/cogchat/pkg/router"
)

var rootCmd = &cobra.Command{
	Use:   "cogchat",
	Short: "Multi-provider LLM chat with graph-store persistence",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func initConfig() error {
	level, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		level = zerolog.InfoLevel
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(level)

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		if err := viper.ReadInConfig(); err != nil {
			return err
		}
	} else {
		viper.SetConfigName(".cogchat")
		viper.SetConfigType("yaml")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		// A missing default config file is fine.
		_ = viper.ReadInConfig()
	}
	return nil
}

// configSource builds adapter configuration from viper. API keys come from
// the config file or from COGCHAT_<PROVIDER>_API_KEY environment variables.
func configSource(provider, model string) providers.ClientConfig {
	return providers.ClientConfig{
		Provider:    provider,
		Model:       model,
		APIKey:      viper.GetString(provider + "-api-key"),
		BaseURL:     viper.GetString(provider + "-base-url"),
		Temperature: float32(viper.GetFloat64("temperature")),
		MaxTokens:   viper.GetInt("max-tokens"),
	}
}

// buildRouter returns the capability registry, overridden by a capabilities
// file when one is configured.
func buildRouter() (*router.Router, error) {
	r := router.NewDefaultRouter()
	if path := viper.GetString("capabilities"); path != "" {
		if err := r.LoadCapabilitiesFile(path); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func main() {
	rootCmd.PersistentFlags().String("config", "", "config file (default $HOME/.cogchat.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().String("capabilities", "", "provider capabilities YAML file")
	rootCmd.PersistentFlags().String("provider", "", "pin a provider instead of routing")
	rootCmd.PersistentFlags().String("model", "", "model override")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())
	viper.SetEnvPrefix("cogchat")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	rootCmd.AddCommand(
		newAskCommand(),
		newChatCommand(),
		newEmbedCommand(),
		newBridgeCommand(),
		newProvidersCommand(),
		newAuditCommand(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
