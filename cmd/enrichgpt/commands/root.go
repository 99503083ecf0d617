// Package commands implements the enrichgpt CLI.
package commands

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmylchreest/enrichgpt/internal/logger"
	"github.com/jmylchreest/enrichgpt/internal/output"
	"github.com/jmylchreest/enrichgpt/pkg/credential"
	"github.com/jmylchreest/enrichgpt/pkg/enrichment"
)

// pluginName is the configuration namespace for deployment-level settings.
const pluginName = "enrichments-gpt"

// staticKeyKey holds the deployment API key, fed by OPENAI_API_KEY.
const staticKeyKey = "plugins." + pluginName + ".api_key"

var rootCmd = &cobra.Command{
	Use:   "enrichgpt",
	Short: "Enrich SQLite rows with LLM completions",
	Long: `enrichgpt renders a prompt template against every row of a SQLite
table, sends it to a chat completion model and writes the answer back
into an output column.

Examples:
  # Summarise each museum with the deployment key from OPENAI_API_KEY
  enrichgpt run --db museums.db --table museums \
      --prompt "Write a haiku about {{ name }}" --output-column haiku

  # Describe an image per row with a vision model
  enrichgpt run --db photos.db --table photos -m gpt-4o-vision \
      --prompt "Describe this photo" --image-url "{{ url }}"

  # Estimate prompt tokens before running
  enrichgpt estimate --prompt "{{ name }} {{ city }}" -m gpt-4o`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default $HOME/.enrichgpt.yaml)")
	flags.Bool("debug", false, "enable debug logging")
	flags.BoolP("quiet", "q", false, "only log errors")
	flags.Bool("log-json", false, "log as JSON")
	flags.StringP("output", "o", string(output.FormatText), "output format: text, json, jsonl, yaml")

	_ = viper.BindPFlag("config", flags.Lookup("config"))
	_ = viper.BindPFlag("debug", flags.Lookup("debug"))
	_ = viper.BindPFlag("quiet", flags.Lookup("quiet"))
	_ = viper.BindPFlag("log_json", flags.Lookup("log-json"))
	_ = viper.BindPFlag("output", flags.Lookup("output"))
}

func initConfig() {
	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigName(".enrichgpt")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("ENRICHGPT")
	viper.AutomaticEnv()

	// The deployment key, when set, takes precedence over anything a job
	// supplies.
	_ = viper.BindEnv(staticKeyKey, "OPENAI_API_KEY")

	_ = viper.ReadInConfig()
}

// setupLogging initialises the logger from the global flags.
func setupLogging() {
	logger.Init(logger.Options{
		Debug: viper.GetBool("debug"),
		Quiet: viper.GetBool("quiet"),
		JSON:  viper.GetBool("log_json"),
	})
}

// staticKey returns the deployment-level API key, if any.
func staticKey() string {
	return credential.PluginAPIKey(viper.GetViper(), pluginName)
}

// secretStore is consulted for jobs that name a secret.
func secretStore() credential.SecretStore {
	return credential.ChainSecrets{
		credential.EnvSecrets{},
		credential.ViperSecrets{V: viper.GetViper()},
	}
}

func outputFormat() (output.Format, error) {
	return output.ParseFormat(viper.GetString("output"))
}

// Execute runs the root command.
func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		logError("%s", describe(err))
	}
	return err
}

// describe flattens validation errors into one line per field.
func describe(err error) string {
	var verr *enrichment.ValidationError
	if errors.As(err, &verr) {
		msg := "invalid configuration:"
		for _, fe := range verr.Errors {
			msg += fmt.Sprintf("\n  %s: %s", fe.Field, fe.Message)
		}
		return msg
	}
	return logger.Redact(err.Error())
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
}

func logInfo(format string, args ...any) {
	if !viper.GetBool("quiet") {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}
