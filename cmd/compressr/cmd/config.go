package cmd

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/compressr/internal/config"
	"github.com/jmylchreest/compressr/pkg/bytesize"
	"github.com/jmylchreest/compressr/pkg/duration"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long:  `Commands for inspecting and validating compressr configuration.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the effective configuration after merging defaults, the config
file and environment variables. Credentials are redacted.

Redirect the output to a file to create a configuration template:

  compressr config show > compressr.yaml

Environment variables use the COMPRESSR_ prefix and underscores for
nesting (server.port -> COMPRESSR_SERVER_PORT). The bare legacy names
(BOT_TOKEN, OWNER, MAX_FILE_SIZE, ...) are honored too.`,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration and check every value, credentials included.
Exits non-zero when the configuration would not start the service.`,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)

	configShowCmd.Flags().String("format", "yaml", "output format (yaml, json)")
}

// toMap converts a config struct to a map keyed by mapstructure tags,
// formatting durations and sizes for human readability.
func toMap(v any) map[string]any {
	result := make(map[string]any)
	val := reflect.ValueOf(v)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)

		key := fieldType.Tag.Get("mapstructure")
		if key == "" {
			key = fieldType.Name
		}

		switch v := field.Interface().(type) {
		case time.Duration:
			result[key] = duration.Format(v)
		case duration.Duration:
			result[key] = v.String()
		case bytesize.Size:
			result[key] = v.String()
		default:
			if field.Kind() == reflect.Struct {
				result[key] = toMap(field.Interface())
			} else {
				result[key] = field.Interface()
			}
		}
	}
	return result
}

// redactCredentials masks secret values in a copy of the config.
func redactCredentials(cfg config.Config) config.Config {
	if cfg.Telegram.APIHash != "" {
		cfg.Telegram.APIHash = "[redacted]"
	}
	if cfg.Telegram.BotToken != "" {
		cfg.Telegram.BotToken = "[redacted]"
	}
	return cfg
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	format, _ := cmd.Flags().GetString("format")

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfgMap := toMap(redactCredentials(*cfg))

	switch format {
	case "json":
		data, err := json.MarshalIndent(cfgMap, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(cfgMap)
		if err != nil {
			return fmt.Errorf("marshaling config: %w", err)
		}
		fmt.Println("# compressr configuration")
		fmt.Println("# Duration format: 30s, 5m, 1h, 2 days")
		fmt.Println("# Size format: 512MB, 2GB")
		fmt.Println("")
		fmt.Print(string(data))
	default:
		return fmt.Errorf("unknown format %q (yaml, json)", format)
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	if err := cfg.ValidateCredentials(); err != nil {
		return fmt.Errorf("configuration invalid: %w", err)
	}

	fmt.Println("configuration OK")
	return nil
}
