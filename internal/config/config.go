package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"lv0/internal/api"
	"lv0/internal/dirs"
	"lv0/internal/handoff"
	"lv0/internal/poller"
)

// EnvPrefix prefixes every environment variable read by lv0.
const EnvPrefix = "LV0"

// LoadDotenv loads .env files from the working directory into the process
// environment. Missing files are ignored and existing variables win.
func LoadDotenv() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load(".env")
}

// Init wires Viper with config paths, env, defaults, and flag bindings.
// It is non-fatal: any errors are returned for optional handling by caller.
func Init(root *cobra.Command) error {
	// Ensure base directories exist
	_ = dirs.EnsureAll()

	// Setup config search path
	if cfgDir, err := dirs.ConfigDir(); err == nil {
		_ = dirs.Ensure(cfgDir)
		viper.AddConfigPath(cfgDir)
	}
	viper.SetConfigName("config") // supports config.{yaml|yml|json|toml}

	setDefaults()

	// Environment variables: LV0_*, nested keys use underscores (LV0_S3_BUCKET)
	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	// Bind root persistent flags to Viper keys
	_ = viper.BindPFlag("base_url", root.PersistentFlags().Lookup("base-url"))
	_ = viper.BindPFlag("out_dir", root.PersistentFlags().Lookup("out-dir"))
	_ = viper.BindPFlag("verbose", root.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("jobs", root.PersistentFlags().Lookup("jobs"))

	// Read config file if present (ignore not found)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return err
		}
	}
	return nil
}

func setDefaults() {
	pol := poller.DefaultPolicy()
	viper.SetDefault("base_url", api.DefaultBaseURL)
	viper.SetDefault("jobs", 1)
	viper.SetDefault("poll_interval", pol.Interval)
	viper.SetDefault("poll_backoff", pol.Backoff)
	viper.SetDefault("max_polls", pol.MaxPolls)
	viper.SetDefault("timeout", pol.Timeout)
	viper.SetDefault("step_delay", time.Second)
	viper.SetDefault("s3.use_ssl", false)
	viper.SetDefault("s3.prefix", "reports")
}

// Policy returns the polling policy from configuration.
func Policy() poller.Policy {
	return poller.Policy{
		Interval:    viper.GetDuration("poll_interval"),
		Backoff:     viper.GetFloat64("poll_backoff"),
		MaxInterval: viper.GetDuration("poll_max_interval"),
		MaxPolls:    viper.GetInt("max_polls"),
		Timeout:     viper.GetDuration("timeout"),
	}
}

// S3 returns the S3 sink settings. ok is false when no bucket is configured.
func S3() (cfg handoff.S3Config, ok bool) {
	cfg = handoff.S3Config{
		Endpoint:  viper.GetString("s3.endpoint"),
		AccessKey: viper.GetString("s3.access_key"),
		SecretKey: viper.GetString("s3.secret_key"),
		UseSSL:    viper.GetBool("s3.use_ssl"),
		Bucket:    viper.GetString("s3.bucket"),
		Prefix:    viper.GetString("s3.prefix"),
	}
	return cfg, cfg.Bucket != ""
}
