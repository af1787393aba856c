package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/RyanBlaney/sonido-pronounce/logging"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation"
	"github.com/RyanBlaney/sonido-pronounce/pronunciation/config"
	"github.com/RyanBlaney/sonido-pronounce/templates"
	"github.com/RyanBlaney/sonido-pronounce/transcode"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "SONIDO_PRONOUNCE"

var (
	configFile   string
	logLevel     string
	templatesDir string
	cacheDir     string
	noCache      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sonido-pronounce",
	Short: "Pronunciation scoring against reference recordings",
	Long: `Scores a learner's recording of a letter or phrase against reference
recordings using MFCC features and dynamic time warping, and returns a
0-100 score with localized feedback.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := bindFlags(cmd, viper.GetViper()); err != nil {
			return err
		}
		return setupLogging()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "",
		"config file (default is $HOME/.config/sonido-pronounce/sonido-pronounce.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates-dir", "./references",
		"root directory of reference recordings (<mode>/<variant>/<item>_N.wav)")
	rootCmd.PersistentFlags().StringVar(&cacheDir, "cache-dir", "",
		"template cache directory (default is $HOME/.cache/sonido-pronounce)")
	rootCmd.PersistentFlags().BoolVar(&noCache, "no-cache", false,
		"analyze reference recordings on every run")
}

// initConfig reads in config file and ENV variables if set
func initConfig() {
	if configFile != "" {
		viper.SetConfigFile(configFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "sonido-pronounce"))
		}
		viper.AddConfigPath(".")
		viper.SetConfigName("sonido-pronounce")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			fmt.Fprintf(os.Stderr, "error: failed to read config: %v\n", err)
			os.Exit(1)
		}
	}
}

// bindFlags binds each cobra flag to its associated viper configuration
func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	var lastErr error

	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		envVarSuffix := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))

		// Apply the viper config value to the flag when the flag is not set and viper has a value
		if !f.Changed && v.IsSet(f.Name) {
			if err := cmd.Flags().Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name))); err != nil {
				lastErr = err
			}
		}

		if err := v.BindPFlag(f.Name, f); err != nil {
			lastErr = err
		}
		if err := v.BindEnv(f.Name, envPrefix+"_"+envVarSuffix); err != nil {
			lastErr = err
		}
	})

	return lastErr
}

func setupLogging() error {
	level, err := logging.ParseLevel(logLevel)
	if err != nil {
		return err
	}

	// stdout carries the JSON response
	logger := logging.NewWriterLogger(os.Stderr, os.Stderr, false)
	logger.SetLevel(level)
	logging.SetGlobalLogger(logger)
	return nil
}

// loadConfig layers the config file and environment over the defaults
func loadConfig() (*config.Config, error) {
	cfg := config.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// app bundles the engine and the template loader for one command run
type app struct {
	evaluator *pronunciation.Evaluator
	loader    *templates.Loader
	decoder   *transcode.Decoder
	cache     templates.Cache
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger := logging.GetGlobalLogger()
	evaluator, err := pronunciation.NewEvaluator(cfg, logger)
	if err != nil {
		return nil, err
	}

	var cache templates.Cache
	if !noCache {
		dir := cacheDir
		if dir == "" {
			base, err := os.UserCacheDir()
			if err != nil {
				return nil, fmt.Errorf("cannot locate cache directory: %w", err)
			}
			dir = filepath.Join(base, "sonido-pronounce")
		}
		if cache, err = templates.NewBadgerCache(templates.BadgerOptions{Dir: dir, Logger: logger}); err != nil {
			return nil, err
		}
	}

	decoder := transcode.NewDecoder(nil)
	a := &app{evaluator: evaluator, decoder: decoder, cache: cache}
	if a.loader, err = templates.NewLoader(templatesDir, decoder, evaluator, cache, logger); err != nil {
		a.Close()
		return nil, err
	}

	return a, nil
}

func (a *app) Close() error {
	if a.cache != nil {
		return a.cache.Close()
	}
	return nil
}
