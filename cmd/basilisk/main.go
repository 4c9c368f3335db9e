package main

import (
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/go-go-golems/basilisk/cmd/basilisk/cmds"
)

var rootCmd = &cobra.Command{
	Use:   "basilisk",
	Short: "basilisk stores conversations and talks to AI providers",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags are parsed by now, pick up --log-level and co
		initLogger()
	},
	SilenceUsage: true,
}

type logConfig struct {
	WithCaller bool
	Level      string
	LogFormat  string
	LogFile    string
}

func initLogger() {
	logLevel := viper.GetString("log-level")
	if viper.GetBool("verbose") && logLevel != "trace" {
		logLevel = "debug"
	}

	err := InitLogger(&logConfig{
		Level:      logLevel,
		LogFile:    viper.GetString("log-file"),
		LogFormat:  viper.GetString("log-format"),
		WithCaller: viper.GetBool("with-caller"),
	})
	cobra.CheckErr(err)
}

func InitLogger(config *logConfig) error {
	if config.WithCaller {
		log.Logger = log.With().Caller().Logger()
	}
	var logWriter io.Writer
	if config.LogFormat == "text" {
		logWriter = zerolog.ConsoleWriter{Out: os.Stderr}
	} else {
		logWriter = os.Stderr
	}

	if config.LogFile != "" {
		logWriter = io.MultiWriter(
			logWriter,
			zerolog.ConsoleWriter{
				NoColor: true,
				Out: &lumberjack.Logger{
					Filename:   config.LogFile,
					MaxSize:    10, // megabytes
					MaxBackups: 3,
					MaxAge:     28, // days
				},
			})
	}

	log.Logger = log.Output(logWriter)

	switch config.Level {
	case "trace":
		zerolog.SetGlobalLevel(zerolog.TraceLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "fatal":
		zerolog.SetGlobalLevel(zerolog.FatalLevel)
	}

	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.basilisk/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	viper.SetEnvPrefix("basilisk")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	cobra.CheckErr(viper.BindPFlags(rootCmd.PersistentFlags()))

	showCmd, err := cmds.NewShowCommand()
	cobra.CheckErr(err)
	showCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(showCmd)
	cobra.CheckErr(err)

	modelsCmd, err := cmds.NewModelsCommand()
	cobra.CheckErr(err)
	modelsCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(modelsCmd)
	cobra.CheckErr(err)

	providersCmd, err := cmds.NewProvidersCommand()
	cobra.CheckErr(err)
	providersCobraCmd, err := cli.BuildCobraCommandFromGlazeCommand(providersCmd)
	cobra.CheckErr(err)

	rootCmd.AddCommand(
		showCobraCmd,
		cmds.NewNewCommand(),
		cmds.NewChatCommand(),
		modelsCobraCmd,
		providersCobraCmd,
		cmds.NewSchemaCommand(),
		cmds.NewOCRCommand(),
		cmds.NewTranscribeCommand(),
	)
}
