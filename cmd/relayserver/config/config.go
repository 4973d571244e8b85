package config

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/viper"
)

func setViperDefaults() {
	viper.SetDefault("loglevel", "info")
	viper.SetDefault("logfile", "")
	viper.SetDefault("listenaddress", ":8080")
	viper.SetDefault("probeinterval", 30*time.Second)
}

func LoadConfig(configFilePath string) {
	setViperDefaults()
	viper.AutomaticEnv()

	viper.SetConfigFile(configFilePath)
	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine: defaults and environment variables
		// still apply. SetConfigFile surfaces it as fs.ErrNotExist, not
		// as viper's ConfigFileNotFoundError.
		if errors.Is(err, fs.ErrNotExist) {
			slog.Info("no config file found", "configFilePath", configFilePath)
		} else {
			slog.Error("error during config read", "err", err)
			panic(err)
		}
	}
}

// Configure the slog default logger from the loglevel and logfile config keys.
//
// Valid log levels are "none", "error", "warn", "info", "debug".
// logfile may either specify a file path or be empty, in which case the
// logger points to stdout.
//
// Returns the os.File pointer that slog writes to, so it may be gracefully shut:
// ```
// logFilePointer := config.ConfigureLogger()
//
//	if logFilePointer != nil{
//		defer logFilePointer.Close()
//	}
//
// ```
func ConfigureLogger() *os.File {
	f, err := configureDefaultLogger(viper.GetString("loglevel"), viper.GetString("logfile"), slog.HandlerOptions{})
	if err != nil {
		slog.Error("error configuring logger", "err", err)
		panic(err)
	}
	return f
}

func configureDefaultLogger(logLevel string, logFile string, loggerOptions slog.HandlerOptions) (*os.File, error) {

	switch logLevel {
	case "none":
		// No logging is required, disable the logger and return
		slog.SetDefault(slog.New(slog.NewTextHandler(io.Discard, nil)))
		return nil, nil
	case "error":
		loggerOptions.Level = slog.LevelError
	case "warn":
		loggerOptions.Level = slog.LevelWarn
	case "info":
		loggerOptions.Level = slog.LevelInfo
	case "debug":
		loggerOptions.Level = slog.LevelDebug
	default:
		return nil, errors.New("unexpected log level")
	}

	// --------------------------------------------------------------------------------

	if logFile == "" {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &loggerOptions)))
		return nil, nil
	}
	logFilePointer, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(logFilePointer, &loggerOptions)))
	return logFilePointer, nil
}
