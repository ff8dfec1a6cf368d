package config

import (
	"fmt"
	"strings"

	"hyperfeed/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// WatchLogLevel re-applies app.log_level whenever the config file
// changes on disk, so verbosity can be raised on a running ingester
// without a restart.
func WatchLogLevel(path string) error {
	if strings.TrimSpace(path) == "" {
		return fmt.Errorf("log level watcher requires a config path")
	}
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("read config for watch failed: %w", err)
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			logger.Errorf("config reload failed (%s): %v", evt.Name, err)
			return
		}
		level := v.GetString("app.log_level")
		if level == "" {
			return
		}
		logger.SetLevel(level)
		logger.Infof("log level switched to %s", level)
	})
	v.WatchConfig()
	return nil
}
