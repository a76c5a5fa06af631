package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

var conf *Conf

type Conf struct {
	App struct {
		Version string `toml:"version"`
		Title   string `toml:"title"`
	} `toml:"app"`
	Output struct {
		Format         string `toml:"format"`
		LogDir         string `toml:"logDir"`
		OutputTerminal bool   `toml:"outputTerminal"`
	} `toml:"output"`
	Task struct {
		Workers int `toml:"workers"`
	} `toml:"task"`
	Layer struct {
		Name        string `toml:"name"`
		Description string `toml:"description"`
	} `toml:"layer"`
}

// InitConf loads the optional config file. Flags and positional arguments
// take precedence over config values.
func InitConf(cfgFile string) {
	if cfgFile != "" {
		if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "config file(%s) not exist\n", cfgFile)
			os.Exit(exitUsage)
		}
		viper.SetConfigType("toml")
		viper.SetConfigFile(cfgFile)
		viper.AutomaticEnv()
		if err := viper.ReadInConfig(); err != nil {
			fmt.Fprintf(os.Stderr, "read config file(%s) error, details: %s\n", viper.ConfigFileUsed(), err)
			os.Exit(exitUsage)
		}
	}

	viper.SetDefault("app.version", "v 0.1.0")
	viper.SetDefault("app.title", "vtiler")
	viper.SetDefault("output.format", "dir")
	viper.SetDefault("output.outputTerminal", true)
	viper.SetDefault("task.workers", 4)

	if err := viper.Unmarshal(&conf); err != nil {
		fmt.Fprintf(os.Stderr, "config unmarshal error: %s\n", err)
		os.Exit(exitUsage)
	}
}

// outputFormat resolves flag > config.
func outputFormat() string {
	if formatFlag != "" {
		return formatFlag
	}
	return conf.Output.Format
}

// workerCount resolves flag > config.
func workerCount() int {
	if workerFlag > 0 {
		return workerFlag
	}
	if conf.Task.Workers > 0 {
		return conf.Task.Workers
	}
	return 4
}

// resolveLayerName resolves positional > config > core default.
func resolveLayerName() string {
	if layerFlag != "" {
		return layerFlag
	}
	return conf.Layer.Name
}
