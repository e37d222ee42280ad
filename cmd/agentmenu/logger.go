// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"os"

	"github.com/kadirpekel/agentmenu/pkg/config"
	"github.com/kadirpekel/agentmenu/pkg/logger"
)

const (
	LogFileEnvVar   = "LOG_FILE"
	LogLevelEnvVar  = "LOG_LEVEL"
	LogFormatEnvVar = "LOG_FORMAT"

	DefaultLogLevel  = "info"
	DefaultLogFormat = logger.FormatSimple
)

// logSettings is one resolved logger setup.
type logSettings struct {
	level  string
	file   string
	format string
}

// resolveLogSettings picks each value by priority: CLI flag, environment,
// config file, default. cfg may be nil.
func resolveLogSettings(cliLevel, cliFile, cliFormat string, cfg *config.LoggerConfig) logSettings {
	pick := func(flag, env, fromConfig, fallback string) string {
		for _, v := range []string{flag, os.Getenv(env), fromConfig} {
			if v != "" {
				return v
			}
		}
		return fallback
	}

	var cfgLevel, cfgFile, cfgFormat string
	if cfg != nil {
		cfgLevel, cfgFile, cfgFormat = cfg.Level, cfg.File, cfg.Format
	}
	return logSettings{
		level:  pick(cliLevel, LogLevelEnvVar, cfgLevel, DefaultLogLevel),
		file:   pick(cliFile, LogFileEnvVar, cfgFile, ""),
		format: pick(cliFormat, LogFormatEnvVar, cfgFormat, DefaultLogFormat),
	}
}

// overridden reports whether flags or environment already decided every
// logger setting, leaving nothing for the config file.
func overridden(cliLevel, cliFile, cliFormat string) bool {
	set := func(flag, env string) bool { return flag != "" || os.Getenv(env) != "" }
	return set(cliLevel, LogLevelEnvVar) && set(cliFile, LogFileEnvVar) && set(cliFormat, LogFormatEnvVar)
}

func initLogger(s logSettings) (func(), error) {
	level, err := logger.ParseLevel(s.level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	output := os.Stderr
	var cleanup func()
	if s.file != "" {
		file, closeFn, err := logger.OpenLogFile(s.file)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		output = file
		cleanup = closeFn
	}

	logger.Init(level, output, s.format)
	return cleanup, nil
}

// initLoggerFromCLI sets up logging before any config is read.
func initLoggerFromCLI(cliLevel, cliFile, cliFormat string) (func(), error) {
	return initLogger(resolveLogSettings(cliLevel, cliFile, cliFormat, nil))
}

// applyConfigLogger re-initializes logging once the config file is known,
// unless flags and environment already cover every setting.
func applyConfigLogger(cli *CLI, cfg *config.LoggerConfig) (func(), error) {
	if overridden(cli.LogLevel, cli.LogFile, cli.LogFormat) {
		return nil, nil
	}
	return initLogger(resolveLogSettings(cli.LogLevel, cli.LogFile, cli.LogFormat, cfg))
}
