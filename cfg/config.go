// Copyright 2024 Google Inc. All Rights Reserved.
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

package cfg

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	AppName string `yaml:"app-name"`

	Mount MountConfig `yaml:"mount"`

	Logging LoggingConfig `yaml:"logging"`

	Metrics MetricsConfig `yaml:"metrics"`

	Debug DebugConfig `yaml:"debug"`
}

type MountConfig struct {
	// Foreground, when false, re-execs the process detached via daemonize.
	Foreground bool `yaml:"foreground"`

	// FileMode and DirMode override the permission bits reported for regular
	// files and directories when nonzero; zero means pass through the host mode.
	FileMode Octal `yaml:"file-mode"`
	DirMode  Octal `yaml:"dir-mode"`

	// Uid and Gid, when >= 0, override the owner reported for every inode.
	Uid int `yaml:"uid"`
	Gid int `yaml:"gid"`

	Options []string `yaml:"options"`
}

type LoggingConfig struct {
	Severity LogSeverity `yaml:"severity"`
	Format   LogFormat   `yaml:"format"`

	// DebugLogFile and AccessLogFile are empty to mean "write to stderr".
	DebugLogFile  string `yaml:"debug-log-file"`
	AccessLogFile string `yaml:"access-log-file"`

	LogRotate LogRotateConfig `yaml:"log-rotate"`
}

type LogRotateConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count"`
	Compress        bool `yaml:"compress"`
}

type MetricsConfig struct {
	// Addr, when non-empty, serves Prometheus metrics at this address (e.g. ":9090").
	Addr string `yaml:"addr"`
}

type DebugConfig struct {
	ExitOnInvariantViolation bool `yaml:"exit-on-invariant-violation"`

	LogMutex bool `yaml:"log-mutex"`
}

func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("app-name", "", "mirrorfuse", "The application name of this mount.")
	if err = viper.BindPFlag("app-name", flagSet.Lookup("app-name")); err != nil {
		return err
	}

	flagSet.BoolP("foreground", "", true, "Stay in the foreground instead of daemonizing.")
	if err = viper.BindPFlag("mount.foreground", flagSet.Lookup("foreground")); err != nil {
		return err
	}

	flagSet.IntP("file-mode", "", 0, "Permission bits to report for files, in octal. 0 passes through the host mode.")
	if err = viper.BindPFlag("mount.file-mode", flagSet.Lookup("file-mode")); err != nil {
		return err
	}

	flagSet.IntP("dir-mode", "", 0, "Permission bits to report for directories, in octal. 0 passes through the host mode.")
	if err = viper.BindPFlag("mount.dir-mode", flagSet.Lookup("dir-mode")); err != nil {
		return err
	}

	flagSet.IntP("uid", "", -1, "UID owner of all inodes. -1 passes through the host uid.")
	if err = viper.BindPFlag("mount.uid", flagSet.Lookup("uid")); err != nil {
		return err
	}

	flagSet.IntP("gid", "", -1, "GID owner of all inodes. -1 passes through the host gid.")
	if err = viper.BindPFlag("mount.gid", flagSet.Lookup("gid")); err != nil {
		return err
	}

	flagSet.StringSliceP("o", "o", nil, "Additional system-specific mount options.")
	if err = viper.BindPFlag("mount.options", flagSet.Lookup("o")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", "INFO", "Minimum log severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", "text", "Log line format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("debug-log-file", "", "", "Path for the debug log sink. Empty means stderr.")
	if err = viper.BindPFlag("logging.debug-log-file", flagSet.Lookup("debug-log-file")); err != nil {
		return err
	}

	flagSet.StringP("access-log-file", "", "", "Path for the access log sink. Empty means stderr.")
	if err = viper.BindPFlag("logging.access-log-file", flagSet.Lookup("access-log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-max-size-mb", "", 512, "Max size in MiB before a log file is rotated.")
	if err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-rotate-max-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-rotate-backup-count", "", 10, "Number of rotated log backups to retain.")
	if err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-rotate-backup-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-rotate-compress", "", true, "Compress rotated log backups.")
	if err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-rotate-compress")); err != nil {
		return err
	}

	flagSet.StringP("metrics-addr", "", "", "Address to serve Prometheus metrics on, e.g. :9090. Empty disables it.")
	if err = viper.BindPFlag("metrics.addr", flagSet.Lookup("metrics-addr")); err != nil {
		return err
	}

	flagSet.BoolP("debug_invariants", "", false, "Exit when internal registry invariants are violated.")
	if err = viper.BindPFlag("debug.exit-on-invariant-violation", flagSet.Lookup("debug_invariants")); err != nil {
		return err
	}

	flagSet.BoolP("debug_mutex", "", false, "Set the log severity to TRACE. Mutex hold times are not reported.")
	if err = viper.BindPFlag("debug.log-mutex", flagSet.Lookup("debug_mutex")); err != nil {
		return err
	}

	return nil
}
