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

import "fmt"

const (
	LogRotateMaxFileSizeInvalidValueError = "max-file-size-mb should be at least 1"
	LogRotateBackupCountInvalidValueError = "backup-file-count should be 0 (to retain all backups) or a positive value"
	UidInvalidValueError                  = "uid must be -1 (pass-through) or a non-negative value"
	GidInvalidValueError                  = "gid must be -1 (pass-through) or a non-negative value"
)

func isValidLogRotateConfig(config *LogRotateConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf(LogRotateMaxFileSizeInvalidValueError)
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf(LogRotateBackupCountInvalidValueError)
	}
	return nil
}

func isValidOwnerOverride(name string, v int) error {
	if v < -1 {
		return fmt.Errorf("%s must be -1 (pass-through) or a non-negative value", name)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}

	if err := isValidOwnerOverride("uid", config.Mount.Uid); err != nil {
		return fmt.Errorf("error parsing mount config: %w", err)
	}

	if err := isValidOwnerOverride("gid", config.Mount.Gid); err != nil {
		return fmt.Errorf("error parsing mount config: %w", err)
	}

	if _, ok := severityRanking[config.Logging.Severity]; !ok {
		return fmt.Errorf("invalid log severity: %s", config.Logging.Severity)
	}

	return nil
}
