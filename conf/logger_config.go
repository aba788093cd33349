// Copyright 2022-2026 The N42 Authors
// This file is part of the N42 library.
//
// The N42 library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The N42 library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the N42 library. If not, see <http://www.gnu.org/licenses/>.

package conf

// LoggerConfig configures the wallet process's logging output.
//
// Rotation policy:
//   - once a single file exceeds MaxSize MB it is rotated, the old
//     file renamed to name-timestamp.ext
//   - files beyond MaxBackups or older than MaxAge days are removed
//   - when Compress is set, rotated files are gzip-compressed
//
// Suggested presets:
//   - production: MaxSize=100, MaxBackups=10, MaxAge=30, Compress=true
//   - development: MaxSize=10, MaxBackups=3, MaxAge=7, Compress=false
//   - constrained disk: MaxSize=50, MaxBackups=5, MaxAge=7, Compress=true, TotalSizeCap=500
type LoggerConfig struct {
	// LogFile is the log file name. Empty means console-only output.
	// A relative path is placed under DataDir/log/.
	LogFile string `json:"name" yaml:"name"`

	// Level is one of trace, debug, info, warn, error, fatal.
	Level string `json:"level" yaml:"level"`

	// MaxSize is the per-file size cap in MB before rotation.
	// Default: 100.
	MaxSize int `json:"max_size" yaml:"max_size"`

	// MaxBackups is how many rotated files to retain. 0 means
	// unlimited (still subject to MaxAge). Default: 10.
	MaxBackups int `json:"max_count" yaml:"max_count"`

	// MaxAge is how many days to retain rotated files. 0 means
	// unlimited (still subject to MaxBackups). Default: 30.
	MaxAge int `json:"max_day" yaml:"max_day"`

	// Compress gzip-compresses rotated files, trading CPU for about
	// 90% less disk. Default: true.
	Compress bool `json:"compress" yaml:"compress"`

	// TotalSizeCap is the combined size cap across all log files, in
	// MB. 0 disables the cap; oldest files are pruned first once it
	// is hit. Default: 0.
	TotalSizeCap int `json:"total_size_cap" yaml:"total_size_cap"`

	// LocalTime names rotated files using local time instead of UTC.
	// Default: true.
	LocalTime bool `json:"local_time" yaml:"local_time"`

	// Console also writes to stdout even when LogFile is set.
	// Default: true.
	Console bool `json:"console" yaml:"console"`

	// JSONFormat writes file output as JSON lines. When LogFile is set,
	// the same format also applies to the Console mirror; console-only
	// output (empty LogFile) is always plain text. Default: true.
	JSONFormat bool `json:"json_format" yaml:"json_format"`
}

// DefaultLoggerConfig returns the default logging configuration.
func DefaultLoggerConfig() LoggerConfig {
	return LoggerConfig{
		LogFile:      "",
		Level:        "info",
		MaxSize:      100,
		MaxBackups:   10,
		MaxAge:       30,
		Compress:     true,
		TotalSizeCap: 0,
		LocalTime:    true,
		Console:      true,
		JSONFormat:   true,
	}
}

// Validate normalizes invalid fields to their defaults in place.
func (c *LoggerConfig) Validate() error {
	if c.MaxSize <= 0 {
		c.MaxSize = 100
	}
	if c.MaxBackups < 0 {
		c.MaxBackups = 10
	}
	if c.MaxAge < 0 {
		c.MaxAge = 30
	}
	return nil
}
