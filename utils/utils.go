/*
Copyright 2026, Cossack Labs Limited

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package utils contains small helpers shared by firewall packages and the CLI host.
package utils

import (
	"os"
	"path/filepath"
	"strings"
)

// TrimStringToN trims string to n symbols, used to keep logged queries short
func TrimStringToN(query string, n int) string {
	if n < 0 || len(query) <= n {
		return query
	}
	return query[:n]
}

// AbsPath expands leading "~/" to home directory of current user and returns absolute path
func AbsPath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path, err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(path)
}

// FileExists returns true if path exists and is not a directory
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
