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

// Package rules loads per-database allow and deny lists and the CSV permission matrix.
// Every lookup checks the modification time of the backing file and reloads it in full
// when the time differs. Loaded sets are immutable and replaced by reference.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/cossacklabs/sqlfirewall/sqltext"
	log "github.com/sirupsen/logrus"
)

// ListKind selects list file for database
type ListKind int

// Supported list kinds
const (
	Blacklist ListKind = iota
	Whitelist
)

// File name suffixes of list kinds
const (
	BlacklistFileSuffix = "_deny_blacklist.txt"
	WhitelistFileSuffix = "_deny_except_whitelist.txt"
)

// Errors returned by stores
var (
	ErrRulesFileNotFound   = errors.New("rules file not found")
	ErrInvalidDatabaseName = errors.New("invalid database name")
	ErrInvalidRule         = errors.New("invalid rule")
	ErrUnknownListKind     = errors.New("unknown list kind")
)

// String returns name of list kind used in logs and configuration
func (kind ListKind) String() string {
	switch kind {
	case Blacklist:
		return "blacklist"
	case Whitelist:
		return "whitelist"
	default:
		return "unknown"
	}
}

// FileSuffix returns suffix appended to database name to build rules file name
func (kind ListKind) FileSuffix() (string, error) {
	switch kind {
	case Blacklist:
		return BlacklistFileSuffix, nil
	case Whitelist:
		return WhitelistFileSuffix, nil
	default:
		return "", ErrUnknownListKind
	}
}

// ValidateDatabaseName rejects names that can't be used as part of file name
func ValidateDatabaseName(database string) error {
	if strings.TrimSpace(database) == "" ||
		strings.ContainsAny(database, `/\`) ||
		strings.Contains(database, "..") ||
		strings.ContainsRune(database, filepath.Separator) {
		return fmt.Errorf("%w: %q", ErrInvalidDatabaseName, database)
	}
	return nil
}

// RuleSet is immutable set of comparable statements loaded from one file
type RuleSet struct {
	database   string
	path       string
	modTime    time.Time
	statements map[string]struct{}
}

// Database returns database name of rule set
func (set *RuleSet) Database() string {
	return set.database
}

// ModTime returns modification time of file at load
func (set *RuleSet) ModTime() time.Time {
	return set.modTime
}

// Len returns number of unique statements
func (set *RuleSet) Len() int {
	return len(set.statements)
}

// Contains returns true if comparable form of statement is in the set
func (set *RuleSet) Contains(comparable string) bool {
	_, ok := set.statements[comparable]
	return ok
}

// ParseRules reads one statement per line. Lines are trimmed, trailing semicolons removed,
// blank lines skipped and every statement converted to comparable form.
func ParseRules(scanner *bufio.Scanner) (map[string]struct{}, error) {
	statements := make(map[string]struct{})
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := strings.TrimSpace(scanner.Text())
		for strings.HasSuffix(line, ";") {
			line = strings.TrimSpace(strings.TrimSuffix(line, ";"))
		}
		if line == "" {
			continue
		}
		comparable, err := sqltext.GetComparable(line)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %s", ErrInvalidRule, lineNumber, err)
		}
		statements[comparable] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return statements, nil
}

// Store keeps rule sets of one list kind for every database
type Store struct {
	directory   string
	kind        ListKind
	snapshots   sync.Map
	reloadMutex sync.Mutex
	logger      *log.Entry
}

// NewStore returns store that reads list files of kind from directory
func NewStore(directory string, kind ListKind) *Store {
	return &Store{
		directory: directory,
		kind:      kind,
		logger:    log.WithField("store", kind.String()),
	}
}

// Kind returns list kind of store
func (store *Store) Kind() ListKind {
	return store.kind
}

// Path returns path of list file for database
func (store *Store) Path(database string) (string, error) {
	if err := ValidateDatabaseName(database); err != nil {
		return "", err
	}
	suffix, err := store.kind.FileSuffix()
	if err != nil {
		return "", err
	}
	return filepath.Join(store.directory, database+suffix), nil
}

// Get returns current rule set for database, reloading it when file modification time changed
func (store *Store) Get(database string) (*RuleSet, error) {
	path, err := store.Path(database)
	if err != nil {
		return nil, err
	}
	modTime, err := statModTime(path)
	if err != nil {
		return nil, err
	}
	if set, ok := store.snapshot(database); ok && set.modTime.Equal(modTime) {
		return set, nil
	}

	store.reloadMutex.Lock()
	defer store.reloadMutex.Unlock()
	// another goroutine could reload file while we were waiting
	if set, ok := store.snapshot(database); ok && set.modTime.Equal(modTime) {
		return set, nil
	}
	set, err := store.load(database, path)
	if err != nil {
		store.logger.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallRulesReloadError).
			WithField("path", path).Errorln("Can't load rules file")
		return nil, err
	}
	store.snapshots.Store(database, set)
	store.logger.WithField("path", path).Debugf("Loaded %d rules", set.Len())
	return set, nil
}

// Contains returns true if sql is in the list of database
func (store *Store) Contains(database, sql string) (bool, error) {
	comparable, err := sqltext.GetComparable(sql)
	if err != nil {
		return false, err
	}
	return store.ContainsComparable(database, comparable)
}

// ContainsComparable same as Contains for already computed comparable form
func (store *Store) ContainsComparable(database, comparable string) (bool, error) {
	set, err := store.Get(database)
	if err != nil {
		return false, err
	}
	return set.Contains(comparable), nil
}

func (store *Store) snapshot(database string) (*RuleSet, bool) {
	value, ok := store.snapshots.Load(database)
	if !ok {
		return nil, false
	}
	return value.(*RuleSet), true
}

func (store *Store) load(database, path string) (*RuleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRulesFileNotFound, path)
		}
		return nil, err
	}
	defer file.Close()
	// stat opened file to take modification time of exactly the content we read
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	statements, err := ParseRules(bufio.NewScanner(file))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &RuleSet{database: database, path: path, modTime: info.ModTime(), statements: statements}, nil
}

func statModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return time.Time{}, fmt.Errorf("%w: %s", ErrRulesFileNotFound, path)
		}
		return time.Time{}, err
	}
	if info.IsDir() {
		return time.Time{}, fmt.Errorf("%w: %s is a directory", ErrRulesFileNotFound, path)
	}
	return info.ModTime(), nil
}
