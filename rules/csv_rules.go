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

package rules

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cossacklabs/sqlfirewall/logging"
	log "github.com/sirupsen/logrus"
)

// CSV rules file constants
const (
	CSVFileSuffix  = "_rules_manager.csv"
	CSVSeparator   = ';'
	CSVComment     = '#'
	PublicUsername = "public"
	AllTables      = "all"
)

// Statement verbs covered by CSV rules
const (
	VerbDelete = "delete"
	VerbInsert = "insert"
	VerbSelect = "select"
	VerbUpdate = "update"
)

var csvHeader = []string{"username", "table", VerbDelete, VerbInsert, VerbSelect, VerbUpdate}

// Errors returned by CSVStore
var (
	ErrUnknownTable     = errors.New("csv rule references unknown table")
	ErrInvalidCSVHeader = errors.New("invalid csv rules header")
	ErrInvalidCSVRule   = errors.New("invalid csv rule")
	ErrUnknownVerb      = errors.New("unknown statement verb")
)

// Queryer is a part of database connection used to read metadata
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// TableLister returns names of tables existing in database
type TableLister interface {
	ListTables(ctx context.Context, conn Queryer, database string) ([]string, error)
}

// InformationSchemaTableLister lists tables with query to information_schema with database name as single parameter
type InformationSchemaTableLister struct {
	Query string
}

// Queries of information_schema for supported dialects
const (
	PostgreSQLTablesQuery = "SELECT table_name FROM information_schema.tables WHERE table_catalog = $1"
	MySQLTablesQuery      = "SELECT table_name FROM information_schema.tables WHERE table_schema = ?"
)

// NewPostgreSQLTableLister returns lister for PostgreSQL
func NewPostgreSQLTableLister() *InformationSchemaTableLister {
	return &InformationSchemaTableLister{Query: PostgreSQLTablesQuery}
}

// NewMySQLTableLister returns lister for MySQL
func NewMySQLTableLister() *InformationSchemaTableLister {
	return &InformationSchemaTableLister{Query: MySQLTablesQuery}
}

// ListTables implements TableLister
func (lister *InformationSchemaTableLister) ListTables(ctx context.Context, conn Queryer, database string) ([]string, error) {
	if conn == nil {
		return nil, errors.New("no connection to list tables")
	}
	rows, err := conn.QueryContext(ctx, lister.Query, database)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tables []string
	for rows.Next() {
		var table string
		if err := rows.Scan(&table); err != nil {
			return nil, err
		}
		tables = append(tables, table)
	}
	return tables, rows.Err()
}

// Permission of user on table
type Permission struct {
	Delete bool
	Insert bool
	Select bool
	Update bool
}

// Grants returns true if permission allows verb
func (permission Permission) Grants(verb string) (bool, error) {
	switch strings.ToLower(verb) {
	case VerbDelete:
		return permission.Delete, nil
	case VerbInsert:
		return permission.Insert, nil
	case VerbSelect:
		return permission.Select, nil
	case VerbUpdate:
		return permission.Update, nil
	default:
		return false, fmt.Errorf("%w: %s", ErrUnknownVerb, verb)
	}
}

// CSVRule is one row of CSV rules file
type CSVRule struct {
	Username string
	Table    string
	Permission
	Comment string
}

type ruleKey struct {
	username string
	table    string
}

// CSVRuleSet is immutable matrix of permissions of one database
type CSVRuleSet struct {
	database string
	modTime  time.Time
	rules    map[ruleKey]Permission
}

// Len returns number of rules
func (set *CSVRuleSet) Len() int {
	return len(set.rules)
}

// ModTime returns modification time of file at load
func (set *CSVRuleSet) ModTime() time.Time {
	return set.modTime
}

// Allowed looks for rule granting verb in order (user, table), (user, all), (public, table), (public, all).
// Returns false when no rule grants it.
func (set *CSVRuleSet) Allowed(username, table, verb string) (bool, error) {
	username = strings.ToLower(username)
	table = strings.ToLower(table)
	keys := []ruleKey{
		{username, table},
		{username, AllTables},
		{PublicUsername, table},
		{PublicUsername, AllTables},
	}
	for _, key := range keys {
		permission, ok := set.rules[key]
		if !ok {
			continue
		}
		granted, err := permission.Grants(verb)
		if err != nil {
			return false, err
		}
		if granted {
			return true, nil
		}
	}
	return false, nil
}

// ParseCSVRules reads rules from reader. First non-comment record must be header.
func ParseCSVRules(reader io.Reader) ([]CSVRule, error) {
	csvReader := csv.NewReader(reader)
	csvReader.Comma = CSVSeparator
	csvReader.Comment = CSVComment
	csvReader.FieldsPerRecord = -1
	csvReader.TrimLeadingSpace = true
	csvReader.LazyQuotes = true

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, ErrInvalidCSVHeader
	}
	if err != nil {
		return nil, err
	}
	if err := checkCSVHeader(header); err != nil {
		return nil, err
	}
	var result []CSVRule
	seen := make(map[ruleKey]int)
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := csvReader.FieldPos(0)
		rule, err := parseCSVRecord(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		key := ruleKey{rule.Username, rule.Table}
		if previous, ok := seen[key]; ok {
			return nil, fmt.Errorf("line %d: %w: rule of %s for %s already defined on line %d", line, ErrInvalidCSVRule, rule.Username, rule.Table, previous)
		}
		seen[key] = line
		result = append(result, rule)
	}
	return result, nil
}

func checkCSVHeader(header []string) error {
	if len(header) < len(csvHeader) || len(header) > len(csvHeader)+1 {
		return ErrInvalidCSVHeader
	}
	for i, name := range csvHeader {
		if !strings.EqualFold(strings.TrimSpace(header[i]), name) {
			return fmt.Errorf("%w: expected %q, took %q", ErrInvalidCSVHeader, name, header[i])
		}
	}
	return nil
}

func parseCSVRecord(record []string) (CSVRule, error) {
	if len(record) < len(csvHeader) {
		return CSVRule{}, fmt.Errorf("%w: expected at least %d columns", ErrInvalidCSVRule, len(csvHeader))
	}
	rule := CSVRule{
		Username: strings.ToLower(strings.TrimSpace(record[0])),
		Table:    strings.ToLower(strings.TrimSpace(record[1])),
	}
	if rule.Username == "" || rule.Table == "" {
		return CSVRule{}, fmt.Errorf("%w: empty username or table", ErrInvalidCSVRule)
	}
	flags := []*bool{&rule.Delete, &rule.Insert, &rule.Select, &rule.Update}
	for i, flag := range flags {
		value, err := parseCSVBool(record[i+2])
		if err != nil {
			return CSVRule{}, fmt.Errorf("%w: column %s: %s", ErrInvalidCSVRule, csvHeader[i+2], err)
		}
		*flag = value
	}
	if len(record) > len(csvHeader) {
		rule.Comment = strings.Join(record[len(csvHeader):], string(CSVSeparator))
	}
	return rule, nil
}

func parseCSVBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "n", "no", "-":
		return false, nil
	case "y", "yes", "x":
		return true, nil
	}
	return strconv.ParseBool(strings.TrimSpace(value))
}

// CSVStore keeps CSV permission matrices of databases
type CSVStore struct {
	directory   string
	lister      TableLister
	snapshots   sync.Map
	reloadMutex sync.Mutex
	tablesMutex sync.Mutex
	tables      map[string]map[string]struct{}
	logger      *log.Entry
}

// NewCSVStore returns store reading CSV files from directory and validating tables with lister
func NewCSVStore(directory string, lister TableLister) *CSVStore {
	return &CSVStore{
		directory: directory,
		lister:    lister,
		tables:    make(map[string]map[string]struct{}),
		logger:    log.WithField("store", "csv"),
	}
}

// Path returns path of CSV file for database
func (store *CSVStore) Path(database string) (string, error) {
	if err := ValidateDatabaseName(database); err != nil {
		return "", err
	}
	return filepath.Join(store.directory, database+CSVFileSuffix), nil
}

// Get returns rule set of database, reloading it when file modification time changed
func (store *CSVStore) Get(ctx context.Context, conn Queryer, database string) (*CSVRuleSet, error) {
	path, err := store.Path(database)
	if err != nil {
		return nil, err
	}
	modTime, err := statModTime(path)
	if err != nil {
		return nil, err
	}
	if value, ok := store.snapshots.Load(database); ok && value.(*CSVRuleSet).modTime.Equal(modTime) {
		return value.(*CSVRuleSet), nil
	}
	store.reloadMutex.Lock()
	defer store.reloadMutex.Unlock()
	if value, ok := store.snapshots.Load(database); ok && value.(*CSVRuleSet).modTime.Equal(modTime) {
		return value.(*CSVRuleSet), nil
	}
	set, err := store.load(ctx, conn, database, path)
	if err != nil {
		store.logger.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallRulesReloadError).
			WithField("path", path).Errorln("Can't load CSV rules file")
		return nil, err
	}
	store.snapshots.Store(database, set)
	store.logger.WithField("path", path).Debugf("Loaded %d CSV rules", set.Len())
	return set, nil
}

// Allowed returns true if CSV rules of database allow username to run verb on table
func (store *CSVStore) Allowed(ctx context.Context, conn Queryer, database, username, table, verb string) (bool, error) {
	set, err := store.Get(ctx, conn, database)
	if err != nil {
		return false, err
	}
	return set.Allowed(username, table, verb)
}

func (store *CSVStore) load(ctx context.Context, conn Queryer, database, path string) (*CSVRuleSet, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRulesFileNotFound, path)
		}
		return nil, err
	}
	defer file.Close()
	info, err := file.Stat()
	if err != nil {
		return nil, err
	}
	parsed, err := ParseCSVRules(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	rules := make(map[ruleKey]Permission, len(parsed))
	for _, rule := range parsed {
		if rule.Table != AllTables {
			exists, err := store.tableExists(ctx, conn, database, rule.Table)
			if err != nil {
				return nil, err
			}
			if !exists {
				store.logger.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallUnknownTable).
					WithField("table", rule.Table).Errorln("CSV rule references table absent in database")
				return nil, fmt.Errorf("%w: %s.%s", ErrUnknownTable, database, rule.Table)
			}
		}
		rules[ruleKey{rule.Username, rule.Table}] = rule.Permission
	}
	return &CSVRuleSet{database: database, modTime: info.ModTime(), rules: rules}, nil
}

// tableExists queries table list of database once and caches it
func (store *CSVStore) tableExists(ctx context.Context, conn Queryer, database, table string) (bool, error) {
	store.tablesMutex.Lock()
	defer store.tablesMutex.Unlock()
	tables, ok := store.tables[database]
	if !ok {
		if store.lister == nil {
			return false, errors.New("no table lister configured")
		}
		names, err := store.lister.ListTables(ctx, conn, database)
		if err != nil {
			return false, err
		}
		tables = make(map[string]struct{}, len(names))
		for _, name := range names {
			tables[strings.ToLower(name)] = struct{}{}
		}
		store.tables[database] = tables
	}
	_, ok = tables[table]
	return ok, nil
}
