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

// Package config loads yaml configuration of firewall and resolves configured manager and trigger
// names into ready to use chains, one per database.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cossacklabs/sqlfirewall/banlist"
	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/firewall/managers"
	"github.com/cossacklabs/sqlfirewall/firewall/triggers"
	"github.com/cossacklabs/sqlfirewall/injection"
	"github.com/cossacklabs/sqlfirewall/injection/remote"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/cossacklabs/sqlfirewall/rules"
	"github.com/cossacklabs/sqlfirewall/utils"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v2"
)

// MinimalConfigVersion min version of config supported by firewall
var MinimalConfigVersion = "0.1.0"

// AnyDatabase is name of database section used for databases without own section
const AnyDatabase = "*"

// Backends of ban list
const (
	BanListMemory = "memory"
	BanListSQL    = "sql"
	BanListBolt   = "bolt"
	BanListRedis  = "redis"
)

// Errors returned on configuration loading
var (
	ErrUnsupportedConfigVersion = errors.New("firewall config is outdated")
	ErrUnknownManager           = errors.New("unknown manager")
	ErrUnknownTrigger           = errors.New("unknown trigger")
	ErrUnknownBanListBackend    = errors.New("unknown ban list backend")
	ErrUnknownDatabase          = errors.New("database is not configured")
	ErrDuplicatedDatabase       = errors.New("database configured twice")
	ErrNoDatabases              = errors.New("no databases configured")
	ErrConfigFileNotFound       = errors.New("config file not found")
)

// InjectionConfig configures heuristic analyzer
type InjectionConfig struct {
	injection.Options     `yaml:",inline"`
	ForbiddenKeywordsFile string `yaml:"forbidden_keywords_file"`
}

// RemoteDetectorConfig configures external injection detection service
type RemoteDetectorConfig struct {
	remote.Options `yaml:",inline"`
	Async          bool `yaml:"async"`
}

// RedisConfig configures connection to redis
type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// BanListConfig configures storage of banned users
type BanListConfig struct {
	Backend string      `yaml:"backend"`
	Table   string      `yaml:"table"`
	Path    string      `yaml:"path"`
	Redis   RedisConfig `yaml:"redis"`
}

// DatabaseConfig lists managers and triggers of one database chain
type DatabaseConfig struct {
	Name     string   `yaml:"name"`
	Managers []string `yaml:"managers"`
	Triggers []string `yaml:"triggers"`
}

// Config is yaml document of firewall configuration
type Config struct {
	Version             string                `yaml:"version"`
	RulesDirectory      string                `yaml:"rules_directory"`
	Dialect             string                `yaml:"dialect"`
	ComparableCacheSize *int                  `yaml:"comparable_cache_size"`
	Injection           *InjectionConfig      `yaml:"injection"`
	RemoteDetector      *RemoteDetectorConfig `yaml:"remote_detector"`
	BanList             BanListConfig         `yaml:"ban_list"`
	AuditTable          string                `yaml:"audit_table"`
	LogTriggerPath      string                `yaml:"log_trigger_path"`
	Databases           []DatabaseConfig      `yaml:"databases"`
}

// ParseConfig unmarshals yaml and checks its version
func ParseConfig(data []byte) (*Config, error) {
	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, err
	}
	configVersion, err := utils.ParseVersion(config.Version)
	if err != nil {
		return nil, err
	}
	minimalVersion, err := utils.ParseVersion(MinimalConfigVersion)
	if err != nil {
		return nil, err
	}
	if minimalVersion.Compare(configVersion) == utils.Greater {
		return nil, ErrUnsupportedConfigVersion
	}
	if len(config.Databases) == 0 {
		return nil, ErrNoDatabases
	}
	return config, nil
}

// Configuration holds chains built from Config and resources shared by them
type Configuration struct {
	config    *Config
	firewalls map[string]*firewall.Firewall
	analyzer  *injection.Analyzer
	closers   []io.Closer
	logger    *log.Entry
}

// ReadConfigFile reads and parses config. Returned directory is used to resolve relative paths of config.
func ReadConfigFile(path string) (*Config, string, error) {
	absPath, err := utils.AbsPath(path)
	if err != nil {
		return nil, "", err
	}
	if !utils.FileExists(absPath) {
		return nil, "", fmt.Errorf("%w: %s", ErrConfigFileNotFound, absPath)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, "", err
	}
	config, err := ParseConfig(data)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", absPath, err)
	}
	return config, filepath.Dir(absPath), nil
}

// LoadConfigurationFile reads config from path. Relative paths in config are resolved against directory of file.
func LoadConfigurationFile(path string, pool firewall.ConnectionPool) (*Configuration, error) {
	config, directory, err := ReadConfigFile(path)
	if err != nil {
		return nil, err
	}
	return NewConfiguration(config, directory, pool)
}

// LoadConfiguration parses config and builds chains of every configured database. pool is used by
// asynchronous checks to get connections for triggers and may be nil.
func LoadConfiguration(data []byte, baseDirectory string, pool firewall.ConnectionPool) (*Configuration, error) {
	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	return NewConfiguration(config, baseDirectory, pool)
}

// NewConfiguration builds chains from parsed config
func NewConfiguration(config *Config, baseDirectory string, pool firewall.ConnectionPool) (*Configuration, error) {
	builder := &builder{config: config, baseDirectory: baseDirectory, pool: pool}
	configuration, err := builder.build()
	if err != nil {
		if closeErr := closeAll(builder.closers); closeErr != nil {
			log.WithError(closeErr).Warningln("Can't release resources of failed configuration")
		}
		return nil, err
	}
	return configuration, nil
}

// Config returns parsed configuration
func (configuration *Configuration) Config() *Config {
	return configuration.config
}

// Analyzer returns heuristic analyzer configured in injection section
func (configuration *Configuration) Analyzer() *injection.Analyzer {
	return configuration.analyzer
}

// Databases returns names of configured database sections
func (configuration *Configuration) Databases() []string {
	names := make([]string, 0, len(configuration.config.Databases))
	for _, database := range configuration.config.Databases {
		names = append(names, database.Name)
	}
	return names
}

// Firewall returns chain of database. Section AnyDatabase is used when database has no own section.
func (configuration *Configuration) Firewall(database string) (*firewall.Firewall, error) {
	if chain, ok := configuration.firewalls[database]; ok {
		return chain, nil
	}
	if chain, ok := configuration.firewalls[AnyDatabase]; ok {
		return chain, nil
	}
	return nil, fmt.Errorf("%s: %w", database, ErrUnknownDatabase)
}

// Wait waits for background checks of every chain
func (configuration *Configuration) Wait() {
	for _, chain := range configuration.firewalls {
		chain.Wait()
	}
}

// Close waits for background checks and releases opened files and connections
func (configuration *Configuration) Close() error {
	configuration.Wait()
	return closeAll(configuration.closers)
}

func closeAll(closers []io.Closer) error {
	var result *multierror.Error
	for _, closer := range closers {
		if err := closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// builder creates shared resources lazily, only when some chain refers them
type builder struct {
	config        *Config
	baseDirectory string
	pool          firewall.ConnectionPool
	closers       []io.Closer

	style      utils.PlaceholderStyle
	blacklist  *rules.Store
	whitelist  *rules.Store
	csvStore   *rules.CSVStore
	analyzer   *injection.Analyzer
	detector   remote.Detector
	banStore   banlist.Store
	logTrigger *triggers.LogTrigger
	alert      *triggers.AlertTrigger
	auditTable *triggers.AuditTableTrigger
	banTrigger *triggers.BanUserTrigger
}

func (b *builder) build() (*Configuration, error) {
	style, err := utils.ParsePlaceholderStyle(b.config.Dialect)
	if err != nil {
		return nil, err
	}
	b.style = style
	configuration := &Configuration{
		config:    b.config,
		firewalls: make(map[string]*firewall.Firewall, len(b.config.Databases)),
		logger:    log.WithField("service", "config"),
	}
	for _, database := range b.config.Databases {
		if database.Name != AnyDatabase {
			if err := rules.ValidateDatabaseName(database.Name); err != nil {
				return nil, err
			}
		}
		if _, ok := configuration.firewalls[database.Name]; ok {
			return nil, fmt.Errorf("%s: %w", database.Name, ErrDuplicatedDatabase)
		}
		chain, err := b.buildFirewall(database)
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", database.Name, err)
		}
		configuration.firewalls[database.Name] = chain
		configuration.logger.WithFields(log.Fields{"database": database.Name, "managers": database.Managers, "triggers": database.Triggers}).
			Debugln("Firewall configured")
	}
	analyzer, err := b.injectionAnalyzer()
	if err != nil {
		return nil, err
	}
	configuration.analyzer = analyzer
	configuration.closers = b.closers
	return configuration, nil
}

func (b *builder) buildFirewall(database DatabaseConfig) (*firewall.Firewall, error) {
	chainTriggers := make([]firewall.Trigger, 0, len(database.Triggers))
	for _, name := range database.Triggers {
		trigger, err := b.trigger(name)
		if err != nil {
			return nil, err
		}
		chainTriggers = append(chainTriggers, trigger)
	}
	dispatcher := firewall.NewDispatcher(chainTriggers...)

	chainManagers := make([]firewall.Manager, 0, len(database.Managers))
	for _, name := range database.Managers {
		manager, err := b.manager(name, dispatcher)
		if err != nil {
			return nil, err
		}
		chainManagers = append(chainManagers, manager)
	}
	return firewall.New(chainManagers, dispatcher), nil
}

func (b *builder) manager(name string, dispatcher *firewall.Dispatcher) (firewall.Manager, error) {
	switch name {
	case managers.DefaultManagerName:
		return managers.DefaultManager{}, nil
	case managers.DenyDatabaseWriteManagerName:
		return managers.NewDenyDatabaseWriteManager(), nil
	case managers.DenyDclManagerName:
		return managers.NewDenyDclManager(), nil
	case managers.DenyDdlManagerName:
		return managers.NewDenyDdlManager(), nil
	case managers.DenyRawStatementManagerName:
		return managers.NewDenyRawStatementManager(), nil
	case managers.DenyMetadataQueryManagerName:
		return managers.NewDenyMetadataQueryManager(), nil
	case managers.DenyOnBlacklistManagerName:
		if b.blacklist == nil {
			b.blacklist = rules.NewStore(b.rulesDirectory(), rules.Blacklist)
		}
		return managers.NewDenyOnBlacklistManager(b.blacklist, b.cacheSize()), nil
	case managers.DenyExceptOnWhitelistManagerName:
		if b.whitelist == nil {
			b.whitelist = rules.NewStore(b.rulesDirectory(), rules.Whitelist)
		}
		return managers.NewDenyExceptOnWhitelistManager(b.whitelist, b.cacheSize()), nil
	case managers.CSVRulesManagerName:
		if b.csvStore == nil {
			lister := rules.NewPostgreSQLTableLister()
			if b.style == utils.QuestionPlaceholder {
				lister = rules.NewMySQLTableLister()
			}
			b.csvStore = rules.NewCSVStore(b.rulesDirectory(), lister)
		}
		return managers.NewCSVRulesManager(b.csvStore), nil
	case managers.DenySqlInjectionManagerName:
		analyzer, err := b.injectionAnalyzer()
		if err != nil {
			return nil, err
		}
		return managers.NewDenySqlInjectionManager(analyzer), nil
	case managers.DenyBannedUserManagerName:
		store, err := b.banList()
		if err != nil {
			return nil, err
		}
		return managers.NewDenyBannedUserManager(store), nil
	case managers.InjectionServiceManagerName:
		detector, err := b.remoteDetector()
		if err != nil {
			return nil, err
		}
		if b.config.RemoteDetector.Async {
			return managers.NewAsyncInjectionServiceManager(detector, b.pool, dispatcher), nil
		}
		return managers.NewInjectionServiceManager(detector), nil
	default:
		log.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallSetupError).
			Errorf("Unexpected manager %q in configuration", name)
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownManager)
	}
}

func (b *builder) trigger(name string) (firewall.Trigger, error) {
	switch name {
	case triggers.NoopTriggerName:
		return triggers.NoopTrigger{}, nil
	case triggers.LogTriggerName:
		if b.logTrigger == nil {
			if b.config.LogTriggerPath == "" {
				b.logTrigger = triggers.NewLogTrigger(os.Stderr)
			} else {
				logTrigger, err := triggers.NewFileLogTrigger(b.path(b.config.LogTriggerPath))
				if err != nil {
					return nil, err
				}
				b.closers = append(b.closers, logTrigger)
				b.logTrigger = logTrigger
			}
		}
		return b.logTrigger, nil
	case triggers.AlertTriggerName:
		if b.alert == nil {
			b.alert = triggers.NewAlertTrigger(os.Stderr)
		}
		return b.alert, nil
	case triggers.AuditTableTriggerName:
		if b.auditTable == nil {
			auditTable, err := triggers.NewAuditTableTrigger(b.config.AuditTable, b.style)
			if err != nil {
				return nil, err
			}
			b.auditTable = auditTable
		}
		return b.auditTable, nil
	case triggers.BanUserTriggerName:
		if b.banTrigger == nil {
			store, err := b.banList()
			if err != nil {
				return nil, err
			}
			b.banTrigger = triggers.NewBanUserTrigger(store)
		}
		return b.banTrigger, nil
	default:
		log.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallSetupError).
			Errorf("Unexpected trigger %q in configuration", name)
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownTrigger)
	}
}

// path resolves relative path against directory of config file
func (b *builder) path(path string) string {
	if strings.HasPrefix(path, "~/") {
		if abs, err := utils.AbsPath(path); err == nil {
			return abs
		}
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(b.baseDirectory, path)
}

func (b *builder) rulesDirectory() string {
	if b.config.RulesDirectory == "" {
		return b.baseDirectory
	}
	return b.path(b.config.RulesDirectory)
}

func (b *builder) cacheSize() int {
	if b.config.ComparableCacheSize == nil {
		return managers.DefaultComparableCacheSize
	}
	return *b.config.ComparableCacheSize
}

func (b *builder) injectionAnalyzer() (*injection.Analyzer, error) {
	if b.analyzer != nil {
		return b.analyzer, nil
	}
	options := injection.DefaultOptions()
	if b.config.Injection != nil {
		options = b.config.Injection.Options
		if b.config.Injection.ForbiddenKeywordsFile != "" {
			keywords, err := injection.ForbiddenKeywordsFromFile(b.path(b.config.Injection.ForbiddenKeywordsFile))
			if err != nil {
				return nil, err
			}
			options.ForbiddenKeywords = append(options.ForbiddenKeywords, keywords...)
		}
	}
	b.analyzer = injection.NewAnalyzer(options)
	return b.analyzer, nil
}

func (b *builder) remoteDetector() (remote.Detector, error) {
	if b.detector != nil {
		return b.detector, nil
	}
	if b.config.RemoteDetector == nil {
		return nil, remote.ErrEmptyURL
	}
	detector, err := remote.NewHTTPDetector(b.config.RemoteDetector.Options)
	if err != nil {
		return nil, err
	}
	b.detector = detector
	return detector, nil
}

func (b *builder) banList() (banlist.Store, error) {
	if b.banStore != nil {
		return b.banStore, nil
	}
	switch b.config.BanList.Backend {
	case "", BanListMemory:
		b.banStore = banlist.NewMemoryStore()
	case BanListSQL:
		store, err := banlist.NewSQLStore(b.config.BanList.Table, b.style)
		if err != nil {
			return nil, err
		}
		b.banStore = store
	case BanListBolt:
		path := b.config.BanList.Path
		if path == "" {
			path = "banned_users.db"
		}
		store, err := banlist.OpenBoltStore(b.path(path))
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, store)
		b.banStore = store
	case BanListRedis:
		client, err := banlist.NewRedisClient(b.config.BanList.Redis.Address, b.config.BanList.Redis.Password, b.config.BanList.Redis.DB)
		if err != nil {
			return nil, err
		}
		store := banlist.NewRedisStore(client)
		b.closers = append(b.closers, store)
		b.banStore = store
	default:
		return nil, fmt.Errorf("%s: %w", b.config.BanList.Backend, ErrUnknownBanListBackend)
	}
	return b.banStore, nil
}
