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

package main

import (
	"bufio"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cossacklabs/sqlfirewall/cmd"
	"github.com/cossacklabs/sqlfirewall/config"
	"github.com/cossacklabs/sqlfirewall/firewall"
	"github.com/cossacklabs/sqlfirewall/logging"
	"github.com/cossacklabs/sqlfirewall/utils"
	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	log "github.com/sirupsen/logrus"
)

// ServiceName used in logs and metrics
const ServiceName = "sqlfirewall-check"

type options struct {
	configPath  string
	dbDriver    string
	dbDSN       string
	username    string
	database    string
	ipAddress   string
	sql         string
	prepared    bool
	params      string
	metadata    bool
	metricsAddr string
	redis       cmd.RedisOptions
}

func main() {
	opts := options{}
	flag.StringVar(&opts.configPath, "config", cmd.DefaultConfigPath, "Path to firewall configuration file")
	flag.StringVar(&opts.dbDriver, "db_driver", cmd.DefaultDBDriver, "Database driver: postgres, pgx or mysql")
	flag.StringVar(&opts.dbDSN, "db_dsn", "", "Connection string of database used by rules and triggers. Without it checks run without connection")
	flag.StringVar(&opts.username, "user", "", "Name of user executing statements")
	flag.StringVar(&opts.database, "database", "", "Name of database")
	flag.StringVar(&opts.ipAddress, "ip", cmd.DefaultClientAddress, "Address of client")
	flag.StringVar(&opts.sql, "sql", "", "Statement to check. Statements are read from stdin line by line if empty")
	flag.BoolVar(&opts.prepared, "prepared", false, "Check statements as prepared")
	flag.StringVar(&opts.params, "params", "", "Comma separated parameter values of prepared statement")
	flag.BoolVar(&opts.metadata, "metadata", false, "Check metadata request instead of statement")
	flag.StringVar(&opts.metricsAddr, "incoming_connection_prometheus_metrics_string", "", "Address like 127.0.0.1:9399 to export prometheus metrics on. Metrics are disabled if empty")
	opts.redis.RegisterParameters(flag.CommandLine, "banlist_", "ban list, overrides config")
	loggingFormat := flag.String("logging_format", logging.PlaintextFormatString, "Logging format: plaintext or json")
	verbose := flag.Bool("v", false, "Log to stderr all INFO, WARNING and ERROR logs")
	debug := flag.Bool("d", false, "Log everything to stderr")
	flag.Parse()

	formatter := logging.CreateFormatter(*loggingFormat)
	logging.SetServiceName(formatter, ServiceName)
	switch {
	case *debug:
		logging.SetLogLevel(logging.LogDebug)
	case *verbose:
		logging.SetLogLevel(logging.LogVerbose)
	default:
		logging.SetLogLevel(logging.LogDiscard)
	}
	log.Infof("Starting service %v [pid=%v]", ServiceName, os.Getpid())

	if opts.username == "" || opts.database == "" {
		log.WithField(logging.FieldKeyEventCode, logging.EventCodeErrorWrongParam).Errorln("-user and -database are required")
		flag.Usage()
		os.Exit(1)
	}

	exitHandler := cmd.NewExitHandler()
	checker, err := newChecker(opts)
	if err != nil {
		log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorCantStartService).Errorln("Can't initialize firewall")
		os.Exit(1)
	}
	exitHandler.AddDeferFunc(cmd.NewDeferFunction(func() {
		if err := checker.Close(); err != nil {
			log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorGeneral).Errorln("Can't close firewall resources")
		}
	}, cmd.Last))

	if opts.metricsAddr != "" {
		firewall.RegisterMetrics()
		cmd.RegisterBuildInfoMetrics(ServiceName)
		_, server, err := cmd.RunPrometheusHTTPHandler(opts.metricsAddr)
		if err != nil {
			log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorPrometheusHTTPHandler).
				Errorln("Can't start prometheus http handler")
			exitHandler.ExitOne()
		}
		exitHandler.AddDeferFunc(cmd.NewDeferFunction(func() {
			server.Close()
		}, cmd.Indifferent))
	}
	go exitHandler.WaitForExitSystemSignal()

	var input io.Reader = os.Stdin
	if opts.sql != "" || opts.metadata {
		input = strings.NewReader(opts.sql)
	}
	refused, err := checker.Run(context.Background(), input, os.Stdout)
	if err != nil {
		log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorGeneral).Errorln("Can't check statements")
		exitHandler.ExitOne()
	}
	if refused {
		exitHandler.ExitOne()
	}
	exitHandler.ExitZero()
}

// checker evaluates statements against chain of one database
type checker struct {
	opts          options
	db            *sql.DB
	configuration *config.Configuration
	chain         *firewall.Firewall
}

func newChecker(opts options) (*checker, error) {
	firewallConfig, directory, err := config.ReadConfigFile(opts.configPath)
	if err != nil {
		return nil, err
	}
	opts.redis.Apply(&firewallConfig.BanList)

	result := &checker{opts: opts}
	var pool firewall.ConnectionPool
	if opts.dbDSN != "" {
		db, err := sql.Open(opts.dbDriver, opts.dbDSN)
		if err != nil {
			return nil, err
		}
		if err := db.Ping(); err != nil {
			db.Close()
			log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorCantConnectToDB).Errorln("Can't connect to db")
			return nil, err
		}
		result.db = db
		pool = firewall.SQLConnectionPool{DB: db}
		if firewallConfig.Dialect == "" {
			firewallConfig.Dialect = opts.dbDriver
		}
	}

	result.configuration, err = config.NewConfiguration(firewallConfig, directory, pool)
	if err != nil {
		result.Close()
		return nil, err
	}
	result.chain, err = result.configuration.Firewall(opts.database)
	if err != nil {
		result.Close()
		return nil, err
	}
	return result, nil
}

func (c *checker) connection() firewall.Connection {
	if c.db == nil {
		return nil
	}
	return c.db
}

func (c *checker) parameters() []interface{} {
	if !c.opts.prepared || c.opts.params == "" {
		return nil
	}
	values := strings.Split(c.opts.params, ",")
	params := make([]interface{}, 0, len(values))
	for _, value := range values {
		params = append(params, strings.TrimSpace(value))
	}
	return params
}

// Run checks every non-empty line of input and writes decisions to output. Returns true if any statement was refused.
func (c *checker) Run(ctx context.Context, input io.Reader, output io.Writer) (bool, error) {
	if c.opts.metadata {
		event, err := firewall.NewSQLEvent(c.opts.username, c.opts.database, c.opts.ipAddress, "", false, nil, true)
		if err != nil {
			return false, err
		}
		return c.check(ctx, event, output)
	}
	refused := false
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		query := strings.TrimSpace(scanner.Text())
		if query == "" {
			continue
		}
		event, err := firewall.NewSQLEvent(c.opts.username, c.opts.database, c.opts.ipAddress, query, c.opts.prepared, c.parameters(), false)
		if err != nil {
			return refused, err
		}
		statementRefused, err := c.check(ctx, event, output)
		if err != nil {
			return refused, err
		}
		refused = refused || statementRefused
	}
	if err := scanner.Err(); err != nil {
		log.WithError(err).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorCantReadInput).Errorln("Can't read statements")
		return refused, err
	}
	return refused, nil
}

func (c *checker) check(ctx context.Context, event *firewall.SQLEvent, output io.Writer) (bool, error) {
	decision, err := c.chain.Evaluate(ctx, event, c.connection())
	if err != nil {
		return false, err
	}
	if decision.TriggerError != nil {
		log.WithError(decision.TriggerError).WithField(logging.FieldKeyEventCode, logging.EventCodeErrorFirewallTriggerError).
			Warningln("Some triggers failed")
	}
	result := "allowed"
	if !decision.Allowed {
		result = "refused by " + decision.RefusedBy
	}
	query := utils.TrimStringToN(event.SQL(), firewall.LogQueryLength)
	if event.IsMetadataQuery() {
		query = "<metadata>"
	}
	line := fmt.Sprintf("%s\t%s\t%s", query, decision.Operation, result)
	if !event.IsMetadataQuery() {
		verdict := c.configuration.Analyzer().Analyze(event.SQL())
		if verdict.IsAnomaly() {
			line += "\tanomaly=" + string(verdict.AnomalyDetected)
			if verdict.KeywordDetected != "" {
				line += "\tkeyword=" + verdict.KeywordDetected
			}
		}
	}
	if _, err := fmt.Fprintln(output, line); err != nil {
		return false, err
	}
	return !decision.Allowed, nil
}

// Close waits for background checks and releases resources
func (c *checker) Close() error {
	var result *multierror.Error
	if c.configuration != nil {
		if err := c.configuration.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if c.db != nil {
		if err := c.db.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
