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

package cmd

import (
	"flag"

	"github.com/cossacklabs/sqlfirewall/config"
)

const redisDefaultDB = 0

// RedisOptions keep command-line options related to Redis ban list
type RedisOptions struct {
	HostPort string
	Password string
	DB       int
}

// RegisterParameters registers Redis parameters with given flag set and prefix.
// Use empty prefix, or something like "banlist_", for example.
func (redis *RedisOptions) RegisterParameters(flags *flag.FlagSet, prefix string, description string) {
	if description != "" {
		description = " (" + description + ")"
	}
	flags.StringVar(&redis.HostPort, prefix+"redis_host_port", "", "<host>:<port> used to connect to Redis"+description)
	flags.StringVar(&redis.Password, prefix+"redis_password", "", "Password to Redis database"+description)
	flags.IntVar(&redis.DB, prefix+"redis_db", redisDefaultDB, "Number of Redis database"+description)
}

// IsSet returns true if Redis address was passed
func (redis *RedisOptions) IsSet() bool {
	return redis.HostPort != ""
}

// Apply switches ban list to Redis backend with options. Does nothing if options aren't set.
func (redis *RedisOptions) Apply(banList *config.BanListConfig) {
	if !redis.IsSet() {
		return
	}
	banList.Backend = config.BanListRedis
	banList.Redis = config.RedisConfig{Address: redis.HostPort, Password: redis.Password, DB: redis.DB}
}
