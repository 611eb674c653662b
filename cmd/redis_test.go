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
	"testing"

	"github.com/cossacklabs/sqlfirewall/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisOptions(t *testing.T) {
	banList := config.BanListConfig{Backend: config.BanListBolt, Path: "bans.db"}

	options := RedisOptions{}
	flags := flag.NewFlagSet("test", flag.ContinueOnError)
	options.RegisterParameters(flags, "banlist_", "ban list")
	require.NoError(t, flags.Parse(nil))
	assert.False(t, options.IsSet())
	options.Apply(&banList)
	assert.Equal(t, config.BanListBolt, banList.Backend)

	require.NoError(t, flags.Parse([]string{"-banlist_redis_host_port=localhost:6379", "-banlist_redis_db=2"}))
	assert.True(t, options.IsSet())
	options.Apply(&banList)
	assert.Equal(t, config.BanListRedis, banList.Backend)
	assert.Equal(t, config.RedisConfig{Address: "localhost:6379", DB: 2}, banList.Redis)
}
