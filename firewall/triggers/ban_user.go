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

package triggers

import (
	"context"

	"github.com/cossacklabs/sqlfirewall/banlist"
	"github.com/cossacklabs/sqlfirewall/firewall"
	log "github.com/sirupsen/logrus"
)

// BanUserTrigger bans user of refused statement, so all next requests of the user are refused
// by managers checking the same store.
type BanUserTrigger struct {
	store  banlist.Store
	logger *log.Entry
}

// NewBanUserTrigger returns trigger writing to store
func NewBanUserTrigger(store banlist.Store) *BanUserTrigger {
	return &BanUserTrigger{store: store, logger: log.WithField("trigger", BanUserTriggerName)}
}

// Name returns trigger name
func (*BanUserTrigger) Name() string { return BanUserTriggerName }

// OnRefused implements firewall.Trigger
func (trigger *BanUserTrigger) OnRefused(ctx context.Context, event *firewall.SQLEvent, manager firewall.Manager, conn firewall.Connection) error {
	var banConn banlist.Connection
	if conn != nil {
		banConn = conn
	}
	entry := banlist.Entry{
		Username:  event.Username(),
		Database:  event.Database(),
		IPAddress: event.IPAddress(),
		Reason:    "refused by " + firewall.NameOf(manager),
	}
	if err := trigger.store.Ban(ctx, banConn, entry); err != nil {
		return err
	}
	requestLogger(ctx, trigger.logger, event).Warningln("User banned")
	return nil
}
