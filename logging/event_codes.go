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

package logging

// Event codes for different events in firewall components, splitted by groups.
const (
	// 100 .. 200 some events
	EventCodeGeneral = 100

	// 500 .. 560 errors
	EventCodeErrorGeneral            = 500
	EventCodeErrorWrongParam         = 501
	EventCodeErrorWrongConfiguration = 507
	EventCodeErrorCantReadConfig     = 508
	EventCodeErrorCantStartService   = 509

	// 520 .. 530 system errors
	EventCodeErrorPrometheusHTTPHandler = 523
	EventCodeErrorCantReadInput         = 524

	// database
	EventCodeErrorCantConnectToDB       = 540
	EventCodeErrorCantCloseConnectionDB = 541

	// firewall
	EventCodeErrorFirewallQueryIsNotAllowed       = 560
	EventCodeErrorFirewallSetupError              = 561
	EventCodeErrorFirewallBackgroundError         = 562
	EventCodeErrorFirewallQueryParseError         = 563
	EventCodeErrorFirewallIOError                 = 564
	EventCodeErrorFirewallInjectionDetected       = 565
	EventCodeErrorFirewallTriggerError            = 566
	EventCodeErrorFirewallManagerError            = 567
	EventCodeErrorFirewallRemoteDetectorError     = 568
	EventCodeErrorFirewallBanListError            = 569
	EventCodeErrorFirewallRulesReloadError        = 570
	EventCodeErrorFirewallUnknownTable            = 571
	EventCodeErrorFirewallAlert                   = 572
	EventCodeErrorFirewallConnectionAcquireError  = 573
	EventCodeErrorFirewallMetadataQueryNotAllowed = 574
)
