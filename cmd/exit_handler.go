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
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// Priority is applied to defer function
type Priority int

// Priorities of defer functions
const (
	Last Priority = iota
	Indifferent
)

// DeferFunction is a function with priority called on exit
type DeferFunction interface {
	GetPriority() Priority
	Call()
}

// DeferFunc is an implementation of DeferFunction
type DeferFunc struct {
	deferFunc func()
	priority  Priority
}

// NewDeferFunction is a constructor for DeferFunction
func NewDeferFunction(deferFunc func(), priority Priority) DeferFunction {
	return &DeferFunc{
		deferFunc,
		priority,
	}
}

// GetPriority returns priority of execution for this defer function
func (d *DeferFunc) GetPriority() Priority {
	return d.priority
}

// Call just executes defer function
func (d *DeferFunc) Call() {
	d.deferFunc()
}

// ExitHandler calls registered defer functions on exit or on SIGINT/SIGTERM
type ExitHandler struct {
	deferFunctions []DeferFunction
	notification   chan os.Signal
	exit           func(code int)
}

// NewExitHandler is a constructor for ExitHandler
func NewExitHandler() *ExitHandler {
	return &ExitHandler{
		notification: make(chan os.Signal, 1),
		exit:         os.Exit,
	}
}

// AddDeferFunc appends new defer function (with priority) for execution. Only one function may have Last priority.
func (s *ExitHandler) AddDeferFunc(input DeferFunction) {
	inputHasLastPriority := input.GetPriority() == Last
	for _, deferFunc := range s.deferFunctions {
		if deferFunc.GetPriority() == Last && inputHasLastPriority {
			panic("defer function with 'Last' priority has been already specified")
		}
	}
	s.deferFunctions = append(s.deferFunctions, input)
}

// WaitForExitSystemSignal blocks until SIGINT or SIGTERM and exits with 0 code.
// It should be used in separate goroutine in main function of service
func (s *ExitHandler) WaitForExitSystemSignal() {
	signal.Notify(s.notification, syscall.SIGINT, syscall.SIGTERM)
	received := <-s.notification
	log.WithField("signal", received.String()).Infoln("Got exit signal")
	s.ExitZero()
}

// ExitZero is a single point for exiting from the service with 0 code
func (s *ExitHandler) ExitZero() {
	s.executeDeferFunctions()
	s.exit(0)
}

// ExitOne is a single point for exiting from the service with 1 code
func (s *ExitHandler) ExitOne() {
	s.executeDeferFunctions()
	s.exit(1)
}

func (s *ExitHandler) executeDeferFunctions() {
	var lastDefer DeferFunction
	for _, deferFunction := range s.deferFunctions {
		if deferFunction.GetPriority() == Last {
			lastDefer = deferFunction
			continue
		}
		deferFunction.Call()
	}
	s.deferFunctions = nil
	if lastDefer != nil {
		lastDefer.Call()
	}
}
