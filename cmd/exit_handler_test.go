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
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExitHandler(codes chan int) *ExitHandler {
	handler := NewExitHandler()
	handler.exit = func(code int) { codes <- code }
	return handler
}

func TestDeferFunctionsOrder(t *testing.T) {
	codes := make(chan int, 1)
	exitHandler := newTestExitHandler(codes)

	var results []string
	exitHandler.AddDeferFunc(NewDeferFunction(func() { results = append(results, "close config") }, Last))
	exitHandler.AddDeferFunc(NewDeferFunction(func() { results = append(results, "stub1") }, Indifferent))
	exitHandler.AddDeferFunc(NewDeferFunction(func() { results = append(results, "stub2") }, Indifferent))
	assert.Panics(t, func() {
		exitHandler.AddDeferFunc(NewDeferFunction(func() {}, Last))
	})

	exitHandler.ExitOne()
	assert.Equal(t, 1, <-codes)
	assert.Equal(t, []string{"stub1", "stub2", "close config"}, results)

	// defer functions are called once
	exitHandler.ExitZero()
	assert.Equal(t, 0, <-codes)
	assert.Len(t, results, 3)
}

func TestExitHandlerOnSignal(t *testing.T) {
	for _, signalToExit := range []os.Signal{syscall.SIGTERM, syscall.SIGINT} {
		codes := make(chan int, 1)
		exitHandler := newTestExitHandler(codes)
		called := make(chan struct{}, 1)
		exitHandler.AddDeferFunc(NewDeferFunction(func() { called <- struct{}{} }, Last))

		go exitHandler.WaitForExitSystemSignal()
		time.Sleep(time.Millisecond * 50)
		process, err := os.FindProcess(os.Getpid())
		require.NoError(t, err)
		require.NoError(t, process.Signal(signalToExit))

		select {
		case code := <-codes:
			assert.Equal(t, 0, code)
		case <-time.After(time.Second * 5):
			t.Fatal("exit handler didn't handle signal")
		}
		<-called
	}
}
