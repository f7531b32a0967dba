// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

// Package backends defines the interface a parallel compute backend needs to implement to run the
// bitonic sorter: compile kernel source, allocate and transfer buffers, dispatch kernels over an index
// space and wait for them.
//
// Backends register themselves by name (see Register), and are selected with a configuration string
// (see New and NewWithConfig). The default backends are registered by importing
// github.com/gomlx/bitonic/backends/default.
package backends

import (
	"os"
	"slices"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// Backend is the API that needs to be implemented by a compute backend.
type Backend interface {
	// Name returns the short name of the backend. E.g.: "lanes".
	Name() string

	// Description is a longer description of the Backend that can be used to pretty-print.
	Description() string

	// Compile the kernel source into a Program whose entry points can be dispatched.
	//
	// It returns an error wrapping ErrCompile if the source is invalid or can't be executed by the backend.
	Compile(source KernelSource) (Program, error)

	// Dispatch schedules one execution of the kernel entryPoint of program, over the index space
	// [0, globalExtent), with the given arguments: Buffer values for buffer parameters and integers
	// for scalar ones, in the order of the kernel parameters.
	//
	// It returns immediately with a WaitHandle; dispatches execute in the order they were issued.
	// It returns an error wrapping ErrDispatch if the arguments or the extent are invalid.
	Dispatch(program Program, entryPoint string, args []any, globalExtent int) (WaitHandle, error)

	// Finish blocks until every dispatch issued so far completed.
	// It returns the first execution error observed since the last call to Finish, if any.
	Finish() error

	// DataInterface is the sub-interface that defines the API to allocate and transfer buffers.
	DataInterface

	// Finalize waits for in-flight dispatches and releases all the associated resources.
	// The backend must not be used afterward.
	Finalize()
}

// WaitHandle is returned by Backend.Dispatch and tracks the completion of one dispatch.
type WaitHandle interface {
	// Wait blocks until the dispatch effects are complete and visible to the host.
	// It returns an error wrapping ErrDispatch if the execution failed.
	Wait() error

	// Done returns a channel closed when the dispatch completes (successfully or not).
	Done() <-chan struct{}
}

// Constructor takes a config string (optionally empty) and returns a Backend.
type Constructor func(config string) (Backend, error)

var (
	registryMu             sync.Mutex
	registeredConstructors = make(map[string]Constructor)
	firstRegistered        string
)

// Register backend with the given name, and a default constructor that takes as input a configuration string that is
// passed along to the backend constructor.
//
// To be safe, call Register during initialization of a package.
func Register(name string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if len(registeredConstructors) == 0 {
		firstRegistered = name
	}
	registeredConstructors[name] = constructor
}

// List the names of the registered backends, sorted.
func List() []string {
	registryMu.Lock()
	defer registryMu.Unlock()
	names := make([]string, 0, len(registeredConstructors))
	for name := range registeredConstructors {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// DefaultConfig is the name of the default backend configuration to use if specified.
//
// See NewWithConfig for the format of the configuration string.
var DefaultConfig string

// ConfigEnvVar is the environment variable with the default backend configuration to use.
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "lanes") and
// "<backend_configuration>" is backend specific (e.g.: for lanes, "workers=8,grain=1024").
const ConfigEnvVar = "BITONIC_BACKEND"

// New returns a new default Backend.
//
// The default is:
//
// 1. The environment ConfigEnvVar is used as a configuration if defined.
// 2. Next the variable DefaultConfig is used as a configuration if defined.
// 3. The first registered backend is used with an empty configuration.
//
// It returns an error wrapping ErrBackendUnavailable if no backend was registered or the selected one can't be used.
func New() (Backend, error) {
	config, found := os.LookupEnv(ConfigEnvVar)
	if found {
		return NewWithConfig(config)
	}
	if DefaultConfig != "" {
		return NewWithConfig(DefaultConfig)
	}
	return NewWithConfig("")
}

// MustNew is like New, but panics on error.
func MustNew() Backend {
	backend, err := New()
	if err != nil {
		panic(err)
	}
	return backend
}

// NewWithConfig takes a configurations string formated as
//
// The format of config is "<backend_name>:<backend_configuration>".
// The "<backend_name>" is the name of a registered backend (e.g.: "lanes") and
// "<backend_configuration>" is backend specific. If there is no ":" the whole string is taken as the backend name.
func NewWithConfig(config string) (Backend, error) {
	registryMu.Lock()
	if len(registeredConstructors) == 0 {
		registryMu.Unlock()
		return nil, errors.Wrapf(ErrBackendUnavailable,
			`no registered backends -- maybe import the default ones with import _ "github.com/gomlx/bitonic/backends/default"?`)
	}
	backendName := firstRegistered
	backendConfig := ""
	if config != "" {
		backendName = config
		if idx := strings.Index(config, ":"); idx != -1 {
			backendName = config[:idx]
			backendConfig = config[idx+1:]
		}
	}
	constructor, found := registeredConstructors[backendName]
	registryMu.Unlock()
	if !found {
		return nil, errors.Wrapf(ErrBackendUnavailable, "can't find backend %q for configuration %q given, registered backends: %q",
			backendName, config, List())
	}
	backend, err := constructor(backendConfig)
	if err != nil {
		return nil, errors.WithMessagef(err, "failed to create backend %q with configuration %q", backendName, backendConfig)
	}
	return backend, nil
}
