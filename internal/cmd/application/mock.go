// Package application provides test doubles for cmd/application.
package application

import (
	"github.com/rs/zerolog"

	"github.com/agentstation/staffmap"
	app "github.com/agentstation/staffmap/cmd/application"
)

// Mock provides a mock implementation of Application for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
//
//	mock := &application.Mock{
//	    EngineFunc: func(opts ...staffmap.Option) (staffmap.Engine, error) {
//	        return staffmap.New(opts...)
//	    },
//	}
//	cmd := reconcile.NewCommand(mock)
type Mock struct {
	EngineFunc       func(opts ...staffmap.Option) (staffmap.Engine, error)
	HistoryFunc      func() (app.History, error)
	RulesPathFunc    func() string
	LoggerFunc       func() *zerolog.Logger
	OutputFormatFunc func() string
	VersionFunc      func() string
	CommitFunc       func() string
	DateFunc         func() string
	BuiltByFunc      func() string
}

var _ app.Application = (*Mock)(nil)

// Engine returns an engine using the mock function or a default engine.
func (m *Mock) Engine(opts ...staffmap.Option) (staffmap.Engine, error) {
	if m.EngineFunc != nil {
		return m.EngineFunc(opts...)
	}
	return staffmap.New(append([]staffmap.Option{staffmap.WithLogger(m.Logger())}, opts...)...)
}

// History returns the history using the mock function or nil.
func (m *Mock) History() (app.History, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc()
	}
	return nil, nil
}

// RulesPath returns the rules path using the mock function or "".
func (m *Mock) RulesPath() string {
	if m.RulesPathFunc != nil {
		return m.RulesPathFunc()
	}
	return ""
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns output format using the mock function or "table".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "table"
}

// Version returns version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns builtBy using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}
