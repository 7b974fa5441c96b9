package errors_test

import (
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/staffmap/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "run",
			ID:       "7f1c",
		}
		assert.Equal(t, "run with ID 7f1c not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("run", "test")
		wrapped := errors.Join(errors.New("failed"), base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "epsilon",
			Message: "must be positive",
		}
		assert.Equal(t, "validation failed for field epsilon: must be positive", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestMissingSourceError(t *testing.T) {
	t.Run("empty ledger", func(t *testing.T) {
		err := pkgerrors.NewMissingSourceError("demand", "grid.yaml", nil)
		assert.Equal(t, "demand ledger grid.yaml is empty", err.Error())
		assert.True(t, pkgerrors.IsMissingSource(err))
		assert.False(t, pkgerrors.IsConfigError(err))
	})

	t.Run("read failure", func(t *testing.T) {
		cause := errors.New("permission denied")
		err := pkgerrors.NewMissingSourceError("supply", "roster.yaml", cause)
		assert.Contains(t, err.Error(), "permission denied")
		assert.ErrorIs(t, err, cause)
		assert.True(t, pkgerrors.IsMissingSource(err))
	})
}

func TestRuleError(t *testing.T) {
	t.Run("with id and field", func(t *testing.T) {
		err := pkgerrors.NewRuleError("nurse-exact", 0, "matrix", "expected 1x1")
		assert.Equal(t, "mapping rule nurse-exact: matrix: expected 1x1", err.Error())
	})

	t.Run("without id", func(t *testing.T) {
		err := pkgerrors.NewRuleError("", 3, "", "no labels")
		assert.Equal(t, "mapping rule #3: no labels", err.Error())
	})

	t.Run("is fatal configuration", func(t *testing.T) {
		err := fmt.Errorf("load: %w", pkgerrors.NewRuleError("x", 0, "strategy", "unknown"))
		assert.True(t, pkgerrors.IsInvalidRule(err))
		assert.True(t, pkgerrors.IsConfigError(err))
		assert.False(t, pkgerrors.IsMissingSource(err))
	})
}

func TestConfigError(t *testing.T) {
	err := pkgerrors.NewConfigError("validation", "weights sum to 0.9", nil)
	assert.Contains(t, err.Error(), "validation")
	assert.Contains(t, err.Error(), "weights sum to 0.9")
	assert.True(t, pkgerrors.IsConfigError(err))
	assert.Nil(t, err.Unwrap())
}

func TestIOError(t *testing.T) {
	base := errors.New("no such file")
	err := pkgerrors.NewIOError("read", "/tmp/rules.yaml", base)
	assert.Equal(t, "IO error during read of /tmp/rules.yaml: no such file", err.Error())
	assert.Equal(t, base, err.Unwrap())

	noPath := &pkgerrors.IOError{Operation: "query", Message: "closed"}
	assert.Equal(t, "IO error during query: closed", noPath.Error())
}

func TestResourceError(t *testing.T) {
	err := pkgerrors.NewResourceError("load", "registry", "rules.yaml", errors.New("bad"))
	assert.Equal(t, "failed to load registry rules.yaml: bad", err.Error())

	noID := pkgerrors.NewResourceError("save", "report", "", errors.New("disk full"))
	assert.Equal(t, "failed to save report: disk full", noID.Error())
}

func TestParseError(t *testing.T) {
	tests := []struct {
		name string
		err  *pkgerrors.ParseError
		want string
	}{
		{
			name: "with line",
			err:  &pkgerrors.ParseError{Format: "yaml", File: "rules.yaml", Line: 4, Column: 2, Message: "bad indent"},
			want: "parse error in yaml at rules.yaml:4:2: bad indent",
		},
		{
			name: "with file",
			err:  &pkgerrors.ParseError{Format: "toml", File: "rules.toml", Message: "unexpected key"},
			want: "parse error in toml file rules.toml: unexpected key",
		},
		{
			name: "bare",
			err:  &pkgerrors.ParseError{Format: "json", Message: "eof"},
			want: "json parse error: eof",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestWrapHelpers(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, pkgerrors.WrapIO("read", "x", nil))
		assert.NoError(t, pkgerrors.WrapParse("yaml", "x", nil))
		assert.NoError(t, pkgerrors.WrapResource("load", "registry", "", nil))
	})

	t.Run("wrapping keeps cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := pkgerrors.WrapParse("yaml", "ledger.yaml", cause)
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)

		var parseErr *pkgerrors.ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Equal(t, "ledger.yaml", parseErr.File)
	})
}
