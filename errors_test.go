package restarter

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpError(t *testing.T) {
	err := &OpError{Op: OpStart, Service: "web", Err: fs.ErrPermission}
	assert.Equal(t, `service manager start "web": permission denied`, err.Error())
	assert.ErrorIs(t, err, ErrServiceManager)
	assert.ErrorIs(t, err, fs.ErrPermission)
	assert.NotErrorIs(t, err, ErrKeyNotFound)

	err = &OpError{Op: OpConnect, Err: errors.New("refused")}
	assert.Equal(t, "service manager connect: refused", err.Error())
}

func TestValueError(t *testing.T) {
	err := &ValueError{Key: `SYSTEM\x`, Name: "Services", Type: TypeDWord, Err: ErrUnexpectedValueType}
	assert.ErrorIs(t, err, ErrUnexpectedValueType)
	assert.Contains(t, err.Error(), `"Services"`)
	assert.Contains(t, err.Error(), `SYSTEM\\x`)

	var target *ValueError
	require.ErrorAs(t, error(err), &target)
	assert.Equal(t, "Services", target.Name)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	m.Add(nil)
	assert.NoError(t, m.Err())
	assert.Equal(t, "no errors", m.Error())

	m.Add(ErrKeyNotFound)
	assert.Equal(t, ErrKeyNotFound.Error(), m.Error())

	m.Add(&OpError{Op: OpStop, Service: "a", Err: fs.ErrNotExist})
	err := m.Err()
	require.Error(t, err)
	assert.Equal(t, "2 errors occurred", err.Error())
	assert.ErrorIs(t, err, ErrKeyNotFound)
	assert.ErrorIs(t, err, fs.ErrNotExist)
	assert.ErrorIs(t, err, ErrServiceManager)
}
