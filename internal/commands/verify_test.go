package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyCommand_ConfiguredTargets(t *testing.T) {
	// Test: without a directory every binary target is verified
	_, loader := generated(t)
	var out bytes.Buffer

	require.NoError(t, NewVerifyCommand(loader, &out).Execute(context.Background(), ""))
	assert.Contains(t, out.String(), "classes")
	assert.Contains(t, out.String(), "1 facades")
}

func TestVerifyCommand_Corrupt(t *testing.T) {
	// Test: a truncated class file is reported and fails the command
	dir, _ := generated(t)
	path := filepath.Join(dir, "out/com/example/api/User.class")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data[:len(data)/2], 0o644))

	var out bytes.Buffer
	err = NewVerifyCommand(nil, &out).Execute(context.Background(), filepath.Join(dir, "out"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification failed")
	assert.Contains(t, out.String(), "User.class")
}

func TestVerifyCommand_EmptyDir(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, NewVerifyCommand(nil, &out).Execute(context.Background(), t.TempDir()))
	assert.Contains(t, out.String(), "no class files")
}

func TestVerifyCommand_OnlySourceTargets(t *testing.T) {
	_, loader := newProject(t, `{"namespace": "a", "backend": "kotlin"}`)
	err := NewVerifyCommand(loader, &bytes.Buffer{}).Execute(context.Background(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no binary targets")
}
