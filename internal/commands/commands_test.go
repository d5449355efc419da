package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okra-platform/kgql/internal/config"
)

const testSchema = `
interface Node {
  id: ID!
}

type User implements Node {
  id: ID!
  name: String!
}

enum Role { ADMIN USER }

type Query {
  user(id: ID!): User
}
`

// newProject writes a schema and config into a temp dir and returns a
// loader for it.
func newProject(t *testing.T, configJSON string) (string, ConfigLoader) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "schema.graphql"), []byte(testSchema), 0o644))
	path := filepath.Join(dir, "kgql.json")
	require.NoError(t, os.WriteFile(path, []byte(configJSON), 0o644))
	return dir, &defaultConfigLoader{path: path}
}

type mockConfigLoader struct {
	cfg  *config.Config
	root string
	err  error
}

func (m *mockConfigLoader) LoadConfig() (*config.Config, string, error) {
	return m.cfg, m.root, m.err
}
