package devagent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listOutput = `[
  {
    "project_path": "/Users/dev/code/api",
    "devcontainer": {"mounts": [
      {"type": "bind", "source": "/host_mnt/Users/dev/.local/share/devagent/claude-configs/abc123/.claude", "destination": "/home/vscode/.claude"}
    ]},
    "proxy_sidecar": {"container_name": "devagent-abc123-proxy", "state": "running"}
  },
  {
    "project_path": "/home/dev/web",
    "devcontainer": {"mounts": [
      {"type": "bind", "source": "/home/dev/web/.devcontainer/home/vscode/.claude", "destination": "/home/vscode/.claude"}
    ]},
    "proxy_sidecar": {"container_name": "devagent-def456-proxy", "state": "stopped"}
  },
  {
    "project_path": "/home/dev/other",
    "devcontainer": {"mounts": [
      {"type": "bind", "source": "/host_mnt/some/other/mount", "destination": "/home/vscode/other"}
    ]},
    "proxy_sidecar": {"container_name": "devagent-xyz-proxy", "state": "running"}
  }
]`

func TestStripHostMntPrefix(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/host_mnt/Users/dev/.claude", "/Users/dev/.claude"},
		{"/home/user/.claude", "/home/user/.claude"},
		{"", ""},
		{"/host_mnt", "/host_mnt"},
		{"/host_mnt/", "/host_mnt/"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, stripHostMntPrefix(tt.path), tt.path)
	}
}

func TestParseOutput(t *testing.T) {
	envs, err := ParseOutput([]byte(listOutput))
	require.NoError(t, err)
	require.Len(t, envs, 2, "container without a Claude mount is skipped")

	assert.Equal(t, Environment{
		ContainerName: "devagent-abc123-proxy",
		ProjectPath:   "/Users/dev/code/api",
		ProjectsDir:   "/Users/dev/.local/share/devagent/claude-configs/abc123/.claude/projects",
		State:         "running",
	}, envs[0])
	assert.True(t, envs[0].Running())
	assert.Equal(t, "/home/dev/web/.devcontainer/home/vscode/.claude/projects", envs[1].ProjectsDir)
	assert.False(t, envs[1].Running())

	envs, err = ParseOutput([]byte("[]"))
	require.NoError(t, err)
	assert.Empty(t, envs)

	_, err = ParseOutput([]byte("not json"))
	assert.Error(t, err)
}

func TestProjectsDirs(t *testing.T) {
	envs := []Environment{
		{ProjectsDir: "/a/projects", State: "running"},
		{ProjectsDir: "/b/projects", State: "stopped"},
		{ProjectsDir: "/a/projects", State: "running"},
	}

	assert.Equal(t, []string{"/a/projects"}, ProjectsDirs(envs, false))
	assert.Equal(t, []string{"/a/projects", "/b/projects"}, ProjectsDirs(envs, true))
}

func TestDiscover(t *testing.T) {
	envs, err := Discover(context.Background(), func(ctx context.Context) ([]byte, error) {
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return []byte(listOutput), nil
	})
	require.NoError(t, err)
	assert.Len(t, envs, 2)

	_, err = Discover(context.Background(), func(context.Context) ([]byte, error) {
		return nil, errors.New("executable file not found")
	})
	assert.ErrorContains(t, err, "devagent list")
}
