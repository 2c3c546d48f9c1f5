// Package devagent finds the Claude projects directories of devagent
// devcontainers so `watch` can tail sessions running inside them.
package devagent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path"
	"slices"
	"strings"
	"time"
)

// claudeHome is where devcontainers mount the Claude config directory.
const claudeHome = "/home/vscode/.claude"

// listTimeout bounds `devagent list`.
const listTimeout = 10 * time.Second

// container is one entry of `devagent list` output.
type container struct {
	ProjectPath  string `json:"project_path"`
	DevContainer struct {
		Mounts []mount `json:"mounts"`
	} `json:"devcontainer"`
	ProxySidecar struct {
		ContainerName string `json:"container_name"`
		State         string `json:"state"`
	} `json:"proxy_sidecar"`
}

type mount struct {
	Source      string `json:"source"`
	Destination string `json:"destination"`
}

// Environment is a devcontainer with the host-side path of its transcripts.
type Environment struct {
	ContainerName string
	ProjectPath   string
	ProjectsDir   string
	State         string
}

// Running reports whether the container's sidecar is up.
func (e Environment) Running() bool {
	return e.State == "running"
}

// Runner executes `devagent list` and returns its stdout. Replaced in tests.
type Runner func(ctx context.Context) ([]byte, error)

func runList(ctx context.Context) ([]byte, error) {
	return exec.CommandContext(ctx, "devagent", "list").Output()
}

// Discover runs devagent list and returns every environment with a Claude mount.
// A nil run uses the installed devagent binary.
func Discover(ctx context.Context, run Runner) ([]Environment, error) {
	if run == nil {
		run = runList
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()

	out, err := run(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run devagent list: %w", err)
	}
	return ParseOutput(out)
}

// ParseOutput parses `devagent list` JSON. Containers without a Claude mount
// are skipped.
func ParseOutput(data []byte) ([]Environment, error) {
	var containers []container
	if err := json.Unmarshal(data, &containers); err != nil {
		return nil, fmt.Errorf("failed to parse devagent output: %w", err)
	}

	var envs []Environment
	for _, c := range containers {
		i := slices.IndexFunc(c.DevContainer.Mounts, func(m mount) bool { return m.Destination == claudeHome })
		if i < 0 {
			continue
		}
		envs = append(envs, Environment{
			ContainerName: c.ProxySidecar.ContainerName,
			ProjectPath:   c.ProjectPath,
			ProjectsDir:   path.Join(stripHostMntPrefix(c.DevContainer.Mounts[i].Source), "projects"),
			State:         c.ProxySidecar.State,
		})
	}
	return envs, nil
}

// ProjectsDirs returns the distinct projects directories of envs, only running
// ones unless all is set.
func ProjectsDirs(envs []Environment, all bool) []string {
	var dirs []string
	for _, e := range envs {
		if (all || e.Running()) && !slices.Contains(dirs, e.ProjectsDir) {
			dirs = append(dirs, e.ProjectsDir)
		}
	}
	return dirs
}

// stripHostMntPrefix removes Docker Desktop's /host_mnt prefix on macOS.
// Linux paths pass through unchanged.
func stripHostMntPrefix(p string) string {
	if rest, ok := strings.CutPrefix(p, "/host_mnt"); ok && rest != "" && rest != "/" {
		return rest
	}
	return p
}
