package runtime

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveSocketAddrPrefersExplicitValue(t *testing.T) {
	assert.Equal(t, "unix:///custom.sock", resolveSocketAddr("unix:///custom.sock"))
}

func TestResolveSocketAddrFallsBackToDockerHost(t *testing.T) {
	t.Setenv("DOCKER_HOST", "tcp://127.0.0.1:2375")
	assert.Equal(t, "tcp://127.0.0.1:2375", resolveSocketAddr(""))
}

func TestResolveSocketAddrComputesRootlessPodmanSocket(t *testing.T) {
	os.Unsetenv("DOCKER_HOST")
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	assert.Equal(t, "unix:///run/user/1000/podman/podman.sock", resolveSocketAddr(""))
}

func TestResolveSocketAddrFallsBackToUIDWhenXDGUnset(t *testing.T) {
	os.Unsetenv("DOCKER_HOST")
	os.Unsetenv("XDG_RUNTIME_DIR")
	expected := fmt.Sprintf("unix:///run/user/%d/podman/podman.sock", os.Getuid())
	assert.Equal(t, expected, resolveSocketAddr(""))
}
