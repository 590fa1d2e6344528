package providers

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListenUnix(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.sock")
	sock, err := ListenUnix(path)
	require.NoError(t, err)

	// Keep the socket file around to simulate an unclean shutdown.
	sock.(*net.UnixListener).SetUnlinkOnClose(false)
	require.NoError(t, sock.Close())
	_, statErr := os.Stat(path)
	require.NoError(t, statErr, "stale socket file expected")

	// A stale socket file is cleaned up and rebound.
	sock, err = ListenUnix(path)
	require.NoError(t, err)
	require.NoError(t, sock.Close())
}

func TestListenUnixNotASocket(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plain")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	_, err := ListenUnix(path)
	assert.EqualError(t, err, "existing file is not a socket: "+path)
}
