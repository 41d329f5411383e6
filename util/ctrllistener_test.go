package util

import (
	"bufio"
	"net"
	"os"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCtrlListenerDispatch(t *testing.T) {
	root, err := os.MkdirTemp("", "ctrl")
	require.NoError(t, err)
	defer func() { _ = os.RemoveAll(root) }()

	cl, err := GetCtrlListener(root, "test")
	require.NoError(t, err)
	invoked := make(chan string, 1)
	cl.AddCallback("write", func(line string, _ net.Conn) error {
		invoked <- line
		return nil
	})
	cl.AddCallback("fail", func(string, net.Conn) error {
		return errors.New("nope")
	})
	cl.Start()

	conn, err := net.Dial("unix", cl.Addr().String())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()
	r := bufio.NewReader(conn)

	_, err = conn.Write([]byte("write now\n"))
	require.NoError(t, err)
	response, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "ok\n", response)
	assert.Equal(t, "write now", <-invoked)

	_, err = conn.Write([]byte("fail\n"))
	require.NoError(t, err)
	response, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "error (nope)\n", response)

	_, err = conn.Write([]byte("bogus\n"))
	require.NoError(t, err)
	response, err = r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "syntax error?\n", response)

	same, err := GetCtrlListener(root, "test")
	require.NoError(t, err)
	assert.Equal(t, cl, same)
}
