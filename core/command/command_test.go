package command_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/moler-go/moler/core/bus"
	"github.com/moler-go/moler/core/command"
	"github.com/moler-go/moler/core/molererr"
	"github.com/moler-go/moler/core/observer"
	"github.com/moler-go/moler/core/runner"
)

func TestCommand_WritesRequestLineAtSubmit(t *testing.T) {
	var sent [][]byte
	b := bus.New("demo", func(p []byte) error {
		sent = append(sent, p)
		return nil
	})
	r := runner.NewPoolRunner()
	defer r.Shutdown()

	cmd := command.New(b, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
		if bytes.Contains(chunk, []byte("OK\n")) {
			return observer.Succeeded(nil)
		}
		return observer.Stay()
	}, 5*time.Second, false)

	_, err := cmd.Start(r)
	require.NoError(t, err)

	require.Len(t, sent, 1)
	assert.Equal(t, "AT+CGATT=1\n", string(sent[0]))
}

func TestCommand_SendAndReceive(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := runner.NewPoolRunner()
	defer r.Shutdown()

	cmd := command.New(b, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
		if bytes.Contains(chunk, []byte("OK\n")) {
			return observer.Succeeded(nil)
		}
		return observer.Stay()
	}, 5*time.Second, false)

	h, err := cmd.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("AT+CGATT=1\nOK\n"))

	require.NoError(t, h.Join(time.Second))
}

func TestCommand_Timeout(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := runner.NewPoolRunner()
	defer r.Shutdown()

	cmd := command.New(b, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
		return observer.Stay()
	}, 30*time.Millisecond, false)

	h, err := cmd.Start(r)
	require.NoError(t, err)

	err = h.Join(2 * time.Second)
	require.Error(t, err)
	assert.True(t, molererr.IsTimeout(err))
}

func TestCommand_ErroneousOutputYieldsCommandFailure(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := runner.NewPoolRunner()
	defer r.Shutdown()

	var cmd *command.Command
	cmd = command.New(b, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
		switch {
		case bytes.Contains(chunk, []byte("OK\n")):
			return observer.Succeeded(nil)
		case bytes.Contains(chunk, []byte("ERROR\n")):
			return cmd.Fail("AT+CGATT=1 failed")
		default:
			return observer.Stay()
		}
	}, 5*time.Second, false)

	h, err := cmd.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("AT+CGATT=1\nERROR\n"))

	_, err = h.Result()
	require.Error(t, err)

	var failure *command.CommandFailure
	require.ErrorAs(t, err, &failure)
	assert.Contains(t, string(failure.Output), "ERROR")
}

func TestCommand_OutputAccumulates(t *testing.T) {
	b := bus.New("demo", func(p []byte) error { return nil })
	r := runner.NewPoolRunner()
	defer r.Shutdown()

	cmd := command.New(b, "AT+CGATT=1", func(chunk []byte) observer.FeedResult {
		if bytes.Contains(chunk, []byte("OK\n")) {
			return observer.Succeeded(nil)
		}
		return observer.Stay()
	}, 5*time.Second, false)

	_, err := cmd.Start(r)
	require.NoError(t, err)

	b.OnBytes([]byte("AT+CGATT=1\r\n"))
	b.OnBytes([]byte("OK\r\n"))

	assert.Equal(t, "AT+CGATT=1\r\nOK\r\n", string(cmd.Output()))
}
