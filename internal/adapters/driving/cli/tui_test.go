package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui"
	"github.com/custodia-labs/cliniq/internal/adapters/driving/tui/messages"
)

func stubProgram(t *testing.T, run func(app *tui.App) error) {
	t.Helper()
	orig := runProgram
	runProgram = run
	t.Cleanup(func() { runProgram = orig })
}

func TestTUICommand_StartsApp(t *testing.T) {
	setupTestServices(t)

	var started *tui.App
	stubProgram(t, func(app *tui.App) error {
		started = app
		return nil
	})

	_, err := execute(t, "tui", "--chunk-k", "7", "-n", "3")
	require.NoError(t, err)

	require.NotNil(t, started)
	assert.Equal(t, messages.ViewSearch, started.CurrentView())
}

func TestTUICommand_ProgramError(t *testing.T) {
	setupTestServices(t)
	stubProgram(t, func(*tui.App) error { return errors.New("no tty") })

	_, err := execute(t, "tui")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "TUI error: no tty")
}

func TestTUICommand_MissingChunkService(t *testing.T) {
	setupTestServices(t)
	chunkService = nil
	stubProgram(t, func(*tui.App) error { return nil })

	_, err := execute(t, "tui")

	assert.ErrorIs(t, err, tui.ErrMissingChunkService)
}
