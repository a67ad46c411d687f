package audio

import (
	"context"
	"fmt"
	"os/exec"
)

// CommandCuePlayer plays the thinking cue file with an external player.
type CommandCuePlayer struct {
	command string
	path    string
}

func NewCommandCuePlayer(command string, path string) *CommandCuePlayer {
	if command == "" {
		command = "ffplay"
	}
	return &CommandCuePlayer{command: command, path: path}
}

// PlayCue blocks until the cue has played. Without a cue file it does nothing, and a
// cancelled context is not an error.
func (p *CommandCuePlayer) PlayCue(ctx context.Context) error {
	if p.path == "" {
		return nil
	}

	cmd := exec.CommandContext(ctx, p.command, "-nodisp", "-autoexit", "-loglevel", "quiet", p.path)
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("failed to play cue: %w", err)
	}
	return nil
}
