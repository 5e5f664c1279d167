package models

import "time"

// CommandStatus is the terminal state a command run ended in.
type CommandStatus string

const (
	CommandDone        CommandStatus = "done"
	CommandBailed      CommandStatus = "bailed"
	CommandCancelled   CommandStatus = "cancelled"
	CommandInterrupted CommandStatus = "interrupted"
	CommandBlocked     CommandStatus = "blocked"
)

// CommandResult holds the raw text received for one command, from the echo to the prompt (or the bail note).
type CommandResult struct {
	Command     string
	Output      string
	Status      CommandStatus
	Elapsed     time.Duration
	BlockReason string
}

func (r CommandResult) Completed() bool {
	return r.Status == CommandDone
}

func (r CommandResult) StatusCode() StatusCode {
	switch r.Status {
	case CommandDone:
		return StatusSucceeded
	case CommandBailed, CommandCancelled:
		return StatusBailed
	case CommandInterrupted:
		return StatusFailed
	case CommandBlocked:
		return StatusBlocked
	default:
		return StatusUnknown
	}
}
