package routing

import "strings"

type commandKind int

const (
	commandLocal commandKind = iota
	commandPassthrough
)

// command is one entry of the slash-command table.
type command struct {
	name         string
	kind         commandKind
	shapeCommand string // sent to the shape for passthrough commands
	requiresArgs bool
	maySilent    bool // an empty reply is a normal success
}

var commands = map[string]command{
	"activate":   {name: "activate", kind: commandLocal},
	"deactivate": {name: "deactivate", kind: commandLocal},
	"reset":      {name: "reset", kind: commandPassthrough, shapeCommand: "!reset"},
	"sleep":      {name: "sleep", kind: commandPassthrough, shapeCommand: "!sleep", maySilent: true},
	"dashboard":  {name: "dashboard", kind: commandPassthrough, shapeCommand: "!dashboard"},
	"info":       {name: "info", kind: commandPassthrough, shapeCommand: "!info"},
	"web":        {name: "web", kind: commandPassthrough, shapeCommand: "!web", requiresArgs: true},
	"help":       {name: "help", kind: commandPassthrough, shapeCommand: "!help"},
	"imagine":    {name: "imagine", kind: commandPassthrough, shapeCommand: "!imagine", requiresArgs: true},
	"wack":       {name: "wack", kind: commandPassthrough, shapeCommand: "!wack", maySilent: true},
}

// parseCommand splits a prefixed message into a lowercased command name and
// its arguments joined by single spaces. ok is false when body does not
// start with prefix; a bare prefix yields ok with an empty name.
func parseCommand(body, prefix string) (name, args string, ok bool) {
	if prefix == "" || !strings.HasPrefix(body, prefix) {
		return "", "", false
	}
	fields := strings.Fields(body[len(prefix):])
	if len(fields) == 0 {
		return "", "", true
	}
	return strings.ToLower(fields[0]), strings.Join(fields[1:], " "), true
}

// shapeContent builds the text sent to the shape for a passthrough command.
func (c command) shapeContent(args string) string {
	if c.requiresArgs && args != "" {
		return c.shapeCommand + " " + args
	}
	return c.shapeCommand
}
