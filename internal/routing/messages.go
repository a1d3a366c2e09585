package routing

import "fmt"

// Replies the relay writes itself. %s is the shape name unless noted.
const (
	activatedMsg     = "Hello! I am now active for **%s** in this channel. All messages here will be forwarded."
	alreadyActiveMsg = "I am already active in this channel for **%s**."
	notActiveMsg     = "I am not active in this channel. Use `/activate` first."
	deactivatedMsg   = "I am no longer active for **%s** in this channel."
	resetMsg         = "The long-term memory for **%s** in this channel has been reset for you. You can start a new conversation."
	ordinaryFailMsg  = "Oops, something went wrong while trying to talk to the Shape."
)

func usageText(cmd string) string {
	return fmt.Sprintf("Please provide the necessary arguments for `/%s`. Example: `/%s your arguments`", cmd, cmd)
}

func silentText(cmd, shape string) string {
	return fmt.Sprintf("The command `/%s` has been sent to **%s**. It may have been processed silently.", cmd, shape)
}

func noTextText(cmd, shape string) string {
	return fmt.Sprintf("**%s** didn't provide a specific textual response for `/%s`. The action might have been completed, or it may require a different interaction.", shape, cmd)
}

func commandFailText(cmd, shape string) string {
	return fmt.Sprintf("Sorry, there was an error processing your `/%s` command with **%s**.", cmd, shape)
}
