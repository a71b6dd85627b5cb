package channel

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
)

type CommandKind string

const (
	CommandHelp     CommandKind = "help"
	CommandHealth   CommandKind = "health"
	CommandAgents   CommandKind = "agents"
	CommandRegister CommandKind = "register"
	CommandSend     CommandKind = "send"
	CommandThread   CommandKind = "thread"
)

// HelpText lists the commands a chat user can issue.
const HelpText = `/agents - list registered agents
/register <name> [cap1,cap2] - register an agent
/send <agent> <text> - send a message to one agent
/thread <a,b,c> [text] - open a thread; text goes to everyone but the first
/health - probe the coral network`

// Command is one parsed chat command.
type Command struct {
	Kind         CommandKind
	Agent        string
	Content      string
	Capabilities []string
	Participants []string
}

// ParseCommand reads a slash command. Telegram's "@botname" suffix is ignored.
func ParseCommand(text string) (Command, error) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return Command{}, fmt.Errorf("empty command")
	}

	name := strings.ToLower(fields[0])
	if !strings.HasPrefix(name, "/") {
		return Command{}, fmt.Errorf("commands start with '/', try /help")
	}
	name, _, _ = strings.Cut(strings.TrimPrefix(name, "/"), "@")
	args := fields[1:]

	switch name {
	case "start", "help":
		return Command{Kind: CommandHelp}, nil
	case "health":
		return Command{Kind: CommandHealth}, nil
	case "agents":
		return Command{Kind: CommandAgents}, nil
	case "register":
		if len(args) == 0 {
			return Command{}, fmt.Errorf("usage: /register <name> [cap1,cap2]")
		}
		cmd := Command{Kind: CommandRegister, Agent: args[0]}
		if len(args) > 1 {
			cmd.Capabilities = splitList(strings.Join(args[1:], ","))
		}
		return cmd, nil
	case "send":
		if len(args) < 2 {
			return Command{}, fmt.Errorf("usage: /send <agent> <text>")
		}
		return Command{Kind: CommandSend, Agent: args[0], Content: strings.Join(args[1:], " ")}, nil
	case "thread":
		if len(args) == 0 {
			return Command{}, fmt.Errorf("usage: /thread <a,b,c> [text]")
		}
		participants := splitList(args[0])
		if len(participants) == 0 {
			return Command{}, fmt.Errorf("usage: /thread <a,b,c> [text]")
		}
		return Command{Kind: CommandThread, Participants: participants, Content: strings.Join(args[1:], " ")}, nil
	default:
		return Command{}, fmt.Errorf("unknown command /%s, try /help", name)
	}
}

func splitList(input string) []string {
	parts := lo.Map(strings.Split(input, ","), func(part string, _ int) string {
		return strings.TrimSpace(part)
	})

	return lo.Compact(parts)
}
