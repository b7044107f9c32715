package main

import (
	"chat-relay/client"
	"chat-relay/protocol"
	"fmt"
	"strings"
	"time"

	"github.com/gookit/color"
)

const usage = `Commands:
  /register <user> <password>   /login <user> <password>   /logout
  /msg <user> <text>            /group <group> <text>
  /create <group>  /join <group>  /leave <group>  /kick <group> <user>
  /users  /groups  /members <group>
  /history <user>  /ghistory <group>
  /help  /quit
`

type command struct {
	send func(c *client.Client) error
	quit bool
	help bool
}

// parseCommand turns one input line into a request.
// The last argument of /msg and /group keeps its spaces.
func parseCommand(line string) (command, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return command{}, fmt.Errorf("commands start with '/', try /help")
	}
	name, rest, _ := strings.Cut(line[1:], " ")
	rest = strings.TrimSpace(rest)

	one := func(f func(*client.Client, string) error) (command, error) {
		if rest == "" || strings.Contains(rest, " ") {
			return command{}, fmt.Errorf("/%s takes exactly one argument", name)
		}
		return command{send: func(c *client.Client) error { return f(c, rest) }}, nil
	}
	two := func(f func(*client.Client, string, string) error) (command, error) {
		first, second, ok := strings.Cut(rest, " ")
		second = strings.TrimSpace(second)
		if !ok || first == "" || second == "" {
			return command{}, fmt.Errorf("/%s takes two arguments", name)
		}
		return command{send: func(c *client.Client) error { return f(c, first, second) }}, nil
	}
	none := func(f func(*client.Client) error) (command, error) {
		if rest != "" {
			return command{}, fmt.Errorf("/%s takes no argument", name)
		}
		return command{send: f}, nil
	}

	switch name {
	case "register":
		return two((*client.Client).Register)
	case "login":
		return two((*client.Client).Login)
	case "logout":
		return none((*client.Client).Logout)
	case "msg":
		return two((*client.Client).PrivateMessage)
	case "group":
		return two((*client.Client).GroupMessage)
	case "create":
		return one((*client.Client).CreateGroup)
	case "join":
		return one((*client.Client).JoinGroup)
	case "leave":
		return one((*client.Client).LeaveGroup)
	case "kick":
		return two((*client.Client).KickMember)
	case "users":
		return none((*client.Client).GetUsers)
	case "groups":
		return none((*client.Client).GetGroups)
	case "members":
		return one((*client.Client).GroupMembers)
	case "history":
		return one((*client.Client).History)
	case "ghistory":
		return one((*client.Client).GroupHistory)
	case "help":
		return command{help: true}, nil
	case "quit", "exit":
		return command{quit: true}, nil
	default:
		return command{}, fmt.Errorf("unknown command /%s, try /help", name)
	}
}

// render formats a server envelope for the terminal.
func render(env protocol.Envelope) string {
	at := env.Timestamp.Local().Format(time.TimeOnly)
	switch env.Type {
	case protocol.TypePrivateMessage:
		return fmt.Sprintf("%s %s %s", at, color.Cyan.Sprintf("[%s]", env.Sender), env.Content)
	case protocol.TypeGroupMessage:
		return fmt.Sprintf("%s %s %s", at, color.Magenta.Sprintf("[%s@%s]", env.Sender, env.Recipient), env.Content)
	case protocol.TypeMessageHistoryResponse:
		return color.Gray.Sprintf("%s [%s -> %s] %s", at, env.Sender, env.Recipient, env.Content)
	case protocol.TypeUsersList:
		return "Users: " + strings.Join(protocol.SplitList(env.Content), ", ")
	case protocol.TypeGroupsList:
		return "Groups: " + strings.Join(protocol.SplitList(env.Content), ", ")
	case protocol.TypeGroupMembersResponse:
		if env.Recipient == "" {
			return color.Yellow.Sprint("No such group")
		}
		return fmt.Sprintf("Members of %s (admin %s): %s", env.Recipient, env.Sender,
			strings.Join(protocol.SplitList(env.Content), ", "))
	case protocol.TypeGroupCreated:
		return color.Green.Sprintf("Group created: %s", env.Content)
	case protocol.TypeAuthSuccess, protocol.TypeSuccessMsg:
		return color.Green.Sprint(env.Content)
	case protocol.TypeAuthFailure, protocol.TypeErrorMsg:
		return color.Red.Sprint(env.Content)
	default:
		return fmt.Sprintf("%s %s", env.Type, env.Content)
	}
}
