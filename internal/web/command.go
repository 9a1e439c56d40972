package web

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"Wulin-Chronicle/server/internal/game"
	"Wulin-Chronicle/server/internal/state"
)

var (
	errNotACommand    = errors.New("not a command")
	errUnknownCommand = errors.New("unknown command")
	errMissingArg     = errors.New("missing argument")
	errBadArg         = errors.New("invalid argument")
)

var commandPattern = regexp.MustCompile(`^/(\w+)(?:\s+(.+))?$`)

// Command is a parsed slash command such as "/save 1" or "/go 东".
type Command struct {
	Name string
	Args []string
	Raw  string
}

// ParseCommand splits a slash command into its name and positional args.
func ParseCommand(text string) (Command, error) {
	trimmed := strings.TrimSpace(text)
	match := commandPattern.FindStringSubmatch(trimmed)
	if match == nil {
		return Command{Raw: trimmed}, errNotACommand
	}
	cmd := Command{Name: strings.ToLower(match[1]), Raw: trimmed}
	if match[2] != "" {
		cmd.Args = strings.Fields(match[2])
	}
	return cmd, nil
}

func (c Command) intArg() (int, error) {
	if len(c.Args) == 0 {
		return 0, fmt.Errorf("%w: /%s needs a number", errMissingArg, c.Name)
	}
	n, err := strconv.Atoi(c.Args[0])
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadArg, c.Args[0])
	}
	return n, nil
}

// runCommand executes cmd against the session and returns a JSON-able reply.
func runCommand(ctx context.Context, session *game.Session, cmd Command) (any, error) {
	switch cmd.Name {
	case "next":
		return session.NextScene(ctx)
	case "choose":
		n, err := cmd.intArg()
		if err != nil {
			return nil, err
		}
		// Options are shown 1-based.
		return session.Choose(ctx, n-1)
	case "go":
		if len(cmd.Args) == 0 {
			return nil, fmt.Errorf("%w: /go needs a direction", errMissingArg)
		}
		return session.Travel(ctx, state.Direction(cmd.Args[0]))
	case "save":
		n, err := cmd.intArg()
		if err != nil {
			return nil, err
		}
		if err := session.Save(ctx, n); err != nil {
			return nil, err
		}
		return map[string]any{"message": fmt.Sprintf("游戏已保存到存档 %d。", n)}, nil
	case "load":
		n, err := cmd.intArg()
		if err != nil {
			return nil, err
		}
		if err := session.Load(ctx, n); err != nil {
			return nil, err
		}
		return map[string]any{"message": fmt.Sprintf("已读取存档 %d。", n)}, nil
	case "slots":
		slots, err := session.Slots(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"slots": slots}, nil
	case "tone":
		if len(cmd.Args) == 0 {
			return map[string]any{"tone": session.Tone()}, nil
		}
		if err := session.SetTone(cmd.Args[0]); err != nil {
			return nil, err
		}
		return map[string]any{"tone": session.Tone()}, nil
	case "archive":
		if err := session.ArchiveWorld(ctx); err != nil {
			return nil, err
		}
		return map[string]any{"message": "江湖大势已载入史册。"}, nil
	case "war":
		summary, err := session.EvolveWorld(ctx)
		if err != nil {
			return nil, err
		}
		return map[string]any{"summary": summary}, nil
	default:
		return nil, fmt.Errorf("%w: /%s", errUnknownCommand, cmd.Name)
	}
}
