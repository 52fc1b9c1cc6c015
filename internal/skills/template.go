package skills

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
)

const (
	// commandBudget is the wall-clock cap per inline command.
	commandBudget = 10 * time.Second

	// maxInlineCommands caps `!`cmd`` expansions per skill content.
	maxInlineCommands = 8
)

var (
	envPattern    = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	inlineCommand = regexp.MustCompile("!`([^`]+)`")
)

// CommandRunner executes an inline shell command and returns its stdout.
// The skills engine supplies one backed by the subprocess runtime.
type CommandRunner func(ctx context.Context, command string, timeout time.Duration) (string, error)

// Expand applies placeholder substitution to skill content before it is
// sent to the model: $ARGUMENTS, positional $1..$9, ${ENV_VAR}, and
// inline !`cmd` expansion. Inline commands run with a 10-second budget
// each, at most 8 per content; a failed command is replaced by an error
// marker so the model receives deterministic text — a substitution
// failure never fails the invocation.
func Expand(ctx context.Context, content, arguments string, lookupEnv func(string) (string, bool), run CommandRunner) string {
	out := expandArguments(content, arguments)
	out = expandEnv(out, lookupEnv)
	out = expandCommands(ctx, out, run)
	return out
}

// expandArguments substitutes $ARGUMENTS and $1..$9. Positionals are the
// whitespace-split argument words; missing positions expand to empty.
func expandArguments(content, arguments string) string {
	words := strings.Fields(arguments)

	var b strings.Builder
	b.Grow(len(content))
	for i := 0; i < len(content); {
		if content[i] != '$' {
			b.WriteByte(content[i])
			i++
			continue
		}
		rest := content[i+1:]
		switch {
		case strings.HasPrefix(rest, "ARGUMENTS"):
			b.WriteString(arguments)
			i += 1 + len("ARGUMENTS")
		case len(rest) > 0 && rest[0] >= '1' && rest[0] <= '9':
			idx := int(rest[0] - '1')
			if idx < len(words) {
				b.WriteString(words[idx])
			}
			i += 2
		default:
			b.WriteByte('$')
			i++
		}
	}
	return b.String()
}

func expandEnv(content string, lookupEnv func(string) (string, bool)) string {
	if lookupEnv == nil {
		lookupEnv = func(string) (string, bool) { return "", false }
	}
	return envPattern.ReplaceAllStringFunc(content, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		value, _ := lookupEnv(name)
		return value
	})
}

func expandCommands(ctx context.Context, content string, run CommandRunner) string {
	if run == nil || !inlineCommand.MatchString(content) {
		return content
	}

	count := 0
	return inlineCommand.ReplaceAllStringFunc(content, func(match string) string {
		count++
		if count > maxInlineCommands {
			return "[command skipped: too many inline commands]"
		}
		command := inlineCommand.FindStringSubmatch(match)[1]
		output, err := run(ctx, command, commandBudget)
		if err != nil {
			return fmt.Sprintf("[command failed: %v]", err)
		}
		return strings.TrimRight(output, "\n")
	})
}
