package extensions

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/radium-run/radium/internal/commands"
)

var (
	shellPattern = regexp.MustCompile(`!\{([^}]*)\}`)
	filePattern  = regexp.MustCompile(`@\{([^}]*)\}`)
	argNPattern  = regexp.MustCompile(`\{\{arg(\d+)\}\}`)
)

// renderTemplate expands an extension command template against the raw
// argument string, supporting:
//
//	!{shell command}   - runs the command, substitutes its trimmed stdout
//	@{relative/path}   - inlines the named file's contents
//	{{args}}           - the full, unsplit argument string
//	{{arg1}}, {{arg2}} - individual whitespace-separated arguments (1-based)
//
// Substitution order is shell, then file, then argument placeholders, so
// a shell or file result is never itself re-scanned for {{...}} markers.
func renderTemplate(ctx context.Context, template string, args string) (string, error) {
	rendered := template

	var shellErr error
	rendered = shellPattern.ReplaceAllStringFunc(rendered, func(match string) string {
		if shellErr != nil {
			return match
		}
		cmdText := shellPattern.FindStringSubmatch(match)[1]
		out, err := runShell(ctx, cmdText)
		if err != nil {
			shellErr = err
			return match
		}
		return out
	})
	if shellErr != nil {
		return "", fmt.Errorf("render !{...}: %w", shellErr)
	}

	var fileErr error
	rendered = filePattern.ReplaceAllStringFunc(rendered, func(match string) string {
		if fileErr != nil {
			return match
		}
		rel := filePattern.FindStringSubmatch(match)[1]
		data, err := os.ReadFile(rel)
		if err != nil {
			fileErr = fmt.Errorf("read @{%s}: %w", rel, err)
			return match
		}
		return string(data)
	})
	if fileErr != nil {
		return "", fileErr
	}

	fields := strings.Fields(args)
	rendered = argNPattern.ReplaceAllStringFunc(rendered, func(match string) string {
		n, err := strconv.Atoi(argNPattern.FindStringSubmatch(match)[1])
		if err != nil || n < 1 || n > len(fields) {
			return ""
		}
		return fields[n-1]
	})

	rendered = strings.ReplaceAll(rendered, "{{args}}", args)
	return rendered, nil
}

func runShell(ctx context.Context, command string) (string, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", command)
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// newTemplateHandler builds a commands.CommandHandler that renders the
// template against the invocation's arguments and returns the result as
// the command's response text.
func newTemplateHandler(template string) commands.CommandHandler {
	return func(ctx context.Context, inv *commands.Invocation) (*commands.Result, error) {
		deadline, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()

		rendered, err := renderTemplate(deadline, template, inv.Args)
		if err != nil {
			return &commands.Result{Error: err.Error()}, nil
		}
		return &commands.Result{Text: rendered, Markdown: true}, nil
	}
}
