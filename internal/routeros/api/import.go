package api

import (
	"context"
	"fmt"
	"strings"

	"github.com/nettriq/rosfleet/internal/routeros"
)

// ImportScript applies an exported configuration over the binary transport
// one line at a time. The API has no bulk import, so each non-comment,
// non-blank line is translated into a sentence and executed individually.
// A failing line is recorded and the import continues; callers get the full
// picture in the returned ImportResult. Partial application is a known
// consequence of this policy and is left visible to the operator.
func (c *Client) ImportScript(ctx context.Context, script string) *routeros.ImportResult {
	result := &routeros.ImportResult{}
	section := ""

	for i, raw := range strings.Split(script, "\n") {
		line := strings.TrimSpace(strings.TrimSuffix(raw, "\r"))
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		command, args, newSection, err := translateLine(line, section)
		if err != nil {
			result.LineErrors = append(result.LineErrors, routeros.LineError{
				Line: i + 1, Text: line, Message: err.Error(),
			})
			result.Log = append(result.Log, fmt.Sprintf("ERR %s: %v", line, err))
			continue
		}
		section = newSection
		if command == "" {
			// Bare section header; nothing to execute.
			result.Log = append(result.Log, fmt.Sprintf("SECTION %s", line))
			continue
		}

		res := c.Execute(ctx, command, args)
		if !res.Success {
			result.LineErrors = append(result.LineErrors, routeros.LineError{
				Line: i + 1, Text: line, Message: res.Err,
			})
			result.Log = append(result.Log, fmt.Sprintf("ERR %s: %s", line, res.Err))
			continue
		}
		result.Applied++
		result.Log = append(result.Log, fmt.Sprintf("OK %s", line))
	}
	return result
}

// actionVerbs are the menu verbs that terminate a command path.
var actionVerbs = map[string]bool{
	"add":     true,
	"set":     true,
	"remove":  true,
	"enable":  true,
	"disable": true,
	"print":   true,
	"reset":   true,
	"unset":   true,
}

// translateLine converts one exported CLI line into an API command path and
// argument map. Lines that only name a menu ("/ip firewall filter") set the
// section context for the indented lines that follow ("add chain=input ...").
func translateLine(line, section string) (command string, args map[string]string, newSection string, err error) {
	tokens, err := splitTokens(line)
	if err != nil {
		return "", nil, section, err
	}
	if len(tokens) == 0 {
		return "", nil, section, nil
	}

	path := make([]string, 0, 4)
	rest := tokens

	if strings.HasPrefix(tokens[0], "/") {
		// Inline path: consume tokens up to the action verb or first argument.
		for len(rest) > 0 {
			tok := rest[0]
			if strings.Contains(tok, "=") {
				break
			}
			name := strings.TrimPrefix(tok, "/")
			path = append(path, name)
			rest = rest[1:]
			if actionVerbs[name] {
				break
			}
		}
		if len(rest) > 0 && !actionVerbs[path[len(path)-1]] {
			return "", nil, section, fmt.Errorf("no action verb in %q", line)
		}
		if len(rest) == 0 && !actionVerbs[path[len(path)-1]] {
			// Section header only.
			return "", nil, "/" + strings.Join(path, "/"), nil
		}
	} else {
		// Continuation line inside the current section.
		if section == "" {
			return "", nil, section, fmt.Errorf("line %q outside any section", line)
		}
		if !actionVerbs[tokens[0]] {
			return "", nil, section, fmt.Errorf("unsupported directive %q", tokens[0])
		}
		path = append(path, strings.Split(strings.TrimPrefix(section, "/"), "/")...)
		path = append(path, tokens[0])
		rest = tokens[1:]
	}

	args = make(map[string]string, len(rest))
	for _, tok := range rest {
		key, value, ok := strings.Cut(tok, "=")
		if !ok {
			// Positional flags ("disabled") become yes-valued assignments.
			args[tok] = "yes"
			continue
		}
		args[key] = unquote(value)
	}
	if len(args) == 0 {
		args = nil
	}
	return "/" + strings.Join(path, "/"), args, section, nil
}

// splitTokens splits on whitespace while keeping double-quoted values whole.
func splitTokens(line string) ([]string, error) {
	var tokens []string
	var cur strings.Builder
	inQuote := false
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			cur.WriteRune(r)
		case (r == ' ' || r == '\t') && !inQuote:
			if cur.Len() > 0 {
				tokens = append(tokens, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		return nil, fmt.Errorf("unterminated quote")
	}
	if cur.Len() > 0 {
		tokens = append(tokens, cur.String())
	}
	return tokens, nil
}

func unquote(v string) string {
	if len(v) >= 2 && strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		return v[1 : len(v)-1]
	}
	return v
}
