package ban

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// Disabler rewrites the account file in place on a hard-ban verdict,
// preserving every comment already in the file: it inserts a
// "// BANNED YYYY-MM-DD: <reason>" line immediately before the matching
// account object and flips (or adds) that object's enabled field to
// false. It works on raw text rather than re-marshalling JSON, since
// re-marshalling would discard the file's comments.
type Disabler struct {
	Path string
}

var emailKeyPattern = regexp.MustCompile(`"email"\s*:\s*"([^"]*)"`)
var enabledKeyPattern = regexp.MustCompile(`"enabled"\s*:\s*(true|false)`)

// Disable sets enabled=false for the account matching email and inserts a
// BANNED comment before its object, unless one is already present, so
// running it twice produces identical output.
func (d Disabler) Disable(email, reason string, now time.Time) error {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return fmt.Errorf("ban: read account file: %w", err)
	}
	content := string(data)

	objStart, objEnd, err := findAccountObject(content, email)
	if err != nil {
		return err
	}

	precedingComment := lastNonBlankLine(content[:objStart])
	if strings.HasPrefix(strings.TrimSpace(precedingComment), "// BANNED") {
		// Idempotent: already disabled, nothing to change.
		return nil
	}

	obj := content[objStart:objEnd]
	obj = setEnabledFalse(obj)

	indent := leadingWhitespace(content, objStart)
	comment := fmt.Sprintf("%s// BANNED %s: %s\n", indent, now.UTC().Format("2006-01-02"), sanitizeComment(reason))

	rewritten := content[:objStart] + comment + indent + obj + content[objEnd:]
	return os.WriteFile(d.Path, []byte(rewritten), 0o644)
}

func sanitizeComment(reason string) string {
	return strings.ReplaceAll(strings.ReplaceAll(reason, "\n", " "), "*/", "* /")
}

// findAccountObject locates the `{ ... }` span whose "email" field matches
// email, by balanced-brace scanning from the email key's enclosing `{`.
func findAccountObject(content, email string) (start, end int, err error) {
	locs := emailKeyPattern.FindAllStringSubmatchIndex(content, -1)
	for _, loc := range locs {
		matched := content[loc[2]:loc[3]]
		if matched != email {
			continue
		}
		keyPos := loc[0]
		objStart := strings.LastIndexByte(content[:keyPos], '{')
		if objStart < 0 {
			continue
		}
		depth := 0
		for i := objStart; i < len(content); i++ {
			switch content[i] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return objStart, i + 1, nil
				}
			}
		}
	}
	return 0, 0, fmt.Errorf("ban: account %q not found in %s", email, "account file")
}

func setEnabledFalse(obj string) string {
	if enabledKeyPattern.MatchString(obj) {
		return enabledKeyPattern.ReplaceAllString(obj, `"enabled": false`)
	}
	trimmed := strings.TrimRight(obj, " \t\n\r")
	closeIdx := strings.LastIndexByte(trimmed, '}')
	if closeIdx < 0 {
		return obj
	}
	inner := strings.TrimRight(trimmed[:closeIdx], " \t\n\r")
	needsComma := strings.TrimSpace(inner) != "{" && !strings.HasSuffix(strings.TrimRight(inner, " \t\n\r"), "{")
	sep := ""
	if needsComma {
		sep = ","
	}
	return inner + sep + ` "enabled": false }`
}

func lastNonBlankLine(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(lines[i]) != "" {
			return lines[i]
		}
	}
	return ""
}

func leadingWhitespace(content string, pos int) string {
	lineStart := strings.LastIndexByte(content[:pos], '\n') + 1
	i := lineStart
	for i < len(content) && (content[i] == ' ' || content[i] == '\t') {
		i++
	}
	return content[lineStart:i]
}
