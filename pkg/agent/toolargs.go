package agent

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/adilhn/selene/internal/observability"
)

var trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)

var controlCharReplacer = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

// ParseToolArguments turns a model-produced argument string into a map,
// repairing the malformed JSON smaller models tend to emit. It never
// fails: when every repair step loses, it returns an empty map so the
// tool itself can reject the call through schema validation.
//
// The repair ladder, in order: strict parse; sanitized parse (trailing
// commas, single quotes, bare control characters); first object of a
// concatenated sequence; any balanced object found by character scan;
// empty map.
func ParseToolArguments(raw string, logger zerolog.Logger) map[string]interface{} {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || trimmed == "{}" {
		return map[string]interface{}{}
	}

	if args, ok := tryParseObject(trimmed); ok {
		return args
	}

	sanitized := sanitizeJSON(trimmed)
	if args, ok := tryParseObject(sanitized); ok {
		observability.RecordArgumentRepair("sanitize")
		logger.Debug().Msg("Repaired tool arguments by sanitizing")
		return args
	}

	// Some models emit several complete objects back to back; the first
	// one is the intended argument set.
	if first, rest, ok := splitBalancedObject(sanitized); ok && strings.HasPrefix(strings.TrimSpace(rest), "{") {
		if args, parsed := tryParseObject(first); parsed {
			observability.RecordArgumentRepair("first_object")
			logger.Debug().Msg("Repaired tool arguments by taking first of concatenated objects")
			return args
		}
	}

	// Prose wrapping an object: scan for the first balanced {...} span.
	if span, ok := extractBalancedObject(sanitized); ok {
		if args, parsed := tryParseObject(span); parsed {
			observability.RecordArgumentRepair("balanced_scan")
			logger.Debug().Msg("Repaired tool arguments by extracting embedded object")
			return args
		}
	}

	observability.RecordArgumentRepair("failed")
	logger.Warn().
		Str("raw", truncateForLog(raw, 200)).
		Msg("Tool arguments unparseable, substituting empty object")
	return map[string]interface{}{}
}

func tryParseObject(s string) (map[string]interface{}, bool) {
	var args map[string]interface{}
	if err := json.Unmarshal([]byte(s), &args); err != nil {
		return nil, false
	}
	if args == nil {
		args = map[string]interface{}{}
	}
	return args, true
}

// sanitizeJSON fixes the three most common malformations: trailing commas
// before a closing brace or bracket, single quotes used as string
// delimiters, and raw control characters inside string values.
func sanitizeJSON(s string) string {
	s = trailingCommaRe.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, "'", `"`)
	s = controlCharReplacer.Replace(s)
	return s
}

// splitBalancedObject splits s into its leading balanced object and the
// remainder. The object must start at the first non-space character.
func splitBalancedObject(s string) (object, rest string, ok bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{") {
		return "", "", false
	}
	end, ok := scanBalanced(trimmed, 0)
	if !ok {
		return "", "", false
	}
	return trimmed[:end+1], trimmed[end+1:], true
}

// extractBalancedObject returns the first balanced {...} span found
// anywhere in s.
func extractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	end, ok := scanBalanced(s, start)
	if !ok {
		return "", false
	}
	return s[start : end+1], true
}

// scanBalanced walks from the opening brace at start to its matching
// closing brace, honoring string literals and escapes. Returns the index
// of the closing brace.
func scanBalanced(s string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

func truncateForLog(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
