package sandbox

import (
	"regexp"
	"strings"
)

var fencedPython = regexp.MustCompile("(?s)```python\n(.*?)```")

// ExtractCode returns the first ```python fenced block of a model answer,
// trimmed. The second result is false when the answer has no such block.
func ExtractCode(answer string) (string, bool) {
	m := fencedPython.FindStringSubmatch(answer)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}
