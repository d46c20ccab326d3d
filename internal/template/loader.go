package template

import (
	"os"
	"sync"

	logx "streamwatch/pkg/logx"
)

// fallbackJSON is the built-in minimal payload used when the template file
// is unreadable or invalid. The notification must still go out.
const fallbackJSON = `{"content": "{{#if mention}}{{mention}} {{/if}}{{streamer}} is live! {{url}}"}`

// Loader reads the template file fresh on every call, so the file can be
// edited while the process runs.
type Loader struct {
	log logx.Logger

	mu   sync.Mutex
	path string
}

func NewLoader(path string, log logx.Logger) *Loader {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Loader{log: log, path: path}
}

// SetPath swaps the template location at runtime (config hot reload).
func (l *Loader) SetPath(path string) {
	l.mu.Lock()
	l.path = path
	l.mu.Unlock()
}

// Load returns the template tree from disk, or the built-in fallback when
// the file cannot be read or parsed. Errors are logged, never returned:
// a broken template must not suppress the notification.
func (l *Loader) Load() Node {
	l.mu.Lock()
	path := l.path
	l.mu.Unlock()

	b, err := os.ReadFile(path)
	if err != nil {
		l.log.Error("template file unreadable; using fallback", logx.String("path", path), logx.Err(err))
		return Fallback()
	}
	n, err := Parse(b)
	if err != nil {
		l.log.Error("template file invalid; using fallback", logx.String("path", path), logx.Err(err))
		return Fallback()
	}
	return n
}

// Fallback returns the built-in minimal template.
func Fallback() Node {
	n, err := Parse([]byte(fallbackJSON))
	if err != nil {
		// The constant is known-good; this cannot happen.
		panic("template: invalid fallback: " + err.Error())
	}
	return n
}
