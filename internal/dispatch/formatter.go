package dispatch

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"alertbus/internal/domain/alert"
	"alertbus/pkg/templates"
)

// FormatFunc renders an event into chat text
type FormatFunc func(e alert.Event) (string, error)

const timestampLayout = "2006-01-02 15:04:05"

// Formatter renders events with per-type overrides, then the notifications/<type>
// template, then a generic "TYPE: {attributes}" line.
type Formatter struct {
	mu       sync.RWMutex
	registry *templates.Registry
	custom   map[alert.EventType]FormatFunc
	now      func() time.Time
}

// NewFormatter creates a formatter. A nil registry uses the embedded templates.
func NewFormatter(registry *templates.Registry) *Formatter {
	if registry == nil {
		registry = templates.Get()
	}
	return &Formatter{
		registry: registry,
		custom:   make(map[alert.EventType]FormatFunc),
		now:      time.Now,
	}
}

// Register installs a custom formatter for an event type
func (f *Formatter) Register(t alert.EventType, fn FormatFunc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if fn == nil {
		delete(f.custom, t)
		return
	}
	f.custom[t] = fn
}

// Format never fails; the generic rendering is the last resort
func (f *Formatter) Format(e alert.Event) string {
	f.mu.RLock()
	custom := f.custom[e.Type]
	f.mu.RUnlock()

	if custom != nil {
		if text, err := custom(e); err == nil {
			return text
		}
	}

	id := "notifications/" + string(e.Type)
	if f.registry.Has(id) {
		if text, err := f.registry.Render(id, f.templateData(e)); err == nil {
			return strings.TrimRight(text, "\n")
		}
	}
	return Generic(e)
}

// Generic renders "TYPE: {k: v, ...}" with sorted keys
func Generic(e alert.Event) string {
	return fmt.Sprintf("%s: %s", strings.ToUpper(string(e.Type)), e.Attributes.String())
}

func (f *Formatter) templateData(e alert.Event) map[string]any {
	data := e.Attributes.Raw()
	data["marker"] = e.Priority.Marker()
	data["priority"] = e.Priority.String()
	data["event_type"] = string(e.Type)
	if v, ok := data["timestamp"]; !ok || v == nil {
		data["timestamp"] = f.now().Format(timestampLayout)
	}
	return data
}
