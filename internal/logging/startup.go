package logging

import (
	"os"
	"runtime"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Resource categories reported by StartupLogger.
const (
	resourceStorage  = "storage"
	resourceDatabase = "databases"
	resourceDevice   = "devices"
)

// StartupLogger gathers what a booth process is wired to and logs it as one
// event, so a kiosk's setup can be read from a single line. Register secret
// sources, never secret values.
type StartupLogger struct {
	name     string
	version  string
	took     time.Duration
	resource map[string]map[string]string
	features map[string]bool
	settings map[string]string
}

// NewStartupLogger starts a summary for the named command.
func NewStartupLogger(name string) *StartupLogger {
	return &StartupLogger{
		name:     name,
		resource: make(map[string]map[string]string),
		features: make(map[string]bool),
		settings: make(map[string]string),
	}
}

func (s *StartupLogger) add(category, label, value string) *StartupLogger {
	if s.resource[category] == nil {
		s.resource[category] = make(map[string]string)
	}
	s.resource[category][label] = value
	return s
}

func (s *StartupLogger) Version(v string) *StartupLogger {
	s.version = v
	return s
}

// Storage records where uploads and prints go.
func (s *StartupLogger) Storage(backend, location string) *StartupLogger {
	return s.add(resourceStorage, backend, location)
}

func (s *StartupLogger) Database(label, path string) *StartupLogger {
	return s.add(resourceDatabase, label, path)
}

// Device records an attached device such as the camera or print queue.
// Empty names are logged as "none".
func (s *StartupLogger) Device(label, name string) *StartupLogger {
	if name == "" {
		name = "none"
	}
	return s.add(resourceDevice, label, name)
}

func (s *StartupLogger) Feature(name string, enabled bool) *StartupLogger {
	s.features[name] = enabled
	return s
}

// Config records a non-sensitive setting. Empty values are skipped.
func (s *StartupLogger) Config(key, value string) *StartupLogger {
	if value != "" {
		s.settings[key] = value
	}
	return s
}

func (s *StartupLogger) InitDuration(d time.Duration) *StartupLogger {
	s.took = d
	return s
}

// Log writes the summary at info level.
func (s *StartupLogger) Log() {
	host, _ := os.Hostname()
	proc := zerolog.Dict().
		Str("command", s.name).
		Str("version", s.version).
		Str("host", host).
		Int("pid", os.Getpid()).
		Str("go", runtime.Version()).
		Str("platform", runtime.GOOS+"/"+runtime.GOARCH).
		Str("log_level", zerolog.GlobalLevel().String())

	evt := log.Info().Dict("process", proc)

	if len(s.resource) > 0 {
		res := zerolog.Dict()
		for _, category := range sortedKeys(s.resource) {
			res = res.Dict(category, strDict(s.resource[category]))
		}
		evt = evt.Dict("resources", res)
	}

	var on, off []string
	for _, name := range sortedKeys(s.features) {
		if s.features[name] {
			on = append(on, name)
		} else {
			off = append(off, name)
		}
	}
	if on != nil {
		evt = evt.Strs("enabled", on)
	}
	if off != nil {
		evt = evt.Strs("disabled", off)
	}

	if len(s.settings) > 0 {
		evt = evt.Dict("config", strDict(s.settings))
	}
	if s.took > 0 {
		evt = evt.Dur("init_duration", s.took)
	}
	evt.Msg("Photobooth ready")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func strDict(m map[string]string) *zerolog.Event {
	d := zerolog.Dict()
	for _, k := range sortedKeys(m) {
		d = d.Str(k, m[k])
	}
	return d
}
