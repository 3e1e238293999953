// Package scenario defines the request scenarios driven by es-sim.
package scenario

import (
	"embed"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/arloliu/fuda"
	"github.com/samber/lo"
)

// Scenario is an ordered list of Elasticsearch requests issued as one trace.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one Elasticsearch REST request, optionally repeated.
type Step struct {
	Method string            `yaml:"method"`
	Path   string            `yaml:"path"`
	Params map[string]string `yaml:"params,omitempty"`
	// Body is sent as is; NDJSON bodies keep their trailing newline.
	Body string `yaml:"body,omitempty"`

	// Repeat issues the request this many times, at least once.
	Repeat int `yaml:"repeat,omitempty"`
	// Delay is waited before each request.
	Delay Duration `yaml:"delay,omitempty"`
	// Latency is the server-side processing time the fake cluster simulates.
	Latency Duration `yaml:"latency,omitempty"`

	// ErrorRate is the probability (0.0-1.0) that the fake cluster fails the request.
	ErrorRate float64 `yaml:"errorRate,omitempty"`
	// ErrorStatus is the status returned on simulated failure, 503 if unset.
	ErrorStatus int `yaml:"errorStatus,omitempty"`
}

// Times returns how often the step runs.
func (s Step) Times() int {
	return max(s.Repeat, 1)
}

// Target returns the request URI: path plus encoded params.
func (s Step) Target() string {
	if len(s.Params) == 0 {
		return s.Path
	}

	q := url.Values{}
	for k, v := range s.Params {
		q.Set(k, v)
	}

	return s.Path + "?" + q.Encode()
}

// FailureStatus returns the status used for simulated failures.
func (s Step) FailureStatus() int {
	if s.ErrorStatus == 0 {
		return http.StatusServiceUnavailable
	}

	return s.ErrorStatus
}

var validMethods = []string{
	http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut, http.MethodDelete,
}

// Validate reports the first problem with the scenario.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("scenario %s: at least one step is required", s.Name)
	}
	for i, step := range s.Steps {
		if !slices.Contains(validMethods, strings.ToUpper(step.Method)) {
			return fmt.Errorf("scenario %s: step %d: unsupported method %q", s.Name, i+1, step.Method)
		}
		if !strings.HasPrefix(step.Path, "/") {
			return fmt.Errorf("scenario %s: step %d: path must start with /", s.Name, i+1)
		}
		if step.ErrorRate < 0 || step.ErrorRate > 1 {
			return fmt.Errorf("scenario %s: step %d: errorRate must be within [0,1]", s.Name, i+1)
		}
	}

	return nil
}

// RequestCount returns the number of requests one run of the scenario sends.
func (s *Scenario) RequestCount() int {
	return lo.SumBy(s.Steps, Step.Times)
}

// Duration is a wrapper for time.Duration that supports YAML parsing.
type Duration time.Duration

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(unmarshal func(any) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(dur)

	return nil
}

// AsDuration converts Duration to time.Duration.
func (d Duration) AsDuration() time.Duration {
	return time.Duration(d)
}

//go:embed scenarios/*.yaml
var embedded embed.FS

var (
	mu       sync.RWMutex
	registry = map[string]*Scenario{}
)

func init() {
	entries, err := embedded.ReadDir("scenarios")
	if err != nil {
		panic(fmt.Sprintf("es-sim: read embedded scenarios: %v", err))
	}
	for _, e := range entries {
		data, err := embedded.ReadFile(path.Join("scenarios", e.Name()))
		if err != nil {
			panic(fmt.Sprintf("es-sim: read %s: %v", e.Name(), err))
		}
		s, err := Parse(data)
		if err != nil {
			panic(fmt.Sprintf("es-sim: embedded scenario %s: %v", e.Name(), err))
		}
		Register(s)
	}
}

// Register adds a scenario to the registry, replacing one with the same name.
func Register(s *Scenario) {
	mu.Lock()
	defer mu.Unlock()
	registry[s.Name] = s
}

// Get retrieves a scenario by name.
func Get(name string) (*Scenario, bool) {
	mu.RLock()
	defer mu.RUnlock()
	s, ok := registry[name]

	return s, ok
}

// List returns the registered scenarios sorted by name.
func List() []*Scenario {
	mu.RLock()
	defer mu.RUnlock()

	out := lo.Values(registry)
	slices.SortFunc(out, func(a, b *Scenario) int { return strings.Compare(a.Name, b.Name) })

	return out
}

// Parse decodes and validates a YAML or JSON scenario.
func Parse(data []byte) (*Scenario, error) {
	var s Scenario
	if err := fuda.LoadBytes(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	return &s, nil
}
