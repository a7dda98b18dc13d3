package submit

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cuongbtq/genjob-notify/internal/tracker/domain"
)

// Engine describes one generation backend and the parameters it accepts.
type Engine struct {
	Name string
	// RequireSourceImage marks image-to-video engines.
	RequireSourceImage bool
	// Params maps every accepted parameter to its validator rule.
	Params map[string]string
}

// DefaultEngines returns the engines known out of the box.
func DefaultEngines() []Engine {
	return []Engine{
		{
			Name:               "kling",
			RequireSourceImage: true,
			Params: map[string]string{
				"aspect_ratio":    "omitempty,oneof=16:9 9:16 1:1",
				"duration":        "omitempty,gte=5,lte=10",
				"negative_prompt": "omitempty,max=2500",
				"cfg_scale":       "omitempty,gte=0,lte=1",
				"mode":            "omitempty,oneof=std pro",
			},
		},
		{
			Name: "runway",
			Params: map[string]string{
				"ratio":     "omitempty,oneof=1280:768 768:1280",
				"duration":  "omitempty,gte=5,lte=10",
				"seed":      "omitempty,gte=0,lte=4294967295",
				"watermark": "omitempty",
			},
		},
		{
			Name: "luma",
			Params: map[string]string{
				"aspect_ratio": "omitempty,oneof=16:9 9:16 1:1 4:3 3:4 21:9",
				"resolution":   "omitempty,oneof=540p 720p 1080p",
				"loop":         "omitempty",
				"style":        "omitempty,max=64",
			},
		},
		{
			Name: "minimax",
			Params: map[string]string{
				"resolution":            "omitempty,oneof=768P 1080P",
				"duration":              "omitempty,gte=6,lte=10",
				"prompt_optimizer":      "omitempty",
				"enable_safety_checker": "omitempty",
			},
		},
	}
}

// Registry holds the engines a Facade can dispatch to.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]Engine
}

// NewRegistry creates a registry with the given engines.
func NewRegistry(engines ...Engine) *Registry {
	r := &Registry{engines: make(map[string]Engine, len(engines))}
	for _, e := range engines {
		r.Register(e)
	}
	return r
}

// Register adds or replaces an engine.
func (r *Registry) Register(e Engine) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[strings.ToLower(e.Name)] = e
}

// Lookup returns the engine with the given name.
func (r *Registry) Lookup(name string) (Engine, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.engines[strings.ToLower(name)]
	return e, ok
}

// Names returns the registered engine names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ValidateParams checks params against the engine's schema. Unknown
// parameters are rejected.
func (e Engine) ValidateParams(v *validator.Validate, spec domain.JobSpec) error {
	if e.RequireSourceImage && spec.SourceImage == "" {
		return &domain.ValidationError{Field: "source_image", Reason: fmt.Sprintf("required by engine %s", e.Name)}
	}

	var unknown []string
	for key := range spec.Params {
		if _, ok := e.Params[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return &domain.ValidationError{
			Field:  "params." + unknown[0],
			Reason: fmt.Sprintf("not supported by engine %s", e.Name),
		}
	}

	keys := make([]string, 0, len(spec.Params))
	for key := range spec.Params {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if reason := kindMismatch(e.Params[key], spec.Params[key]); reason != "" {
			return &domain.ValidationError{Field: "params." + key, Reason: reason}
		}
	}

	rules := make(map[string]interface{}, len(e.Params))
	for key, rule := range e.Params {
		rules[key] = rule
	}
	data := make(map[string]interface{}, len(spec.Params))
	for key, value := range spec.Params {
		data[key] = value
	}

	failures := v.ValidateMap(data, rules)
	if len(failures) == 0 {
		return nil
	}

	fields := make([]string, 0, len(failures))
	for field := range failures {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return &domain.ValidationError{
		Field:  "params." + fields[0],
		Reason: fmt.Sprintf("%v", failures[fields[0]]),
	}
}

// kindMismatch rejects values whose type the rule cannot evaluate.
func kindMismatch(rule string, value any) string {
	if value == nil {
		return ""
	}
	switch {
	case strings.Contains(rule, "oneof="):
		if _, ok := value.(string); !ok {
			return "must be a string"
		}
	case strings.Contains(rule, "gte=") || strings.Contains(rule, "lte="):
		switch value.(type) {
		case int, int32, int64, uint, uint32, uint64, float32, float64:
		default:
			return "must be a number"
		}
	}
	return ""
}
