package prediction

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/aqicast/aqicast/internal/provider/resilience"
)

// ModelInfo describes a registered backend and whether it loaded.
type ModelInfo struct {
	Name        string
	Kind        Kind
	Description string
	BestFor     string
	Loaded      bool
	LoadError   string
}

// Registration is one entry handed to NewRegistry. A nil Backend or a
// non-nil Err registers the model as unavailable.
type Registration struct {
	Name        string
	Kind        Kind
	Description string
	BestFor     string
	Backend     Backend
	Err         error
}

type entry struct {
	info    ModelInfo
	backend Backend
}

// Registry maps model names to backends. It is read-only after construction
// and safe for concurrent use.
type Registry struct {
	entries map[string]*entry
	order   []string
}

// NewRegistry builds a registry. Later registrations replace earlier ones
// with the same name.
func NewRegistry(regs ...Registration) *Registry {
	r := &Registry{entries: make(map[string]*entry, len(regs))}
	for _, reg := range regs {
		e := &entry{
			info: ModelInfo{
				Name:        reg.Name,
				Kind:        reg.Kind,
				Description: reg.Description,
				BestFor:     reg.BestFor,
			},
		}
		switch {
		case reg.Err != nil:
			e.info.LoadError = reg.Err.Error()
		case reg.Backend == nil:
			e.info.LoadError = "no backend"
		default:
			e.info.Loaded = true
			e.backend = reg.Backend
		}
		if _, exists := r.entries[reg.Name]; !exists {
			r.order = append(r.order, reg.Name)
		}
		r.entries[reg.Name] = e
	}
	slices.Sort(r.order)
	return r
}

// Lookup returns the backend for name.
func (r *Registry) Lookup(name string) (Backend, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, name)
	}
	if !e.info.Loaded {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, name)
	}
	return e.backend, nil
}

// Models returns every registered model, loaded or not, ordered by name.
func (r *Registry) Models() []ModelInfo {
	out := make([]ModelInfo, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.entries[name].info)
	}
	return out
}

// Available returns the names of the loaded models, ordered by name.
func (r *Registry) Available() []string {
	out := make([]string, 0, len(r.order))
	for _, name := range r.order {
		if r.entries[name].info.Loaded {
			out = append(out, name)
		}
	}
	return out
}

// Manifest is the YAML registry file.
type Manifest struct {
	Models []ManifestModel `yaml:"models"`
}

// ManifestModel is one backend in the manifest.
type ManifestModel struct {
	Name        string        `yaml:"name"`
	Kind        Kind          `yaml:"kind"`
	Description string        `yaml:"description"`
	BestFor     string        `yaml:"best_for"`
	Artifact    string        `yaml:"artifact"`
	Endpoint    string        `yaml:"endpoint"`
	Timeout     time.Duration `yaml:"timeout"`
}

// LoadOptions configures LoadRegistry.
type LoadOptions struct {
	Logger zerolog.Logger

	// Providers receives the HTTP clients of remote backends. Optional.
	Providers *resilience.Registry

	// HTTPClient overrides the client used by remote backends (tests).
	HTTPClient HTTPDoer
}

// LoadRegistry reads the manifest at path and loads every backend it lists.
// Artifact paths are relative to the manifest. A backend that fails to load is
// logged and registered as unavailable; only an unreadable manifest is an error.
func LoadRegistry(path string, opts LoadOptions) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read model manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("parse model manifest: %w", err)
	}

	dir := filepath.Dir(path)
	regs := make([]Registration, 0, len(m.Models))
	for _, mm := range m.Models {
		backend, err := loadBackend(dir, mm, opts)
		if err != nil {
			opts.Logger.Error().
				Err(err).
				Str("model", mm.Name).
				Str("kind", string(mm.Kind)).
				Msg("failed to load model")
		} else {
			opts.Logger.Info().
				Str("model", mm.Name).
				Str("kind", string(mm.Kind)).
				Msg("model loaded")
		}
		regs = append(regs, Registration{
			Name:        mm.Name,
			Kind:        mm.Kind,
			Description: mm.Description,
			BestFor:     mm.BestFor,
			Backend:     backend,
			Err:         err,
		})
	}

	return NewRegistry(regs...), nil
}

func loadBackend(dir string, mm ManifestModel, opts LoadOptions) (Backend, error) {
	if mm.Name == "" {
		return nil, errors.New("model has no name")
	}

	switch mm.Kind {
	case KindGradientBoosting:
		var a boostingArtifact
		if err := readArtifact(dir, mm.Artifact, &a); err != nil {
			return nil, err
		}
		return newGradientBoosting(&a)

	case KindRandomForest:
		var e ensemble
		if err := readArtifact(dir, mm.Artifact, &e); err != nil {
			return nil, err
		}
		return newRandomForest(&e)

	case KindLinearLags:
		var a linearArtifact
		if err := readArtifact(dir, mm.Artifact, &a); err != nil {
			return nil, err
		}
		return newLinearLags(&a)

	case KindRemoteSequence:
		return NewRemoteSequence(RemoteSequenceConfig{
			Name:       mm.Name,
			Endpoint:   os.ExpandEnv(mm.Endpoint),
			Timeout:    mm.Timeout,
			HTTPClient: opts.HTTPClient,
			Registry:   opts.Providers,
			Logger:     opts.Logger,
		})

	default:
		return nil, fmt.Errorf("unknown model kind %q", mm.Kind)
	}
}

func readArtifact(dir, name string, v any) error {
	if name == "" {
		return errors.New("model has no artifact")
	}
	if !filepath.IsAbs(name) {
		name = filepath.Join(dir, name)
	}
	raw, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode artifact %s: %w", filepath.Base(name), err)
	}
	return nil
}
