package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/goccy/go-yaml"

	"github.com/haivivi/accent/pkg/artifact"
	"github.com/haivivi/accent/pkg/storage"
)

const (
	// DefaultBaseDir is the base configuration directory name
	DefaultBaseDir = ".accent"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.yaml"
)

// Config is the configuration file of one CLI app.
type Config struct {
	// AppName is the application name
	AppName string `yaml:"-" json:"-"`

	// CurrentContext is the name of the currently active context
	CurrentContext string `yaml:"current_context,omitempty" json:"current_context,omitempty"`

	// Contexts is a map of context name to context configuration
	Contexts map[string]*Context `yaml:"contexts,omitempty" json:"contexts,omitempty"`

	configPath string
}

// Context is a named set of training and serving settings.
type Context struct {
	Name string `yaml:"name" json:"name"`

	// Model and Reference are artifact paths inside Storage.
	Model     string `yaml:"model,omitempty" json:"model,omitempty"`
	Reference string `yaml:"reference,omitempty" json:"reference,omitempty"`

	// Corpus is the training directory.
	Corpus   string `yaml:"corpus,omitempty" json:"corpus,omitempty"`
	Clusters int    `yaml:"clusters,omitempty" json:"clusters,omitempty"`
	Seed     uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// Limit is the number of similar samples returned by classify.
	Limit int `yaml:"limit,omitempty" json:"limit,omitempty"`

	// FFmpeg enables the ffmpeg decode fallback with the given binary.
	FFmpeg string `yaml:"ffmpeg,omitempty" json:"ffmpeg,omitempty"`

	// KVDir is a badger directory mirroring reference tables by run id.
	KVDir string `yaml:"kv_dir,omitempty" json:"kv_dir,omitempty"`

	// Listen is the serve address.
	Listen string `yaml:"listen,omitempty" json:"listen,omitempty"`

	Storage *storage.Config `yaml:"storage,omitempty" json:"storage,omitempty"`
}

// Keys lists the settable context keys in display order.
var Keys = []string{
	"model", "reference", "corpus", "clusters", "seed", "limit", "ffmpeg", "kv_dir", "listen",
	"storage.kind", "storage.root", "storage.bucket", "storage.prefix", "storage.region", "storage.endpoint",
}

// Set assigns a context value by key.
func (ctx *Context) Set(key, value string) error {
	var err error
	st := func() *storage.Config {
		if ctx.Storage == nil {
			ctx.Storage = &storage.Config{}
		}
		return ctx.Storage
	}
	switch key {
	case "model":
		ctx.Model = value
	case "reference":
		ctx.Reference = value
	case "corpus":
		ctx.Corpus = value
	case "clusters":
		ctx.Clusters, err = strconv.Atoi(value)
	case "seed":
		ctx.Seed, err = strconv.ParseUint(value, 10, 64)
	case "limit":
		ctx.Limit, err = strconv.Atoi(value)
	case "ffmpeg":
		ctx.FFmpeg = value
	case "kv_dir":
		ctx.KVDir = value
	case "listen":
		ctx.Listen = value
	case "storage.kind":
		if value != "local" && value != "s3" {
			return fmt.Errorf("storage.kind must be local or s3, got %q", value)
		}
		st().Kind = value
	case "storage.root":
		st().Root = value
	case "storage.bucket":
		st().Bucket = value
	case "storage.prefix":
		st().Prefix = value
	case "storage.region":
		st().Region = value
	case "storage.endpoint":
		st().Endpoint = value
	default:
		return fmt.Errorf("unknown key %q (one of %v)", key, Keys)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	return nil
}

// ArtifactPaths returns the model and reference paths, defaulted.
func (ctx *Context) ArtifactPaths() artifact.Paths {
	return artifact.Paths{Model: ctx.Model, Reference: ctx.Reference}.WithDefaults()
}

// StorageConfig returns the storage block, or a local store rooted at the
// working directory.
func (ctx *Context) StorageConfig() storage.Config {
	if ctx.Storage == nil {
		return storage.Config{Kind: "local", Root: "."}
	}
	return *ctx.Storage
}

// OpenStore opens the context's artifact store.
func (ctx *Context) OpenStore() (storage.FileStore, error) {
	return storage.Open(ctx.StorageConfig())
}

// ErrContextNotFound is returned for a context name missing from the file.
var ErrContextNotFound = errors.New("cli: context not found")

// LoadConfig reads ~/.accent/<app>/config.yaml, creating an empty file on
// first use.
func LoadConfig(appName string) (*Config, error) {
	return LoadConfigWithPath(appName, "")
}

// LoadConfigWithPath is LoadConfig with an explicit file. An empty path
// selects the default location.
func LoadConfigWithPath(appName, path string) (*Config, error) {
	if path == "" {
		p, err := NewPaths(appName)
		if err != nil {
			return nil, fmt.Errorf("resolve config path: %w", err)
		}
		path = p.ConfigFile()
	}
	cfg := &Config{AppName: appName, configPath: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		cfg.Contexts = map[string]*Context{}
		return cfg, cfg.Save()
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]*Context{}
	}
	for name, ctx := range cfg.Contexts {
		ctx.Name = name
	}
	return cfg, nil
}

// Save writes the file with owner-only permissions, creating its directory.
func (c *Config) Save() error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(c.Dir(), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", c.Dir(), err)
	}
	if err := os.WriteFile(c.configPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", c.configPath, err)
	}
	return nil
}

// Path is the config file location.
func (c *Config) Path() string { return c.configPath }

// Dir is the directory holding the config file.
func (c *Config) Dir() string { return filepath.Dir(c.configPath) }

// AddContext stores ctx under name, replacing any previous entry.
func (c *Config) AddContext(name string, ctx *Context) error {
	ctx.Name = name
	c.Contexts[name] = ctx
	return c.Save()
}

// DeleteContext removes name and clears it as the current context.
func (c *Config) DeleteContext(name string) error {
	if _, err := c.GetContext(name); err != nil {
		return err
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return c.Save()
}

// UseContext makes name the current context.
func (c *Config) UseContext(name string) error {
	if _, err := c.GetContext(name); err != nil {
		return err
	}
	c.CurrentContext = name
	return c.Save()
}

func (c *Config) GetContext(name string) (*Context, error) {
	if ctx, ok := c.Contexts[name]; ok {
		return ctx, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrContextNotFound, name)
}

// ResolveContext returns the named context, the current context when name
// is empty, or an empty context when neither is set so that commands run
// on defaults and flags alone.
func (c *Config) ResolveContext(name string) (*Context, error) {
	if name == "" {
		name = c.CurrentContext
	}
	if name == "" {
		return &Context{}, nil
	}
	return c.GetContext(name)
}

// ListContexts returns the context names in sorted order.
func (c *Config) ListContexts() []string {
	return slices.Sorted(maps.Keys(c.Contexts))
}
