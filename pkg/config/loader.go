package config

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
	"gopkg.in/yaml.v3"

	"github.com/hyp3rd/grpc-observability/internal/constants"
)

const errMsgUnableToReadConfigFromPath = "read config file %q"

// Loader reads a configuration document from an external source.
type Loader interface {
	Load(ctx context.Context) (map[string]any, error)
}

// LoaderFunc adapts ordinary functions into Loader.
type LoaderFunc func(ctx context.Context) (map[string]any, error)

// Load implements Loader.
func (lf LoaderFunc) Load(ctx context.Context) (map[string]any, error) {
	return lf(ctx)
}

type loaderSkipError struct {
	err *ewrap.Error
}

// SkipSource tells Load that a loader found no document and the next loader should be tried.
func SkipSource() error {
	return &loaderSkipError{err: ewrap.New("config loader skip")}
}

// Error implements error.
func (l *loaderSkipError) Error() string {
	if l == nil || l.err == nil {
		return ""
	}

	return l.err.Error()
}

// Unwrap implements errors.Wrapper.
func (l *loaderSkipError) Unwrap() error {
	if l == nil {
		return nil
	}

	return l.err
}

// Is implements errors.Is.
func (*loaderSkipError) Is(target error) bool {
	_, ok := target.(*loaderSkipError)

	return ok
}

func isLoaderSkipError(err error) bool {
	if err == nil {
		return false
	}

	var target *loaderSkipError

	return errors.As(err, &target)
}

// DefaultLoaders returns the environment-driven loader chain: the inline
// GRPC_CONFIG_OBSERVABILITY value first, then the file named by
// GRPC_CONFIG_OBSERVABILITY_FILE.
func DefaultLoaders() []Loader {
	return []Loader{
		EnvLoader{},
		FileLoader{},
	}
}

// FromEnvironment loads the configuration from the default loader chain.
func FromEnvironment(ctx context.Context) (Config, error) {
	return Load(ctx, DefaultLoaders()...)
}

// Load returns the configuration built from the first loader that yields a
// document. Later loaders are not consulted. When every loader skips, the
// result is ErrConfigMissing.
func Load(ctx context.Context, loaders ...Loader) (Config, error) {
	for _, loader := range loaders {
		if loader == nil {
			continue
		}

		doc, err := loader.Load(ctx)
		if err != nil {
			if isLoaderSkipError(err) {
				continue
			}

			return Config{}, err
		}

		return fromDocument(doc)
	}

	return Config{}, ErrConfigMissing
}

// Parse builds a Config from the raw JSON text of the configuration document.
func Parse(raw string) (Config, error) {
	doc, err := decodeJSON([]byte(raw))
	if err != nil {
		return Config{}, err
	}

	return fromDocument(doc)
}

func decodeJSON(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrConfigMissing
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	var doc map[string]any

	err := decoder.Decode(&doc)
	if err != nil {
		return nil, malformedError(err, "decode json")
	}

	if decoder.More() {
		return nil, malformedError(ewrap.New("trailing data after document"), "decode json")
	}

	if doc == nil {
		return nil, malformedError(ewrap.New("document is null"), "decode json")
	}

	return doc, nil
}

func decodeYAML(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrConfigMissing
	}

	var doc map[string]any

	err := yaml.Unmarshal(data, &doc)
	if err != nil {
		return nil, malformedError(err, "decode yaml")
	}

	if doc == nil {
		return nil, malformedError(ewrap.New("document is null"), "decode yaml")
	}

	return doc, nil
}

// EnvLoader reads the JSON document from an environment variable.
type EnvLoader struct {
	// Name defaults to GRPC_CONFIG_OBSERVABILITY.
	Name string
}

// Load implements Loader.
func (el EnvLoader) Load(ctx context.Context) (map[string]any, error) {
	select {
	case <-ctx.Done():
		return nil, ewrap.Wrap(ctx.Err(), "context canceled")
	default:
	}

	name := el.Name
	if name == "" {
		name = constants.ConfigEnvVar
	}

	raw, ok := os.LookupEnv(name)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, SkipSource()
	}

	doc, err := decodeJSON([]byte(raw))
	if err != nil {
		return nil, ewrap.Wrapf(err, "env %s", name)
	}

	return doc, nil
}

// FileLoader reads the document from a JSON or YAML file. Files ending in
// .yaml or .yml are decoded as YAML, anything else as JSON.
type FileLoader struct {
	// Path defaults to the value of GRPC_CONFIG_OBSERVABILITY_FILE.
	Path string
	FS   fs.FS
}

// ResolvedPath returns the file the loader reads, or "" when none is configured.
func (fl FileLoader) ResolvedPath() string {
	if fl.Path != "" {
		return fl.Path
	}

	return strings.TrimSpace(os.Getenv(constants.ConfigFileEnvVar))
}

// Load implements Loader.
func (fl FileLoader) Load(_ context.Context) (map[string]any, error) {
	path := fl.ResolvedPath()
	if path == "" {
		return nil, SkipSource()
	}

	data, err := readFile(fl.FS, path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ewrap.Wrapf(ErrConfigMissing, "config file %q does not exist", path)
		}

		return nil, err
	}

	var doc map[string]any

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		doc, err = decodeYAML(data)
	default:
		doc, err = decodeJSON(data)
	}

	if err != nil {
		return nil, ewrap.Wrapf(err, "config file %q", path)
	}

	return doc, nil
}

// ReaderLoader decodes a JSON document from an io.Reader, typically stdin.
type ReaderLoader struct {
	Reader io.Reader
}

// Load implements Loader.
func (rl ReaderLoader) Load(_ context.Context) (map[string]any, error) {
	if rl.Reader == nil {
		return nil, SkipSource()
	}

	data, err := io.ReadAll(rl.Reader)
	if err != nil {
		return nil, ewrap.Wrap(err, "read config")
	}

	return decodeJSON(data)
}

func readFile(fsys fs.FS, path string) ([]byte, error) {
	if fsys != nil {
		data, err := fs.ReadFile(fsys, filepath.Clean(path))
		if err != nil {
			return nil, ewrap.Wrapf(err, errMsgUnableToReadConfigFromPath, path)
		}

		return data, nil
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, ewrap.Wrapf(err, errMsgUnableToReadConfigFromPath, path)
	}

	return data, nil
}
