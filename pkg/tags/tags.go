// Package tags resolves the global logging tags attached to every record:
// location tags describing where the process runs and custom tags supplied
// through GRPC_OBSERVABILITY_ prefixed environment variables.
package tags

import (
	"context"
	"maps"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/compute/metadata"

	"github.com/hyp3rd/grpc-observability/internal/constants"
)

// Location tag keys.
const (
	KeyProjectID     = "project_id"
	KeyLocation      = "location"
	KeyClusterName   = "cluster_name"
	KeyNamespaceName = "namespace_name"
	KeyPodName       = "pod_name"
	KeyContainerName = "container_name"
	KeyInstanceID    = "instance_id"
	KeyServiceName   = "service_name"
	KeyRevisionName  = "revision_name"
)

const namespaceFile = "/var/run/secrets/kubernetes.io/serviceaccount/namespace"

// Provider supplies the tags consumed when building interceptor factories.
type Provider interface {
	LocationTags() map[string]string
	CustomTags() map[string]string
}

// MetadataSource answers GCE metadata queries.
type MetadataSource interface {
	OnGCE() bool
	Get(ctx context.Context, path string) (string, error)
}

// GlobalTags is an immutable snapshot of detected tags.
type GlobalTags struct {
	location map[string]string
	custom   map[string]string
}

var _ Provider = GlobalTags{}

// Static returns GlobalTags holding copies of the given maps.
func Static(location, custom map[string]string) GlobalTags {
	return GlobalTags{
		location: cloneOrEmpty(location),
		custom:   cloneOrEmpty(custom),
	}
}

// LocationTags implements Provider.
func (g GlobalTags) LocationTags() map[string]string {
	return cloneOrEmpty(g.location)
}

// CustomTags implements Provider.
func (g GlobalTags) CustomTags() map[string]string {
	return cloneOrEmpty(g.custom)
}

// Option customises detection.
type Option func(*detector)

// WithEnviron replaces os.Environ as the environment source.
func WithEnviron(environ func() []string) Option {
	return func(d *detector) {
		d.environ = environ
	}
}

// WithMetadata replaces the GCE metadata server client.
func WithMetadata(source MetadataSource) Option {
	return func(d *detector) {
		d.metadata = source
	}
}

// WithNamespaceFile overrides the Kubernetes service account namespace file.
func WithNamespaceFile(path string) Option {
	return func(d *detector) {
		d.namespaceFile = path
	}
}

type detector struct {
	environ       func() []string
	metadata      MetadataSource
	namespaceFile string
	env           map[string]string
}

// Detect inspects the environment and the metadata server and returns the
// resulting tags. Lookups that fail are skipped.
func Detect(ctx context.Context, opts ...Option) GlobalTags {
	d := &detector{
		environ:       os.Environ,
		namespaceFile: namespaceFile,
	}
	for _, opt := range opts {
		opt(d)
	}

	if d.metadata == nil {
		d.metadata = newGCEMetadata()
	}

	d.env = envMap(d.environ())

	return GlobalTags{
		location: d.locationTags(ctx),
		custom:   d.customTags(),
	}
}

func (d *detector) customTags() map[string]string {
	out := map[string]string{}

	for key, value := range d.env {
		name, ok := strings.CutPrefix(key, constants.CustomTagPrefix)
		if !ok || name == "" {
			continue
		}

		out[name] = value
	}

	return out
}

func (d *detector) locationTags(ctx context.Context) map[string]string {
	out := map[string]string{}

	if project := d.envValue("GOOGLE_CLOUD_PROJECT", "GCLOUD_PROJECT", "GCP_PROJECT"); project != "" {
		out[KeyProjectID] = project
	}

	switch {
	case d.envValue("KUBERNETES_SERVICE_HOST") != "":
		d.kubernetesTags(ctx, out)
	case d.envValue("K_SERVICE") != "":
		d.cloudRunTags(ctx, out)
	case d.metadata.OnGCE():
		d.computeTags(ctx, out)
	}

	return out
}

func (d *detector) kubernetesTags(ctx context.Context, out map[string]string) {
	d.putMetadata(ctx, out, KeyProjectID, "project/project-id")
	d.putMetadata(ctx, out, KeyClusterName, "instance/attributes/cluster-name")
	d.putMetadata(ctx, out, KeyLocation, "instance/attributes/cluster-location")

	if ns := readTrimmed(d.namespaceFile); ns != "" {
		out[KeyNamespaceName] = ns
	} else if ns := d.envValue("NAMESPACE_NAME", "NAMESPACE"); ns != "" {
		out[KeyNamespaceName] = ns
	}

	if pod := d.envValue("POD_NAME", "HOSTNAME"); pod != "" {
		out[KeyPodName] = pod
	}

	if container := d.envValue("CONTAINER_NAME"); container != "" {
		out[KeyContainerName] = container
	}
}

func (d *detector) cloudRunTags(ctx context.Context, out map[string]string) {
	out[KeyServiceName] = d.envValue("K_SERVICE")
	if revision := d.envValue("K_REVISION"); revision != "" {
		out[KeyRevisionName] = revision
	}

	if region := d.envValue("CLOUD_RUN_REGION", "GOOGLE_CLOUD_REGION"); region != "" {
		out[KeyLocation] = region
	} else {
		d.putMetadata(ctx, out, KeyLocation, "instance/region")
	}

	d.putMetadata(ctx, out, KeyProjectID, "project/project-id")
}

func (d *detector) computeTags(ctx context.Context, out map[string]string) {
	d.putMetadata(ctx, out, KeyProjectID, "project/project-id")
	d.putMetadata(ctx, out, KeyInstanceID, "instance/id")
	d.putMetadata(ctx, out, KeyLocation, "instance/zone")
}

// putMetadata stores the value at path under key unless key is already set.
func (d *detector) putMetadata(ctx context.Context, out map[string]string, key, path string) {
	if out[key] != "" {
		return
	}

	lookupCtx, cancel := context.WithTimeout(ctx, constants.MetadataLookupTimeout)
	defer cancel()

	value, err := d.metadata.Get(lookupCtx, path)
	if err != nil {
		return
	}

	value = strings.TrimSpace(value)
	if value == "" {
		return
	}

	// Zones and regions come back as "projects/<n>/zones/<zone>".
	if idx := strings.LastIndex(value, "/"); idx >= 0 && strings.HasPrefix(path, "instance/") && key == KeyLocation {
		value = value[idx+1:]
	}

	out[key] = value
}

func (d *detector) envValue(keys ...string) string {
	for _, key := range keys {
		if value := strings.TrimSpace(d.env[key]); value != "" {
			return value
		}
	}

	return ""
}

type gceMetadata struct {
	client *metadata.Client
}

func newGCEMetadata() gceMetadata {
	return gceMetadata{
		client: metadata.NewClient(&http.Client{Timeout: constants.MetadataLookupTimeout}),
	}
}

func (gceMetadata) OnGCE() bool {
	return metadata.OnGCE()
}

func (g gceMetadata) Get(ctx context.Context, path string) (string, error) {
	return g.client.GetWithContext(ctx, path)
}

func envMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))

	for _, kv := range pairs {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}

		out[key] = value
	}

	return out
}

func readTrimmed(path string) string {
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func cloneOrEmpty(in map[string]string) map[string]string {
	if in == nil {
		return map[string]string{}
	}

	return maps.Clone(in)
}
