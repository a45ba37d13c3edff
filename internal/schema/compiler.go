package schema

import (
	"bytes"
	"context"
	"crypto/sha256"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	js "github.com/santhosh-tekuri/jsonschema/v5"
)

// Names of the embedded request body schemas.
const (
	SubmitRequest = "submit_request"
	Settings      = "settings"
	User          = "user"
	Sale          = "sale"
)

//go:embed schemas/*.json
var builtin embed.FS

type Compiler struct {
	mu       sync.Mutex // js.Compiler is not safe for concurrent use
	compiler *js.Compiler
	cache    *expirable.LRU[string, *js.Schema]
	named    map[string][]byte
}

// ValidationError is returned when a document does not match its schema.
type ValidationError struct {
	Schema string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Schema, e.Detail)
}

// NewCompilerWithCache creates a new compiler with cache and the built-in schemas loaded
func NewCompilerWithCache(maxSize int) (*Compiler, error) {
	c := js.NewCompiler()
	c.Draft = js.Draft7

	comp := &Compiler{
		compiler: c,
		cache:    expirable.NewLRU[string, *js.Schema](maxSize, nil, time.Hour),
		named:    make(map[string][]byte),
	}

	entries, err := builtin.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to list schemas: %w", err)
	}
	for _, e := range entries {
		raw, err := builtin.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read schema %s: %w", e.Name(), err)
		}
		comp.named[strings.TrimSuffix(e.Name(), ".json")] = raw
	}
	return comp, nil
}

func (c *Compiler) key(raw []byte) string {
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum[:8])
}

// Prepare compiles and caches a schema
func (c *Compiler) Prepare(ctx context.Context, raw []byte) (*js.Schema, error) {
	key := c.key(raw)
	if compiled, ok := c.cache.Get(key); ok {
		return compiled, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	resourceURL := fmt.Sprintf("mem://schema/%s.json", key)
	if err := c.compiler.AddResource(resourceURL, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to add resource: %w", err)
	}
	compiled, err := c.compiler.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}

	c.cache.Add(key, compiled)
	return compiled, nil
}

// Validate checks a JSON document against the named built-in schema.
func (c *Compiler) Validate(ctx context.Context, name string, doc []byte) error {
	raw, ok := c.named[name]
	if !ok {
		return fmt.Errorf("unknown schema %q", name)
	}
	compiled, err := c.Prepare(ctx, raw)
	if err != nil {
		return err
	}

	var value interface{}
	if err := json.Unmarshal(doc, &value); err != nil {
		return &ValidationError{Schema: name, Detail: "body is not valid JSON"}
	}
	if err := compiled.Validate(value); err != nil {
		detail := err.Error()
		if ve, ok := err.(*js.ValidationError); ok {
			detail = leafMessage(ve)
		}
		return &ValidationError{Schema: name, Detail: detail}
	}
	return nil
}

// leafMessage returns the most specific cause, which reads better in API errors.
func leafMessage(ve *js.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "/"
	}
	return fmt.Sprintf("%s: %s", loc, ve.Message)
}
