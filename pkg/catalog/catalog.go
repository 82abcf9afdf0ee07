// Package catalog bundles the built-in farm record schemas. Each schema is a
// static YAML declaration compiled at load time; nothing here mutates at
// runtime.
package catalog

import (
	"embed"
	"fmt"
	"io/fs"
	"sort"

	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

//go:embed schemas/*.yaml
var embedded embed.FS

// FS returns the bundled schema declarations. Callers may pass this
// filesystem to schema.LoadFS directly.
func FS() fs.FS {
	sub, err := fs.Sub(embedded, "schemas")
	if err != nil {
		// The embed directive guarantees the subpath exists.
		panic(err)
	}
	return sub
}

// Load parses and compiles every bundled schema, keyed by schema id.
func Load() (map[string]schema.RecordSchema, error) {
	return schema.LoadFS(FS())
}

// MustLoad panics when a bundled declaration fails to compile. Declarations
// ship with the binary, so a failure is a packaging fault.
func MustLoad() map[string]schema.RecordSchema {
	schemas, err := Load()
	if err != nil {
		panic(err)
	}
	return schemas
}

// Schema loads one bundled schema by id.
func Schema(id string) (schema.RecordSchema, error) {
	schemas, err := Load()
	if err != nil {
		return schema.RecordSchema{}, err
	}
	s, ok := schemas[id]
	if !ok {
		return schema.RecordSchema{}, fmt.Errorf("catalog: schema %q not found", id)
	}
	return s, nil
}

// IDs returns the bundled schema ids in sorted order.
func IDs() ([]string, error) {
	schemas, err := Load()
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(schemas))
	for id := range schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
