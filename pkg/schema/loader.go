package schema

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFS walks the provided filesystem, parses every JSON/YAML schema
// declaration it finds, and compiles each one. When fsys is nil or holds no
// schema files the returned map is empty.
func LoadFS(fsys fs.FS) (map[string]RecordSchema, error) {
	schemas := make(map[string]RecordSchema)
	if fsys == nil {
		return schemas, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		if !isSchemaFile(path) {
			return nil
		}

		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("schema: read %s: %w", path, err)
		}

		parsed, err := Parse(data, path)
		if err != nil {
			return err
		}
		if _, exists := schemas[parsed.ID]; exists {
			return fmt.Errorf("schema: duplicate schema id %q (file %s)", parsed.ID, path)
		}
		schemas[parsed.ID] = parsed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return schemas, nil
}

// Parse decodes and compiles a single schema declaration. The name is used in
// error messages only; JSON payloads are detected by a ".json" suffix,
// everything else parses as YAML.
func Parse(data []byte, name string) (RecordSchema, error) {
	var decl RecordSchema
	if strings.EqualFold(filepath.Ext(name), ".json") {
		if err := json.Unmarshal(data, &decl); err != nil {
			return RecordSchema{}, fmt.Errorf("schema: parse %s: %w", name, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &decl); err != nil {
			return RecordSchema{}, fmt.Errorf("schema: parse %s: %w", name, err)
		}
	}

	compiled, err := decl.Compile()
	if err != nil {
		return RecordSchema{}, fmt.Errorf("schema: %s: %w", name, err)
	}
	return compiled, nil
}

func isSchemaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
