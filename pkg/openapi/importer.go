// Package openapi builds record schemas from OpenAPI documents, so record
// types already described by an API contract do not need a second YAML
// declaration. Only the request body of the selected operation is read;
// numeric bounds, enums, and patterns map onto constraint rules.
package openapi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/innovationimperial/go-recordkit/pkg/schema"
)

const defaultSectionName = "details"

// Import parses an OpenAPI payload, locates the operation, and converts its
// JSON request body into a compiled RecordSchema. The operation id becomes
// the schema id.
func Import(ctx context.Context, payload []byte, operationID string) (schema.RecordSchema, error) {
	if ctx == nil {
		return schema.RecordSchema{}, errors.New("openapi: context is required")
	}
	if len(payload) == 0 {
		return schema.RecordSchema{}, errors.New("openapi: document payload is empty")
	}
	if operationID == "" {
		return schema.RecordSchema{}, errors.New("openapi: operation id is required")
	}

	loader := &openapi3.Loader{Context: ctx}
	doc, err := loader.LoadFromData(payload)
	if err != nil {
		return schema.RecordSchema{}, fmt.Errorf("openapi: load document: %w", err)
	}

	operation := findOperation(doc, operationID)
	if operation == nil {
		return schema.RecordSchema{}, fmt.Errorf("openapi: operation %q not found", operationID)
	}

	body := requestBodySchema(operation)
	if body == nil {
		return schema.RecordSchema{}, fmt.Errorf("openapi: operation %q has no JSON request body", operationID)
	}

	fields, err := fieldsFromObject(body)
	if err != nil {
		return schema.RecordSchema{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}

	decl := schema.RecordSchema{
		ID:          operationID,
		Title:       operation.Summary,
		Description: operation.Description,
		Fields:      fields,
		Sections: []schema.Section{{
			Name:   defaultSectionName,
			Fields: schema.RecordSchema{Fields: fields}.FieldKeys(),
		}},
	}
	compiled, err := decl.Compile()
	if err != nil {
		return schema.RecordSchema{}, fmt.Errorf("openapi: operation %q: %w", operationID, err)
	}
	return compiled, nil
}

func findOperation(doc *openapi3.T, operationID string) *openapi3.Operation {
	if doc.Paths == nil {
		return nil
	}
	for _, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for _, operation := range item.Operations() {
			if operation != nil && operation.OperationID == operationID {
				return operation
			}
		}
	}
	return nil
}

func requestBodySchema(operation *openapi3.Operation) *openapi3.Schema {
	if operation.RequestBody == nil || operation.RequestBody.Value == nil {
		return nil
	}
	media := operation.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil || media.Schema.Value == nil {
		return nil
	}
	return media.Schema.Value
}

func fieldsFromObject(body *openapi3.Schema) ([]schema.FieldDefinition, error) {
	if len(body.Properties) == 0 {
		return nil, errors.New("request body has no properties")
	}

	requiredSet := make(map[string]struct{}, len(body.Required))
	for _, key := range body.Required {
		requiredSet[key] = struct{}{}
	}

	names := make([]string, 0, len(body.Properties))
	for name := range body.Properties {
		names = append(names, name)
	}
	sort.Strings(names)

	fields := make([]schema.FieldDefinition, 0, len(names))
	for _, name := range names {
		ref := body.Properties[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		_, required := requiredSet[name]
		fields = append(fields, fieldFromProperty(name, ref.Value, required))
	}
	return fields, nil
}

func fieldFromProperty(name string, prop *openapi3.Schema, required bool) schema.FieldDefinition {
	field := schema.FieldDefinition{
		Key:      name,
		Label:    labelFrom(name, prop.Title),
		Type:     mapType(prop),
		Required: required,
		Default:  prop.Default,
		Help:     prop.Description,
	}

	if field.Type == schema.FieldTypeEnum {
		for _, value := range prop.Enum {
			field.Options = append(field.Options, fmt.Sprint(value))
		}
	}

	field.Constraints = constraintsFrom(prop, field.Type)
	return field
}

func mapType(prop *openapi3.Schema) schema.FieldType {
	switch firstType(prop.Type) {
	case "integer", "number":
		return schema.FieldTypeNumber
	case "boolean":
		return schema.FieldTypeBoolean
	case "string":
		if len(prop.Enum) > 0 {
			return schema.FieldTypeEnum
		}
		if prop.Format == "date" {
			return schema.FieldTypeDate
		}
		return schema.FieldTypeString
	default:
		return schema.FieldTypeString
	}
}

func constraintsFrom(prop *openapi3.Schema, fieldType schema.FieldType) []schema.ConstraintRule {
	var rules []schema.ConstraintRule

	if prop.Min != nil || prop.Max != nil {
		params := map[string]string{}
		if prop.Min != nil {
			params["min"] = formatFloat(*prop.Min)
		}
		if prop.Max != nil {
			params["max"] = formatFloat(*prop.Max)
		}
		rules = append(rules, schema.ConstraintRule{
			Kind:   schema.ConstraintRange,
			Params: params,
		})
	}

	if fieldType == schema.FieldTypeDate {
		rules = append(rules, schema.ConstraintRule{
			Kind:   schema.ConstraintPattern,
			Params: map[string]string{"shape": "date"},
		})
	} else if prop.Pattern != "" {
		rules = append(rules, schema.ConstraintRule{
			Kind:   schema.ConstraintPattern,
			Params: map[string]string{"pattern": prop.Pattern},
		})
	}

	return rules
}

func firstType(types *openapi3.Types) string {
	if types == nil {
		return ""
	}
	values := types.Slice()
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func formatFloat(value float64) string {
	return strconv.FormatFloat(value, 'f', -1, 64)
}

func labelFrom(name, title string) string {
	if strings.TrimSpace(title) != "" {
		return title
	}
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(name)
	words := strings.Fields(cleaned)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
