package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed pinned_entities.schema.json
var pinnedEntitiesSchemaJSON string

// PinnedEntity is one record from config/pinned_entities.json.
type PinnedEntity struct {
	EntityID      string            `json:"entity_id"`
	EntityKey     string            `json:"entity_key,omitempty"`
	CanonicalName string            `json:"canonical_name"`
	Type          string            `json:"type"`
	Aliases       []string          `json:"aliases,omitempty"`
	ExternalIDs   map[string]string `json:"external_ids,omitempty"`
	ContextHints  []string          `json:"context_hints,omitempty"`
	PinReason     string            `json:"pin_reason,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// ValidatePinnedEntities parses and schema-validates the pinned-entities file.
func ValidatePinnedEntities(payload json.RawMessage) ([]PinnedEntity, error) {
	value, err := decodeStrictJSON(payload)
	if err != nil {
		return nil, fmt.Errorf("decode pinned entities JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return nil, fmt.Errorf("load schema: %w", err)
	}

	if err := schema.Validate(value); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	normalized, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("normalize pinned entities JSON: %w", err)
	}

	var entities []PinnedEntity
	if err := json.Unmarshal(normalized, &entities); err != nil {
		return nil, fmt.Errorf("unmarshal pinned entities: %w", err)
	}

	seen := make(map[string]struct{}, len(entities))
	for i := range entities {
		id := strings.TrimSpace(entities[i].EntityID)
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("duplicate entity_id %q", id)
		}
		seen[id] = struct{}{}
		if entities[i].EntityKey == "" {
			entities[i].EntityKey = id
		}
	}

	return entities, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020

		if err := compiler.AddResource("pinned_entities.schema.json", strings.NewReader(pinnedEntitiesSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile("pinned_entities.schema.json")
		if err != nil {
			compiledSchemaErr = fmt.Errorf("compile schema: %w", err)
			return
		}

		compiledSchema = schema
	})

	if compiledSchemaErr != nil {
		return nil, compiledSchemaErr
	}
	if compiledSchema == nil {
		return nil, fmt.Errorf("schema not initialized")
	}
	return compiledSchema, nil
}

func decodeStrictJSON(raw []byte) (any, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("payload is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}

	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("payload contains trailing content")
	}

	return value, nil
}
