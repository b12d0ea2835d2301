// Package schema checks repaired records against embedded JSON Schemas.
// A failure here means a FieldSpec table and its schema disagree; model
// output alone can never cause one.
package schema

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/lamim/testforge/pkg/models"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const baseURL = "https://github.com/lamim/testforge/schemas/"

var (
	compileOnce sync.Once
	compiled    map[models.Shape]*jsonschema.Schema
	compileErr  error
)

func fileFor(shape models.Shape) string {
	if shape == models.ShapeTestPoints {
		return "test_point.schema.json"
	}
	return "test_case.schema.json"
}

func compileAll() (map[models.Shape]*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiled = make(map[models.Shape]*jsonschema.Schema)
		for _, shape := range []models.Shape{models.ShapeTestPoints, models.ShapeTestCases, models.ShapeGeneric} {
			s, err := load(fileFor(shape))
			if err != nil {
				compileErr = err
				return
			}
			compiled[shape] = s
		}
	})
	return compiled, compileErr
}

func load(name string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile("schemas/" + name)
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(baseURL+name, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	s, err := compiler.Compile(baseURL + name)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}
	return s, nil
}

// Check validates one repaired record. Generic payloads use the test case schema.
func Check(shape models.Shape, record models.Record) error {
	schemas, err := compileAll()
	if err != nil {
		return err
	}

	// Round-trip through JSON so the validator sees the persisted form
	raw, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return fmt.Errorf("unmarshal record: %w", err)
	}

	if err := schemas[shape].Validate(payload); err != nil {
		return fmt.Errorf("%s record does not conform: %w", shape, err)
	}
	return nil
}

// CheckAll validates every record and returns the failures keyed by index
func CheckAll(shape models.Shape, records []models.Record) map[int]error {
	failures := make(map[int]error)
	for i, rec := range records {
		if err := Check(shape, rec); err != nil {
			failures[i] = err
		}
	}
	return failures
}
