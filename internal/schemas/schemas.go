// Package schemas validates payloads against the embedded canonical
// message schemas. Callers treat it as a black box: a payload either
// conforms to a named schema or it does not.
package schemas

import (
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/kittoju/flume/internal/errors"
)

//go:embed definitions/*.json
var definitions embed.FS

var (
	mu       sync.Mutex
	compiled = map[string]*gojsonschema.Schema{}
)

func load(name string) (*gojsonschema.Schema, error) {
	mu.Lock()
	defer mu.Unlock()

	if s, ok := compiled[name]; ok {
		return s, nil
	}

	raw, err := definitions.ReadFile("definitions/" + name + ".json")
	if err != nil {
		return nil, errors.NotFound("unknown schema " + name)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "compiling schema "+name)
	}

	compiled[name] = schema
	return schema, nil
}

// Validate checks data against the named schema ("activity" or "send").
// A non-nil return is a schema violation naming every failed constraint.
func Validate(data any, schemaName string) error {
	schema, err := load(schemaName)
	if err != nil {
		return err
	}

	doc, err := json.Marshal(data)
	if err != nil {
		return errors.Wrap(err, "encoding payload")
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return errors.Wrap(err, "running validation")
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		return errors.SchemaViolation(fmt.Sprintf("schema %q: %s", schemaName, strings.Join(details, "; ")))
	}

	return nil
}
