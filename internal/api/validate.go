package api

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemasFS embed.FS

var (
	createSchema = mustCompileSchema("profile_create.json")
	updateSchema = mustCompileSchema("profile_update.json")
)

func mustCompileSchema(name string) *jsonschema.Schema {
	data, err := schemasFS.ReadFile("schemas/" + name)
	if err != nil {
		panic(fmt.Sprintf("reading schema %s: %v", name, err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, bytes.NewReader(data)); err != nil {
		panic(fmt.Sprintf("adding schema %s: %v", name, err))
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("compiling schema %s: %v", name, err))
	}
	return schema
}

// validateBody checks raw JSON against schema. The returned slice is empty
// when the body is valid.
func validateBody(schema *jsonschema.Schema, data []byte) []FieldError {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return []FieldError{{Loc: []string{"body"}, Msg: "invalid JSON: " + err.Error(), Type: "json_invalid"}}
	}

	err := schema.Validate(v)
	if err == nil {
		return nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return []FieldError{{Loc: []string{"body"}, Msg: err.Error(), Type: "value_error"}}
	}

	var out []FieldError
	collectLeaves(ve, &out)
	return out
}

func collectLeaves(ve *jsonschema.ValidationError, out *[]FieldError) {
	if len(ve.Causes) == 0 {
		*out = append(*out, FieldError{
			Loc:  instanceLoc(ve.InstanceLocation),
			Msg:  ve.Message,
			Type: "value_error",
		})
		return
	}
	for _, c := range ve.Causes {
		collectLeaves(c, out)
	}
}

// instanceLoc turns a JSON pointer like "/name" into ["body", "name"].
func instanceLoc(ptr string) []string {
	loc := []string{"body"}
	for _, part := range strings.Split(strings.Trim(ptr, "/"), "/") {
		if part != "" {
			loc = append(loc, part)
		}
	}
	return loc
}
