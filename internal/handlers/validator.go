package handlers

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/sindh/backend/internal/apperr"
)

const maxBodyBytes = 64 << 10

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schema names.
const (
	SchemaPostJob    = "post_job"
	SchemaTransition = "transition"
	SchemaCharges    = "charges"
	SchemaRating     = "rating"
	SchemaProfile    = "profile"
	SchemaDeposit    = "deposit"
)

// Validator checks request bodies against the embedded JSON Schemas before they are
// decoded into request structs.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("read embedded schemas: %w", err)
	}
	schemas := make(map[string]*jsonschema.Schema, len(entries))
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		data, err := schemaFS.ReadFile("schemas/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("read %q: %w", e.Name(), err)
		}
		schemas[name], err = jsonschema.CompileString("https://sindh.app/schemas/"+e.Name(), string(data))
		if err != nil {
			return nil, fmt.Errorf("compile schema %q: %w", name, err)
		}
	}
	return &Validator{schemas: schemas}, nil
}

// Validate rejects data that is not JSON or does not match the named schema with a
// ValidationError naming the first offending field.
func (v *Validator) Validate(schema string, data []byte) error {
	s, ok := v.schemas[schema]
	if !ok {
		return fmt.Errorf("unknown schema %q", schema)
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return apperr.Validation("request body is not valid JSON")
	}
	if err := s.Validate(doc); err != nil {
		return apperr.Validation("%s", describe(err))
	}
	return nil
}

// describe flattens a schema failure to its deepest cause, e.g. "/score: expected integer".
func describe(err error) string {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return err.Error()
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	loc := ve.InstanceLocation
	if loc == "" {
		loc = "body"
	}
	return loc + ": " + ve.Message
}

// decode reads the request body, validates it against schema and unmarshals it into dst.
func (v *Validator) decode(r *http.Request, schema string, dst any) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return apperr.Validation("could not read request body")
	}
	if len(data) > maxBodyBytes {
		return apperr.Validation("request body exceeds %d bytes", maxBodyBytes)
	}
	if err := v.Validate(schema, data); err != nil {
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return apperr.Validation("request body does not match the expected shape")
	}
	return nil
}
