package httpapi

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

//go:embed messages.schema.json
var messageSchemaJSON string

const messageSchemaName = "messages.schema.json"

// message is an inbound panel request after schema validation.
type message struct {
	Action    string `json:"action"`
	URL       string `json:"url,omitempty"`
	ArticleID int64  `json:"articleId,omitempty"`
	Query     string `json:"query,omitempty"`
}

var (
	compileOnce       sync.Once
	compiledSchema    *jsonschema.Schema
	compiledSchemaErr error
)

// decodeMessage validates raw against the message schema and decodes it.
func decodeMessage(raw []byte) (message, error) {
	value, err := decodeStrictJSON(raw)
	if err != nil {
		return message{}, fmt.Errorf("decode message JSON: %w", err)
	}

	schema, err := loadSchema()
	if err != nil {
		return message{}, fmt.Errorf("load schema: %w", err)
	}
	if err := schema.Validate(value); err != nil {
		return message{}, fmt.Errorf("invalid message: %w", err)
	}

	var msg message
	if err := json.Unmarshal(bytes.TrimSpace(raw), &msg); err != nil {
		return message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	msg.URL = strings.TrimSpace(msg.URL)
	return msg, nil
}

func loadSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true

		if err := compiler.AddResource(messageSchemaName, strings.NewReader(messageSchemaJSON)); err != nil {
			compiledSchemaErr = fmt.Errorf("add schema resource: %w", err)
			return
		}

		schema, err := compiler.Compile(messageSchemaName)
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
		return nil, fmt.Errorf("message is empty")
	}

	decoder := json.NewDecoder(bytes.NewReader(trimmed))
	decoder.UseNumber()

	var value any
	if err := decoder.Decode(&value); err != nil {
		return nil, err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return nil, fmt.Errorf("message contains trailing content")
	}
	return value, nil
}
