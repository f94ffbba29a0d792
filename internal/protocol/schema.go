package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"path"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.schema.json
var schemaFS embed.FS

// Validator checks inbound client messages against the embedded JSON
// schemas before they are decoded.
type Validator struct {
	byType map[string]*jsonschema.Schema
}

// schemaFiles maps message types to their schema file.
var schemaFiles = map[string]string{
	TypeHello:       "hello.schema.json",
	TypeMovePlayer:  "move_player.schema.json",
	TypeMoveVehicle: "move_vehicle.schema.json",
	TypeTeleportAck: "teleport_ack.schema.json",
	TypeChat:        "chat.schema.json",
	TypeCommand:     "command.schema.json",
	TypeChatAck:     "chat_ack.schema.json",
	TypeChatSession: "chat_session.schema.json",
	TypeBlockAction: "block_action.schema.json",
	TypeKeepAlive:   "keep_alive.schema.json",
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	entries, err := fs.ReadDir(schemaFS, "schemas")
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		b, err := schemaFS.ReadFile(path.Join("schemas", e.Name()))
		if err != nil {
			return nil, err
		}
		if err := c.AddResource(schemaURL(e.Name()), bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("schema %s: %w", e.Name(), err)
		}
	}
	v := &Validator{byType: map[string]*jsonschema.Schema{}}
	for typ, name := range schemaFiles {
		s, err := c.Compile(schemaURL(name))
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", name, err)
		}
		v.byType[typ] = s
	}
	return v, nil
}

func schemaURL(name string) string { return "https://voxelsession.ai/schemas/" + name }

// Validate checks raw against the schema for its declared type.
func (v *Validator) Validate(raw []byte) error {
	var doc any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return fmt.Errorf("message is not an object")
	}
	typ, _ := obj["type"].(string)
	s := v.byType[strings.TrimSpace(typ)]
	if s == nil {
		return fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
	return s.Validate(doc)
}
