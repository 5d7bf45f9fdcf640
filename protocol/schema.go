package protocol

import (
	"github.com/invopop/jsonschema"

	"github.com/Flying-Toast/sorcerio/game"
)

// Schema 按消息类型描述每种 payload
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	payloads := map[string]any{
		string(TypeJoin):   &Join{},
		string(TypeInput):  &[]game.InputRecord{},
		string(TypeYourID): &YourID{},
		string(TypeUpdate): &game.WorldSnapshot{},
		"meta":             &Meta{},
		"envelope":         &Envelope{},
	}

	defs := jsonschema.Definitions{}
	for name, v := range payloads {
		s := reflector.Reflect(v)
		s.Version = ""
		defs[name] = s
	}

	return &jsonschema.Schema{
		Version:     jsonschema.Version,
		Title:       "Sorcerio Wire Protocol",
		Description: "Payloads carried in the data field of each socket envelope.",
		Definitions: defs,
	}
}
