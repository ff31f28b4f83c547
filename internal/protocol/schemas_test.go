package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"clothcraft.ai/internal/protocol"
)

const pointSchema = `{
  "type":"object",
  "required":["index","pos","vel"],
  "properties":{
    "index":{"type":"integer","minimum":0},
    "pos":{"type":"array","items":{"type":"number"},"minItems":3,"maxItems":3},
    "vel":{"type":"array","items":{"type":"number"},"minItems":3,"maxItems":3},
    "pin":{
      "type":"object",
      "required":["kind","offset"],
      "properties":{
        "kind":{"enum":["NONE","BLOCK","ENTITY"]},
        "block":{"type":"array","items":{"type":"integer"},"minItems":3,"maxItems":3},
        "offset":{"type":"array","items":{"type":"number"},"minItems":3,"maxItems":3}
      }
    }
  }
}`

func compile(t *testing.T, name, schema string) *jsonschema.Schema {
	t.Helper()
	s, err := jsonschema.CompileString(name, schema)
	if err != nil {
		t.Fatalf("compile %s: %v", name, err)
	}
	return s
}

func validate(t *testing.T, s *jsonschema.Schema, m protocol.Message) {
	t.Helper()
	b, err := protocol.Encode(m)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := s.Validate(v); err != nil {
		t.Fatalf("validate %s: %v", m.MessageType(), err)
	}
}

func TestSchemas_ValidateMessages(t *testing.T) {
	snapshotSchema := compile(t, "snapshot.schema.json", `{
	  "type":"object",
	  "required":["type","protocol_version","systems"],
	  "properties":{
	    "type":{"const":"CLOTH_SNAPSHOT"},
	    "systems":{"type":"array","items":{
	      "type":"object",
	      "required":["id","type","width","length","points","constraints"],
	      "properties":{
	        "id":{"type":"integer","minimum":1},
	        "type":{"enum":["ROPE","CLOTH"]},
	        "points":{"type":"array","items":`+pointSchema+`},
	        "constraints":{"type":"array","items":{
	          "type":"object",
	          "required":["a","b","rest"],
	          "properties":{"rest":{"type":"number","exclusiveMinimum":0}}
	        }}
	      }
	    }}
	  }
	}`)
	removeSchema := compile(t, "remove.schema.json", `{
	  "type":"object",
	  "required":["type","protocol_version","ids"],
	  "properties":{
	    "type":{"const":"CLOTH_REMOVE"},
	    "ids":{"type":"array","items":{"type":"integer"}}
	  }
	}`)
	deltaSchema := compile(t, "point.schema.json", `{
	  "type":"object",
	  "required":["type","protocol_version","system_id","row","col","point"],
	  "properties":{
	    "type":{"const":"CLOTH_POINT"},
	    "row":{"type":"integer","minimum":0},
	    "col":{"type":"integer","minimum":0},
	    "point":`+pointSchema+`
	  }
	}`)

	p0 := protocol.PointV1{
		Index: 0,
		Pos:   [3]float64{0.5, 10.5, 0.5},
		Pin:   &protocol.PinV1{Kind: protocol.PinBlock, Block: [3]int{0, 10, 0}, Offset: [3]float64{0.5, 0.5, 0.5}},
	}
	p1 := protocol.PointV1{Index: 1, Pos: [3]float64{0.6, 10.5, 0.5}}
	sys := protocol.SystemV1{
		ID: 1, Type: protocol.SystemRope, Width: 1, Length: 2,
		Points:      []protocol.PointV1{p0, p1},
		Constraints: []protocol.ConstraintV1{{A: 0, B: 1, Rest: 0.1}},
	}

	validate(t, snapshotSchema, protocol.NewFullSnapshot([]protocol.SystemV1{sys}))
	validate(t, removeSchema, protocol.NewRemovalNotice([]int{1}))
	validate(t, deltaSchema, protocol.NewPointDelta(1, 0, 1, p1))
}
