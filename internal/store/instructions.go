package store

import (
	"encoding/json"

	"github.com/macrae/convoke/internal/chat"
)

// Instructions are stored as a JSON array alongside the message body.
// An empty slice round-trips as "[]" so older rows never come back nil
// vs empty inconsistently.

func marshalInstructions(instructions []chat.Instruction) ([]byte, error) {
	if instructions == nil {
		instructions = []chat.Instruction{}
	}
	return json.Marshal(instructions)
}

func unmarshalInstructions(data []byte) ([]chat.Instruction, error) {
	var instructions []chat.Instruction
	if err := json.Unmarshal(data, &instructions); err != nil {
		return nil, err
	}
	if len(instructions) == 0 {
		return nil, nil
	}
	return instructions, nil
}
