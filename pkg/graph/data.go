package graph

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
	"github.com/urbangroup/botflow/pkg/script"
)

// PromptData is the payload of a prompt node.
type PromptData struct {
	Text   string                `json:"text" mapstructure:"text"`
	SaveTo string                `json:"save_to" mapstructure:"save_to,omitempty"`
	SkipIf *script.SkipCondition `json:"skip_if,omitempty" mapstructure:"skip_if,omitempty"`
}

// OptionData is one choice-node option. The outgoing transition lives on the
// edge with the matching option handle, not here.
type OptionData struct {
	ID     string                `json:"id" mapstructure:"id"`
	Title  string                `json:"title" mapstructure:"title"`
	SkipIf *script.SkipCondition `json:"skip_if,omitempty" mapstructure:"skip_if,omitempty"`
}

// ChoiceData is the payload of a choice node.
type ChoiceData struct {
	Text    string                `json:"text" mapstructure:"text"`
	Options []OptionData          `json:"options" mapstructure:"options"`
	SkipIf  *script.SkipCondition `json:"skip_if,omitempty" mapstructure:"skip_if,omitempty"`
}

// CheckData is the payload of a check node.
type CheckData struct {
	ActionType  string                `json:"action_type" mapstructure:"action_type"`
	Field       string                `json:"field" mapstructure:"field"`
	Description string                `json:"description" mapstructure:"description,omitempty"`
	SkipIf      *script.SkipCondition `json:"skip_if,omitempty" mapstructure:"skip_if,omitempty"`
}

// TerminalData is the payload of a terminal node, mirroring a DoneAction.
type TerminalData struct {
	Text           string `json:"text" mapstructure:"text"`
	Action         string `json:"action" mapstructure:"action"`
	TargetScriptID string `json:"target_script_id,omitempty" mapstructure:"target_script_id,omitempty"`
}

// DecodeData projects the node's loose data map onto the typed payload for
// its kind. The editor sends JSON objects; mapstructure bridges the gap
// without a second (de)serialization pass.
func (n *Node) DecodeData(out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  out,
		TagName: "mapstructure",
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(n.Data); err != nil {
		return fmt.Errorf("node %s: %w", n.ID, err)
	}
	return nil
}

// EncodeData is the inverse of DecodeData, used by the decompiler to build
// editor payloads from typed values.
func EncodeData(in any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "mapstructure",
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return nil, err
	}
	return out, nil
}
