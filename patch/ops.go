// Package patch defines the edit operations applied to a page IR snapshot,
// their validation, and the text-fit apply engine.
package patch

import (
	"encoding/json"
	"fmt"
)

// FitPolicy selects how replacement text that no longer fits its box is
// handled.
type FitPolicy string

const (
	// PolicyFitInBox shrinks (and as a last resort widens the box for)
	// the replacement text until it fits.
	PolicyFitInBox FitPolicy = "FIT_IN_BOX"
	// PolicyOverflowNotice keeps the original size and only reports
	// overflow.
	PolicyOverflowNotice FitPolicy = "OVERFLOW_NOTICE"
)

// Op is one edit operation. The set is closed: SetStyle and ReplaceText.
type Op interface {
	// Target returns the id of the primitive the op addresses.
	Target() string

	isOp()
}

// SetStyle restyles a path primitive. Only non-nil fields are merged into
// the target's style; everything else is left untouched.
type SetStyle struct {
	TargetID      string
	StrokeColor   []float64
	StrokeWidthPt *float64
	FillColor     []float64
	Opacity       *float64
}

func (o SetStyle) Target() string { return o.TargetID }
func (o SetStyle) isOp()          {}

// ReplaceText swaps a text primitive's content, keeping it inside its
// visual footprint per the policy.
type ReplaceText struct {
	TargetID string
	NewText  string
	Policy   FitPolicy
	OldText  string
}

func (o ReplaceText) Target() string { return o.TargetID }
func (o ReplaceText) isOp()          {}

type setStyleJSON struct {
	Op            string    `json:"op"`
	TargetID      string    `json:"target_id"`
	StrokeColor   []float64 `json:"stroke_color,omitempty"`
	StrokeWidthPt *float64  `json:"stroke_width_pt,omitempty"`
	FillColor     []float64 `json:"fill_color,omitempty"`
	Opacity       *float64  `json:"opacity,omitempty"`
}

type replaceTextJSON struct {
	Op       string    `json:"op"`
	TargetID string    `json:"target_id"`
	NewText  string    `json:"new_text"`
	Policy   FitPolicy `json:"policy"`
	OldText  string    `json:"old_text,omitempty"`
}

func (o SetStyle) MarshalJSON() ([]byte, error) {
	return json.Marshal(setStyleJSON{
		Op:            "set_style",
		TargetID:      o.TargetID,
		StrokeColor:   o.StrokeColor,
		StrokeWidthPt: o.StrokeWidthPt,
		FillColor:     o.FillColor,
		Opacity:       o.Opacity,
	})
}

func (o ReplaceText) MarshalJSON() ([]byte, error) {
	return json.Marshal(replaceTextJSON{
		Op:       "replace_text",
		TargetID: o.TargetID,
		NewText:  o.NewText,
		Policy:   o.Policy,
		OldText:  o.OldText,
	})
}

// UnmarshalOp decodes a single op by its "op" discriminator. Unknown
// discriminators are an error; a malformed op must never pass silently.
func UnmarshalOp(data []byte) (Op, error) {
	var head struct {
		Op string `json:"op"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("patch: decode op: %w", err)
	}
	switch head.Op {
	case "set_style":
		var in setStyleJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("patch: decode set_style: %w", err)
		}
		return SetStyle{
			TargetID:      in.TargetID,
			StrokeColor:   in.StrokeColor,
			StrokeWidthPt: in.StrokeWidthPt,
			FillColor:     in.FillColor,
			Opacity:       in.Opacity,
		}, nil
	case "replace_text":
		var in replaceTextJSON
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("patch: decode replace_text: %w", err)
		}
		if in.Policy == "" {
			in.Policy = PolicyFitInBox
		}
		return ReplaceText{
			TargetID: in.TargetID,
			NewText:  in.NewText,
			Policy:   in.Policy,
			OldText:  in.OldText,
		}, nil
	default:
		return nil, fmt.Errorf("patch: unknown op %q", head.Op)
	}
}

// Ops is an op list with union-aware JSON decoding.
type Ops []Op

func (o *Ops) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("patch: decode ops: %w", err)
	}
	out := make(Ops, 0, len(raw))
	for _, item := range raw {
		op, err := UnmarshalOp(item)
		if err != nil {
			return err
		}
		out = append(out, op)
	}
	*o = out
	return nil
}

// OpResult reports the outcome of one applied op. A fit failure is a
// value (OK=false, Code set), not an error, so batches can partially
// succeed.
type OpResult struct {
	TargetID        string             `json:"target_id"`
	OK              bool               `json:"ok"`
	Code            string             `json:"code,omitempty"`
	AppliedFontSize float64            `json:"applied_font_size_pt,omitempty"`
	Overflow        bool               `json:"overflow"`
	FontAdjusted    bool               `json:"font_adjusted"`
	BBoxAdjusted    bool               `json:"bbox_adjusted"`
	Details         map[string]float64 `json:"details,omitempty"`
	Warnings        []string           `json:"warnings,omitempty"`
}

// CodeTextTooLong marks a ReplaceText that could not be made to fit.
const CodeTextTooLong = "TEXT_TOO_LONG"

// DiffEntry summarizes which fields an op would change.
type DiffEntry struct {
	TargetID      string   `json:"target_id"`
	ChangedFields []string `json:"changed_fields"`
}
