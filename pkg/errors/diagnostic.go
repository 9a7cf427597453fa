package errors

import (
	"encoding/json"
	"fmt"
)

// Kind is the recoverable failure category reported by a compilation.
type Kind int

const (
	MissingComponent Kind = iota + 1
	ComponentCycle
	BindingResolutionAmbiguity
	InvalidRepeaterShape
)

var kindNames = map[Kind]string{
	MissingComponent:           "MissingComponent",
	ComponentCycle:             "ComponentCycle",
	BindingResolutionAmbiguity: "BindingResolutionAmbiguity",
	InvalidRepeaterShape:       "InvalidRepeaterShape",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// Diagnostic is a non-fatal problem found while compiling a block tree.
type Diagnostic struct {
	Kind    Kind   `json:"kind"`
	Code    string `json:"code"`
	BlockID string `json:"blockId"`
	Message string `json:"message"`
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s [%s] block %s: %s", d.Kind, d.Code, d.BlockID, d.Message)
}

// NewDiagnostic builds a diagnostic from a catalog code.
func NewDiagnostic(kind Kind, code, blockID string, data map[string]any) Diagnostic {
	err := New(code, data)
	return Diagnostic{
		Kind:    kind,
		Code:    code,
		BlockID: blockID,
		Message: err.Message,
	}
}

// DiagnosticFrom converts err into a diagnostic, folding hints into the
// message.
func DiagnosticFrom(kind Kind, blockID string, err *TrellisError) Diagnostic {
	msg := err.Message
	for _, h := range err.Hints {
		msg += "; " + h
	}
	return Diagnostic{
		Kind:    kind,
		Code:    err.Code,
		BlockID: blockID,
		Message: msg,
	}
}

// Diagnostics is an ordered diagnostic list.
type Diagnostics []Diagnostic

// Has reports whether any diagnostic of kind k is present.
func (ds Diagnostics) Has(k Kind) bool {
	for _, d := range ds {
		if d.Kind == k {
			return true
		}
	}
	return false
}

// ForBlock returns the diagnostics attributed to blockID.
func (ds Diagnostics) ForBlock(blockID string) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.BlockID == blockID {
			out = append(out, d)
		}
	}
	return out
}
