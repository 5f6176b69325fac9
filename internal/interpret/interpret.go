// Package interpret turns a decoded /chat response into a rendering
// instruction.
//
// Classification is priority ordered: a follow-up question wins over a
// diagnosis, which wins over a plain reply. A body matching none of them
// produces None and nothing is rendered.
package interpret

import (
	"fmt"

	"MediChat/internal/protocol"
)

// Kind names an instruction variant
type Kind string

const (
	KindNone       Kind = "none"
	KindFollowUp   Kind = "follow_up"
	KindDiagnosis  Kind = "diagnosis"
	KindPlainReply Kind = "plain_reply"
)

// Instruction is one of FollowUp, Diagnosis, PlainReply or None.
type Instruction interface {
	Kind() Kind
	isInstruction()
}

// FollowUp asks a question and offers options in server order.
type FollowUp struct {
	Question string
	Options  []string
}

// Diagnosis is a final answer. Resources may be empty.
type Diagnosis struct {
	Diagnosis   string
	Explanation string
	Resources   []string
}

// PlainReply is free text
type PlainReply struct {
	Text string
}

// None means nothing is rendered
type None struct{}

func (FollowUp) Kind() Kind   { return KindFollowUp }
func (Diagnosis) Kind() Kind  { return KindDiagnosis }
func (PlainReply) Kind() Kind { return KindPlainReply }
func (None) Kind() Kind       { return KindNone }

func (FollowUp) isInstruction()   {}
func (Diagnosis) isInstruction()  {}
func (PlainReply) isInstruction() {}
func (None) isInstruction()       {}

// Summary is the text of the single bot entry for a diagnosis. The
// explanation line is always present, even when empty.
func (d Diagnosis) Summary() string {
	return fmt.Sprintf("Diagnosis: %s\n%s", d.Diagnosis, d.Explanation)
}

// Classify maps a payload to its instruction.
func Classify(p protocol.Payload) Instruction {
	if s := p.Structured; s != nil {
		if s.Question != "" {
			return FollowUp{
				Question: s.Question,
				Options:  append([]string(nil), s.Options...),
			}
		}
		if s.Diagnosis != "" {
			return Diagnosis{
				Diagnosis:   s.Diagnosis,
				Explanation: s.Explanation,
				Resources:   append([]string(nil), s.Resources...),
			}
		}
	}
	if p.Reply != "" {
		return PlainReply{Text: p.Reply}
	}
	return None{}
}

// ClassifyBody decodes and classifies a raw body. A body that cannot be
// decoded classifies as None; the decode error is returned for logging only.
func ClassifyBody(body []byte) (Instruction, error) {
	p, err := protocol.Decode(body)
	if err != nil {
		return None{}, err
	}
	return Classify(p), nil
}
