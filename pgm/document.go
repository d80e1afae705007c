package pgm

import (
	"encoding/json"
	"fmt"

	"github.com/wcetcore/wcet/pp"
)

// pointDoc is the serializable form of a pp.ProgramPoint: flow facts and
// timing profiles reference program points by kind + fields rather than
// through the ProgramPoint interface, which encoding/json cannot decode
// polymorphically on its own.
type pointDoc struct {
	Kind       string `json:"kind"`
	Func       string `json:"func,omitempty"`
	Block      string `json:"block,omitempty"`
	Source     string `json:"source,omitempty"`
	Target     string `json:"target,omitempty"`
	Header     string `json:"header,omitempty"`
	Index      int    `json:"index,omitempty"`
	Tag        string `json:"tag,omitempty"`
	Value      int64  `json:"value,omitempty"`
	VarName    string `json:"var_name,omitempty"`
	GlobalName string `json:"global_name,omitempty"`
	Level      string `json:"level,omitempty"`
	PowerState string `json:"power_state,omitempty"`
}

func parseLevel(s string) (pp.Level, error) {
	switch s {
	case "", "bc", "bitcode":
		return pp.Bitcode, nil
	case "mc", "machinecode":
		return pp.MachineCode, nil
	case "gcfg":
		return pp.GCFG, nil
	default:
		return 0, fmt.Errorf("pgm: unknown level %q", s)
	}
}

func levelString(l pp.Level) string {
	switch l {
	case pp.Bitcode:
		return "bc"
	case pp.MachineCode:
		return "mc"
	case pp.GCFG:
		return "gcfg"
	default:
		return "?"
	}
}

func (d pointDoc) toProgramPoint() (pp.ProgramPoint, error) {
	level, err := parseLevel(d.Level)
	if err != nil {
		return nil, err
	}
	switch d.Kind {
	case "function":
		return pp.Function{Func: d.Func, Level: level}, nil
	case "block":
		return pp.Block{Func: d.Func, Block: d.Block, Level: level}, nil
	case "edge":
		return pp.Edge{Func: d.Func, Source: d.Source, Target: d.Target, Level: level, PowerState: d.PowerState}, nil
	case "instruction":
		return pp.Instruction{Func: d.Func, Block: d.Block, Index: d.Index, Level: level}, nil
	case "loop":
		return pp.Loop{Func: d.Func, Header: d.Header, Level: level}, nil
	case "marker":
		return pp.Marker{Tag: d.Tag}, nil
	case "constant":
		return pp.ConstantProgramPoint{Tag: d.Tag, Value: d.Value}, nil
	case "freqvar":
		return pp.FrequencyVariable{VarName: d.VarName}, nil
	case "global":
		return pp.GlobalProgramPoint{GlobalName: d.GlobalName}, nil
	default:
		return nil, fmt.Errorf("pgm: unknown program point kind %q", d.Kind)
	}
}

func pointDocOf(p pp.ProgramPoint) pointDoc {
	switch v := p.(type) {
	case pp.Function:
		return pointDoc{Kind: "function", Func: v.Func, Level: levelString(v.Level)}
	case pp.Block:
		return pointDoc{Kind: "block", Func: v.Func, Block: v.Block, Level: levelString(v.Level)}
	case pp.Edge:
		return pointDoc{Kind: "edge", Func: v.Func, Source: v.Source, Target: v.Target, Level: levelString(v.Level), PowerState: v.PowerState}
	case pp.Instruction:
		return pointDoc{Kind: "instruction", Func: v.Func, Block: v.Block, Index: v.Index, Level: levelString(v.Level)}
	case pp.Loop:
		return pointDoc{Kind: "loop", Func: v.Func, Header: v.Header, Level: levelString(v.Level)}
	case pp.Marker:
		return pointDoc{Kind: "marker", Tag: v.Tag}
	case pp.ConstantProgramPoint:
		return pointDoc{Kind: "constant", Tag: v.Tag, Value: v.Value}
	case pp.FrequencyVariable:
		return pointDoc{Kind: "freqvar", VarName: v.VarName}
	case pp.GlobalProgramPoint:
		return pointDoc{Kind: "global", GlobalName: v.GlobalName}
	default:
		return pointDoc{Kind: "global", GlobalName: p.Name()}
	}
}

type termDoc struct {
	Factor int64    `json:"factor"`
	Point  pointDoc `json:"point"`
}

type contextRefDoc struct {
	Point   pointDoc `json:"point"`
	Context []string `json:"context,omitempty"`
}

type flowFactDoc struct {
	Scope  contextRefDoc `json:"scope"`
	LHS    []termDoc     `json:"lhs"`
	Op     FlowFactOp    `json:"op"`
	RHS    int64         `json:"rhs"`
	Level  string        `json:"level"`
	Origin string        `json:"origin,omitempty"`
}

// document is the on-disk JSON shape of a Program: identical to Program
// except FlowFacts use the serializable flowFactDoc form, since
// FlowFact.Scope and FlowFact.LHS carry a ProgramPoint interface that
// encoding/json cannot marshal or unmarshal by itself.
type document struct {
	Functions      []Function      `json:"functions"`
	RelationGraphs []RelationGraph `json:"relation_graphs,omitempty"`
	FlowFacts      []flowFactDoc   `json:"flow_facts,omitempty"`
	SSTG           *SSTG           `json:"sstg,omitempty"`
}

// DecodeProgram parses a JSON program document into a Program, resolving
// every flow fact's scope and term program points from their kind-tagged
// serializable form.
func DecodeProgram(data []byte) (*Program, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("pgm: decode program: %w", err)
	}

	p := &Program{
		Functions:      doc.Functions,
		RelationGraphs: doc.RelationGraphs,
		SSTG:           doc.SSTG,
	}
	for _, fd := range doc.FlowFacts {
		scopePoint, err := fd.Scope.Point.toProgramPoint()
		if err != nil {
			return nil, err
		}
		lhs := make([]Term, 0, len(fd.LHS))
		for _, td := range fd.LHS {
			pt, err := td.Point.toProgramPoint()
			if err != nil {
				return nil, err
			}
			lhs = append(lhs, Term{Factor: td.Factor, Point: pt})
		}
		level, err := parseLevel(fd.Level)
		if err != nil {
			return nil, err
		}
		p.FlowFacts = append(p.FlowFacts, FlowFact{
			Scope:  pp.ContextRef{Point: scopePoint, Context: pp.Context(fd.Scope.Context)},
			LHS:    lhs,
			Op:     fd.Op,
			RHS:    fd.RHS,
			Level:  level,
			Origin: fd.Origin,
		})
	}
	return p, nil
}

// EncodeProgram serializes p back to the same JSON document shape
// DecodeProgram reads, round-tripping flow facts through their
// kind-tagged serializable form.
func EncodeProgram(p *Program) ([]byte, error) {
	doc := document{
		Functions:      p.Functions,
		RelationGraphs: p.RelationGraphs,
		SSTG:           p.SSTG,
	}
	for _, f := range p.FlowFacts {
		lhs := make([]termDoc, 0, len(f.LHS))
		for _, t := range f.LHS {
			lhs = append(lhs, termDoc{Factor: t.Factor, Point: pointDocOf(t.Point)})
		}
		doc.FlowFacts = append(doc.FlowFacts, flowFactDoc{
			Scope:  contextRefDoc{Point: pointDocOf(f.Scope.Point), Context: []string(f.Scope.Context)},
			LHS:    lhs,
			Op:     f.Op,
			RHS:    f.RHS,
			Level:  levelString(f.Level),
			Origin: f.Origin,
		})
	}
	return json.MarshalIndent(doc, "", "  ")
}

// EncodeFlowFacts serializes a bare slice of flow facts (e.g. the result
// of Copy/Simplify/Transform) to the same per-fact JSON shape used inside
// a full document, for writing --out results independent of the input
// program.
func EncodeFlowFacts(facts []FlowFact) ([]byte, error) {
	docs := make([]flowFactDoc, 0, len(facts))
	for _, f := range facts {
		lhs := make([]termDoc, 0, len(f.LHS))
		for _, t := range f.LHS {
			lhs = append(lhs, termDoc{Factor: t.Factor, Point: pointDocOf(t.Point)})
		}
		docs = append(docs, flowFactDoc{
			Scope:  contextRefDoc{Point: pointDocOf(f.Scope.Point), Context: []string(f.Scope.Context)},
			LHS:    lhs,
			Op:     f.Op,
			RHS:    f.RHS,
			Level:  levelString(f.Level),
			Origin: f.Origin,
		})
	}
	return json.MarshalIndent(docs, "", "  ")
}
