// Package pgm defines the in-memory program-information document the
// core consumes: functions, blocks, instructions, relation graphs, flow
// facts, and the Global/Static State-Transition Graph (SSTG). These are
// plain JSON-tagged structs; PML file I/O proper is an external
// collaborator, but a thin JSON document shape is useful for the
// cmd/wcetcore driver and for tests.
package pgm

import "github.com/wcetcore/wcet/pp"

// Linkage distinguishes functions with external callers from purely local
// ones; currently informational only.
type Linkage string

const (
	LinkageLocal    Linkage = "local"
	LinkageExternal Linkage = "external"
)

// BranchType classifies how control leaves an instruction.
type BranchType string

const (
	BranchNone       BranchType = ""
	BranchCall       BranchType = "call"
	BranchConditional BranchType = "conditional"
	BranchUnconditional BranchType = "unconditional"
	BranchReturn     BranchType = "return"
	BranchIndirect   BranchType = "indirect"
)

// Instruction is one instruction within a block.
type Instruction struct {
	Index      int        `json:"index"`
	Opcode     string     `json:"opcode"`
	Size       int        `json:"size"`
	Callees    []string   `json:"callees,omitempty"`
	BranchType BranchType `json:"branch_type,omitempty"`
	MemMode    string     `json:"memmode,omitempty"`
}

// Block is one basic block: a list of instructions plus its CFG
// neighbors and optional loop nesting.
type Block struct {
	Name         string        `json:"name"`
	Predecessors []string      `json:"predecessors"`
	Successors   []string      `json:"successors"`
	Loops        []string      `json:"loops,omitempty"` // innermost-first loop header names
	Instructions []Instruction `json:"instructions"`
	MayReturn    bool          `json:"may_return"`
	SrcHint      string        `json:"src_hint,omitempty"`
}

// IsEntry reports whether b has no predecessors recorded (function
// entry), matching the "entry-block status" condition IPETModel uses to
// decide which blocks need flow-conservation constraints.
func (b *Block) IsEntry() bool { return len(b.Predecessors) == 0 }

// Function is one function at one representation level.
type Function struct {
	Name    string    `json:"name"`
	Level   pp.Level  `json:"level"`
	Blocks  []Block   `json:"blocks"`
	Linkage Linkage   `json:"linkage,omitempty"`
}

// Block looks up a block by name, or returns (nil, false).
func (f *Function) Block(name string) (*Block, bool) {
	for i := range f.Blocks {
		if f.Blocks[i].Name == name {
			return &f.Blocks[i], true
		}
	}
	return nil, false
}

// NodeType classifies a relation-graph node.
type NodeType string

const (
	NodeEntry    NodeType = "entry"
	NodeExit     NodeType = "exit"
	NodeProgress NodeType = "progress"
	NodeUnmapped NodeType = "unmapped"
)

// RelationNode is one node in a bitcode<->machinecode relation graph.
type RelationNode struct {
	Name          string   `json:"name"`
	Type          NodeType `json:"type"`
	SrcBlock      string   `json:"src_block,omitempty"`
	DstBlock      string   `json:"dst_block,omitempty"`
	SrcSuccessors []string `json:"src_successors,omitempty"`
	DstSuccessors []string `json:"dst_successors,omitempty"`
}

// FunctionRef names a function at a specific level for relation-graph
// endpoints.
type FunctionRef struct {
	Function string   `json:"function"`
	Level    pp.Level `json:"level"`
}

// RelationGraph links corresponding blocks of one function across levels.
type RelationGraph struct {
	Src   FunctionRef    `json:"src"`
	Dst   FunctionRef    `json:"dst"`
	Nodes []RelationNode `json:"nodes"`
}

// FlowFactOp is the relation a flow fact's lhs/rhs stand in.
type FlowFactOp string

const (
	FFEqual              FlowFactOp = "equal"
	FFLessEqual          FlowFactOp = "less-equal"
	FFMaxInterarrival    FlowFactOp = "maximal-interarrival-time"
	FFMinInterarrival    FlowFactOp = "minimal-interarrival-time"
)

// Term is one (factor, program point) pair in a flow fact's lhs.
type Term struct {
	Factor  int64            `json:"factor"`
	Point   pp.ProgramPoint  `json:"-"`
}

// FlowFact is one user- or tool-supplied flow fact: a linear relation over
// program-point frequencies, scoped and tagged with provenance.
type FlowFact struct {
	Scope pp.ContextRef `json:"-"`
	LHS   []Term        `json:"-"`
	Op    FlowFactOp    `json:"op"`
	RHS   int64         `json:"rhs"`

	Level  pp.Level `json:"level"`
	Origin string   `json:"origin"`
}

// Device is one power-controllable peripheral tracked for WCEC.
type Device struct {
	Index         int    `json:"index"`
	Name          string `json:"name"`
	EnergyStayOn  int64  `json:"energy_stay_on"`
	EnergyStayOff int64  `json:"energy_stay_off"`
	EnergyTurnOn  int64  `json:"energy_turn_on"`
	EnergyTurnOff int64  `json:"energy_turn_off"`
}

// BaselineDevice is the pseudo-device ensuring a non-zero energy floor.
// Insertion is idempotent by name: callers may add it more than once
// without creating duplicates (see energy package).
const BaselineDevice = "Baseline"

// SSTGNode is one node of the Global/Static State-Transition Graph: either
// a task/ISR's ABB, a source/sink pseudo-node, or idle microstructure.
type SSTGNode struct {
	Index           int      `json:"index"`
	ABB             string   `json:"abb,omitempty"`
	Function        string   `json:"function,omitempty"`
	Devices         []string `json:"devices,omitempty"`
	Microstructure  bool     `json:"microstructure"`
	IsSource        bool     `json:"is_source"`
	IsSink          bool     `json:"is_sink"`
	ISREntry        bool     `json:"isr_entry"`
	Loops           []int    `json:"loops,omitempty"`
	SuccessorsLocal []int    `json:"successors_local"`
	SuccessorsGlobal []int   `json:"successors_global"`
	FrequencyVariable string `json:"frequency_variable,omitempty"`
	Cost            *int64   `json:"cost,omitempty"`
}

// SSTG is the composition graph over tasks, ISRs, and idle states.
type SSTG struct {
	Name       string     `json:"name"`
	Nodes      []SSTGNode `json:"nodes"`
	DeviceList []Device   `json:"device_list"`
}

// Program is the top-level document the core is handed: one or more
// functions per level, relation graphs linking them, flow facts, and an
// optional SSTG for composed (task + ISR) analysis.
type Program struct {
	Functions      []Function      `json:"functions"`
	RelationGraphs []RelationGraph `json:"relation_graphs,omitempty"`
	FlowFacts      []FlowFact      `json:"flow_facts,omitempty"`
	SSTG           *SSTG           `json:"sstg,omitempty"`
}

// Function looks up a function by name and level.
func (p *Program) Function(name string, level pp.Level) (*Function, bool) {
	for i := range p.Functions {
		if p.Functions[i].Name == name && p.Functions[i].Level == level {
			return &p.Functions[i], true
		}
	}
	return nil, false
}

// RelationGraphFor returns the relation graph for function name, if any.
func (p *Program) RelationGraphFor(name string) (*RelationGraph, bool) {
	for i := range p.RelationGraphs {
		if p.RelationGraphs[i].Src.Function == name || p.RelationGraphs[i].Dst.Function == name {
			return &p.RelationGraphs[i], true
		}
	}
	return nil, false
}

// TimingEntry is one output record: the WCET/WCEC bound for a scope, plus
// a per-reference contribution profile.
type TimingEntry struct {
	Scope   pp.ContextRef  `json:"-"`
	Origin  string         `json:"origin,omitempty"`
	Cycles  int64          `json:"cycles"`
	Profile []ProfileEntry `json:"profile"`
}

// ProfileEntry attributes part of a TimingEntry's cycles to one
// reference (block, edge, or call) with its solved frequency.
type ProfileEntry struct {
	Reference        string  `json:"reference"`
	Cycles           int64   `json:"cycles"`
	WCETFrequency    int64   `json:"wcet_frequency"`
	WCETContribution int64   `json:"wcet_contribution"`
	Criticality      float64 `json:"criticality,omitempty"`
}
