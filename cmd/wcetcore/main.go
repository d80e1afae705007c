// The wcetcore command drives the three operations the core exposes
// against a PML-style JSON program document: copy, simplify, and
// transform.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/pkg/profile"
	"gopkg.in/yaml.v3"

	"github.com/wcetcore/wcet/ilp"
	"github.com/wcetcore/wcet/ipet"
	"github.com/wcetcore/wcet/options"
	"github.com/wcetcore/wcet/orchestrator"
	"github.com/wcetcore/wcet/pgm"
	"github.com/wcetcore/wcet/pp"
	"github.com/wcetcore/wcet/report"
)

var (
	opFlag         = flag.String("op", "", "operation: copy, simplify, or transform")
	programFlag    = flag.String("program", "", "path to the input program JSON document")
	optionsFlag    = flag.String("options", "", "path to a YAML options file (see options.Options)")
	entryFlag      = flag.String("entry", "", "analysis entry function name (simplify, transform)")
	levelFlag      = flag.String("level", "mc", "representation level for simplify: bc, mc, or gcfg")
	fromLevelFlag  = flag.String("from-level", "mc", "source level for transform")
	toLevelFlag    = flag.String("to-level", "bc", "target level for transform")
	outFlag        = flag.String("out", "", "path to write the resulting flow facts (default: stdout)")
	dumpILPFlag    = flag.String("dump-ilp", "", "path to write the built ILP problem as CBOR")
	cpuProfileFlag = flag.String("cpuprofile", "", "directory to write a pprof CPU profile into")
	colorFlag      = flag.Bool("color", true, "colorize diagnostic output (auto-disabled when not a terminal)")
)

func main() {
	flag.Parse()

	if *cpuProfileFlag != "" {
		defer profile.Start(profile.CPUProfile, profile.ProfilePath(*cpuProfileFlag)).Stop()
	}

	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "wcetcore: "+err.Error())
		os.Exit(1)
	}
}

func run() error {
	if *programFlag == "" {
		return fmt.Errorf("-program is required")
	}
	data, err := os.ReadFile(*programFlag)
	if err != nil {
		return err
	}
	program, err := pgm.DecodeProgram(data)
	if err != nil {
		return err
	}

	opts := options.Default()
	if *optionsFlag != "" {
		raw, err := os.ReadFile(*optionsFlag)
		if err != nil {
			return err
		}
		if err := yaml.Unmarshal(raw, &opts); err != nil {
			return fmt.Errorf("parsing -options: %w", err)
		}
	}

	switch *opFlag {
	case "copy":
		return runCopy(program, opts)
	case "simplify":
		return runSimplify(program, opts)
	case "transform":
		return runTransform(program, opts)
	default:
		flag.Usage()
		return fmt.Errorf("unknown -op %q (want copy, simplify, or transform)", *opFlag)
	}
}

func runCopy(program *pgm.Program, opts options.Options) error {
	result, log := orchestrator.Copy(program, opts)
	emitLog(log)
	return emitResult(result, nil)
}

func runSimplify(program *pgm.Program, opts options.Options) error {
	if *entryFlag == "" {
		return fmt.Errorf("-entry is required for simplify")
	}
	level, err := parseLevel(*levelFlag)
	if err != nil {
		return err
	}
	result, log, err := orchestrator.Simplify(program, *entryFlag, level, blockSizeCost(program, level), nil, opts)
	emitLog(log)
	if err != nil {
		return err
	}
	return emitResult(result, result.Store)
}

func runTransform(program *pgm.Program, opts options.Options) error {
	if *entryFlag == "" {
		return fmt.Errorf("-entry is required for transform")
	}
	from, err := parseLevel(*fromLevelFlag)
	if err != nil {
		return err
	}
	to, err := parseLevel(*toLevelFlag)
	if err != nil {
		return err
	}
	result, log, err := orchestrator.Transform(program, *entryFlag, from, to, opts)
	emitLog(log)
	if err != nil {
		return err
	}
	return emitResult(result, result.Store)
}

func parseLevel(s string) (pp.Level, error) {
	switch s {
	case "bc":
		return pp.Bitcode, nil
	case "mc":
		return pp.MachineCode, nil
	case "gcfg":
		return pp.GCFG, nil
	default:
		return 0, fmt.Errorf("unknown level %q (want bc, mc, or gcfg)", s)
	}
}

// blockSizeCost attributes a CFG edge's cost to the total instruction
// size of its source block, a stand-in cycle model for when no
// architecture-specific cost table is available. Call edges carry no
// cost of their own; an exit edge is a CFG edge and carries its source
// block's size like any other.
func blockSizeCost(program *pgm.Program, level pp.Level) ipet.CostFunc {
	return func(e ipet.Edge) int64 {
		if e.Category != ipet.CFGEdge {
			return 0
		}
		f, ok := program.Function(e.PP.Func, level)
		if !ok {
			return 0
		}
		b, ok := f.Block(e.PP.Source)
		if !ok {
			return 0
		}
		var total int64
		for _, insn := range b.Instructions {
			total += int64(insn.Size)
		}
		return total
	}
}

func emitLog(log *report.Log) {
	if log == nil {
		return
	}
	if *colorFlag {
		log.WriteColored(os.Stderr)
	} else {
		fmt.Fprint(os.Stderr, log.String())
	}
}

func emitResult(result *orchestrator.Result, store *ilp.Store) error {
	if result != nil && *dumpILPFlag != "" && store != nil {
		data, err := store.MarshalCBOR()
		if err != nil {
			return fmt.Errorf("dumping ILP: %w", err)
		}
		if err := os.WriteFile(*dumpILPFlag, data, 0o644); err != nil {
			return err
		}
	}

	var facts []pgm.FlowFact
	if result != nil {
		facts = result.FlowFacts
	}
	out, err := pgm.EncodeFlowFacts(facts)
	if err != nil {
		return err
	}
	if *outFlag == "" {
		fmt.Println(string(out))
		return nil
	}
	return os.WriteFile(*outFlag, out, 0o644)
}
