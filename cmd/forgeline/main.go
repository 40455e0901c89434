// Command forgeline drives the document IR toolchain from the shell:
// normalize raw extractions, hit-test points, apply patch batches,
// commit them to a document log, and composite overlay output.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/forgeline/forgeline/config"
	"github.com/forgeline/forgeline/export"
	"github.com/forgeline/forgeline/fonts"
	"github.com/forgeline/forgeline/ir"
	"github.com/forgeline/forgeline/ir/spatial"
	"github.com/forgeline/forgeline/observability"
	"github.com/forgeline/forgeline/patch"
	"github.com/forgeline/forgeline/patchlog"
	"github.com/forgeline/forgeline/storage"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	var err error
	switch os.Args[1] {
	case "normalize":
		err = runNormalize(os.Args[2:])
	case "hittest":
		err = runHitTest(os.Args[2:])
	case "apply":
		err = runApply(os.Args[2:])
	case "commit":
		err = runCommit(os.Args[2:])
	case "composite":
		err = runComposite(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "forgeline: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: forgeline <command> [flags]

Commands:
  normalize   Build a page IR from a raw extraction JSON file
  hittest     Rank primitives under a point in a page IR
  apply       Apply a patch batch to a page IR
  commit      Validate and append a patch batch to a document log
  composite   Render overlay pages to a PDF
`)
}

func loadPolicy(path string) (config.Policy, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadFile(path)
}

func newLogger(verbose bool) observability.Logger {
	level := observability.LevelWarn
	if verbose {
		level = observability.LevelDebug
	}
	return observability.NewConsoleLogger(os.Stderr, level)
}

// newMeasurer picks the width oracle: core-font AFM metrics by default,
// or a real face when the caller supplies TTF bytes.
func newMeasurer(fontPath string) (fonts.Measurer, error) {
	if fontPath == "" {
		return fonts.NewCoreMeasurer(), nil
	}
	ttf, err := os.ReadFile(fontPath)
	if err != nil {
		return nil, err
	}
	return fonts.NewFaceMeasurer(ttf)
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func emit(out string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	data = append(data, '\n')
	if out == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(out, data, 0o644)
}

func runNormalize(args []string) error {
	fs := flag.NewFlagSet("normalize", flag.ExitOnError)
	docID := fs.String("doc", "", "Document id stamped into the page IR")
	page := fs.Int("page", 0, "Zero-based page index")
	out := fs.String("out", "", "Output path (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 || *docID == "" {
		return fmt.Errorf("usage: forgeline normalize -doc <id> [-page N] <raw.json>")
	}

	var raw ir.RawExtraction
	if err := readJSONFile(fs.Arg(0), &raw); err != nil {
		return err
	}
	return emit(*out, ir.NormalizePage(*docID, *page, raw))
}

func runHitTest(args []string) error {
	fs := flag.NewFlagSet("hittest", flag.ExitOnError)
	x := fs.Float64("x", 0, "Point x in page points")
	y := fs.Float64("y", 0, "Point y in page points")
	configPath := fs.String("config", "", "Policy YAML file")
	out := fs.String("out", "", "Output path (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: forgeline hittest -x <pt> -y <pt> <page.json>")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}
	var page ir.PageIR
	if err := readJSONFile(fs.Arg(0), &page); err != nil {
		return err
	}
	idx := spatial.Build(&page, policy.CellSizePt)
	return emit(*out, idx.HitTestPoint(*x, *y))
}

type applyOutput struct {
	Page    *ir.PageIR       `json:"page"`
	Results []patch.OpResult `json:"results"`
}

func runApply(args []string) error {
	fs := flag.NewFlagSet("apply", flag.ExitOnError)
	opsPath := fs.String("ops", "", "Patch batch JSON file")
	configPath := fs.String("config", "", "Policy YAML file")
	fontPath := fs.String("font", "", "TTF file for width measurement (default core-font metrics)")
	verbose := fs.Bool("v", false, "Log at debug level")
	out := fs.String("out", "", "Output path (default stdout)")
	fs.Parse(args)
	if fs.NArg() != 1 || *opsPath == "" {
		return fmt.Errorf("usage: forgeline apply -ops <ops.json> <page.json>")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}
	var page ir.PageIR
	if err := readJSONFile(fs.Arg(0), &page); err != nil {
		return err
	}
	var ops patch.Ops
	if err := readJSONFile(*opsPath, &ops); err != nil {
		return err
	}

	measurer, err := newMeasurer(*fontPath)
	if err != nil {
		return err
	}
	applier := patch.NewApplier(measurer, policy, newLogger(*verbose))
	patched, results := applier.Apply(&page, ops)
	return emit(*out, applyOutput{Page: patched, Results: results})
}

func runCommit(args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	storeDir := fs.String("store", "", "Root directory of the document store")
	opsPath := fs.String("ops", "", "Patch batch JSON file")
	guardsPath := fs.String("guards", "", "Optional guard map JSON file (id to bbox/hash)")
	rationale := fs.String("rationale", "", "Free-form reason recorded with the patchset")
	configPath := fs.String("config", "", "Policy YAML file")
	fontPath := fs.String("font", "", "TTF file for width measurement (default core-font metrics)")
	verbose := fs.Bool("v", false, "Log at debug level")
	fs.Parse(args)
	if fs.NArg() != 1 || *storeDir == "" || *opsPath == "" {
		return fmt.Errorf("usage: forgeline commit -store <dir> -ops <ops.json> <page.json>")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}
	var page ir.PageIR
	if err := readJSONFile(fs.Arg(0), &page); err != nil {
		return err
	}
	var ops patch.Ops
	if err := readJSONFile(*opsPath, &ops); err != nil {
		return err
	}
	guards := map[string]patchlog.Guard{}
	if *guardsPath != "" {
		if err := readJSONFile(*guardsPath, &guards); err != nil {
			return err
		}
	}

	store, err := storage.NewDiskStore(*storeDir)
	if err != nil {
		return err
	}
	measurer, err := newMeasurer(*fontPath)
	if err != nil {
		return err
	}
	logger := newLogger(*verbose)
	applier := patch.NewApplier(measurer, policy, logger)
	selected := make([]string, 0, len(ops))
	for _, op := range ops {
		selected = append(selected, op.Target())
	}

	log := patchlog.NewLog(store, page.DocID)
	record, err := log.Commit(&page, applier, patchlog.Patchset{
		Ops:         ops,
		PageIndex:   page.PageIndex,
		Rationale:   *rationale,
		SelectedIDs: selected,
	}, guards, policy.DriftTolerancePt)
	if err != nil {
		return err
	}
	return emit("", record)
}

func runComposite(args []string) error {
	fs := flag.NewFlagSet("composite", flag.ExitOnError)
	outPath := fs.String("out", "out.pdf", "Output PDF path")
	configPath := fs.String("config", "", "Policy YAML file")
	verbose := fs.Bool("v", false, "Log at debug level")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: forgeline composite [-out file.pdf] <pages.json>")
	}

	policy, err := loadPolicy(*configPath)
	if err != nil {
		return err
	}
	var pages []export.Page
	if err := readJSONFile(fs.Arg(0), &pages); err != nil {
		return err
	}

	compositor := export.NewCompositor(policy, newLogger(*verbose))
	pdf, err := compositor.Compose(pages)
	if err != nil {
		return err
	}
	return os.WriteFile(*outPath, pdf, 0o644)
}
