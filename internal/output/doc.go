// Package output provides YAML/JSON output types for stableid commands.
//
// # Overview
//
// Every command that prints structured data builds one of the output types
// in this package and hands it to a Formatter. Keys are spelled out in full
// so the same document is readable by operators and parseable by scripts.
//
// # Output Types
//
//   - LookupOutput: a single forward or reverse resolution (stableid lookup)
//   - ClassOutput: every binding of one class (stableid lookup --all)
//   - RegistryOutput: per-class counts of a loaded registry (stableid registry show)
//   - ReconcileOutput: summary of a reconciliation run (stableid reconcile)
//   - PropagateOutput: summary of a propagation run (stableid propagate)
//
// # Format Types
//
// Two output formats are supported:
//
//   - YAML (default): human-readable, block style
//   - JSON: machine-readable, same structure as YAML
//
// # Example Usage
//
//	f, err := output.GetFormatter(output.FormatJSON)
//	if err != nil {
//	    return err
//	}
//	return f.FormatToWriter(os.Stdout, &output.LookupOutput{
//	    Class:      "PropertyValue",
//	    SemanticID: "ebv_genetic_diversity",
//	    UUID:       "mbo_1f0c...",
//	    Found:      true,
//	})
package output
