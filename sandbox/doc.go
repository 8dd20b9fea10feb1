// Package sandbox runs LLM-written analysis snippets against a dataset.
//
// Execution happens in three steps. The Guard refuses code with denied
// tokens, names or attributes. The EnvironmentBuilder binds a fresh
// namespace holding the dataset as df, the pd, plt and sns helpers and a
// blank fig and ax canvas. The executor evaluates the snippet and reports
// one of three states: Rejected, Succeeded or Faulted. An error is returned
// only when the backend itself is broken.
//
// Two backends exist. InterpreterExecutor evaluates snippets in-process
// with an embedded interpreter and renders the canvas to PNG.
// ContainerExecutor hands them to a real Python stack in a throwaway,
// network-less docker or podman container.
//
// Usage:
//
//	executor, err := sandbox.NewExecutor(logger, cfg)
//	result, err := executor.Execute(ctx, sandbox.ExecuteRequest{
//	    Code:    "print(df['units'].sum())",
//	    Dataset: table,
//	})
package sandbox
