// Package main is the entry point for the dataagent binary.
//
// dataagent serves an MCP toolset for conversational data analysis: a client
// uploads a tabular file, then sends analysis snippets that run against it
// as df inside a sandbox and come back as printed text and PNG charts.
//
// Commands:
//
//	dataagent serve                      run the MCP server on stdio or HTTP
//	dataagent exec -d sales.csv -c CODE  run one snippet against a local file
//	dataagent version                    print build information
//
// The serve command wires its components with Uber's fx framework, logs with
// zap and reads configuration through viper.
package main
