// Package mcpserver exposes the analysis engine over the Model Context
// Protocol.
//
// The MCP client plays the language model: it uploads a dataset with
// load_dataset, runs snippets with execute_analysis_code and keeps the
// conversation with save_conversation, load_conversation, list_sessions
// and clear_history. The server speaks stdio or streamable HTTP.
//
// Usage:
//
//	srv, err := mcpserver.New(cfg, logger, executor, dataset.NewRegistry(), store, metrics)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = srv.ServeStdio() // or srv.ServeHTTP()
package mcpserver
