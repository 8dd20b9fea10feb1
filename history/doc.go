// Package history persists the conversation held about each dataset file.
//
// Sessions are keyed by file name and stored in SQLite through GORM with a
// pure Go driver. Each session gets a random UUID on first save; later
// saves replace its messages and bump UpdatedAt. A Retention job can prune
// sessions that have not been touched for a configured age.
//
// Usage:
//
//	store, err := history.Open("chat_history.db", logger)
//	err = store.Save(ctx, "sales.csv", []history.Message{{Role: "user", Content: "Top region?"}})
//	session, err := store.Load(ctx, "sales.csv")
package history
