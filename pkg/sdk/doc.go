// Package ragkit provides a Go client for the ragkit retrieval service.
//
// The client talks to a running ragkit server over its REST API:
//
//	client, _ := ragkit.New("http://localhost:8080")
//	indexed, _ := client.Ingest(ctx)
//	answer, _ := client.Ask(ctx, "how do I rotate credentials?", "user-42")
//	id, _ := client.AddMemory(ctx, "user-42", "prefers short answers")
//
// Server-side failures are returned as *APIError values that also unwrap
// to the matching sentinel error, so errors.Is works across the wire:
//
//	if errors.Is(err, ragkit.ErrCollectionNotFound) { ... }
package ragkit
