// Package service provides the workspace snapshot service.
//
// WorkspaceService orchestrates the tree walker, the snapshot store, the
// restore applier, the save debouncer and the optional remote mirror,
// launcher and auto-healer. Storage dependencies are expressed as
// interfaces so the service can be tested without a real engine.
//
// Saves and restores for one session are serialised; different sessions
// proceed in parallel.
package service
