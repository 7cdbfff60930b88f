// Package command defines the wsnap CLI commands.
//
// Commands open the snapshot store named by the configuration directly;
// no daemon is needed. Badger allows one process per data directory, so
// commands that touch the store fail while wsnapd holds it. Use the daemon
// HTTP API in that case.
package command
