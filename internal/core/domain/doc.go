// Package domain defines the core domain models for wsnap.
//
// Domain models are plain values without any IO dependencies:
//
//   - Record: a full point-in-time capture of a workspace's text files
//   - FileEntry: one captured file (root-relative posix path + UTF-8 content)
//   - Result: the outcome of a best-effort persistence operation
//   - Errors: coded domain errors shared by the storage, service and HTTP layers
package domain
