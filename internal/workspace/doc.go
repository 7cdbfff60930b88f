// Package workspace reads and writes project trees.
//
// Walker captures every text file below a root as FileEntry values,
// Applier writes a captured record back onto a (possibly empty) tree, and
// Watcher reports mutations so callers can schedule new captures. All
// file access goes through billy.Filesystem; binaries use osfs and tests
// use memfs.
package workspace
