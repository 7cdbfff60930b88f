// Package output renders CLI results as a table, JSON or YAML.
//
// Tables are built by reflection from struct fields. The `table` struct
// tag controls columns:
//
//	table:"-"     never shown
//	table:"wide"  shown only with --wide
//	table:"time"  int64 Unix milliseconds rendered as a local timestamp
//
// Column headers come from the json tag, upper-cased.
package output
