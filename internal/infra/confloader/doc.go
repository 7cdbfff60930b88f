// Package confloader loads configuration with koanf.
//
// Sources, lowest priority first:
//
//  1. Values already present in the target struct (defaults)
//  2. A YAML configuration file
//  3. Environment variables with the WSNAP_ prefix
//  4. Overrides supplied by the caller (command-line flags)
//
// Environment variable names are matched against the koanf tags of the
// target, so WSNAP_STORAGE_DATA_DIR sets storage.data_dir. Slice fields
// accept comma-separated values.
package confloader
