// Package autoheal patches common defects in generated frontend sources
// when the preview reports a module export error.
//
// Rules run in order and the first one that changes the file wins:
//
//   - app-default-export: src/App.(tsx|jsx) has no default export
//   - lucide-icon: an unknown lucide-react icon is imported
//   - named-export: a module lacks the named export an importer expects
package autoheal
