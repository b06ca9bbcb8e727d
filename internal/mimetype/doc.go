// Package mimetype resolves content types to file extensions.
//
// The lookup table is embedded YAML so it can be extended without touching
// code. Resolution never fails: anything the table does not know resolves
// to FallbackExtension.
package mimetype
