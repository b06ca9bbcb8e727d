// Package naming computes where a captured resource is stored on disk.
//
// A resource keeps its URL path under <root>/<host>/, with the last path
// segment turned into a filename that always carries an extension.
// Markup gets the resolved extension appended; query strings are folded
// into the filename so that /list?page=1 and /list?page=2 never collide.
//
// The Replace flag on the result is true exactly when the on-disk
// filename differs from the basename a literal reference to the URL
// would contain. Those resources take part in reference rewriting.
package naming
