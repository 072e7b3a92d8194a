// Package index diffs a registry index against a local download directory.
//
// A registry index is a directory tree of append-only record files; each line
// of each file is a JSON object describing one published version of one
// package. The Scanner walks that tree, parses every line and reports which
// versions have no archive in the download directory yet.
//
// # Basic Usage
//
//	scanner := index.NewScanner(afero.NewOsFs(), settings, onProgress)
//	res, err := scanner.Scan(ctx)
//	if err != nil {
//	    // the tree could not be read; nothing was classified
//	}
//	fmt.Println(len(res.Missing), "crates to download")
//
// # Traversal
//
// Walk is a generic tree walk driven by a Filter predicate. The scanner uses
// All(NotHidden, NotNamed("config.json")) so dotfiles, .git and the index's
// own config file are skipped at every depth. Further exclusions compose by
// adding filters; the walk itself does not change.
//
// # Errors
//
// Unparseable lines are recoverable: they are reported through the progress
// callback, collected in Result.ParseErrors and scanning continues. Filesystem
// errors are not: a directory that cannot be listed or an index file that
// cannot be opened or read aborts the whole scan.
package index
