// Package content turns raw markdown documents into Items.
//
// A document must open with a `---` delimited YAML frontmatter block. Parse
// is pure: it never touches the filesystem, so the executor and the
// aggregate scan can share it freely across goroutines.
package content
