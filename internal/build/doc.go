// Package build runs the incremental content pipeline.
//
// Service.Run is the single entry point used by the CLI and watch mode:
// discover candidates, scan their frontmatter, drop drafts, compute the
// cache delta, hand dirty items to the Executor and finally regenerate the
// sitewide aggregates (all.json, sitemap, RSS) from the full published set.
//
// The Executor processes dirty items in batches on a bounded worker pool.
// A failing item is recorded in the Report and never aborts its siblings.
package build
