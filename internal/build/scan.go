package build

import (
	"context"

	"git.home.luguber.info/inful/contentbuild/internal/content"
	"git.home.luguber.info/inful/contentbuild/internal/discovery"
	"git.home.luguber.info/inful/contentbuild/internal/logfields"
	"git.home.luguber.info/inful/contentbuild/internal/observability"
)

// scanResult splits discovered candidates by draft status.
type scanResult struct {
	// Buildable candidates go to the cache delta. Unparsable candidates are
	// included so the executor reports their error.
	Buildable []discovery.Candidate
	// Drafts were excluded from this build.
	Drafts []discovery.Candidate
	// Published holds the parsed non-draft items, in discovery order.
	Published []content.Item
}

// scan parses every candidate's frontmatter. Drafts are excluded from
// Buildable unless includeDrafts is set; they never appear in Published.
func scan(ctx context.Context, candidates []discovery.Candidate, includeDrafts bool) scanResult {
	var res scanResult
	for _, c := range candidates {
		item, err := content.LoadFile(c.Path, c.Topic, c.Slug)
		if err != nil {
			observability.DebugContext(ctx, "Scan could not parse item; executor will report it",
				logfields.Path(c.Path), logfields.Error(err))
			res.Buildable = append(res.Buildable, c)
			continue
		}
		if item.IsDraft {
			res.Drafts = append(res.Drafts, c)
			if includeDrafts {
				res.Buildable = append(res.Buildable, c)
			}
			continue
		}
		res.Buildable = append(res.Buildable, c)
		res.Published = append(res.Published, item)
	}
	return res
}

func candidatePaths(cs []discovery.Candidate) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.Path
	}
	return out
}
