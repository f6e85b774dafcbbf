package extract

import "testing"

func edgeKey(e CandidateEdge) [3]string {
	return [3]string{e.Source, e.Target, string(e.Type)}
}

func TestExtractFeatured(t *testing.T) {
	e := New(DefaultRules())

	edges := e.Extract("Artist A", "Track (feat. Artist B)")
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d: %+v", len(edges), edges)
	}
	got := edges[0]
	if got.Source != "Artist A" || got.Target != "Artist B" {
		t.Errorf("expected A->B, got %s->%s", got.Source, got.Target)
	}
	if got.Type != TypeFeatured || got.Strength != 6 {
		t.Errorf("expected featured/6, got %s/%v", got.Type, got.Strength)
	}
}

func TestExtractFeaturedVariants(t *testing.T) {
	e := New(DefaultRules())
	titles := []string{
		"Track (feat. Artist B)",
		"Track [ft. Artist B]",
		"Track featuring Artist B",
		"Track FEAT. Artist B",
	}
	for _, title := range titles {
		edges := e.Extract("Artist A", title)
		if len(edges) != 1 || edges[0].Target != "Artist B" {
			t.Errorf("title %q: expected one edge to Artist B, got %+v", title, edges)
		}
	}
}

func TestExtractFeaturedMarkerNeedsWordBoundary(t *testing.T) {
	e := New(DefaultRules())
	// A marker inside an ordinary word is not a credit.
	titles := []string{
		"Aircraft. Part Two",
		"Shift. Anthem",
		"Defeat. Retreat",
	}
	for _, title := range titles {
		if edges := e.Extract("Artist A", title); len(edges) != 0 {
			t.Errorf("title %q: expected no edges, got %+v", title, edges)
		}
	}
}

func TestExtractMultipleFeatured(t *testing.T) {
	e := New(DefaultRules())
	edges := e.Extract("Artist A", "Track (feat. Artist B, feat. Artist C)")
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %+v", len(edges), edges)
	}
	if edges[0].Target != "Artist B" || edges[1].Target != "Artist C" {
		t.Errorf("expected targets B and C, got %s and %s", edges[0].Target, edges[1].Target)
	}
}

func TestExtractCollaborationPair(t *testing.T) {
	e := New(DefaultRules())

	edges := e.Extract("Artist A & Artist B", "Track")
	if len(edges) != 2 {
		t.Fatalf("expected 2 edges, got %d: %+v", len(edges), edges)
	}
	want := map[[3]string]bool{
		{"Artist A", "Artist B", "collaboration"}: true,
		{"Artist B", "Artist A", "collaboration"}: true,
	}
	for _, edge := range edges {
		if !want[edgeKey(edge)] {
			t.Errorf("unexpected edge %+v", edge)
		}
		if edge.Strength != 7 {
			t.Errorf("expected strength 7, got %v", edge.Strength)
		}
	}
}

func TestExtractCollaborationSeparators(t *testing.T) {
	e := New(DefaultRules())
	fields := []string{
		"Artist A vs. Artist B",
		"Artist A x Artist B",
		"Artist A with Artist B",
		"Artist A and Artist B",
		"Artist A AND Artist B",
	}
	for _, field := range fields {
		edges := e.Extract(field, "Track")
		if len(edges) != 2 {
			t.Errorf("field %q: expected 2 edges, got %d", field, len(edges))
		}
	}
}

func TestExtractSeparatorNeedsWordBoundary(t *testing.T) {
	e := New(DefaultRules())
	// No whitespace around the token, no split.
	for _, field := range []string{"Maxwell", "Sandra", "A&B Project"} {
		if edges := e.Extract(field, "Track"); len(edges) != 0 {
			t.Errorf("field %q: expected no edges, got %+v", field, edges)
		}
	}
}

func TestExtractRemix(t *testing.T) {
	e := New(DefaultRules())

	edges := e.Extract("Artist A", "Track (DJ Remixer Remix)")
	if len(edges) != 1 {
		t.Fatalf("expected 1 edge, got %d: %+v", len(edges), edges)
	}
	got := edges[0]
	if got.Source != "Artist A" || got.Target != "DJ Remixer" {
		t.Errorf("expected A->DJ Remixer, got %s->%s", got.Source, got.Target)
	}
	if got.Type != TypeRemix || got.Strength != 5 {
		t.Errorf("expected remix/5, got %s/%v", got.Type, got.Strength)
	}

	edges = e.Extract("Artist A", "Track - DJ Remixer Remix")
	if len(edges) != 1 || edges[0].Target != "DJ Remixer" {
		t.Errorf("hyphen suffix: expected one edge to DJ Remixer, got %+v", edges)
	}
}

func TestExtractSelfLoopGuard(t *testing.T) {
	e := New(DefaultRules())

	if edges := e.Extract("Artist A", "Track (feat. Artist A)"); len(edges) != 0 {
		t.Errorf("featured self-loop: expected no edges, got %+v", edges)
	}
	if edges := e.Extract("Artist A", "Track (Artist A Remix)"); len(edges) != 0 {
		t.Errorf("remix self-loop: expected no edges, got %+v", edges)
	}
}

func TestExtractFamiliesAreIndependent(t *testing.T) {
	e := New(DefaultRules())

	edges := e.Extract("Artist A & Artist B", "Track (feat. Artist C) (DJ D Remix)")
	types := map[RelationType]int{}
	for _, edge := range edges {
		types[edge.Type]++
	}
	if types[TypeCollaboration] != 2 {
		t.Errorf("expected 2 collaboration edges, got %d", types[TypeCollaboration])
	}
	if types[TypeFeatured] != 1 {
		t.Errorf("expected 1 featured edge, got %d", types[TypeFeatured])
	}
	if types[TypeRemix] != 1 {
		t.Errorf("expected 1 remix edge, got %d", types[TypeRemix])
	}
}

func TestExtractEmptyInput(t *testing.T) {
	e := New(DefaultRules())
	if edges := e.Extract("", "Track (feat. Artist B)"); edges != nil {
		t.Errorf("expected nil for empty artist field, got %+v", edges)
	}
	if edges := e.Extract("Artist A", ""); len(edges) != 0 {
		t.Errorf("expected no edges for empty title, got %+v", edges)
	}
}

func TestExtractConfigurableSeparators(t *testing.T) {
	rules := DefaultRules()
	rules.CollaborationSeparators = []string{`&`}
	e := New(rules)

	// "and" is no longer a separator, so a duo name containing it stays whole.
	if edges := e.Extract("Florence and the Machine", "Track"); len(edges) != 0 {
		t.Errorf("expected no split on 'and' with narrowed rules, got %+v", edges)
	}
	if edges := e.Extract("Artist A & Artist B", "Track"); len(edges) != 2 {
		t.Errorf("expected '&' split to still work, got %+v", edges)
	}
}
