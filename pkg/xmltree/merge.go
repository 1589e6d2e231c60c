package xmltree

// MergeOptions controls how Merge matches and combines nodes.
type MergeOptions struct {
	// Overwrite copies attributes and text from matched right nodes onto
	// their left counterparts. Without it the merge is additive only.
	Overwrite bool
	// MatchAttrs requires equal attribute sets for two same-tag nodes to
	// match. Without it the first same-tag sibling matches.
	MatchAttrs bool
	// MatchText additionally requires equal text. Steps use it so two
	// references with the same role and type stay distinct.
	MatchText bool
}

// DefaultMerge overwrites matched nodes and matches on tag and attributes.
var DefaultMerge = MergeOptions{Overwrite: true, MatchAttrs: true}

// Merge layers the children of right onto left and returns left.
//
// Each child of right is matched against the children of left (first match
// wins). A left child is matched at most once per parent, so repeated
// same-tag siblings in right stay distinct. A matched node takes right's
// attributes and text when Overwrite is set, then the merge recurses into
// it. An unmatched child is appended as a deep copy with its full subtree.
// Merging the same right tree twice leaves left unchanged the second time.
func Merge(left, right *Node, opts MergeOptions) *Node {
	if left == nil || right == nil {
		return left
	}
	mergeChildren(left, right.Children, opts)
	return left
}

func mergeChildren(parent *Node, children []*Node, opts MergeOptions) {
	used := make(map[*Node]bool, len(parent.Children))
	var added []*Node
	for _, rc := range children {
		match := findMatch(parent, rc, opts, used)
		if match == nil {
			added = append(added, rc.Clone())
			continue
		}
		used[match] = true
		if opts.Overwrite {
			for _, a := range rc.Attrs {
				match.Set(a.Name, a.Value)
			}
			match.Text = copyText(rc.Text)
		}
		mergeChildren(match, rc.Children, opts)
	}
	parent.Append(added...)
}

func findMatch(parent, node *Node, opts MergeOptions, used map[*Node]bool) *Node {
	for _, c := range parent.Children {
		if used[c] || c.Tag != node.Tag {
			continue
		}
		if opts.MatchAttrs && !c.SameAttrs(node) {
			continue
		}
		if opts.MatchText && c.TextString() != node.TextString() {
			continue
		}
		return c
	}
	return nil
}

func copyText(t any) any {
	if items, ok := t.([]string); ok {
		return append([]string(nil), items...)
	}
	return t
}
