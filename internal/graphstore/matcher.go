package graphstore

import "sort"

// Match is a single non-overlapping hit produced by the feature matcher.
type Match struct {
	NodeID     int64
	Start, End int // byte offsets into the scanned text
	Keyword    string
}

// trieNode is one state of the keyword trie backing Matcher. There is no
// Aho-Corasick library anywhere in the retrieved corpus (the original Rust
// source uses aho_corasick, an ecosystem this Go corpus has no equivalent
// for); a trie walked greedily from every byte offset gives the same
// leftmost-longest, non-overlapping semantics the spec calls for, at the
// cost of the failure-link speedup a true Aho-Corasick automaton would add
// — acceptable here since keyword sets are the engine's own small Feature
// vocabulary, not an arbitrary external corpus.
type trieNode struct {
	children map[byte]*trieNode
	nodeID   int64
	keyword  string
	terminal bool
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[byte]*trieNode)}
}

// Matcher is the compiled multi-pattern matcher built at Compile time over
// every Feature node's content.
type Matcher struct {
	root *trieNode
}

// NewMatcher builds a matcher from (keyword -> node id) pairs. Keywords are
// inserted longest-first, matching the spec's "sort by byte-length
// descending" — harmless for a trie (insertion order doesn't change lookup
// results) but kept to mirror the documented construction step.
func NewMatcher(entries map[string]int64) *Matcher {
	keywords := make([]string, 0, len(entries))
	for k := range entries {
		keywords = append(keywords, k)
	}
	sort.Slice(keywords, func(i, j int) bool { return len(keywords[i]) > len(keywords[j]) })

	root := newTrieNode()
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		cur := root
		for i := 0; i < len(kw); i++ {
			b := kw[i]
			next, ok := cur.children[b]
			if !ok {
				next = newTrieNode()
				cur.children[b] = next
			}
			cur = next
		}
		cur.terminal = true
		cur.nodeID = entries[kw]
		cur.keyword = kw
	}
	return &Matcher{root: root}
}

// FindIter returns every non-overlapping, leftmost-longest match of the
// compiled keyword set in text.
func (m *Matcher) FindIter(text string) []Match {
	var out []Match
	i := 0
	for i < len(text) {
		if match, ok := m.longestAt(text, i); ok {
			out = append(out, match)
			i = match.End
			continue
		}
		i++
	}
	return out
}

// longestAt walks the trie from position start, remembering the deepest
// terminal node reached — the longest keyword beginning exactly at start.
func (m *Matcher) longestAt(text string, start int) (Match, bool) {
	cur := m.root
	best := -1
	var bestNode *trieNode
	for i := start; i < len(text); i++ {
		next, ok := cur.children[text[i]]
		if !ok {
			break
		}
		cur = next
		if cur.terminal {
			best = i + 1
			bestNode = cur
		}
	}
	if best < 0 {
		return Match{}, false
	}
	return Match{NodeID: bestNode.nodeID, Start: start, End: best, Keyword: bestNode.keyword}, true
}
