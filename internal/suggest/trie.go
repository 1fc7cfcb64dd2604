package suggest

import (
	"context"
	"sort"
	"sync"
)

type trieNode struct {
	children map[rune]*trieNode
	// titles ending at this node, each with the ids that carry it
	titles map[string]map[string]struct{}
}

func newTrieNode() *trieNode {
	return &trieNode{children: make(map[rune]*trieNode)}
}

// Trie is an in-memory Suggester keyed by folded title.
type Trie struct {
	mu   sync.RWMutex
	root *trieNode
	byID map[string]string
}

func NewTrie() *Trie {
	return &Trie{
		root: newTrieNode(),
		byID: make(map[string]string),
	}
}

// Len returns the number of indexed documents.
func (t *Trie) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

func (t *Trie) Add(ctx context.Context, id, title string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.add(id, title)
	return nil
}

func (t *Trie) Remove(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remove(id)
	return nil
}

func (t *Trie) Rebuild(ctx context.Context, entries []Entry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.root = newTrieNode()
	t.byID = make(map[string]string, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.add(e.ID, e.Title)
	}
	return nil
}

func (t *Trie) Suggest(ctx context.Context, prefix string, size int) ([]string, error) {
	folded := Fold(prefix)
	if folded == "" || size <= 0 {
		return []string{}, nil
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	node := t.root
	for _, r := range folded {
		node = node.children[r]
		if node == nil {
			return []string{}, nil
		}
	}

	out := make([]string, 0, size)
	seen := make(map[string]struct{})
	collect(node, size, seen, &out)
	return out, nil
}

// collect walks node depth-first in rune order, so shorter folded keys come
// before their extensions.
func collect(node *trieNode, size int, seen map[string]struct{}, out *[]string) {
	if len(*out) >= size {
		return
	}

	if len(node.titles) > 0 {
		titles := make([]string, 0, len(node.titles))
		for title := range node.titles {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		for _, title := range titles {
			if _, dup := seen[title]; dup {
				continue
			}
			seen[title] = struct{}{}
			*out = append(*out, title)
			if len(*out) >= size {
				return
			}
		}
	}

	keys := make([]rune, 0, len(node.children))
	for r := range node.children {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, r := range keys {
		collect(node.children[r], size, seen, out)
		if len(*out) >= size {
			return
		}
	}
}

func (t *Trie) add(id, title string) {
	if old, ok := t.byID[id]; ok {
		if old == title {
			return
		}
		t.remove(id)
	}
	folded := Fold(title)
	if folded == "" {
		return
	}

	node := t.root
	for _, r := range folded {
		child := node.children[r]
		if child == nil {
			child = newTrieNode()
			node.children[r] = child
		}
		node = child
	}
	if node.titles == nil {
		node.titles = make(map[string]map[string]struct{})
	}
	ids := node.titles[title]
	if ids == nil {
		ids = make(map[string]struct{})
		node.titles[title] = ids
	}
	ids[id] = struct{}{}
	t.byID[id] = title
}

func (t *Trie) remove(id string) {
	title, ok := t.byID[id]
	if !ok {
		return
	}
	delete(t.byID, id)

	folded := []rune(Fold(title))
	path := make([]*trieNode, 0, len(folded)+1)
	node := t.root
	path = append(path, node)
	for _, r := range folded {
		node = node.children[r]
		if node == nil {
			return
		}
		path = append(path, node)
	}

	if ids := node.titles[title]; ids != nil {
		delete(ids, id)
		if len(ids) == 0 {
			delete(node.titles, title)
		}
	}

	// prune empty branches
	for i := len(path) - 1; i > 0; i-- {
		n := path[i]
		if len(n.titles) > 0 || len(n.children) > 0 {
			break
		}
		delete(path[i-1].children, folded[i-1])
	}
}
