package provider

import (
	"strings"

	"github.com/beevik/etree"
)

// Node is one element of a parsed provider response. A nil *Node is valid
// and behaves as a missing element, so lookups can be chained.
type Node struct {
	el *etree.Element
}

// Document is a parsed provider response.
type Document struct {
	root *Node
}

// ParseDocument parses an XML response body.
func ParseDocument(body []byte) (*Document, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(body); err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, ErrMalformedResponse
	}
	return &Document{root: &Node{el: root}}, nil
}

// Root returns the document element.
func (d *Document) Root() *Node {
	if d == nil {
		return nil
	}
	return d.root
}

// Get resolves a dotted path relative to the root element, e.g.
// "AuthorizeResult.AuthorizationDetails.AmazonAuthorizationId".
func (d *Document) Get(path string) *Node {
	return d.Root().Get(path)
}

// Get resolves a dotted path of child tags below n.
func (n *Node) Get(path string) *Node {
	if n == nil {
		return nil
	}
	current := n.el
	for _, tag := range strings.Split(path, ".") {
		if tag == "" {
			continue
		}
		current = current.SelectElement(tag)
		if current == nil {
			return nil
		}
	}
	return &Node{el: current}
}

// All returns every direct child of n with the given tag.
func (n *Node) All(tag string) []*Node {
	if n == nil {
		return nil
	}
	children := n.el.SelectElements(tag)
	nodes := make([]*Node, 0, len(children))
	for _, child := range children {
		nodes = append(nodes, &Node{el: child})
	}
	return nodes
}

func (n *Node) Exists() bool {
	return n != nil
}

// Tag returns the local element name.
func (n *Node) Tag() string {
	if n == nil {
		return ""
	}
	return n.el.Tag
}

// Text returns the trimmed character data of n, or "" for a missing node.
func (n *Node) Text() string {
	if n == nil {
		return ""
	}
	return strings.TrimSpace(n.el.Text())
}
