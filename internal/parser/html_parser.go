package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/antchfx/htmlquery"
	"github.com/antchfx/xpath"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

// Document is a parsed HTML page that can be queried with XPath.
// It is read-only once parsed and safe for concurrent queries.
type Document struct {
	root *html.Node
}

// ParseDocument parses an HTML body. contentType is the response
// Content-Type header, used to pick the character encoding; it may be empty.
func ParseDocument(body []byte, contentType string) (*Document, error) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		// unknown encoding, fall back to the raw bytes
		reader = bytes.NewReader(body)
	}
	return ParseDocumentReader(reader)
}

// ParseDocumentReader parses UTF-8 HTML from r
func ParseDocumentReader(r io.Reader) (*Document, error) {
	root, err := htmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("could not parse html: %w", err)
	}
	return &Document{root: root}, nil
}

// ParseDocumentString is a convenience wrapper used by tests and examples
func ParseDocumentString(s string) (*Document, error) {
	return ParseDocumentReader(strings.NewReader(s))
}

// Select returns every node matching expr, in document order
func (d *Document) Select(expr string) ([]*html.Node, error) {
	if d == nil || d.root == nil {
		return nil, nil
	}

	nodes, err := htmlquery.QueryAll(d.root, expr)
	if err != nil {
		return nil, fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	return nodes, nil
}

// Title returns the trimmed page title, if any
func (d *Document) Title() string {
	if d == nil || d.root == nil {
		return ""
	}

	node := htmlquery.FindOne(d.root, "//title")
	if node == nil {
		return ""
	}
	return NodeText(node)
}

// NodeText returns the trimmed text content of a selected node.
// Comments yield their body, attributes their value and elements the
// concatenated text of their descendants.
func NodeText(n *html.Node) string {
	if n == nil {
		return ""
	}

	switch n.Type {
	case html.CommentNode, html.TextNode:
		return strings.TrimSpace(n.Data)
	default:
		return strings.TrimSpace(htmlquery.InnerText(n))
	}
}

// emptyDocument is evaluated against to learn an expression's result type
var emptyDocument = sync.OnceValue(func() *html.Node {
	root, err := html.Parse(strings.NewReader(""))
	if err != nil {
		panic(err)
	}
	return root
})

// ValidateXPath reports whether expr is a well-formed XPath expression that
// selects nodes. Expressions yielding a number, string or boolean such as
// count(//meta) are rejected.
func ValidateXPath(expr string) error {
	compiled, err := xpath.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid xpath %q: %w", expr, err)
	}
	result := compiled.Evaluate(htmlquery.CreateXPathNavigator(emptyDocument()))
	if _, ok := result.(*xpath.NodeIterator); !ok {
		return fmt.Errorf("xpath %q does not select nodes (result is %T)", expr, result)
	}
	return nil
}
