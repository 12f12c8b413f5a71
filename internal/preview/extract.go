package preview

import (
	"io"
	"net/url"
	"strings"

	"github.com/npezzotti/go-blogchat/internal/types"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

type document struct {
	props    map[string]string
	names    map[string]string
	title    string
	firstImg string
	icon     string
}

func (d *document) prop(key string) string { return d.props[key] }
func (d *document) name(key string) string { return d.names[key] }

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func (d *document) visit(n *html.Node) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Meta:
			content := attr(n, "content")
			if content == "" {
				break
			}
			if p := strings.ToLower(attr(n, "property")); p != "" {
				if _, ok := d.props[p]; !ok {
					d.props[p] = content
				}
			}
			if nm := strings.ToLower(attr(n, "name")); nm != "" {
				if _, ok := d.names[nm]; !ok {
					d.names[nm] = content
				}
			}
		case atom.Title:
			if d.title == "" && n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
				d.title = strings.TrimSpace(n.FirstChild.Data)
			}
		case atom.Img:
			if d.firstImg == "" {
				d.firstImg = attr(n, "src")
			}
		case atom.Link:
			if d.icon == "" && strings.Contains(strings.ToLower(attr(n, "rel")), "icon") {
				d.icon = attr(n, "href")
			}
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.visit(c)
	}
}

func resolve(base *url.URL, ref string) string {
	if ref == "" {
		return ""
	}
	if base == nil {
		return ref
	}
	u, err := base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// extract reads OpenGraph, Twitter card and plain HTML metadata from r.
// Relative image and icon references are resolved against base.
func extract(r io.Reader, base *url.URL) (*types.Preview, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	d := &document{props: make(map[string]string), names: make(map[string]string)}
	d.visit(root)

	p := &types.Preview{
		Title:         firstNonEmpty(d.prop("og:title"), d.name("twitter:title"), d.title),
		Description:   firstNonEmpty(d.prop("og:description"), d.name("twitter:description"), d.name("description")),
		SiteName:      firstNonEmpty(d.prop("og:site_name"), d.name("application-name")),
		Author:        firstNonEmpty(d.name("author"), d.name("twitter:creator")),
		PublishedTime: firstNonEmpty(d.prop("og:published_time"), d.prop("og:pubdate"), d.name("article:published_time")),
	}

	p.Image = resolve(base, firstNonEmpty(d.prop("og:image"), d.name("twitter:image"), d.firstImg))

	if d.icon != "" {
		p.Favicon = resolve(base, d.icon)
	} else if base != nil {
		p.Favicon = base.Scheme + "://" + base.Host + "/favicon.ico"
	}

	return p, nil
}
