package server

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"html/template"
	"time"

	"github.com/onnwee/chatkeeper/logging"
)

const xmlHeader = `<?xml version="1.0" encoding="utf-8"?>` + "\n"

var logTemplate = template.Must(template.New("log").Parse(`<svg version="1.1" baseProfile="full" xmlns="http://www.w3.org/2000/svg" width="300" height="300">
  <style>
    a { color: yellow; }
    #main {
      position: absolute; bottom: 2px; left: 0px; right: 2px; top: 2px;
      font: 12px monospace; background: #222; color: white;
      border: 2px solid white; border-radius: 5px;
      border-top-left-radius: 6px; border-top-right-radius: 6px;
    }
    #header {
      position: absolute; z-index: 100; top: 0; left: 1px; right: 0;
      background: #246; font-weight: bold; padding: 1px 2px;
      border-top-left-radius: 5px; border-top-right-radius: 5px;
      border-bottom: 1px solid white;
    }
    #contents { position: absolute; bottom: 3px; right: 2px; left: 0; }
    #contents > div { margin: 0; margin-top: 2px; padding-left: 0.5em; text-indent: -0.5em; }
    #contents > div + div { border-top: 1px solid #444; }
    #contents > div code { white-space: pre-wrap; }
    #contents > div .time {
      display: inline-block; vertical-align: 1px; margin-left: 10px;
      opacity: 0.75; font-size: 8px;
    }
  </style>
  <foreignObject x="0" y="0" width="100%" height="100%">
    <div xmlns="http://www.w3.org/1999/xhtml" id="main">
      <div id="header">Log for <a href="{{.EditURL}}">{{.Project}}</a></div>
      <div id="contents">{{range .Items}}
        <div><span class="time">{{.Time}}</span> <code>{{.Text}}</code></div>{{end}}
      </div>
    </div>
  </foreignObject>
</svg>
`))

var badgeTemplate = template.Must(template.New("badge").Parse(`<svg version="1.1" baseProfile="full" xmlns="http://www.w3.org/2000/svg" width="300" height="18">
  <text x="296" y="12" style="font-style: italic; text-anchor: end; fill: #366fb3; font-size: 10px; font-family: Verdana, Arial, sans-serif;">Edit Source of {{.}} on Glitch</text>
</svg>
`))

// RenderLogSnapshot renders items as an SVG image embedding an XHTML list, newest line last.
// Every interpolated value is escaped.
func RenderLogSnapshot(project string, items []logging.Item) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	err := logTemplate.Execute(&buf, struct {
		Project string
		EditURL string
		Items   []logging.Item
	}{project, editURL(project), items})
	if err != nil {
		return nil, fmt.Errorf("render log: %w", err)
	}
	return buf.Bytes(), nil
}

// RenderBadge renders the project badge image.
func RenderBadge(project string) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(xmlHeader)
	if err := badgeTemplate.Execute(&buf, project); err != nil {
		return nil, fmt.Errorf("render badge: %w", err)
	}
	return buf.Bytes(), nil
}

func editURL(project string) string {
	return "https://glitch.com/edit/#!/project/" + project
}

type atomFeed struct {
	XMLName xml.Name  `xml:"http://www.w3.org/2005/Atom feed"`
	Title   atomText  `xml:"title"`
	ID      string    `xml:"id"`
	Updated string    `xml:"updated"`
	Link    atomLink  `xml:"link"`
	Entry   atomEntry `xml:"entry"`
}

type atomText struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type atomLink struct {
	Rel  string `xml:"rel,attr"`
	Href string `xml:"href,attr"`
	Type string `xml:"type,attr,omitempty"`
}

type atomAuthor struct {
	Name string `xml:"name"`
	URI  string `xml:"uri"`
}

type atomEntry struct {
	ID        string     `xml:"id"`
	Published string     `xml:"published"`
	Updated   string     `xml:"updated"`
	Author    atomAuthor `xml:"author"`
	Title     string     `xml:"title"`
	Link      atomLink   `xml:"link"`
}

// RenderFeed renders an Atom feed with a single entry dated at the start of now's UTC day.
func RenderFeed(project string, now time.Time) ([]byte, error) {
	day := now.UTC().Truncate(24 * time.Hour).Format("2006-01-02T15:04:05.000Z")
	pageURL := "https://" + project + ".glitch.me/"
	feedURL := pageURL + "feed"

	feed := atomFeed{
		Title:   atomText{Type: "text", Value: project},
		ID:      feedURL,
		Updated: day,
		Link:    atomLink{Rel: "self", Href: feedURL, Type: "application/atom+xml"},
		Entry: atomEntry{
			ID:        feedURL + "#" + day,
			Published: day,
			Updated:   day,
			Author:    atomAuthor{Name: project, URI: pageURL},
			Title:     project,
			Link:      atomLink{Rel: "alternate", Href: pageURL},
		},
	}
	out, err := xml.MarshalIndent(feed, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render feed: %w", err)
	}
	return append([]byte(xmlHeader), out...), nil
}
