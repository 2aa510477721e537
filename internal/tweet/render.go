package tweet

import (
	"bytes"
	"html"
	"strings"
	"text/template"
)

// Thumbnail is the input to a thumbnail render: the tweet text, the
// author's display name and the local path of the cached avatar (empty
// when the author has none).
type Thumbnail struct {
	Text       string
	AuthorName string
	AvatarPath string
}

// Renderer turns a Thumbnail into image bytes. The host CMS may inject
// its own templating engine here; the output is treated as opaque.
type Renderer interface {
	RenderThumbnail(t Thumbnail) ([]byte, error)
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(t Thumbnail) ([]byte, error)

func (f RendererFunc) RenderThumbnail(t Thumbnail) ([]byte, error) { return f(t) }

const svgTemplate = `<svg xmlns="http://www.w3.org/2000/svg" xmlns:xlink="http://www.w3.org/1999/xlink" width="512" height="512" viewBox="0 0 512 512">
  <rect width="512" height="512" fill="#f7f9fa"/>
{{- if .AvatarPath}}
  <image x="24" y="24" width="64" height="64" xlink:href="{{.AvatarPath}}"/>
{{- end}}
  <text x="104" y="64" font-family="sans-serif" font-size="24" font-weight="bold" fill="#14171a">{{.AuthorName}}</text>
{{- range $i, $line := .Lines}}
  <text x="24" y="{{lineY $i}}" font-family="sans-serif" font-size="20" fill="#14171a">{{$line}}</text>
{{- end}}
</svg>
`

// SVGRenderer is the default thumbnail renderer: a plain SVG card with
// the avatar, author name and wrapped tweet text.
type SVGRenderer struct {
	tmpl *template.Template
}

// NewSVGRenderer builds the default renderer.
func NewSVGRenderer() *SVGRenderer {
	tmpl := template.Must(template.New("thumbnail").Funcs(template.FuncMap{
		"lineY": func(i int) int { return 144 + i*32 },
	}).Parse(svgTemplate))
	return &SVGRenderer{tmpl: tmpl}
}

func (r *SVGRenderer) RenderThumbnail(t Thumbnail) ([]byte, error) {
	data := struct {
		AuthorName string
		AvatarPath string
		Lines      []string
	}{
		AuthorName: html.EscapeString(t.AuthorName),
		AvatarPath: html.EscapeString(t.AvatarPath),
	}
	for _, line := range wrapText(t.Text, 44, 8) {
		data.Lines = append(data.Lines, html.EscapeString(line))
	}

	var buf bytes.Buffer
	if err := r.tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// wrapText breaks s into at most maxLines lines of at most width runes,
// splitting on spaces where possible.
func wrapText(s string, width, maxLines int) []string {
	words := strings.Fields(s)
	var lines []string
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && cur.Len()+1+len([]rune(w)) > width {
			lines = append(lines, cur.String())
			cur.Reset()
			if len(lines) == maxLines {
				return lines
			}
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		lines = append(lines, cur.String())
	}
	return lines
}
