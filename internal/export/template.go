package export

import (
	"bytes"
	"html/template"
	"time"
)

// ArticleData feeds the article preview template. BodyHTML is trusted:
// it comes out of the display formatter, not raw user input.
type ArticleData struct {
	Title    string
	Subtitle string
	BodyHTML string
	Category string
	Keywords string
	Status   string
	Updated  time.Time
}

var articleTemplate = template.Must(template.New("article").Funcs(template.FuncMap{
	"safeHTML": func(s string) template.HTML { return template.HTML(s) },
}).Parse(articleTemplateText))

// RenderArticleHTML renders the preview page for an article.
func RenderArticleHTML(data ArticleData) (string, error) {
	var buf bytes.Buffer
	if err := articleTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const articleTemplateText = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
  <style>
    body { font-family: Arial, sans-serif; line-height: 1.6; max-width: 800px; margin: 2rem auto; color: #1a1a1a; }
    h1 { border-bottom: 2px solid #333; padding-bottom: 0.5rem; }
    .subtitle { color: #444; font-size: 1.1em; margin-bottom: 0.5rem; }
    .meta { color: #666; font-size: 0.9em; margin-bottom: 2rem; }
    .status { text-transform: uppercase; letter-spacing: 0.05em; }
    .body p { margin: 0.75rem 0; }
    .body blockquote { border-left: 3px solid #ccc; margin-left: 0; padding-left: 1rem; color: #555; }
    .body code { background: #f2f2f2; padding: 0.1em 0.3em; border-radius: 3px; font-size: 0.95em; }
    .keywords { margin-top: 2rem; color: #666; font-size: 0.85em; border-top: 1px solid #ddd; padding-top: 0.75rem; }
  </style>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{if .Subtitle}}<p class="subtitle">{{.Subtitle}}</p>{{end}}
  <div class="meta">{{.Category}} | <span class="status">{{.Status}}</span>{{if not .Updated.IsZero}} | {{.Updated.Format "Jan 2, 2006"}}{{end}}</div>
  <div class="body">{{.BodyHTML | safeHTML}}</div>
  {{if .Keywords}}<div class="keywords">Keywords: {{.Keywords}}</div>{{end}}
</body>
</html>`
