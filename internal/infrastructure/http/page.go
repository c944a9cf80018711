package http

import (
	"html/template"
	"strings"

	"github.com/0xcro3dile/searchchat-go/internal/adapters/render"
	"github.com/0xcro3dile/searchchat-go/internal/domain/entities"
)

// pageData feeds the chat page template.
type pageData struct {
	Entries     []entities.ChatEntry
	Attachment  *entities.Attachment
	Placeholder string
}

var pageFuncs = template.FuncMap{
	"plain": render.PlainText,
	"image": render.CardImageURL,
	"broken": func() string { return render.BrokenImageURL },
	// previews are data URLs built from our own uploads; anything else is dropped
	"preview": func(url string) template.URL {
		if strings.HasPrefix(url, "data:image/") {
			return template.URL(url)
		}
		return ""
	},
}

var pageTemplate = template.Must(template.New("page").Funcs(pageFuncs).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Product Search</title>
</head>
<body>
    <main>
        <div id="chat-container">
            <div id="messages">{{range .Entries}}{{template "entry" .}}{{end}}</div>
        </div>

        {{with .Attachment}}
        <div id="preview">
            <img src="{{preview .PreviewURL}}" alt="{{.Name}}" width="64">
            <span>{{.Name}} ({{.SizeKB}})</span>
            <button type="button" onclick="removeAttachment()">✕</button>
        </div>
        {{end}}

        <form id="search-form" method="post" action="/submit" enctype="multipart/form-data">
            <input type="text" name="message" placeholder="{{.Placeholder}}" autocomplete="off">
            <input type="file" name="file" accept="image/*">
            <button type="submit">Send</button>
        </form>
    </main>

    <script>
        function removeAttachment() {
            fetch('/api/attachment', {method: 'DELETE'}).then(function() { location.reload(); });
        }

        function refresh() {
            fetch('/').then(function(r) { return r.text(); }).then(function(body) {
                const doc = new DOMParser().parseFromString(body, 'text/html');
                document.getElementById('messages').innerHTML = doc.getElementById('messages').innerHTML;
                const container = document.getElementById('chat-container');
                container.scrollTop = container.scrollHeight;
            });
        }

        new EventSource('/api/transcript/stream').onmessage = refresh;
    </script>
</body>
</html>
{{define "entry"}}<div class="message {{.Role}} {{.Kind}}" id="entry-{{.ID}}">
{{- if eq .Kind "query"}}
    {{if .ImagePreview}}<img class="thumb" src="{{preview .ImagePreview}}" alt="{{.ImageName}}" width="96">{{end}}
    <p>{{.Text}}</p>
{{- else if eq .Kind "explanation"}}
    <p>{{plain .Text}}</p>
{{- else if eq .Kind "results"}}
    <p>{{.Text}}</p>
    <div class="cards">
    {{- $entry := .ID}}
    {{- range $i, $item := .Items}}
        <form class="card" method="post" action="/api/results/{{$entry}}/{{$i}}/detail">
            <input type="hidden" name="redirect" value="1">
            <button type="submit">
                <img src="{{image $item}}" alt="{{$item.Title}}" width="160" onerror="this.onerror=null;this.src='{{broken}}'">
                <strong>{{$item.Title}}</strong>
                <span>{{$item.SubCategory}} · {{$item.Colour}} · {{$item.Usage}}</span>
                <span>Relevance: {{$item.Score}}</span>
            </button>
        </form>
    {{- end}}
    </div>
{{- else if eq .Kind "detail"}}
    {{with .Item}}
    <h3>{{.Title}}</h3>
    <dl>
        <dt>Category</dt><dd>{{.SubCategory}}</dd>
        <dt>Colour</dt><dd>{{.Colour}}</dd>
        <dt>Usage</dt><dd>{{.Usage}}</dd>
        <dt>Relevance</dt><dd>{{.Score}}</dd>
    </dl>
    {{end}}
{{- else}}
    <p>{{.Text}}</p>
{{- end}}
</div>
{{end}}`))
