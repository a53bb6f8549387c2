package web

const pageTemplates = `
{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{.Head}}</head>
<body>
{{.BodyOpen}}<main>
{{- if .PostID}}
<article data-post-id="{{.PostID}}"></article>
{{- end}}
</main>
</body>
</html>
{{end}}

{{define "admin"}}<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
{{.Head}}</head>
<body class="wp-admin">
<h1>{{.Title}}</h1>
<ul class="options-pages">
{{- range .Pages}}
<li>{{.Title}}{{if .Fields}} ({{join .Fields ", "}}){{end}}</li>
{{- end}}
</ul>
<table class="events">
<tbody id="events">
{{- range .Events}}
{{template "event_row" .}}
{{- end}}
</tbody>
</table>
</body>
</html>
{{end}}

{{define "event_row"}}<tr id="{{.ID}}"><td>{{.Time}}</td><td>{{.Type}}</td><td>{{.Source}}</td><td>{{.Plugin}} <code>{{.Version}}</code></td></tr>{{end}}
`
