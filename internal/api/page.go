package api

import (
	"html/template"

	"github.com/LJTian/TheNews/internal/config"
	"github.com/LJTian/TheNews/internal/news"
)

type pageData struct {
	Story    news.Story
	Byline   string
	HasStory bool
	// PollMS is zero when cycling is off; the page then stays put.
	PollMS int64
}

func newPageData(story news.Story, ok bool, opts config.Options) pageData {
	d := pageData{Story: story, HasStory: ok}
	if ok {
		d.Byline = story.Byline()
	}
	if opts.Cycle && opts.CycleInterval() > 0 {
		d.PollMS = opts.CycleInterval().Milliseconds()
	}
	return d
}

var pageTmpl = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>New Tab</title>
<style>
  body { margin: 0; height: 100vh; display: flex; align-items: center; justify-content: center;
         font-family: Georgia, serif; background: #fafafa; color: #222; }
  main { max-width: 48rem; padding: 2rem; text-align: center; }
  #headline { font-size: 2.4rem; color: inherit; text-decoration: none; }
  #headline:hover { text-decoration: underline; }
  #abstract { margin-top: 1rem; font-size: 1.1rem; color: #666; }
  .fade { animation: fadein 0.8s ease-in; }
  @keyframes fadein { from { opacity: 0; } to { opacity: 1; } }
</style>
</head>
<body>
<main>
{{- if .HasStory}}
  <a id="headline" class="fade" href="{{.Story.URL}}" title="Link to article">{{.Story.Title}}</a>
  <div id="abstract" class="fade">{{.Byline}}</div>
{{- else}}
  <a id="headline" class="fade" title="Link to article">No headline yet</a>
  <div id="abstract" class="fade"></div>
{{- end}}
</main>
{{- if .PollMS}}
<script>
(function () {
  var headline = document.getElementById("headline");
  var abstract = document.getElementById("abstract");
  function replay(el) { el.classList.remove("fade"); void el.offsetWidth; el.classList.add("fade"); }
  function poll() {
    fetch("/api/v1/headline").then(function (r) { return r.ok ? r.json() : null; }).then(function (body) {
      if (!body || !body.data || body.data.story.url === headline.getAttribute("href")) { return; }
      headline.setAttribute("href", body.data.story.url);
      headline.textContent = body.data.story.title;
      abstract.textContent = body.data.byline;
      replay(headline);
      replay(abstract);
    }).catch(function () {});
  }
  setInterval(poll, {{.PollMS}});
})();
</script>
{{- end}}
</body>
</html>
`))
