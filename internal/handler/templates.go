package handler

import (
	"html/template"
	"math"
	"strconv"

	"github.com/vyrodovalexey/listing-dashboard/internal/model"
)

var templateFuncs = template.FuncMap{
	"price":     model.FormatPrice,
	"compareAt": compareAtPrice,
}

// compareAtPrice renders the strikethrough price rounded to paise.
func compareAtPrice(l model.Listing) string {
	return strconv.FormatFloat(math.Round(l.CompareAtPrice()*100)/100, 'f', -1, 64)
}

var (
	dashboardTemplate = template.Must(template.New("dashboard").Funcs(templateFuncs).Parse(dashboardHTML))
	formTemplate      = template.Must(template.New("form").Funcs(templateFuncs).Parse(formHTML))
)

const dashboardHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Product Handling</title>
    <link rel="stylesheet" href="/static/app.css" />
  </head>
  <body data-live="{{.Live}}">
    <main class="container">
      <header class="header">
        <h1 class="title">Product Handling</h1>
        <p class="subtitle">Manage your product listings</p>
      </header>

      <form id="filters" class="toolbar" method="get" action="/">
        <input class="search" type="text" name="q" value="{{.View.State.Query}}" placeholder="Search by title..." />
        <a class="button primary" href="/listings/new">Add Product</a>

        <section class="panel">
          <h2 class="panelTitle">Filters</h2>
          <input type="hidden" name="prev_category" value="{{.View.State.Category}}" />
          <label>Category
            <select name="category">
              <option value="">-- All Categories --</option>
              {{range .View.Categories}}
                <option value="{{.}}"{{if eq . $.View.State.Category}} selected{{end}}>{{.}}</option>
              {{end}}
            </select>
          </label>
          {{if .View.State.Category}}
            <label>Subcategory
              <select name="subcategory">
                <option value="">-- All Subcategories --</option>
                {{range .View.Subcategories}}
                  <option value="{{.}}"{{if eq . $.View.State.Subcategory}} selected{{end}}>{{.}}</option>
                {{end}}
              </select>
            </label>
          {{end}}
          <button class="button" type="submit">Apply</button>
        </section>
      </form>

      {{if .View.Listings}}
        <section class="grid">
          {{range .View.Listings}}
            <article class="card">
              {{if .HasImages}}
                <div class="gallery">
                  {{$title := .Title}}
                  {{range $i, $url := .Images}}
                    <img src="{{$url}}" alt="{{$title}}-{{$i}}" />
                  {{end}}
                  <span class="badge">{{.Category}}</span>
                </div>
              {{else}}
                <div class="gallery empty"><p>No image available</p></div>
              {{end}}
              <div class="body">
                <h3>{{.Title}}</h3>
                <p class="price">&#8377;{{price .Price}} <s>{{compareAt .}}</s></p>
              </div>
              <div class="actions">
                <form method="post" action="/listings/{{.ID}}/delete">
                  <button class="button danger" type="submit">Delete</button>
                </form>
                <a class="button" href="/listings/{{.ID}}/edit">Edit</a>
              </div>
            </article>
          {{end}}
        </section>
      {{else}}
        <div class="empty">
          <p>No products found matching your criteria.</p>
        </div>
      {{end}}
    </main>
    <script src="/static/app.js"></script>
  </body>
</html>
`

const formHTML = `<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>{{.Heading}}</title>
    <link rel="stylesheet" href="/static/app.css" />
  </head>
  <body>
    <main class="container narrow">
      <h2 class="title">{{.Heading}}</h2>
      {{if .Message}}<p class="message">{{.Message}}</p>{{end}}

      <form id="listing-form" method="post" action="/forms/{{.Session}}" enctype="multipart/form-data">
        <label>Title
          <input type="text" name="title" value="{{.Draft.Title}}" />
        </label>
        {{with index .Errors "title"}}<p class="error">{{.}}</p>{{end}}

        <label>Price
          <input type="number" name="price" step="any" value="{{.Draft.Price}}" />
        </label>
        {{with index .Errors "price"}}<p class="error">{{.}}</p>{{end}}

        <label>Category
          <input type="text" name="category" value="{{.Draft.Category}}" />
        </label>
        {{with index .Errors "category"}}<p class="error">{{.}}</p>{{end}}

        <label>Subcategory
          <input type="text" name="subcategory" value="{{.Draft.Subcategory}}" />
        </label>
        {{with index .Errors "subcategory"}}<p class="error">{{.}}</p>{{end}}

        {{if .ImagesEnabled}}
          <label>Upload Images (Max {{.MaxImages}})
            <input type="file" name="images" accept="image/*" multiple />
          </label>
          {{if .AttachedImages}}<p class="hint">{{.AttachedImages}} image(s) attached. Choose files again to replace them.</p>{{end}}
          {{with index .Errors "images"}}<p class="error">{{.}}</p>{{end}}
        {{end}}

        <div class="actions">
          <button class="button primary" type="submit" data-submit{{if .Busy}} disabled{{end}}>
            {{if .Busy}}Submitting...{{else}}{{.SubmitLabel}}{{end}}
          </button>
          <button class="button" type="submit" formaction="/forms/{{.Session}}/cancel" formnovalidate>Cancel</button>
        </div>
      </form>
    </main>
    <script src="/static/app.js"></script>
  </body>
</html>
`

const appCSS = `:root { color-scheme: light; font-family: system-ui, sans-serif; }
body { margin: 0; background: #f9fafb; color: #1f2937; }
.container { max-width: 72rem; margin: 0 auto; padding: 2rem 1rem; }
.container.narrow { max-width: 42rem; }
.title { font-size: 1.75rem; margin: 0; }
.subtitle { color: #6b7280; margin: .25rem 0 0; }
.toolbar { display: flex; flex-wrap: wrap; gap: .75rem; margin: 1.5rem 0; }
.search { flex: 1 1 20rem; padding: .6rem; border: 1px solid #d1d5db; border-radius: .5rem; }
.panel { flex-basis: 100%; display: flex; flex-wrap: wrap; gap: 1rem; align-items: end; padding: 1rem; background: #f3f4f6; border: 1px solid #e5e7eb; border-radius: .5rem; }
.panelTitle { flex-basis: 100%; font-size: 1.1rem; margin: 0; }
label { display: flex; flex-direction: column; gap: .35rem; font-weight: 500; margin-bottom: .75rem; }
input, select { padding: .55rem; border: 1px solid #d1d5db; border-radius: .5rem; background: #fff; }
.button { display: inline-block; padding: .55rem 1rem; border: 1px solid #c7d2fe; border-radius: .4rem; background: #eef2ff; color: #4f46e5; text-decoration: none; cursor: pointer; font: inherit; }
.button.primary { background: #4f46e5; border-color: #4f46e5; color: #fff; }
.button.danger { background: #fff; border-color: #fecaca; color: #dc2626; }
.button[disabled] { opacity: .6; cursor: not-allowed; }
.grid { display: grid; grid-template-columns: repeat(auto-fill, minmax(18rem, 1fr)); gap: 1.5rem; }
.card { display: flex; flex-direction: column; background: #fff; border: 1px solid #e5e7eb; border-radius: .5rem; overflow: hidden; }
.gallery { position: relative; height: 14rem; display: flex; gap: .5rem; overflow-x: auto; }
.gallery img { height: 100%; width: auto; object-fit: cover; border-radius: .5rem; }
.gallery.empty { align-items: center; justify-content: center; background: #f3f4f6; color: #9ca3af; }
.badge { position: absolute; top: .5rem; right: .5rem; padding: .2rem .5rem; border-radius: .35rem; background: #e0e7ff; color: #3730a3; font-size: .75rem; }
.body { padding: 1rem; flex: 1; }
.body h3 { margin: 0; font-size: 1.1rem; }
.price { color: #4f46e5; font-weight: 700; font-size: 1.25rem; }
.price s { color: #6b7280; font-weight: 400; font-size: .9rem; }
.actions { display: flex; justify-content: space-between; gap: .5rem; padding: 1rem; border-top: 1px solid #f3f4f6; background: #f9fafb; }
.empty { text-align: center; padding: 3rem; border: 1px dashed #d1d5db; border-radius: .5rem; color: #6b7280; }
.message { padding: .75rem; border-radius: .4rem; background: #fef2f2; color: #b91c1c; }
.error { color: #dc2626; font-size: .85rem; margin: -.5rem 0 .75rem; }
.hint { color: #6b7280; font-size: .85rem; }
`

const appJS = `(function () {
  var filters = document.getElementById("filters");
  if (filters) {
    filters.querySelectorAll("select").forEach(function (el) {
      el.addEventListener("change", function () { filters.submit(); });
    });
  }

  var form = document.getElementById("listing-form");
  if (form) {
    form.addEventListener("submit", function (ev) {
      var btn = form.querySelector("button[data-submit]");
      if (!btn || (ev.submitter && ev.submitter !== btn)) {
        return;
      }
      btn.disabled = true;
      btn.textContent = "Submitting...";
    });
  }

  if (document.body.dataset.live === "true" && "WebSocket" in window) {
    var scheme = location.protocol === "https:" ? "wss:" : "ws:";
    var ws = new WebSocket(scheme + "//" + location.host + "/ws");
    ws.onmessage = function (ev) {
      try {
        if (JSON.parse(ev.data).type === "listings_changed") {
          location.reload();
        }
      } catch (e) {}
    };
  }
})();
`
