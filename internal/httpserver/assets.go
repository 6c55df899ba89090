// internal/httpserver/assets.go
package httpserver

import (
	"embed"
	"net/http"

	"github.com/gorilla/mux"
)

//go:embed assets
var assets embed.FS

// asset is one embedded file served at a fixed path with a fixed type.
type asset struct {
	path string
	file string
	mime string
}

var assetTable = []asset{
	{"/", "assets/index.html", "text/html"},
	{"/app.css", "assets/app.css", "text/css"},
	{"/app.js", "assets/app.js", "application/javascript"},
	{"/favicon.ico", "assets/favicon.ico", "image/x-icon"},
}

func registerAssets(r *mux.Router) {
	for _, a := range assetTable {
		data, err := assets.ReadFile(a.file)
		if err != nil {
			// embedded at build time; a miss is a packaging bug
			panic(err)
		}
		mime := a.mime
		r.HandleFunc(a.path, func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", mime)
			w.Write(data)
		}).Methods(http.MethodGet)
	}
}
