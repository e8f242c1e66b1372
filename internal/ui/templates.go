package ui

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

var modalTemplate = template.Must(template.New("modal").ParseFS(templateFS, "templates/confirm_modal.html"))

// StaticFS 返回页面使用的静态资源（脚本、样式、图标）。
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
