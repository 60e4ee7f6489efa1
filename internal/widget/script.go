package widget

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"text/template"
)

//go:embed templates/medidesk.js.tmpl
var templateFS embed.FS

var scriptTemplate = template.Must(
	template.New("medidesk.js.tmpl").
		Funcs(template.FuncMap{"json": toJSON}).
		ParseFS(templateFS, "templates/medidesk.js.tmpl"),
)

type scriptData struct {
	Config    Config
	Positions []Position
	Version   string
	RootID    string
	Open      string
	Close     string
	// AutoOpenMillis 是自动展开的延迟，单位毫秒。
	AutoOpenMillis int64
}

// RenderScript 把配置渲染为可直接嵌入页面的脚本。
func RenderScript(w io.Writer, cfg Config) error {
	data := scriptData{
		Config:         cfg,
		Positions:      Positions,
		Version:        Version,
		RootID:         RootID,
		Open:           EventOpen,
		Close:          EventClose,
		AutoOpenMillis: autoOpenDelay.Milliseconds(),
	}
	if err := scriptTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("渲染嵌入脚本失败: %w", err)
	}
	return nil
}

// toJSON 输出 JS 字面量；json 默认转义 < > &，可以安全放进 script 标签。
func toJSON(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
