// Package widget 实现嵌入脚本的配置解析、渲染与全局打开/关闭控制。
package widget

import (
	"fmt"
	"sort"
	"strings"

	"medidesk-go/internal/config"
)

// Position 是挂件在页面上的停靠位置。
type Position string

const (
	BottomRight Position = "bottom-right"
	BottomLeft  Position = "bottom-left"
	TopRight    Position = "top-right"
	TopLeft     Position = "top-left"
)

// Positions 是全部合法的停靠位置。
var Positions = []Position{BottomRight, BottomLeft, TopRight, TopLeft}

// Valid 判断位置是否属于四个角之一。
func (p Position) Valid() bool {
	switch p {
	case BottomRight, BottomLeft, TopRight, TopLeft:
		return true
	}
	return false
}

// Themes 是内置样式提供的配色主题；theme 取值不受此限制，由宿主页面的样式决定。
var Themes = []string{"blue", "green", "purple"}

// Config 是经过校验的挂件配置。
type Config struct {
	Position   Position `json:"position"`
	Theme      string   `json:"theme"`
	HospitalID string   `json:"hospitalId"`
	AutoOpen   bool     `json:"autoOpen"`
	APIBaseURL string   `json:"apiBaseUrl,omitempty"`
}

// DefaultConfig 返回内置默认配置。
func DefaultConfig() Config {
	return Config{
		Position:   BottomRight,
		Theme:      "blue",
		HospitalID: "demo-hospital",
		AutoOpen:   false,
	}
}

// FromAppConfig 以应用配置中的 widget 段作为默认值，非法取值回退到内置默认值。
func FromAppConfig(cfg config.WidgetConfig) Config {
	d := DefaultConfig()
	if p := Position(cfg.Position); p.Valid() {
		d.Position = p
	}
	if theme := strings.TrimSpace(cfg.Theme); theme != "" {
		d.Theme = theme
	}
	if cfg.HospitalID != "" {
		d.HospitalID = cfg.HospitalID
	}
	d.AutoOpen = cfg.AutoOpen
	d.APIBaseURL = strings.TrimRight(cfg.APIBaseURL, "/")
	return d
}

// normalizeKey 把 data-hospital-id、hospital-id、hospitalId 等写法统一为 hospitalid。
func normalizeKey(key string) string {
	k := strings.ToLower(strings.TrimSpace(key))
	k = strings.TrimPrefix(k, "data-")
	k = strings.ReplaceAll(k, "-", "")
	k = strings.ReplaceAll(k, "_", "")
	return k
}

// ParseAttributes 在 defaults 之上应用 data 属性风格的键值对。
// 未识别的键与非法取值不会生效，而是以警告返回。
func ParseAttributes(attrs map[string]string, defaults Config) (Config, []string) {
	cfg := defaults
	var warnings []string

	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		value := strings.TrimSpace(attrs[key])
		switch normalizeKey(key) {
		case "position":
			if value == "" {
				continue
			}
			if p := Position(value); p.Valid() {
				cfg.Position = p
			} else {
				warnings = append(warnings, fmt.Sprintf("invalid position %q, using %q", value, cfg.Position))
			}
		case "theme":
			if value != "" {
				cfg.Theme = value
			}
		case "hospitalid":
			if value != "" {
				cfg.HospitalID = value
			}
		case "autoopen":
			switch value {
			case "true":
				cfg.AutoOpen = true
			case "false", "":
				cfg.AutoOpen = false
			default:
				cfg.AutoOpen = false
				warnings = append(warnings, fmt.Sprintf("autoOpen expects \"true\" or \"false\", got %q", value))
			}
		default:
			warnings = append(warnings, fmt.Sprintf("unrecognized widget attribute %q ignored", key))
		}
	}
	return cfg, warnings
}
