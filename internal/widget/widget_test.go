package widget

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medidesk-go/internal/config"
)

func TestParseAttributes_Defaults(t *testing.T) {
	cfg, warnings := ParseAttributes(nil, DefaultConfig())
	assert.Empty(t, warnings)
	assert.Equal(t, BottomRight, cfg.Position)
	assert.Equal(t, "blue", cfg.Theme)
	assert.Equal(t, "demo-hospital", cfg.HospitalID)
	assert.False(t, cfg.AutoOpen)
}

func TestParseAttributes_KeySpellings(t *testing.T) {
	cases := []map[string]string{
		{"data-position": "top-left", "data-hospital-id": "h-9", "data-auto-open": "true"},
		{"position": "top-left", "hospital-id": "h-9", "auto-open": "true"},
		{"position": "top-left", "hospitalId": "h-9", "autoOpen": "true"},
	}
	for _, attrs := range cases {
		cfg, warnings := ParseAttributes(attrs, DefaultConfig())
		assert.Empty(t, warnings)
		assert.Equal(t, TopLeft, cfg.Position)
		assert.Equal(t, "h-9", cfg.HospitalID)
		assert.True(t, cfg.AutoOpen)
	}
}

func TestParseAttributes_InvalidValuesWarn(t *testing.T) {
	cfg, warnings := ParseAttributes(map[string]string{
		"position": "middle",
		"autoOpen": "yes",
		"colour":   "red",
	}, DefaultConfig())

	assert.Equal(t, BottomRight, cfg.Position)
	assert.False(t, cfg.AutoOpen)
	require.Len(t, warnings, 3)
	assert.Contains(t, warnings[0], "autoOpen")
	assert.Contains(t, warnings[1], "colour")
	assert.Contains(t, warnings[2], "middle")
}

func TestParseAttributes_ThemeIsFreeForm(t *testing.T) {
	cfg, warnings := ParseAttributes(map[string]string{"theme": "  red  "}, DefaultConfig())
	assert.Empty(t, warnings)
	assert.Equal(t, "red", cfg.Theme)

	cfg, warnings = ParseAttributes(map[string]string{"data-theme": ""}, DefaultConfig())
	assert.Empty(t, warnings)
	assert.Equal(t, "blue", cfg.Theme)
}

func TestFromAppConfig(t *testing.T) {
	cfg := FromAppConfig(config.WidgetConfig{
		Position:   "nowhere",
		Theme:      "hospital-teal",
		HospitalID: "",
		AutoOpen:   true,
		APIBaseURL: "https://desk.example.com/",
	})
	assert.Equal(t, BottomRight, cfg.Position)
	assert.Equal(t, "hospital-teal", cfg.Theme)
	assert.Equal(t, "demo-hospital", cfg.HospitalID)
	assert.True(t, cfg.AutoOpen)
	assert.Equal(t, "https://desk.example.com", cfg.APIBaseURL)
}

func TestBootstrap_EnsureMountedIsIdempotent(t *testing.T) {
	b := NewBootstrap()
	first := DefaultConfig()
	second := DefaultConfig()
	second.Theme = "purple"

	assert.True(t, b.EnsureMounted(first))
	assert.False(t, b.EnsureMounted(second))

	state := b.State()
	assert.True(t, state.Mounted)
	assert.Equal(t, "blue", state.Config.Theme)
	assert.Equal(t, "2.1.0", state.Version)
}

func TestBootstrap_OpenCloseToggleBroadcast(t *testing.T) {
	b := NewBootstrap()
	events, cancel := b.Subscribe()
	defer cancel()

	b.Open()
	assert.Equal(t, EventOpen, (<-events).Name)
	assert.True(t, b.State().Open)

	b.Close()
	assert.Equal(t, EventClose, (<-events).Name)
	assert.False(t, b.State().Open)

	assert.True(t, b.Toggle())
	assert.Equal(t, EventOpen, (<-events).Name)
	assert.False(t, b.Toggle())
	assert.Equal(t, EventClose, (<-events).Name)
}

func TestBootstrap_CancelStopsDelivery(t *testing.T) {
	b := NewBootstrap()
	events, cancel := b.Subscribe()
	cancel()
	cancel()

	b.Open()
	_, ok := <-events
	assert.False(t, ok)
}

func TestBootstrap_AutoOpen(t *testing.T) {
	b := NewBootstrap()
	b.delay = 10 * time.Millisecond
	events, cancel := b.Subscribe()
	defer cancel()

	cfg := DefaultConfig()
	cfg.AutoOpen = true
	require.True(t, b.Init(cfg))

	select {
	case ev := <-events:
		assert.Equal(t, EventOpen, ev.Name)
	case <-time.After(time.Second):
		t.Fatal("widget did not auto-open")
	}
	assert.True(t, b.State().Open)
}

func TestBootstrap_StopCancelsAutoOpen(t *testing.T) {
	b := NewBootstrap()
	b.delay = 50 * time.Millisecond
	cfg := DefaultConfig()
	cfg.AutoOpen = true
	require.True(t, b.Init(cfg))
	b.Stop()

	time.Sleep(100 * time.Millisecond)
	assert.False(t, b.State().Open)
}

func TestRenderScript(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HospitalID = `</script><b>`
	cfg.AutoOpen = true

	var buf bytes.Buffer
	require.NoError(t, RenderScript(&buf, cfg))
	out := buf.String()

	assert.Contains(t, out, "MediDesk widget v2.1.0")
	assert.Contains(t, out, `"medidesk-root"`)
	assert.Contains(t, out, `"medidesk:open"`)
	assert.Contains(t, out, `"autoOpen":true`)
	assert.Contains(t, out, "setTimeout(window.MediDesk.open, 1000)")
	assert.NotContains(t, out, "</script>")
}

func TestRenderScript_ReadsScriptTagAttributes(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderScript(&buf, DefaultConfig()))
	out := buf.String()

	assert.Contains(t, out, "document.currentScript")
	assert.Contains(t, out, "script.dataset")
	for _, key := range []string{"data.position", "data.theme", "data.hospitalId", "data.autoOpen"} {
		assert.Contains(t, out, key)
	}
	// 服务端默认值先写入，再被标签属性覆盖
	assert.Less(t, strings.Index(out, `var config = {"position":"bottom-right"`), strings.Index(out, "config = merge(config, readScriptAttributes())"))
	assert.Contains(t, out, `["bottom-right","bottom-left","top-right","top-left"]`)
}

func TestRenderScript_ExposesInit(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderScript(&buf, DefaultConfig()))
	out := buf.String()

	assert.Contains(t, out, "init: function (cfg)")
	assert.Contains(t, out, "config = merge(config, cfg)")
	assert.Contains(t, out, "window.MediDesk.init()")

	// 已挂载时 init 只给出警告
	initBody := out[strings.Index(out, "init: function (cfg)"):]
	initBody = initBody[:strings.Index(initBody, "open: function")]
	assert.Contains(t, initBody, "if (mounted)")
	assert.Contains(t, initBody, `console.warn("MediDesk is already initialized")`)
	for _, method := range []string{"open: function", "close: function", "toggle: function", `version: "2.1.0"`} {
		assert.Contains(t, out, method)
	}
}
