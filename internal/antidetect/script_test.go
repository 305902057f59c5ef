package antidetect

import (
	"strings"
	"testing"
)

func testParams() ScriptParams {
	return ScriptParams{
		Timezone:    "America/New_York",
		Locale:      "en-US",
		WebGLVendor: "Google Inc. (Intel)",
		WebGLRender: "ANGLE (Intel, Intel(R) Iris(R) Xe Graphics, OpenGL 4.1)",
		HWConc:      8,
		DeviceMemGB: 8,
		Width:       1920,
		Height:      1080,
		DPR:         1,
	}
}

var vectorMarkers = map[Vector]string{
	VectorWebdriver:      "navigator.webdriver",
	VectorChromeObject:   "window.chrome",
	VectorCanvas:         "getImageData",
	VectorWebGL:          "getParameter",
	VectorAudio:          "getFloatFrequencyData",
	VectorHardwareConc:   "hardwareConcurrency",
	VectorDeviceMemory:   "deviceMemory",
	VectorPlugins:        "navigator.plugins",
	VectorRTCPeer:        "RTCPeerConnection",
	VectorBattery:        "getBattery",
	VectorTimezone:       "timeZone",
	VectorLanguage:       "navigator.language",
	VectorPerformanceNow: "Performance.prototype.now",
	VectorErrorStack:     "Error.prototype",
	VectorScreenMetrics:  "devicePixelRatio",
}

var mediumVectorMarkers = map[Vector]string{
	VectorFunctionToStr:   "Function.prototype.toString",
	VectorSelfEqualsTop:   "window, 'top'",
	VectorPerformanceTime: "performance.timing",
}

func TestRender_FullVariantCoversEveryVector(t *testing.T) {
	rendered := Render(testParams())

	for _, v := range AllFullVectors {
		marker, ok := vectorMarkers[v]
		if !ok {
			t.Fatalf("no test marker registered for vector %q", v)
		}
		t.Run(string(v), func(t *testing.T) {
			if !strings.Contains(rendered, marker) {
				t.Errorf("rendered script missing coverage for vector %q (expected marker %q)", v, marker)
			}
		})
	}
}

func TestRender_FullVariantOmitsMediumVectors(t *testing.T) {
	rendered := Render(testParams())

	for _, v := range AllMediumOnlyVectors {
		marker := mediumVectorMarkers[v]
		if strings.Contains(rendered, marker) {
			t.Errorf("full variant unexpectedly contains medium-only vector %q", v)
		}
	}
}

func TestRender_MediumVariantAddsDebuggerVectors(t *testing.T) {
	p := testParams()
	p.Medium = true
	rendered := Render(p)

	for _, v := range AllMediumOnlyVectors {
		marker, ok := mediumVectorMarkers[v]
		if !ok {
			t.Fatalf("no test marker registered for medium vector %q", v)
		}
		t.Run(string(v), func(t *testing.T) {
			if !strings.Contains(rendered, marker) {
				t.Errorf("medium variant missing coverage for vector %q (expected marker %q)", v, marker)
			}
		})
	}

	for _, v := range AllFullVectors {
		marker := vectorMarkers[v]
		if !strings.Contains(rendered, marker) {
			t.Errorf("medium variant dropped a full-variant vector %q", v)
		}
	}
}

func TestRender_TemplatesSessionValues(t *testing.T) {
	p := testParams()
	rendered := Render(p)

	for _, want := range []string{p.Timezone, p.Locale, p.WebGLVendor, p.WebGLRender} {
		if !strings.Contains(rendered, want) {
			t.Errorf("rendered script missing templated value %q", want)
		}
	}
	if strings.Contains(rendered, "__WIDTH__") || strings.Contains(rendered, "__HEIGHT__") {
		t.Error("rendered script still contains unreplaced placeholders")
	}
}

func TestRender_EscapesSingleQuotesInWebGLRenderer(t *testing.T) {
	p := testParams()
	p.WebGLRender = "weird'renderer"
	rendered := Render(p)
	if strings.Contains(rendered, "weird'renderer") {
		t.Error("unescaped single quote would break the generated script's string literal")
	}
}

func TestHeaderPolicy_SkipsPassThroughResources(t *testing.T) {
	policy := HeaderPolicy{}
	for _, kind := range []ResourceKind{ResourceImage, ResourceMedia, ResourceFont} {
		if !passesThrough(kind) {
			t.Errorf("resource kind %d expected to pass through untouched", kind)
		}
	}
	_ = policy
}
