package antidetect

import (
	"strconv"
	"strings"
)

// Vector names the numbered rows of §4.6's in-page script table. Keeping
// these as named constants lets the test suite enumerate the table instead
// of grepping the script body by hand.
type Vector string

const (
	VectorWebdriver       Vector = "navigator.webdriver"
	VectorChromeObject    Vector = "window.chrome"
	VectorCanvas          Vector = "canvas"
	VectorWebGL           Vector = "webgl"
	VectorAudio           Vector = "audio"
	VectorHardwareConc    Vector = "hardwareConcurrency"
	VectorDeviceMemory    Vector = "deviceMemory"
	VectorPlugins         Vector = "plugins"
	VectorRTCPeer         Vector = "rtcPeerConnection"
	VectorBattery         Vector = "getBattery"
	VectorTimezone        Vector = "timezone"
	VectorLanguage        Vector = "language"
	VectorPerformanceNow  Vector = "performanceNow"
	VectorErrorStack      Vector = "errorStack"
	VectorScreenMetrics   Vector = "screenMetrics"
	VectorFunctionToStr   Vector = "functionToString" // medium-only
	VectorSelfEqualsTop   Vector = "selfEqualsTop"    // medium-only
	VectorPerformanceTime Vector = "performanceTiming" // medium-only
)

// AllFullVectors is every vector the "full" variant must cover (§4.6 table,
// all rows above the medium-variant paragraph).
var AllFullVectors = []Vector{
	VectorWebdriver, VectorChromeObject, VectorCanvas, VectorWebGL, VectorAudio,
	VectorHardwareConc, VectorDeviceMemory, VectorPlugins, VectorRTCPeer,
	VectorBattery, VectorTimezone, VectorLanguage, VectorPerformanceNow,
	VectorErrorStack, VectorScreenMetrics,
}

// AllMediumOnlyVectors is the additive set the "medium" variant layers on
// top of the full set for pages hosting anti-debugger scripts.
var AllMediumOnlyVectors = []Vector{
	VectorFunctionToStr, VectorSelfEqualsTop, VectorPerformanceTime,
}

// ScriptParams are the only values the host templates into the init
// script; the script itself stays a single self-contained string asset
// per the design notes' "binary artifact" treatment (§9).
type ScriptParams struct {
	Timezone    string
	Locale      string
	WebGLVendor string
	WebGLRender string
	HWConc      int
	DeviceMemGB int
	Width       int
	Height      int
	DPR         float64
	Medium      bool
}

// initScriptTemplate is the full-variant script. Each section comment
// corresponds to a row of §4.6's table; the vector enumeration test checks
// that a marker string registered for every Vector constant appears in the
// rendered output.
const initScriptTemplate = `
(() => {
  // navigator.webdriver
  try {
    Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined, configurable: true });
    delete window.__$webdriverAsyncExecutor;
    delete window.__webdriver_evaluate;
    delete window.__selenium_evaluate;
    delete window.__driver_evaluate;
    delete window.cdc_adoQpoasnfa76pfcZLmcfl_Array;
  } catch (e) {}

  // window.chrome.{runtime,csi,loadTimes}
  window.chrome = window.chrome || {};
  window.chrome.runtime = window.chrome.runtime || { connect: () => {}, sendMessage: () => {} };
  window.chrome.csi = window.chrome.csi || (() => ({ onloadT: Date.now(), pageT: 0, startE: Date.now(), tran: 15 }));
  window.chrome.loadTimes = window.chrome.loadTimes || (() => ({ requestTime: Date.now() / 1000 }));

  // canvas getImageData/toDataURL
  (() => {
    const noise = () => (Math.random() * 2 - 1) * 0.5;
    const origGetImageData = CanvasRenderingContext2D.prototype.getImageData;
    CanvasRenderingContext2D.prototype.getImageData = function (...args) {
      const data = origGetImageData.apply(this, args);
      for (let i = 0; i < data.data.length; i += 4) {
        data.data[i] = Math.min(255, Math.max(0, data.data[i] + noise()));
      }
      return data;
    };
    const origToDataURL = HTMLCanvasElement.prototype.toDataURL;
    HTMLCanvasElement.prototype.toDataURL = function (...args) {
      return origToDataURL.apply(this, args);
    };
  })();

  // WebGL getParameter
  (() => {
    const VENDOR = '__WEBGL_VENDOR__';
    const RENDERER = '__WEBGL_RENDERER__';
    for (const proto of [WebGLRenderingContext, WebGL2RenderingContext]) {
      if (!proto) continue;
      const orig = proto.prototype.getParameter;
      proto.prototype.getParameter = function (param) {
        if (param === 37445) return VENDOR;
        if (param === 37446) return RENDERER;
        const v = orig.call(this, param);
        return typeof v === 'number' ? v + (Math.random() * 2 - 1) * 1e-6 : v;
      };
    }
  })();

  // audio analyser noise
  (() => {
    const orig = AnalyserNode.prototype.getFloatFrequencyData;
    AnalyserNode.prototype.getFloatFrequencyData = function (array) {
      orig.call(this, array);
      for (let i = 0; i < array.length; i++) array[i] += (Math.random() * 2 - 1) * 0.05;
    };
  })();

  // navigator.hardwareConcurrency
  Object.defineProperty(Navigator.prototype, 'hardwareConcurrency', { get: () => __HW_CONC__, configurable: true });

  // navigator.deviceMemory
  Object.defineProperty(Navigator.prototype, 'deviceMemory', { get: () => __DEVICE_MEM__, configurable: true });

  // navigator.plugins
  Object.defineProperty(Navigator.prototype, 'plugins', {
    get: () => [{ name: 'PDF Viewer' }, { name: 'Chrome PDF Viewer' }, { name: 'Chromium PDF Viewer' }],
    configurable: true,
  });

  // RTCPeerConnection ICE candidate filtering
  (() => {
    const OrigRTC = window.RTCPeerConnection;
    if (!OrigRTC) return;
    window.RTCPeerConnection = function (...args) {
      const pc = new OrigRTC(...args);
      const origAddEventListener = pc.addEventListener.bind(pc);
      pc.addEventListener = (type, listener, ...rest) => {
        if (type !== 'icecandidate') return origAddEventListener(type, listener, ...rest);
        return origAddEventListener(type, (ev) => {
          if (ev.candidate && /srflx|host/.test(ev.candidate.candidate)) return;
          listener(ev);
        }, ...rest);
      };
      return pc;
    };
  })();

  // navigator.getBattery
  navigator.getBattery = () => Promise.resolve({ charging: true, level: 0.97 + Math.random() * 0.03 });

  // Intl.DateTimeFormat / Date.getTimezoneOffset
  (() => {
    const TZ = '__TIMEZONE__';
    const origResolved = Intl.DateTimeFormat.prototype.resolvedOptions;
    Intl.DateTimeFormat.prototype.resolvedOptions = function (...args) {
      const o = origResolved.apply(this, args);
      o.timeZone = TZ;
      return o;
    };
    Date.prototype.getTimezoneOffset = function () {
      const local = new Date(this.toLocaleString('en-US', { timeZone: TZ }));
      const utc = new Date(this.toLocaleString('en-US', { timeZone: 'UTC' }));
      return Math.round((utc - local) / 60000);
    };
  })();

  // navigator.language(s)
  Object.defineProperty(Navigator.prototype, 'language', { get: () => '__LOCALE__', configurable: true });
  Object.defineProperty(Navigator.prototype, 'languages', { get: () => ['__LOCALE__'], configurable: true });

  // performance.now / Date.now sub-ms jitter
  (() => {
    const origNow = Performance.prototype.now;
    Performance.prototype.now = function () { return origNow.call(this) + Math.random() * 0.01; };
    const origDateNow = Date.now;
    Date.now = function () { return origDateNow() + Math.random() * 0.01; };
  })();

  // Error.prototype.stack scrubbing
  (() => {
    const origStackGetter = Object.getOwnPropertyDescriptor(Error.prototype, 'stack');
    if (origStackGetter && origStackGetter.get) {
      Object.defineProperty(Error.prototype, 'stack', {
        get() {
          const s = origStackGetter.get.call(this);
          return typeof s === 'string' ? s.replace(/puppeteer|playwright|chromedp|cdp/gi, 'internal') : s;
        },
        configurable: true,
      });
    }
  })();

  // screen.*, outerWidth/Height, devicePixelRatio, matchMedia
  Object.defineProperty(window, 'devicePixelRatio', { get: () => __DPR__, configurable: true });
  Object.defineProperty(window, 'outerWidth', { get: () => __WIDTH__, configurable: true });
  Object.defineProperty(window, 'outerHeight', { get: () => __HEIGHT__, configurable: true });
  Object.defineProperty(screen, 'width', { get: () => __WIDTH__, configurable: true });
  Object.defineProperty(screen, 'height', { get: () => __HEIGHT__, configurable: true });

  __MEDIUM_BLOCK__
})();
`

// mediumBlock is appended (via the __MEDIUM_BLOCK__ placeholder) only when
// ScriptParams.Medium is set, layering the anti-debugger-page vectors.
const mediumBlock = `
  // Function constructor strips debugger statements
  (() => {
    const OrigFunction = window.Function;
    window.Function = new Proxy(OrigFunction, {
      construct(target, args) {
        const stripped = args.map((a) => (typeof a === 'string' ? a.replace(/debugger;?/g, '') : a));
        return Reflect.construct(target, stripped);
      },
    });
  })();

  // Function.prototype.toString native-like source
  (() => {
    const origToString = Function.prototype.toString;
    Function.prototype.toString = function () {
      const s = origToString.call(this);
      return s.includes('[native code]') ? s : 'function () { [native code] }';
    };
  })();

  // window.self === window.top forced
  try {
    Object.defineProperty(window, 'top', { get: () => window, configurable: true });
  } catch (e) {}

  // performance.timing normalised
  if (window.performance && window.performance.timing) {
    const base = Date.now();
    for (const k of Object.keys(window.performance.timing)) {
      try { window.performance.timing[k] = base; } catch (e) {}
    }
  }
`

// Render fills the single script asset with session-specific values. The
// script body itself never changes between sessions, only these params.
func Render(p ScriptParams) string {
	s := initScriptTemplate
	replacements := map[string]string{
		"__WEBGL_VENDOR__": jsEscape(p.WebGLVendor),
		"__WEBGL_RENDERER__": jsEscape(p.WebGLRender),
		"__HW_CONC__":        strconv.Itoa(p.HWConc),
		"__DEVICE_MEM__":     strconv.Itoa(p.DeviceMemGB),
		"__TIMEZONE__":       jsEscape(p.Timezone),
		"__LOCALE__":         jsEscape(p.Locale),
		"__DPR__":            strconv.FormatFloat(p.DPR, 'g', -1, 64),
		"__WIDTH__":          strconv.Itoa(p.Width),
		"__HEIGHT__":         strconv.Itoa(p.Height),
	}
	for k, v := range replacements {
		s = strings.ReplaceAll(s, k, v)
	}
	if p.Medium {
		s = strings.Replace(s, "__MEDIUM_BLOCK__", mediumBlock, 1)
	} else {
		s = strings.Replace(s, "__MEDIUM_BLOCK__", "", 1)
	}
	return s
}

func jsEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\'`)
	return s
}
