package crawl

// instrumentationScript is installed as a pre-navigation init script so it
// executes before any page script. It patches well-known fingerprinting
// surfaces to record flags on a bounded state object while delegating to
// the original implementation, so observed return values are unchanged.
const instrumentationScript = `
(function() {
  if (window.__privacyAnalyzerState) return;
  var state = {
    canvasFingerprint: false,
    webglFingerprint: false,
    fontFingerprint: false,
    keylogger: false,
    formSnooping: false,
    serviceWorker: false,
    beacons: []
  };
  window.__privacyAnalyzerState = state;

  function wrap(obj, method, flagName) {
    if (!obj || typeof obj[method] !== 'function') return;
    var original = obj[method];
    obj[method] = function() {
      state[flagName] = true;
      return original.apply(this, arguments);
    };
  }

  wrap(HTMLCanvasElement.prototype, 'toDataURL', 'canvasFingerprint');
  if (window.CanvasRenderingContext2D) {
    wrap(CanvasRenderingContext2D.prototype, 'getImageData', 'canvasFingerprint');
  }

  var originalGetContext = HTMLCanvasElement.prototype.getContext;
  HTMLCanvasElement.prototype.getContext = function(type) {
    if (type === 'webgl' || type === 'webgl2' || type === 'experimental-webgl') {
      state.webglFingerprint = true;
    }
    return originalGetContext.apply(this, arguments);
  };

  if (window.document && document.fonts) {
    wrap(document.fonts, 'check', 'fontFingerprint');
  }

  ['keydown', 'keypress', 'keyup'].forEach(function(evt) {
    var originalAdd = EventTarget.prototype.addEventListener;
    EventTarget.prototype.addEventListener = function(type, listener, opts) {
      if ((this === document || this === window) && type === evt) {
        state.keylogger = true;
      }
      return originalAdd.call(this, type, listener, opts);
    };
  });

  var valueDescriptor = Object.getOwnPropertyDescriptor(HTMLInputElement.prototype, 'value');
  if (valueDescriptor && valueDescriptor.get) {
    var originalGetter = valueDescriptor.get;
    Object.defineProperty(HTMLInputElement.prototype, 'value', {
      get: function() {
        state.formSnooping = true;
        return originalGetter.call(this);
      },
      set: valueDescriptor.set,
      configurable: true
    });
  }

  if (navigator.sendBeacon) {
    var originalBeacon = navigator.sendBeacon;
    navigator.sendBeacon = function(url, data) {
      if (state.beacons.length < 50) {
        state.beacons.push({ url: String(url), hasData: !!data });
      }
      return originalBeacon.apply(this, arguments);
    };
  }

  if (navigator.serviceWorker && navigator.serviceWorker.register) {
    var originalRegister = navigator.serviceWorker.register;
    navigator.serviceWorker.register = function() {
      state.serviceWorker = true;
      return originalRegister.apply(this, arguments);
    };
  }
})();
`

// readInstrumentationState is evaluated after a page settles to retrieve
// the flags the instrumentation script recorded.
const readInstrumentationState = `
(function() {
  var s = window.__privacyAnalyzerState;
  if (!s) return null;
  return JSON.stringify(s);
})();
`
