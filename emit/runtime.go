/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package emit

// runtimeJS is the module registry prepended to entry chunks and libraries.
// It is idempotent so several entries and libraries can share one page.
const runtimeJS = `(function (g) {
  if (g.__bindle__) return;
  var defs = {};
  var cache = {};
  var urls = {};
  var asyncChunks = {};
  var chunks = {};

  function req(key) {
    if (cache[key]) return cache[key].exports;
    var def = defs[key];
    if (!def) throw new Error("bindle: module " + key + " is not loaded");
    var module = { id: key, exports: {} };
    cache[key] = module;
    def.fn.call(module.exports, module, module.exports, scoped(def.deps));
    return module.exports;
  }

  function scoped(deps) {
    function require(spec) {
      return req(deps.hasOwnProperty(spec) ? deps[spec] : spec);
    }
    require.async = function (spec) {
      var key = deps.hasOwnProperty(spec) ? deps[spec] : spec;
      return ensure(asyncChunks[key] || []).then(function () { return req(key); });
    };
    return require;
  }

  function chunk(name) {
    if (!chunks[name]) {
      var done;
      chunks[name] = { promise: new Promise(function (resolve) { done = resolve; }), done: done };
    }
    return chunks[name];
  }

  function fetchChunk(name) {
    var c = chunk(name);
    if (c.requested) return c.promise;
    c.requested = true;
    var files = urls[name] || [];
    var head = document.head || document.getElementsByTagName("head")[0];
    if (files[1]) {
      var link = document.createElement("link");
      link.rel = "stylesheet";
      link.href = files[1];
      head.appendChild(link);
    }
    var script = document.createElement("script");
    script.src = files[0];
    script.onerror = function () { c.done(Promise.reject(new Error("bindle: failed to load chunk " + name))); };
    head.appendChild(script);
    return c.promise;
  }

  function ensure(names) {
    return Promise.all(names.map(fetchChunk));
  }

  function prefetch(names) {
    names.forEach(function (name) {
      var files = urls[name] || [];
      if (!files[0]) return;
      var link = document.createElement("link");
      link.rel = "prefetch";
      link.href = files[0];
      document.head.appendChild(link);
    });
  }

  g.__bindle__ = {
    define: function (key, deps, fn) { defs[key] = { deps: deps, fn: fn }; },
    require: req,
    register: function (u, a) {
      for (var n in u) urls[n] = u[n];
      for (var k in a) asyncChunks[k] = a[k];
    },
    loaded: function (name) {
      var c = chunk(name);
      c.requested = true;
      c.done();
    },
    prefetch: prefetch,
    start: function (names, key) {
      return ensure(names).then(function () { return req(key); });
    }
  };
})(typeof self !== "undefined" ? self : globalThis);
`
