package transport

import (
	"html"
	"strings"
)

// pageShell is the static HTML served on "/". The widget markup itself
// arrives over the websocket; the shell only carries the chrome and the
// client script that applies bootstrap and patch frames.
const pageShell = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{TITLE}}</title>
<style>
body { background: #181818; color: #FFFFFF; font-family: sans-serif; margin: 1em; }
h3 { margin: 0.2em 0 0.6em 0; }
.widget { display: inline-block; vertical-align: top; margin: 0.4em; }
.break { display: block; height: 0; }
button.push { font-size: 1.1em; padding: 0.4em 1.4em; }
</style>
</head>
<body>
<div id="dash">connecting&#8230;</div>
<script>
(function () {
	var dash = document.getElementById("dash");
	var ws = null;

	function applyPatch(markup) {
		var host = document.createElement("div");
		host.innerHTML = "<svg>" + markup + "</svg>";
		var parts = host.querySelectorAll("[id]");
		for (var i = 0; i < parts.length; i++) {
			var part = parts[i];
			var current = document.getElementById(part.id);
			if (current) {
				current.replaceWith(part);
			}
		}
	}

	function send(widget, value) {
		if (ws && ws.readyState === WebSocket.OPEN) {
			ws.send(JSON.stringify({ widget: widget, value: value }));
		}
	}

	dash.addEventListener("input", function (ev) {
		var el = ev.target;
		if (el.matches && el.matches("input[data-widget]")) {
			send(parseInt(el.dataset.widget, 10), parseFloat(el.value));
		}
	});

	dash.addEventListener("click", function (ev) {
		var el = ev.target.closest ? ev.target.closest("[data-widget]") : null;
		if (!el || el.tagName === "INPUT") {
			return;
		}
		var widget = parseInt(el.dataset.widget, 10);
		if (el.dataset.state !== undefined) {
			send(widget, el.dataset.state !== "true");
			return;
		}
		send(widget, true);
	});

	function connect() {
		var scheme = location.protocol === "https:" ? "wss://" : "ws://";
		ws = new WebSocket(scheme + location.host + "/ws");
		ws.onmessage = function (ev) {
			var frame = JSON.parse(ev.data);
			if (frame.type === "bootstrap") {
				dash.innerHTML = frame.markup;
			} else if (frame.type === "patch") {
				applyPatch(frame.markup);
			}
		};
		ws.onclose = function () {
			setTimeout(connect, 1000);
		};
	}

	connect();
})();
</script>
</body>
</html>
`

func renderPage(title string) string {
	return strings.ReplaceAll(pageShell, "{{TITLE}}", html.EscapeString(title))
}
