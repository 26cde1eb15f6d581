package api

const docsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="referrer" content="same-origin" />
  <meta name="viewport" content="width=device-width, initial-scale=1, shrink-to-fit=no" />
  <title>Tab Cycle API</title>
  <link href="https://unpkg.com/@stoplight/elements@9.0.0/styles.min.css" rel="stylesheet" />
  <script src="https://unpkg.com/@stoplight/elements@9.0.0/web-components.min.js" crossorigin="anonymous"></script>
</head>
<body style="height: 100vh; margin: 0; position: relative;">
  <a href="/docs/stream" style="
    position: fixed;
    top: 12px;
    right: 16px;
    z-index: 9999;
    background: #161b22;
    border: 1px solid #30363d;
    border-radius: 6px;
    color: #58a6ff;
    font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', sans-serif;
    font-size: 12px;
    padding: 5px 12px;
    text-decoration: none;
  ">Change Stream Docs →</a>
  <elements-api
    apiDescriptionUrl="/openapi.json"
    router="hash"
    layout="sidebar"
    tryItCredentialsPolicy="same-origin"
    darkMode
  />
</body>
</html>`

const streamDocsHTML = `<!doctype html>
<html lang="en" data-theme="dark">
<head>
  <meta charset="utf-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>Change Stream · Tab Cycle</title>
  <style>
    body { margin: 0; padding: 32px; background: #0d1117; color: #c9d1d9;
      font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif; font-size: 14px; line-height: 1.65; }
    main { max-width: 820px; margin: 0 auto; }
    h1 { color: #e6edf3; font-weight: 600; }
    h2 { color: #e6edf3; font-size: 18px; margin-top: 32px; }
    a { color: #58a6ff; }
    code, pre { font-family: ui-monospace, SFMono-Regular, Menlo, monospace; font-size: 13px; }
    pre { background: #161b22; border: 1px solid #30363d; border-radius: 6px; padding: 12px 16px; overflow-x: auto; }
    table { border-collapse: collapse; width: 100%; }
    td, th { border: 1px solid #30363d; padding: 6px 10px; text-align: left; }
  </style>
</head>
<body>
<main>
  <p><a href="/docs">← REST API docs</a></p>
  <h1>Change Stream</h1>
  <p><code>GET /api/v1/stream</code> is a Server-Sent Events endpoint. Every time the recency
  list is written, the full list is sent as one event on the <code>tabs</code> feed.</p>

  <h2>Query parameters</h2>
  <table>
    <tr><th>Name</th><th>Description</th></tr>
    <tr><td><code>feeds</code></td><td>Comma separated feed names to receive. Omit for all feeds.</td></tr>
  </table>

  <h2>Event format</h2>
<pre>event: tabs
data: [{"id":12,"title":"Go","url":"https://go.dev","time":1718000000000,"windowId":3}]
</pre>
  <p>An empty list (<code>[]</code>) is sent after the history is cleared. A
  <code>: keepalive</code> comment is written every 25 seconds on idle connections.</p>

  <h2>Example</h2>
<pre>curl -N 'http://127.0.0.1:8190/api/v1/stream?feeds=tabs'</pre>
<pre>const es = new EventSource("/api/v1/stream?feeds=tabs");
es.addEventListener("tabs", (e) =&gt; render(JSON.parse(e.data)));</pre>
</main>
</body>
</html>`
