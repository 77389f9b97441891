package html

const reportTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
	<meta charset="utf-8">
	<title>{{.Title}}</title>
	{{- if .IncludeStyles }}
	<style>
		body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Helvetica, Arial, sans-serif; margin: 0; padding: 0; background: #f7f7f8; color: #202124; }
		main { max-width: 1080px; margin: 0 auto; padding: 32px 24px 48px; }
		header { background: #212a3b; color: #f7f7f8; padding: 32px 24px; }
		header h1 { margin: 0 0 8px; font-size: 28px; }
		header p { margin: 4px 0; opacity: 0.8; }
		header code { font-size: 13px; }
		section { margin-top: 32px; }
		section h2 { margin-bottom: 12px; font-size: 20px; }
		.card { background: #fff; border-radius: 12px; padding: 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); margin-bottom: 14px; }
		.card h3 { margin: 0 0 10px; font-size: 16px; color: #253043; display: flex; justify-content: space-between; }
		.card h3 span { font-size: 13px; font-weight: 400; color: #5b7083; }
		.bar { display: block; }
		.bar rect { stroke: #fff; stroke-width: 1; cursor: pointer; }
		.bar rect.filler { fill: #eceff3; cursor: default; }
		.bar text { font-size: 11px; fill: #202124; pointer-events: none; }
		.pending { color: #5b7083; font-style: italic; }
		table { width: 100%; border-collapse: collapse; font-size: 14px; margin-top: 10px; }
		th, td { text-align: left; padding: 6px 8px; border-bottom: 1px solid rgba(91,112,131,0.16); }
		tr[data-node-id] { cursor: pointer; }
		.legend { display: flex; flex-wrap: wrap; gap: 8px 14px; list-style: none; margin: 0; padding: 0; font-size: 13px; }
		.legend li { display: flex; align-items: center; gap: 6px; cursor: pointer; }
		.swatch { display: inline-block; width: 14px; height: 14px; border-radius: 3px; border: 1px solid rgba(33,42,59,0.25); }
		.graph-nodes { display: grid; grid-template-columns: repeat(auto-fill, minmax(160px, 1fr)); gap: 10px; list-style: none; margin: 0; padding: 0; }
		.graph-nodes li { border-radius: 10px; padding: 10px 12px; border: 1px solid rgba(33,42,59,0.2); font-size: 13px; cursor: pointer; }
		.graph-nodes li small { display: block; color: #364a63; }
		.edges { font-size: 12px; color: #5b7083; columns: 3; }
		.selected { outline: 3px solid #212a3b; outline-offset: 1px; }
		.bar rect.selected { stroke: #212a3b; stroke-width: 3; outline: none; }
		.insight-list { list-style: none; margin: 0; padding: 0; display: flex; flex-direction: column; gap: 10px; }
		.insight-list li { background: #fff; border-radius: 12px; padding: 14px 16px; box-shadow: 0 4px 12px rgba(13,28,39,0.10); font-size: 14px; color: #253043; display: flex; align-items: center; gap: 10px; }
		.insight-list li span.icon { font-size: 18px; }
		.insight-list li a { color: inherit; }
		.insight-list li.severity-critical { border-left: 4px solid #f44747; }
		.insight-list li.severity-warning { border-left: 4px solid #faae32; }
		.insight-list li.severity-info { border-left: 4px solid rgba(33,42,59,0.15); }
		pre.dot { background: #fff; border-radius: 12px; padding: 16px; overflow-x: auto; font-size: 12px; }
	</style>
	{{- end }}
</head>
<body>
	<header>
		<h1>{{.Title}}</h1>
		<p>Query {{.Summary.QueryID}} · Nodes {{.Summary.NodeCount}} · Edges {{.Summary.EdgeCount}}{{if .Summary.Runtime}} · Runtime {{.Summary.Runtime}}{{end}}{{if .Summary.Prediction}} · Predicted {{.Summary.Prediction}}{{end}}</p>
		{{- if .Summary.SQL }}
		<p><code>{{.Summary.SQL}}</code></p>
		{{- end }}
	</header>
	<main>
		{{- if .Insights }}
		<section>
			<h2>Insights</h2>
			<ul class="insight-list">
				{{- range .Insights }}
				<li class="severity-{{.Severity}}"{{if .HasNode}} data-node-id="{{.NodeID}}"{{end}}><span class="icon">{{.Icon}}</span><span class="insight-text">
					{{- if .Anchor -}}
						<a href="#{{.Anchor}}">{{.Text}}</a>
					{{- else -}}
						{{.Text}}
					{{- end -}}
				</span></li>
				{{- end }}
			</ul>
		</section>
		{{- end }}

		<section>
			<h2>Node importance</h2>
			{{- range .Explainers }}
			<div class="card">
				<h3>{{.Label}}{{if .ExecutionTime}} <span>computed in {{.ExecutionTime}}</span>{{end}}</h3>
				{{- if .Pending }}
				<p class="pending">No explanation yet</p>
				{{- else }}
				<svg class="bar" width="{{.Width}}" height="28" viewBox="0 0 {{.Width}} 28">
					{{- range .Segments }}
					<rect data-node-id="{{.NodeID}}" x="{{.X}}" y="0" width="{{.Width}}" height="28" fill="{{.Color}}"{{if .Selected}} class="selected"{{end}}><title>{{.Title}}</title></rect>
					{{- if .ShowLabel }}
					<text x="{{.X}}" dx="4" y="18">{{.Label}}</text>
					{{- end }}
					{{- end }}
					{{- if .Remaining }}
					<rect class="filler" x="{{.RemainingX}}" y="0" width="{{.Remaining}}" height="28"></rect>
					{{- end }}
				</svg>
				<table>
					<thead><tr><th>#</th><th>Node</th><th>Type</th><th>Importance</th><th>Cost</th></tr></thead>
					<tbody>
						{{- range .Rows }}
						<tr data-node-id="{{.NodeID}}"{{if .Selected}} class="selected"{{end}}>
							<td>{{.Rank}}</td>
							<td>{{.Label}}</td>
							<td>{{.Type}}</td>
							<td>{{.Score}}</td>
							<td>{{.Cost}}</td>
						</tr>
						{{- else }}
						<tr><td colspan="5">No node above the importance threshold</td></tr>
						{{- end }}
					</tbody>
				</table>
				{{- if .Hidden }}
				<p class="pending">{{.Hidden}} more node(s) not shown</p>
				{{- end }}
				{{- end }}
			</div>
			{{- end }}
			{{- if .Legend }}
			<ul class="legend">
				{{- range .Legend }}
				<li data-node-id="{{.NodeID}}"{{if .Selected}} class="selected"{{end}}><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</li>
				{{- end }}
			</ul>
			{{- end }}
		</section>

		<section>
			<h2>Plan graph <small>({{.Graph.Mode}}{{if and .Graph.ShowsScale .Graph.Explainer}}, {{.Graph.Explainer}}{{end}})</small></h2>
			<div class="card">
				<ul class="graph-nodes">
					{{- range .Graph.Nodes }}
					<li id="{{.Anchor}}" data-node-id="{{.NodeID}}"{{if .Fill}} style="background: {{.Fill}}"{{end}}{{if .Selected}} class="selected"{{end}}>
						<strong>{{.Label}}</strong>
						<small>{{.Type}}{{if .Score}} · {{.Score}}{{end}}</small>
					</li>
					{{- end }}
				</ul>
				{{- if .Graph.Edges }}
				<ul class="edges">
					{{- range .Graph.Edges }}
					<li>{{.From}} → {{.To}}</li>
					{{- end }}
				</ul>
				{{- end }}
				<ul class="legend">
					{{- if .Graph.ShowsScale }}
					{{- range .Graph.Scale }}
					<li><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</li>
					{{- end }}
					{{- else }}
					{{- range .Graph.Types }}
					<li><span class="swatch" style="background: {{.Color}}"></span>{{.Label}}</li>
					{{- end }}
					{{- end }}
				</ul>
			</div>
			{{- if .Graph.HasDOT }}
			<pre class="dot">{{.Graph.DOT}}</pre>
			{{- end }}
		</section>

		<section>
			<h2>Evaluation</h2>
			<div class="card">
				{{- if .Evaluations.Rows }}
				<table>
					<thead><tr><th>Explainer</th>{{range .Evaluations.Metrics}}<th>{{.}}</th>{{end}}</tr></thead>
					<tbody>
						{{- range .Evaluations.Rows }}
						<tr>
							<td>{{.Explainer}}</td>
							{{- range .Cells }}
							{{- if .Present }}
							<td style="background: {{.Color}}"{{if .Title}} title="{{.Title}}"{{end}}>{{.Score}}</td>
							{{- else }}
							<td>-</td>
							{{- end }}
							{{- end }}
						</tr>
						{{- end }}
					</tbody>
				</table>
				{{- else }}
				<p class="pending">No evaluation results yet</p>
				{{- end }}
			</div>
		</section>
	</main>
	<script>
		(function () {
			var current = null;
			function mark(id) {
				document.querySelectorAll('[data-node-id]').forEach(function (el) {
					el.classList.toggle('selected', id !== null && el.getAttribute('data-node-id') === id);
				});
			}
			var initial = document.querySelector('[data-node-id].selected');
			if (initial) { current = initial.getAttribute('data-node-id'); }
			document.querySelectorAll('[data-node-id]').forEach(function (el) {
				el.addEventListener('click', function () {
					var id = el.getAttribute('data-node-id');
					current = id;
					mark(current);
				});
			});
			document.addEventListener('keydown', function (ev) {
				if (ev.key === 'Escape') {
					current = null;
					mark(current);
				}
			});
		})();
	</script>
</body>
</html>
`
