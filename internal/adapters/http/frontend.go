package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
)

// frontendHTML is a map page that reports its region to the viewport
// endpoints and draws the returned render pass.
const frontendHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>clustermap</title>
    <link rel="stylesheet" href="https://unpkg.com/leaflet@1.9.4/dist/leaflet.css">
    <style>
        :root {
            --primary: #2563eb;
            --text: #1e293b;
            --muted: #64748b;
            --radius: 8px;
        }

        html, body, #map {
            height: 100%;
            margin: 0;
        }

        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            color: var(--text);
        }

        .status {
            position: absolute;
            z-index: 1000;
            bottom: 1rem;
            left: 1rem;
            background: #fff;
            padding: 0.4rem 0.75rem;
            border-radius: var(--radius);
            box-shadow: 0 1px 3px rgba(0,0,0,0.2);
            font-size: 0.85rem;
            color: var(--muted);
        }

        .cluster {
            display: flex;
            align-items: center;
            justify-content: center;
            border-radius: 50%;
            background: var(--primary);
            color: #fff;
            font-weight: 600;
            border: 3px solid rgba(255,255,255,0.8);
        }
    </style>
</head>
<body>
    <div id="map"></div>
    <div class="status" id="status">loading</div>
    <script src="https://unpkg.com/leaflet@1.9.4/dist/leaflet.js"></script>
    <script>
        (function() {
            const status = document.getElementById('status');
            const map = L.map('map', { worldCopyJump: true }).setView([20, 0], 2);
            L.tileLayer('https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png', {
                maxZoom: 19,
                attribution: '&copy; OpenStreetMap contributors'
            }).addTo(map);

            const layer = L.layerGroup().addTo(map);

            function region() {
                const b = map.getBounds();
                const c = map.getCenter();
                return {
                    latitude: c.lat,
                    longitude: c.lng,
                    latitudeDelta: b.getNorth() - b.getSouth(),
                    longitudeDelta: Math.min(b.getEast() - b.getWest(), 360)
                };
            }

            function clusterIcon(count, content) {
                const size = count < 10 ? 30 : count < 100 ? 38 : 46;
                return L.divIcon({
                    html: '<div class="cluster" style="width:' + size + 'px;height:' + size + 'px">' +
                        escapeHtml(String(content)) + '</div>',
                    className: '',
                    iconSize: [size, size]
                });
            }

            function draw(resp) {
                const pass = resp.headers.get('X-Render-Pass');
                return resp.json().then(function(fc) {
                    layer.clearLayers();
                    let clusters = 0;
                    fc.features.forEach(function(f) {
                        const p = f.properties;
                        const ll = [f.geometry.coordinates[1], f.geometry.coordinates[0]];
                        if (p.cluster) {
                            clusters++;
                            L.marker(ll, { icon: clusterIcon(p.point_count, p.content) })
                                .on('click', function() { click(p.key, p.expansion_zoom, ll); })
                                .addTo(layer);
                        } else {
                            L.circleMarker(ll, { radius: 6, color: '#2563eb' })
                                .bindPopup('<pre>' + escapeHtml(JSON.stringify(p.payload, null, 2)) + '</pre>')
                                .addTo(layer);
                        }
                    });
                    status.textContent = 'pass ' + pass + ': ' + fc.features.length + ' markers, ' +
                        clusters + ' clusters';
                });
            }

            function post(path, body) {
                return fetch('/api/v1/viewport/' + path, {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: body ? JSON.stringify(body) : undefined
                }).then(function(resp) {
                    if (!resp.ok) {
                        return resp.json().then(function(e) { throw new Error(e.message || resp.statusText); });
                    }
                    return resp;
                });
            }

            function click(key, zoom, ll) {
                post('items/' + encodeURIComponent(key) + '/click').then(function() {
                    map.flyTo(ll, Math.max(zoom, map.getZoom() + 1));
                }).catch(fail);
            }

            function fail(err) {
                status.textContent = 'error: ' + err.message;
            }

            map.on('moveend', function() {
                post('region', region()).then(draw).catch(fail);
            });

            post('region', region())
                .then(function() { return post('ready'); })
                .then(draw)
                .catch(fail);

            function escapeHtml(str) {
                if (!str) return '';
                return String(str)
                    .replace(/&/g, '&amp;')
                    .replace(/</g, '&lt;')
                    .replace(/>/g, '&gt;')
                    .replace(/"/g, '&quot;')
                    .replace(/'/g, '&#39;');
            }
        })();
    </script>
</body>
</html>`

// handleFrontend serves the map page.
func (s *Server) handleFrontend(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(frontendHTML))
}
