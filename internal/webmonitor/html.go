package webmonitor

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>YOLO Live Monitor</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        body { margin: 0; font-family: -apple-system, "Segoe UI", sans-serif; background: #111; color: #eee; }
        .app { max-width: 1200px; margin: 0 auto; padding: 16px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 12px; }
        .title { font-size: 20px; font-weight: 600; }
        .badge { padding: 3px 10px; border-radius: 10px; font-size: 12px; background: #333; }
        .badge.live { background: #14532d; color: #6ee7a0; }
        .grid { display: grid; grid-template-columns: 2fr 1fr; gap: 12px; }
        .panel { background: #1c1c1c; border-radius: 8px; padding: 12px; }
        .panel h2 { margin: 0 0 8px; font-size: 15px; }
        #stream { width: 100%; height: auto; display: block; background: #000; border-radius: 4px; }
        canvas { width: 100%; }
        .controls { display: flex; gap: 8px; margin-top: 8px; }
        button { background: #2d2d2d; color: #eee; border: 1px solid #444; border-radius: 6px;
                 padding: 6px 14px; cursor: pointer; font-size: 13px; }
        button:hover { background: #3a3a3a; }
        button.danger { border-color: #7f1d1d; color: #fca5a5; }
        .stat-row { display: flex; justify-content: space-between; font-size: 13px; padding: 3px 0; color: #aaa; }
        .stat-row span:last-child { color: #eee; }
        .chart-title { font-size: 12px; color: #888; margin: 8px 0 4px; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">YOLO Live Monitor</div>
            <span class="badge" id="status-badge">Waiting for data...</span>
        </div>

        <div class="grid">
            <div class="panel">
                <h2>Live Feed</h2>
                <img id="stream" src="/stream" alt="Annotated live stream">
                <div class="controls">
                    <button id="btn-reset" class="danger">Reset Statistics</button>
                    <button id="btn-rec-start">Start Recording</button>
                    <button id="btn-rec-stop">Stop Recording</button>
                    <span class="badge" id="rec-badge"></span>
                </div>
            </div>

            <div class="panel">
                <h2>Detection Statistics</h2>
                <div class="stat-row"><span>Frames processed</span><span id="frames">--</span></div>
                <div class="stat-row"><span>FPS</span><span id="fps">--</span></div>
                <div class="stat-row"><span>Cumulative total</span><span id="total">--</span></div>
                <div class="stat-row"><span>Distinct labels</span><span id="distinct">--</span></div>

                <div class="chart-title" id="frame-title">Current frame</div>
                <canvas id="frame-chart" height="140"></canvas>
                <div class="chart-title" id="cumulative-title">Cumulative (top 10)</div>
                <canvas id="cumulative-chart" height="200"></canvas>
            </div>
        </div>
    </div>

    <script>
        const barColor = '#4ade80';

        function drawBarChart(canvas, entries) {
            const ctx = canvas.getContext('2d');
            const w = canvas.width = canvas.clientWidth;
            const h = canvas.height;
            ctx.clearRect(0, 0, w, h);
            if (!entries || entries.length === 0) return;

            const maxCount = Math.max(...entries.map(e => e.count));
            const barH = Math.min(18, (h - 4) / entries.length - 4);
            entries.forEach((e, i) => {
                const y = 2 + i * (barH + 4);
                const barW = maxCount > 0 ? (e.count / maxCount) * (w - 120) : 0;
                ctx.fillStyle = barColor;
                ctx.fillRect(100, y, barW, barH);
                ctx.fillStyle = '#ccc';
                ctx.font = '11px sans-serif';
                ctx.textAlign = 'right';
                ctx.fillText(e.label, 95, y + barH - 4);
                ctx.textAlign = 'left';
                ctx.fillText(e.count, 105 + barW, y + barH - 4);
            });
        }

        function applyStats(ev) {
            document.getElementById('status-badge').textContent = 'Live';
            document.getElementById('status-badge').classList.add('live');
            document.getElementById('frames').textContent = ev.frame_number ?? '--';
            document.getElementById('total').textContent = ev.cumulative_total ?? 0;
            document.getElementById('distinct').textContent = ev.distinct_labels ?? 0;
            document.getElementById('cumulative-title').textContent =
                'Cumulative (top 10) - total ' + (ev.cumulative_total ?? 0);
            drawBarChart(document.getElementById('frame-chart'), ev.frame);
            drawBarChart(document.getElementById('cumulative-chart'), ev.cumulative);
        }

        const source = new EventSource('/api/stats/stream');
        source.onmessage = (msg) => {
            try { applyStats(JSON.parse(msg.data)); } catch (e) { /* ignore */ }
        };
        source.onerror = () => {
            document.getElementById('status-badge').textContent = 'Disconnected';
            document.getElementById('status-badge').classList.remove('live');
        };

        async function refreshSnapshot() {
            try {
                const res = await fetch('/api/stats');
                const data = await res.json();
                if (data.monitor) {
                    document.getElementById('fps').textContent =
                        data.monitor.current_fps ? data.monitor.current_fps.toFixed(1) : '--';
                }
            } catch (e) { /* ignore */ }
        }
        setInterval(refreshSnapshot, 2000);

        document.getElementById('btn-reset').onclick = async () => {
            await fetch('/api/stats/reset', { method: 'POST' });
        };
        document.getElementById('btn-rec-start').onclick = async () => {
            const res = await fetch('/api/recording/start', { method: 'POST' });
            const data = await res.json();
            document.getElementById('rec-badge').textContent =
                res.ok ? 'REC ' + data.file : (data.error || 'error');
        };
        document.getElementById('btn-rec-stop').onclick = async () => {
            const res = await fetch('/api/recording/stop', { method: 'POST' });
            const data = await res.json();
            document.getElementById('rec-badge').textContent =
                res.ok ? 'saved ' + data.file : (data.error || 'error');
        };
    </script>
</body>
</html>
`
