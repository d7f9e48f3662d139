package webui

const indexHTML = `
<!DOCTYPE html>
<html>
<head>
    <title>Liveness Camera</title>
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <style>
        :root { color-scheme: dark; }
        body { margin: 0; font-family: system-ui, sans-serif; background: #12151c; color: #e8eaf0; }
        .app { max-width: 860px; margin: 0 auto; padding: 24px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 16px; }
        .title { font-size: 20px; font-weight: 600; }
        .badge { padding: 4px 10px; border-radius: 12px; font-size: 13px; background: #2a2f3a; }
        .badge.detecting { background: #1b5e20; }
        .badge.no-detection { background: #4a4410; }
        .badge.camera-error { background: #7f1d1d; }
        .panel { background: #1a1e27; border-radius: 8px; padding: 16px; }
        img#stream { width: 100%; height: auto; display: block; border-radius: 4px; background: #000; }
        .controls { margin-top: 12px; display: flex; gap: 8px; }
        button { padding: 8px 18px; border: 0; border-radius: 4px; font-size: 14px; cursor: pointer; }
        #btn-start { background: #2e7d32; color: #fff; }
        #btn-stop { background: #c62828; color: #fff; }
        button:disabled { opacity: 0.4; cursor: default; }
        .message { margin-top: 10px; font-size: 14px; color: #9aa3b2; }
    </style>
</head>
<body>
    <div class="app">
        <div class="header">
            <div class="title">Liveness Camera</div>
            <span class="badge" id="status-badge">idle</span>
        </div>
        <div class="panel">
            <img id="stream" src="/stream" alt="Live camera view">
            <div class="controls">
                <button type="button" id="btn-start">Start</button>
                <button type="button" id="btn-stop" disabled>Stop</button>
            </div>
            <p class="message" id="status-message">Press start to begin</p>
        </div>
    </div>
    <script>
        const badge = document.getElementById('status-badge');
        const message = document.getElementById('status-message');
        const btnStart = document.getElementById('btn-start');
        const btnStop = document.getElementById('btn-stop');

        function applyStatus(payload) {
            const s = payload.session;
            badge.textContent = s.status;
            badge.className = 'badge ' + s.status;
            message.textContent = s.message;
            btnStart.disabled = s.active;
            btnStop.disabled = !s.active;
        }

        btnStart.addEventListener('click', async () => {
            btnStart.disabled = true;
            message.textContent = 'Initializing camera...';
            const resp = await fetch('/api/session/start', { method: 'POST' });
            applyStatus(await resp.json());
        });

        btnStop.addEventListener('click', async () => {
            btnStop.disabled = true;
            const resp = await fetch('/api/session/stop', { method: 'POST' });
            applyStatus(await resp.json());
        });

        const events = new EventSource('/api/status/stream');
        events.onmessage = (e) => applyStatus(JSON.parse(e.data));
        events.onerror = () => {
            badge.textContent = 'offline';
            badge.className = 'badge';
        };
    </script>
</body>
</html>
`
