package server

// HTMLPage is the leak-check test page. It builds a connection from /config,
// sends its offer through /offer or /ws and shows the server's audit.
// window.leakcheck exposes the same runs to automation.
const HTMLPage = `<!DOCTYPE html>
<html>
<head>
    <title>WebRTC Leak Check</title>
    <style>
        body { font-family: sans-serif; max-width: 760px; margin: 2em auto; }
        #status { margin: 1em 0; padding: 0.6em; }
        .status-waiting { background: #eee; }
        .status-clean { background: #dfd; }
        .status-leaking { background: #fdd; }
        pre { background: #f6f6f6; padding: 0.6em; overflow-x: auto; }
    </style>
</head>
<body>
    <h1>WebRTC Leak Check</h1>
    <p>Shows which ICE candidates this browser discloses to a signaling server.</p>

    <button id="http">Check (single offer)</button>
    <button id="trickle">Check (trickle)</button>

    <div id="status" class="status-waiting">Guard: <span id="guarded"></span></div>
    <pre id="report"></pre>

    <script>
    (function () {
        const status = document.getElementById('status');
        const output = document.getElementById('report');
        document.getElementById('guarded').textContent =
            RTCPeerConnection.__rtcguard ? 'installed' : 'not installed';

        async function newConnection() {
            const res = await fetch('/config');
            const cfg = await res.json();
            const pc = new RTCPeerConnection(cfg);
            pc.createDataChannel('leakcheck');
            return pc;
        }

        function gathered(pc, timeoutMs) {
            return new Promise(function (resolve) {
                if (pc.iceGatheringState === 'complete') {
                    resolve();
                    return;
                }
                const timer = setTimeout(resolve, timeoutMs);
                pc.addEventListener('icegatheringstatechange', function () {
                    if (pc.iceGatheringState === 'complete') {
                        clearTimeout(timer);
                        resolve();
                    }
                });
            });
        }

        function show(report) {
            status.className = report.leaking ? 'status-leaking' : 'status-clean';
            status.textContent = report.leaking
                ? 'Local addresses disclosed'
                : 'No local address disclosed';
            output.textContent = JSON.stringify(report, null, 2);
            return report;
        }

        async function runHTTP() {
            const pc = await newConnection();
            try {
                await pc.setLocalDescription(await pc.createOffer());
                await gathered(pc, 5000);
                const res = await fetch('/offer', {
                    method: 'POST',
                    headers: { 'Content-Type': 'application/json' },
                    body: JSON.stringify(pc.localDescription),
                });
                if (!res.ok) {
                    throw new Error('offer rejected: ' + res.status);
                }
                const body = await res.json();
                await pc.setRemoteDescription(body.answer);
                return show(body.report);
            } finally {
                pc.close();
            }
        }

        async function runTrickle() {
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(scheme + location.host + '/ws');
            await new Promise(function (resolve, reject) {
                ws.onopen = resolve;
                ws.onerror = function () { reject(new Error('websocket failed')); };
            });

            const pc = await newConnection();
            let reports = 0;
            const done = new Promise(function (resolve, reject) {
                ws.onmessage = async function (event) {
                    const msg = JSON.parse(event.data);
                    switch (msg.type) {
                    case 'answer':
                        await pc.setRemoteDescription({ type: 'answer', sdp: msg.sdp });
                        break;
                    case 'candidate':
                        if (msg.candidate) {
                            await pc.addIceCandidate(msg.candidate).catch(function () {});
                        }
                        break;
                    case 'report':
                        // The second report follows our end of candidates.
                        if (++reports === 2) {
                            resolve(msg.report);
                        }
                        break;
                    case 'error':
                        reject(new Error(msg.error));
                        break;
                    }
                };
            });

            pc.onicecandidate = function (event) {
                const candidate = event.candidate ? event.candidate.toJSON() : undefined;
                ws.send(JSON.stringify({ type: 'candidate', candidate: candidate }));
            };

            try {
                const offer = await pc.createOffer();
                ws.send(JSON.stringify({ type: 'offer', sdp: offer.sdp }));
                await pc.setLocalDescription(offer);
                return show(await done);
            } finally {
                pc.close();
                ws.close();
            }
        }

        function run(fn) {
            return function () {
                status.className = 'status-waiting';
                status.textContent = 'Checking...';
                fn().catch(function (err) {
                    status.className = 'status-leaking';
                    status.textContent = 'Error: ' + err.message;
                });
            };
        }

        document.getElementById('http').onclick = run(runHTTP);
        document.getElementById('trickle').onclick = run(runTrickle);

        window.leakcheck = { runHTTP: runHTTP, runTrickle: runTrickle };
    })();
    </script>
</body>
</html>
`
