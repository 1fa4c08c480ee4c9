package server

// Minimal page driving the upload/click/launch flow. All decisions happen
// server side; the page only renders responses and forwards clicks with the
// displayed dimensions of the preview that was clicked.
var indexHTML = []byte(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>ChessSnap PDF</title>
<style>
body { font-family: sans-serif; max-width: 900px; margin: 2em auto; }
.preview { max-width: 100%; cursor: crosshair; margin-bottom: 1em; }
#error { color: #b00020; }
#launch { display: none; }
</style>
</head>
<body>
<h1>ChessSnap PDF</h1>
<form id="upload-form">
  <input type="file" id="file" accept=".pdf">
  <button type="submit">Upload</button>
</form>
<p id="error"></p>
<div id="previews"></div>
<div id="result"></div>
<div id="launch">
  <button data-site="lichess">Play on Lichess</button>
  <button data-site="chess.com">Analyze on Chess.com</button>
</div>
<script>
const errorLine = document.getElementById('error');
const previews = document.getElementById('previews');
const result = document.getElementById('result');
const launch = document.getElementById('launch');
let currentFen = '';
let analyzeSeq = 0, appliedSeq = 0;

document.getElementById('upload-form').addEventListener('submit', async (e) => {
  e.preventDefault();
  const file = document.getElementById('file').files[0];
  if (!file) { errorLine.textContent = 'No file selected'; return; }
  const form = new FormData();
  form.append('file', file);
  let resp;
  try {
    resp = await fetch('/upload', { method: 'POST', body: form });
  } catch (err) {
    errorLine.textContent = 'Error uploading file.';
    return;
  }
  const data = await resp.json();
  if (data.error) { errorLine.textContent = data.error; return; }
  errorLine.textContent = '';
  currentFen = '';
  appliedSeq = analyzeSeq;
  launch.style.display = 'none';
  result.innerHTML = '';
  previews.innerHTML = '';
  for (const p of data.previews) {
    const img = document.createElement('img');
    img.src = p.preview_data;
    img.className = 'preview';
    img.addEventListener('click', (ev) => {
      const rect = img.getBoundingClientRect();
      analyze(p, ev.clientX - rect.left, ev.clientY - rect.top, rect.width, rect.height);
    });
    previews.appendChild(img);
  }
});

async function analyze(p, clickX, clickY, dispW, dispH) {
  if (dispW <= 0 || dispH <= 0) return;
  const origX = Math.round(clickX * p.original_width / dispW);
  const origY = Math.round(clickY * p.original_height / dispH);
  const seq = ++analyzeSeq;
  let resp;
  try {
    resp = await fetch('/analyze', {
      method: 'POST',
      headers: { 'Content-Type': 'application/json' },
      body: JSON.stringify({ image: p.preview_data, origX: origX, origY: origY })
    });
  } catch (err) {
    if (seq > appliedSeq) { appliedSeq = seq; errorLine.textContent = 'Analysis failed.'; }
    return;
  }
  const data = await resp.json();
  if (seq <= appliedSeq) return;
  appliedSeq = seq;
  if (data.error) { errorLine.textContent = data.error; return; }
  errorLine.textContent = '';
  currentFen = data.fen;
  result.innerHTML = '';
  for (const src of [data.chessboard_url, data.board_render]) {
    if (!src) continue;
    const img = document.createElement('img');
    img.src = src;
    img.style.maxWidth = '45%';
    result.appendChild(img);
  }
  launch.style.display = 'block';
}

launch.addEventListener('click', async (e) => {
  const site = e.target.dataset.site;
  if (!site || !currentFen) return;
  const resp = await fetch('/start_game', {
    method: 'POST',
    headers: { 'Content-Type': 'application/json' },
    body: JSON.stringify({ site: site, fen: currentFen })
  });
  const data = await resp.json();
  if (data.error) { errorLine.textContent = data.error; return; }
  window.open(data.redirect_url, '_blank');
});
</script>
</body>
</html>
`)
