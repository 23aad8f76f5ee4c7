package http

import "net/http"

// handleIndex renders a minimal chat UI on top of the JSON API.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(indexHTML))
}

const indexHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Intelligent Research Assistant</title>
    <style>
        body { font-family: system-ui, sans-serif; max-width: 760px; margin: 2rem auto; padding: 0 1rem; }
        #messages { border: 1px solid #ddd; border-radius: 6px; padding: 1rem; min-height: 300px; white-space: pre-wrap; }
        .user { color: #0b5394; margin: .5rem 0; }
        .assistant { margin: .5rem 0 1rem; }
        .error { color: #b00020; }
        form { display: flex; gap: .5rem; margin-top: 1rem; }
        input[type=text] { flex: 1; padding: .5rem; }
        fieldset { margin-top: 1rem; }
    </style>
</head>
<body>
    <h1>Intelligent Research Assistant</h1>
    <label>Model
        <select id="model">
            <option>Gemini 2.5 Flash</option>
            <option>GPT-4o Mini</option>
            <option>GPT-4o</option>
        </select>
    </label>
    <div id="messages"></div>
    <form id="chat-form">
        <input type="text" id="question" placeholder="Ask about your documents or the web..." autocomplete="off" required>
        <button type="submit">Send</button>
    </form>
    <fieldset>
        <legend>Documents</legend>
        <input type="file" id="file" accept="application/pdf">
        <button id="upload">Upload</button>
        <button id="ingest">Process documents</button>
    </fieldset>
    <fieldset>
        <legend>Your API keys (optional)</legend>
        <input type="password" id="gemini" placeholder="Google API key">
        <input type="password" id="openai" placeholder="OpenAI API key">
        <button id="save-keys">Save</button>
    </fieldset>
    <script>
        let sessionId = sessionStorage.getItem('ira_session') || '';
        const messages = document.getElementById('messages');

        function append(cls, text) {
            const div = document.createElement('div');
            div.className = cls;
            div.textContent = text;
            messages.appendChild(div);
        }

        async function ensureSession() {
            if (sessionId) return sessionId;
            const res = await fetch('/api/sessions', { method: 'POST' });
            sessionId = (await res.json()).session_id;
            sessionStorage.setItem('ira_session', sessionId);
            return sessionId;
        }

        document.getElementById('chat-form').onsubmit = async (e) => {
            e.preventDefault();
            const input = document.getElementById('question');
            const question = input.value.trim();
            if (!question) return;
            input.value = '';
            append('user', question);
            const res = await fetch('/api/chat', {
                method: 'POST',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({ session_id: await ensureSession(), question, model: document.getElementById('model').value })
            });
            const data = await res.json();
            if (res.ok) append('assistant', data.answer);
            else append('assistant error', data.error);
        };

        document.getElementById('upload').onclick = async () => {
            const file = document.getElementById('file').files[0];
            if (!file) return;
            const form = new FormData();
            form.append('file', file);
            form.append('session_id', await ensureSession());
            const res = await fetch('/api/documents', { method: 'POST', body: form });
            const data = await res.json();
            append(res.ok ? 'assistant' : 'assistant error', res.ok ? 'Uploaded ' + data.filename : data.error);
        };

        document.getElementById('ingest').onclick = async () => {
            const res = await fetch('/api/ingest', { method: 'POST' });
            const data = await res.json();
            append(res.ok ? 'assistant' : 'assistant error', res.ok ? 'Indexed ' + data.documents + ' documents (' + data.chunks + ' chunks)' : data.error);
        };

        document.getElementById('save-keys').onclick = async () => {
            const res = await fetch('/api/sessions/' + await ensureSession() + '/credentials', {
                method: 'PUT',
                headers: { 'Content-Type': 'application/json' },
                body: JSON.stringify({
                    gemini_api_key: document.getElementById('gemini').value.trim(),
                    openai_api_key: document.getElementById('openai').value.trim()
                })
            });
            append(res.ok ? 'assistant' : 'assistant error', res.ok ? 'Keys saved for this session.' : 'Enter at least one key.');
        };
    </script>
</body>
</html>`
