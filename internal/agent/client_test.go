package agent

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medical-review-assistant/internal/consultation"
)

func TestComplete(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"## RAPPORT\nok"}}],"usage":{"prompt_tokens":10,"completion_tokens":3}}`))
	}))
	defer srv.Close()

	c := NewDeepSeekClient(Config{APIKey: "secret", BaseURL: srv.URL + "/"}, logrus.New())
	out, err := c.Complete(context.Background(), "system", "user")
	require.NoError(t, err)

	assert.Equal(t, "## RAPPORT\nok", out)
	assert.Equal(t, "deepseek-chat", got.Model)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "user", got.Messages[1].Content)
}

func TestCompleteErrors(t *testing.T) {
	_, err := NewDeepSeekClient(Config{}, nil).Complete(context.Background(), "s", "u")
	assert.ErrorIs(t, err, ErrNotConfigured)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"bad key"}`))
	}))
	defer srv.Close()

	c := NewDeepSeekClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err = c.Complete(context.Background(), "s", "u")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestGenerateConsultationPrompt(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Messages[1].Content
		w.Write([]byte(`{"choices":[{"message":{"content":"x"}}]}`))
	}))
	defer srv.Close()

	c := NewDeepSeekClient(Config{APIKey: "k", BaseURL: srv.URL}, nil)
	_, err := c.GenerateConsultation(context.Background(), consultation.Patient{
		Name:        "A. Martin",
		Age:         54,
		Complaint:   "douleur thoracique",
		Medications: []string{"Ramipril 5 mg"},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Patient : A. Martin, 54 ans")
	assert.Contains(t, prompt, "Motif de consultation : douleur thoracique")
	assert.Contains(t, prompt, "- Ramipril 5 mg")
	assert.NotContains(t, prompt, "Allergies")
	for _, h := range []string{"## RAPPORT", "## DIAGNOSTIC", "## EXAMENS", "## PRESCRIPTION"} {
		assert.Contains(t, prompt, h)
	}
}

func TestTranscribe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		data, _ := io.ReadAll(f)
		assert.Equal(t, "RIFF", string(data))
		assert.Equal(t, "dictation.wav", hdr.Filename)
		assert.Equal(t, "fr", r.FormValue("language"))
		assert.Contains(t, r.FormValue("initial_prompt"), "consultation")
		w.Write([]byte(`{"text":"  Examen\nnormal. ","language":"fr"}`))
	}))
	defer srv.Close()

	text, err := NewWhisperClient(srv.URL).Transcribe(context.Background(), []byte("RIFF"))
	require.NoError(t, err)
	assert.Equal(t, "Examen normal.", text)
}

func TestTranscribeSegmentsAndAutoDetect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hdr, err := r.FormFile("file")
		require.NoError(t, err)
		assert.Equal(t, "dictation.webm", hdr.Filename)
		_, hasLang := r.MultipartForm.Value["language"]
		assert.False(t, hasLang)
		w.Write([]byte(`{"text":"","segments":[{"text":"Tension 13/8."},{"text":" Pouls 72."}]}`))
	}))
	defer srv.Close()

	c := NewWhisperClient(srv.URL)
	c.Language = ""
	text, err := c.Transcribe(context.Background(), []byte{0x1A, 0x45, 0xDF, 0xA3, 0x01})
	require.NoError(t, err)
	assert.Equal(t, "Tension 13/8. Pouls 72.", text)
}

func TestTranscribeErrors(t *testing.T) {
	_, err := NewWhisperClient("http://unused").Transcribe(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyAudio)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err = NewWhisperClient(srv.URL).Transcribe(context.Background(), []byte("OggS"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestAudioFileName(t *testing.T) {
	assert.Equal(t, "dictation.ogg", audioFileName([]byte("OggS....")))
	assert.Equal(t, "dictation.mp3", audioFileName([]byte("ID3\x03")))
	assert.Equal(t, "dictation.mp3", audioFileName([]byte{0xFF, 0xFB, 0x90}))
	assert.Equal(t, "dictation.wav", audioFileName([]byte("unknown")))
}
