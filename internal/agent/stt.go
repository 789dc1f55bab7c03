package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Local Whisper service, shared with the dictation endpoint.
const defaultSTTURL = "http://stt:8000/transcribe"

// dictationPrompt primes Whisper with the vocabulary of a French clinical note.
const dictationPrompt = "Compte rendu de consultation médicale. Examen clinique, antécédents, " +
	"diagnostic, posologie en mg, comprimés, deux fois par jour."

var ErrEmptyAudio = errors.New("empty audio recording")

// WhisperClient transcribes clinician dictation. Language and Prompt are sent
// as decoding hints; leave them empty to let the service auto-detect.
type WhisperClient struct {
	URL      string
	Language string
	Prompt   string

	httpClient *http.Client
}

func NewWhisperClient(url string) *WhisperClient {
	if url == "" {
		url = defaultSTTURL
	}
	return &WhisperClient{
		URL:      url,
		Language: "fr",
		Prompt:   dictationPrompt,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
	Segments []struct {
		Text string `json:"text"`
	} `json:"segments"`
}

// Transcribe returns the dictated text on a single line.
func (c *WhisperClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if len(audioData) == 0 {
		return "", ErrEmptyAudio
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", audioFileName(audioData))
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	for name, value := range map[string]string{"language": c.Language, "initial_prompt": c.Prompt} {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return "", err
		}
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("stt request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("stt api error: %s - %s", resp.Status, string(respBody))
	}

	var result sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding stt response: %w", err)
	}

	text := result.Text
	if strings.TrimSpace(text) == "" && len(result.Segments) > 0 {
		parts := make([]string, 0, len(result.Segments))
		for _, s := range result.Segments {
			parts = append(parts, s.Text)
		}
		text = strings.Join(parts, " ")
	}
	return strings.Join(strings.Fields(text), " "), nil
}

// audioFileName picks an extension the service can decode. Browsers record
// webm or ogg, the desktop recorder sends wav.
func audioFileName(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("RIFF")):
		return "dictation.wav"
	case bytes.HasPrefix(data, []byte("OggS")):
		return "dictation.ogg"
	case bytes.HasPrefix(data, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return "dictation.webm"
	case bytes.HasPrefix(data, []byte("ID3")), len(data) > 1 && data[0] == 0xFF && data[1]&0xE0 == 0xE0:
		return "dictation.mp3"
	default:
		return "dictation.wav"
	}
}
