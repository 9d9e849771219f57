package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGoogleEndpoint = "https://translation.googleapis.com/language/translate/v2"

// GoogleClient calls the Cloud Translation v2 REST API.
type GoogleClient struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

type GoogleOption func(*GoogleClient)

func WithEndpoint(u string) GoogleOption {
	return func(c *GoogleClient) { c.endpoint = u }
}

func WithHTTPClient(h *http.Client) GoogleOption {
	return func(c *GoogleClient) { c.http = h }
}

func NewGoogleClient(apiKey string, opts ...GoogleOption) *GoogleClient {
	c := &GoogleClient{
		endpoint: defaultGoogleEndpoint,
		apiKey:   apiKey,
		http:     &http.Client{Timeout: 10 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type googleResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText         string `json:"translatedText"`
			DetectedSourceLanguage string `json:"detectedSourceLanguage"`
		} `json:"translations"`
	} `json:"data"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *GoogleClient) Translate(ctx context.Context, text, target string) (Translation, error) {
	form := url.Values{}
	form.Set("q", text)
	form.Set("target", target)
	form.Set("format", "text")
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Translation{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Translation{}, fmt.Errorf("google translate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Translation{}, fmt.Errorf("google translate: read body: %w", err)
	}

	var out googleResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return Translation{}, fmt.Errorf("google translate: status %d: decode: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return Translation{}, fmt.Errorf("google translate: status %d: %s", resp.StatusCode, msg)
	}
	if len(out.Data.Translations) == 0 {
		return Translation{}, fmt.Errorf("google translate: empty response")
	}

	tr := out.Data.Translations[0]
	return Translation{Text: tr.TranslatedText, DetectedSource: tr.DetectedSourceLanguage}, nil
}
