package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bytedance/sonic"
)

type listModelsResponse struct {
	Data []struct {
		ID      string `json:"id"`
		OwnedBy string `json:"owned_by"`
	} `json:"data"`
}

// ListCompatModels queries an OpenAI-compatible GET /models endpoint.
func ListCompatModels(ctx context.Context, httpCli *http.Client, cfg Config) ([]ModelInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/models", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+cfg.APIKey)

	resp, err := httpCli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models from API: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed listModelsResponse
	if err := sonic.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	result := make([]ModelInfo, 0, len(parsed.Data))
	for _, item := range parsed.Data {
		if item.ID == "" {
			continue
		}
		result = append(result, ModelInfo{ID: item.ID, Name: item.ID, Provider: cfg.Type})
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("no models returned from API")
	}
	return result, nil
}
