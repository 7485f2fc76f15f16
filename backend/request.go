package backend

import "strings"

// GenerationRequest describes one image generation call. Size and Model fall
// back to the client defaults when empty.
type GenerationRequest struct {
	Prompt string
	Size   string
	Model  string
}

// generationPayload is the wire shape of the backend's generations endpoint.
type generationPayload struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Size           string `json:"size"`
	ResponseFormat string `json:"response_format"`
	Stream         bool   `json:"stream"`
}

// buildPayload validates the request and fills in defaults. An empty prompt
// is rejected here, before any network I/O.
func (c *Client) buildPayload(req *GenerationRequest) (*generationPayload, error) {
	if req == nil || strings.TrimSpace(req.Prompt) == "" {
		return nil, &ValidationError{Reason: "prompt cannot be empty"}
	}

	size := req.Size
	if size == "" {
		size = c.cfg.Size
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}

	return &generationPayload{
		Model:          model,
		Prompt:         req.Prompt,
		Size:           size,
		ResponseFormat: "b64_json",
		Stream:         true,
	}, nil
}
