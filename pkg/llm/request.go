package llm

// BuildRequest constructs the request for one completion call.
//
// Text models get an optional system message followed by one user message
// holding the prompt; jsonMode asks the service for a single JSON object.
// Vision models with a non-empty imageURL get one user message made of a
// text part and an image part, and never use JSON mode. A vision model
// with an empty imageURL falls back to the text shape.
func BuildRequest(model Model, prompt, system, imageURL string, jsonMode bool) Request {
	req := Request{
		Model:     model,
		MaxTokens: MaxOutputTokens,
	}

	if system != "" {
		req.Messages = append(req.Messages, Message{Role: RoleSystem, Content: system})
	}

	switch {
	case model.Kind == KindVision && imageURL != "":
		req.Messages = append(req.Messages, Message{
			Role:  RoleUser,
			Parts: []Part{TextPart(prompt), ImagePart(imageURL)},
		})
	default:
		req.Messages = append(req.Messages, Message{Role: RoleUser, Content: prompt})
		req.JSONMode = jsonMode && model.JSONMode
	}

	return req
}

// ImageURL returns the image URL carried by the request, if any.
func (r Request) ImageURL() string {
	for _, m := range r.Messages {
		for _, p := range m.Parts {
			if p.Type == PartImageURL {
				return p.ImageURL
			}
		}
	}
	return ""
}
