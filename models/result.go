package models

// Result is the output of a generation backend
type Result interface {
	Kind() GenerationKind
}

// TextResult holds generated text
type TextResult struct {
	Text     string `json:"text"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (TextResult) Kind() GenerationKind { return KindText }

// ImageResult holds a base64 encoded image
type ImageResult struct {
	MIMEType string `json:"mime_type"`
	Base64   string `json:"data"`
	Provider string `json:"provider,omitempty"`
	Model    string `json:"model,omitempty"`
}

func (ImageResult) Kind() GenerationKind { return KindImage }

// DataURI returns the image as a data URI ("data:<mime>;base64,<data>")
func (r ImageResult) DataURI() string {
	mime := r.MIMEType
	if mime == "" {
		mime = "image/png"
	}
	return "data:" + mime + ";base64," + r.Base64
}
