package archive

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/xeipuuv/gojsonschema"

	"github.com/go-go-golems/basilisk/pkg/conversation"
)

// ManifestName is the entry holding the conversation JSON.
const ManifestName = "conversation.json"

//go:embed schema/conversation.schema.json
var manifestSchema []byte

// Manifest is the JSON document stored in ManifestName.
type Manifest struct {
	Messages []Block   `json:"messages"`
	Systems  []Message `json:"systems"`
	Title    *string   `json:"title"`
	Version  *int      `json:"version"`
}

type Block struct {
	Request     Message                  `json:"request"`
	Response    *Message                 `json:"response"`
	Model       conversation.AIModelInfo `json:"model"`
	SystemIndex *int                     `json:"system_index"`
	Temperature *float64                 `json:"temperature,omitempty"`
	TopP        *float64                 `json:"top_p,omitempty"`
	MaxTokens   *int                     `json:"max_tokens,omitempty"`
	Stream      bool                     `json:"stream,omitempty"`
}

type Message struct {
	Role        string                   `json:"role"`
	Content     string                   `json:"content"`
	Attachments []Attachment             `json:"attachments"`
	Citations   []map[string]interface{} `json:"citations"`
}

// Attachment is discriminated by Type: "file" and "image" locations are
// entries of the archive, "url" locations are remote URIs.
type Attachment struct {
	Type        string      `json:"type" jsonschema:"enum=file,enum=image,enum=url"`
	Location    string      `json:"location"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	MimeType    string      `json:"mime_type,omitempty"`
	Size        *int64      `json:"size,omitempty"`
	Dimensions  *Dimensions `json:"dimensions,omitempty"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Schema reflects the manifest types into a JSON schema document.
func Schema() ([]byte, error) {
	r := &jsonschema.Reflector{DoNotReference: true}
	s := r.Reflect(&Manifest{})
	s.Title = "basilisk conversation manifest"
	return json.MarshalIndent(s, "", "  ")
}

// validateManifest checks raw manifest bytes against the embedded schema.
func validateManifest(data []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(manifestSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return &conversation.ValidationError{Field: ManifestName, Reason: err.Error()}
	}
	if !result.Valid() {
		errs := result.Errors()
		reason := errs[0].String()
		if len(errs) > 1 {
			reason = fmt.Sprintf("%s (and %d more)", reason, len(errs)-1)
		}
		return &conversation.ValidationError{Field: ManifestName, Reason: reason}
	}
	return nil
}
