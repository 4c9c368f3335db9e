package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sort"

	"github.com/pkg/errors"

	"github.com/go-go-golems/basilisk/pkg/engine"
)

type tagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Model   string `json:"model"`
		Size    int64  `json:"size"`
		Details struct {
			Family            string   `json:"family"`
			Families          []string `json:"families"`
			ParameterSize     string   `json:"parameter_size"`
			QuantizationLevel string   `json:"quantization_level"`
		} `json:"details"`
	} `json:"models"`
}

// listModels asks the server which models are pulled locally.
func (e *Engine) listModels(ctx context.Context) ([]engine.ModelInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.serverURL()+"/api/tags", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", e.UserAgent())
	resp, err := e.Options().Client().Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "could not list ollama models")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return nil, engine.NewProviderError(ProviderID, resp)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, errors.Wrap(err, "could not decode ollama models")
	}
	ret := make([]engine.ModelInfo, 0, len(tags.Models))
	for _, m := range tags.Models {
		vision := false
		for _, f := range m.Details.Families {
			if f == "clip" || f == "mllama" {
				vision = true
			}
		}
		ret = append(ret, engine.ModelInfo{
			ID:             m.Name,
			Name:           m.Name,
			Description:    m.Details.ParameterSize,
			MaxTemperature: 2,
			Vision:         vision,
			Extra: map[string]interface{}{
				"family":       m.Details.Family,
				"size":         m.Size,
				"quantization": m.Details.QuantizationLevel,
			},
		})
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}
