package infomaniak

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/basilisk/pkg/engine"
	"github.com/go-go-golems/basilisk/pkg/engine/openai"
)

const ProviderID = "infomaniak"

var ErrProductNotFound = errors.New("no infomaniak ai product found")

// New builds an engine for the Infomaniak AI tools. The API is OpenAI
// compatible once the account's product id is known.
func New(account *engine.Account, options ...engine.Option) (engine.Engine, error) {
	return openai.NewWithConfig(account, openai.Config{
		ProviderID:   ProviderID,
		Capabilities: engine.CapabilityText | engine.CapabilityImage,
		Formats:      []string{"image/png", "image/jpeg", "image/gif", "image/webp"},
		Catalog: func(*openai.Engine) engine.CatalogFunc {
			return func(context.Context) ([]engine.ModelInfo, error) {
				return models(), nil
			}
		},
		BaseURL: productBaseURL,
	}, options...)
}

type productsResponse struct {
	Data []struct {
		ProductID json.Number `json:"product_id"`
	} `json:"data"`
}

func productBaseURL(ctx context.Context, e *openai.Engine) (string, error) {
	base := strings.TrimRight(e.Account().EffectiveBaseURL(), "/")
	id, err := ProductID(ctx, e.Options().Client(), base, e.Account().APIKey.Value(), e.UserAgent())
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/%s/openai", base, id), nil
}

// ProductID looks up the single AI product of the account.
func ProductID(ctx context.Context, client *http.Client, baseURL string, apiKey string, userAgent string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	if userAgent != "" {
		req.Header.Set("User-Agent", userAgent)
	}

	log.Debug().Str("url", baseURL).Msg("getting infomaniak product id")
	resp, err := client.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "could not list infomaniak products")
	}
	defer func(Body io.ReadCloser) {
		_ = Body.Close()
	}(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return "", engine.NewProviderError(ProviderID, resp)
	}

	var products productsResponse
	if err := json.NewDecoder(resp.Body).Decode(&products); err != nil {
		return "", errors.Wrap(err, "could not decode infomaniak products")
	}
	switch {
	case len(products.Data) == 0:
		return "", ErrProductNotFound
	case len(products.Data) > 1:
		return "", errors.Errorf("multiple infomaniak products found (%d)", len(products.Data))
	case products.Data[0].ProductID == "":
		return "", errors.Wrap(ErrProductNotFound, "product_id missing from response")
	}
	return products.Data[0].ProductID.String(), nil
}

func models() []engine.ModelInfo {
	return []engine.ModelInfo{
		{
			ID:              "llama3",
			Name:            "LLama 3 70B",
			Description:     "Handles large amounts of text consistently across sources",
			ContextWindow:   126000,
			MaxOutputTokens: 8000,
			MaxTemperature:  2,
		},
		{
			ID:              "mixtral8x22b",
			Name:            "Mixtral 8x22B",
			Description:     "Larger training corpus than Mixtral 8x7B for complex tasks",
			ContextWindow:   23000,
			MaxOutputTokens: 23000,
			MaxTemperature:  2,
		},
		{
			ID:              "mixtral",
			Name:            "Mixtral 8x7B",
			Description:     "Economical and very fast for many common tasks",
			ContextWindow:   30000,
			MaxOutputTokens: 30000,
			MaxTemperature:  2,
		},
	}
}
