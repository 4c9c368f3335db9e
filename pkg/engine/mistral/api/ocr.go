package api

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	OCRModel   = "mistral-ocr-latest"
	PurposeOCR = "ocr"
)

type File struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Bytes    int64  `json:"bytes"`
	Purpose  string `json:"purpose"`
}

// UploadFile sends content as a multipart upload for purpose.
func (c *Client) UploadFile(ctx context.Context, name string, content io.Reader, purpose string) (*File, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", purpose); err != nil {
		return nil, err
	}
	fw, err := mw.CreateFormFile("file", name)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, content); err != nil {
		return nil, errors.Wrapf(err, "could not read %s", name)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/v1/files", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var ret File
	if err := decode(resp, &ret); err != nil {
		return nil, err
	}
	log.Debug().Str("id", ret.ID).Str("file", name).Msg("uploaded file to mistral")
	return &ret, nil
}

// SignedURL returns a temporary download URL of an uploaded file.
func (c *Client) SignedURL(ctx context.Context, fileID string) (string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/v1/files/"+url.PathEscape(fileID)+"/url?expiry=24", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	var ret struct {
		URL string `json:"url"`
	}
	if err := decode(resp, &ret); err != nil {
		return "", err
	}
	if ret.URL == "" {
		return "", errors.Errorf("no signed url for file %s", fileID)
	}
	return ret.URL, nil
}

type OCRDocument struct {
	Type        ContentType `json:"type"`
	DocumentURL string      `json:"document_url,omitempty"`
	ImageURL    string      `json:"image_url,omitempty"`
}

type OCRRequest struct {
	Model              string      `json:"model"`
	Document           OCRDocument `json:"document"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

type OCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

type OCRResponse struct {
	Model string    `json:"model"`
	Pages []OCRPage `json:"pages"`
}

func (c *Client) OCR(ctx context.Context, req *OCRRequest) (*OCRResponse, error) {
	if req.Model == "" {
		req.Model = OCRModel
	}
	resp, err := c.postJSON(ctx, "/v1/ocr", req)
	if err != nil {
		return nil, err
	}
	var ret OCRResponse
	if err := decode(resp, &ret); err != nil {
		return nil, err
	}
	log.Debug().Str("model", ret.Model).Int("pages", len(ret.Pages)).Msg("mistral ocr")
	return &ret, nil
}
