// Package ibge resolves Brazilian municipality codes to place metadata
// using the IBGE localidades API, with an offline DTB spreadsheet fallback.
package ibge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Place is the resolved identity of a municipality.
type Place struct {
	Code string
	Name string
	UF   string // two-letter state abbreviation
}

// Query returns the geocoding query string for the place.
func (p Place) Query() string {
	return fmt.Sprintf("%s, %s, Brasil", p.Name, p.UF)
}

// Resolver maps an IBGE municipality code to a Place.
type Resolver interface {
	Resolve(ctx context.Context, code string) (*Place, error)
}

// municipioResponse mirrors the localidades API payload. The service nests
// the state abbreviation under microrregiao.mesorregiao.UF.
type municipioResponse struct {
	Nome         string `json:"nome"`
	Microrregiao *struct {
		Mesorregiao *struct {
			UF *struct {
				Sigla string `json:"sigla"`
			} `json:"UF"`
		} `json:"mesorregiao"`
	} `json:"microrregiao"`
}

// ClientOptions configures the localidades API client.
type ClientOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// Client resolves municipality codes against the localidades API.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient creates a localidades API client.
func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://servicodados.ibge.gov.br/api/v1"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "viario-cli/1.0"
	}
	return &Client{
		baseURL:   opts.BaseURL,
		userAgent: opts.UserAgent,
		httpClient: &http.Client{
			Timeout: opts.Timeout,
		},
	}
}

// Resolve implements Resolver via GET /localidades/municipios/<code>.
// The API answers with a single object for an exact code, or with an array
// (possibly empty) for some code forms; both shapes are accepted.
func (c *Client) Resolve(ctx context.Context, code string) (*Place, error) {
	reqURL := fmt.Sprintf("%s/localidades/municipios/%s", c.baseURL, code)

	zap.L().Debug("ibge: resolving municipality", zap.String("code", code), zap.String("url", reqURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "ibge: build request")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "ibge: request for code %s", code)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ibge: status %d for code %s, check the municipality code", resp.StatusCode, code)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrapf(err, "ibge: read response for code %s", code)
	}

	return parseMunicipio(body, code)
}

// parseMunicipio decodes a localidades payload, accepting both the
// single-object and the array response shapes.
func parseMunicipio(body []byte, code string) (*Place, error) {
	var m municipioResponse

	if err := json.Unmarshal(body, &m); err != nil {
		var list []municipioResponse
		if listErr := json.Unmarshal(body, &list); listErr != nil {
			return nil, eris.Wrapf(err, "ibge: response for code %s is not valid JSON", code)
		}
		if len(list) == 0 {
			return nil, eris.Errorf("ibge: no municipality returned for code %s", code)
		}
		m = list[0]
	}

	if m.Nome == "" || m.Microrregiao == nil || m.Microrregiao.Mesorregiao == nil ||
		m.Microrregiao.Mesorregiao.UF == nil || m.Microrregiao.Mesorregiao.UF.Sigla == "" {
		return nil, eris.Errorf("ibge: unexpected response structure for code %s", code)
	}

	return &Place{
		Code: code,
		Name: m.Nome,
		UF:   m.Microrregiao.Mesorregiao.UF.Sigla,
	}, nil
}
