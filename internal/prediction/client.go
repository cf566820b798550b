package prediction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

// ErrUnavailable: o serviço de predição não respondeu ou respondeu mal.
// O chamador trata como "sem palpite", nunca como falha do fluxo.
var ErrUnavailable = errors.New("prediction service unavailable")

// Prediction é o palpite do modelo pra um confronto.
type Prediction struct {
	HomeTeam    string  `json:"home_team"`
	AwayTeam    string  `json:"away_team"`
	Winner      string  `json:"winner"`     // "home" | "away"
	Confidence  float64 `json:"confidence"` // 0..1
	ModelName   string  `json:"model_name"`
	GeneratedAt string  `json:"generated_at"`
}

// Client consulta o serviço externo de predição via HTTP.
type Client struct {
	base string
	http *http.Client
	log  *zap.Logger
}

func NewClient(base string, log *zap.Logger) *Client {
	return &Client{
		base: base,
		http: &http.Client{Timeout: 5 * time.Second},
		log:  log,
	}
}

// Predict busca o palpite para um confronto. Qualquer falha de rede ou
// payload vira ErrUnavailable.
func (c *Client) Predict(ctx context.Context, homeTeam, awayTeam string) (*Prediction, error) {
	u := fmt.Sprintf("%s/predict?home=%s&away=%s",
		c.base, url.QueryEscape(homeTeam), url.QueryEscape(awayTeam))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("prediction request failed", zap.Error(err))
		return nil, ErrUnavailable
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("prediction bad status", zap.Int("status", resp.StatusCode))
		return nil, ErrUnavailable
	}

	var p Prediction
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, ErrUnavailable
	}
	if p.Winner != "home" && p.Winner != "away" {
		return nil, ErrUnavailable
	}
	if p.Confidence < 0 || p.Confidence > 1 {
		return nil, ErrUnavailable
	}
	return &p, nil
}
