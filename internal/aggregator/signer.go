package aggregator

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	SignPath = "/api/v1/bridge/sign"

	ResponseStatusSuccess = "success"
	ResponseStatusError   = "error"
)

// SignRequest asks one validator to sign the canonical release message
type SignRequest struct {
	RequestID        string `json:"request_id"`
	Message          string `json:"message"`
	DestinationChain string `json:"destination_chain"`
	Recipient        string `json:"recipient"`
	Amount           uint64 `json:"amount"`
	Nonce            uint64 `json:"nonce"`
	OriginSender     string `json:"origin_sender"`
}

type SignResponse struct {
	ValidatorAddress string `json:"validator_address"`
	Signature        string `json:"signature"`
}

// Response is the envelope every validator endpoint answers with
type Response[T any] struct {
	Status string `json:"status"`
	Data   T      `json:"data"`
	Error  string `json:"error,omitempty"`
}

// SignerClient talks to the validator signing service
type SignerClient interface {
	Sign(ctx context.Context, endpoint string, req SignRequest) (*SignResponse, error)
}

// HTTPSigner is the JSON over HTTP SignerClient, requests carry an HS256 bearer when a secret is set
type HTTPSigner struct {
	httpClient *http.Client
	jwtSecret  []byte
}

var _ SignerClient = (*HTTPSigner)(nil)

func NewHTTPSigner(timeout time.Duration, jwtSecret string) *HTTPSigner {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &HTTPSigner{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
	if jwtSecret != "" {
		s.jwtSecret = []byte(jwtSecret)
	}
	return s
}

func (s *HTTPSigner) Sign(ctx context.Context, endpoint string, req SignRequest) (*SignResponse, error) {
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request failed: %w", err)
	}

	signURL := strings.TrimRight(endpoint, "/") + SignPath
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, signURL, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("create request failed: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-Id", req.RequestID)

	if s.jwtSecret != nil {
		token, err := s.bearer(req.RequestID, reqBody)
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sign request returned %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var signResp Response[SignResponse]
	if err := json.Unmarshal(respBody, &signResp); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}
	if signResp.Status != ResponseStatusSuccess {
		return nil, fmt.Errorf("sign failed: %v", signResp.Error)
	}
	return &signResp.Data, nil
}

func (s *HTTPSigner) bearer(requestID string, body []byte) (string, error) {
	bodyHash := sha256.Sum256(body)
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"uri":      SignPath,
		"nonce":    requestID,
		"iat":      now.Unix(),
		"exp":      now.Add(time.Minute).Unix(),
		"bodyHash": hex.EncodeToString(bodyHash[:]),
	})
	signed, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("error signing JWT token: %w", err)
	}
	return signed, nil
}
