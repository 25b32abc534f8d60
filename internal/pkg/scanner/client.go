package scanner

import (
	"bytes"
	"context"
	"encoding/json"
	"fitclub/pkg/response"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Result 服务端核销结果，Code 为 0 时表示入场成功
type Result struct {
	Code            int
	Message         string
	Reason          string
	VisitID         string
	Status          string
	RemainingVisits *int
}

// OK 是否入场成功
func (r *Result) OK() bool {
	return r != nil && r.Code == response.CodeSuccess
}

func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	if r.OK() {
		return "ok visit=" + r.VisitID
	}
	if r.Reason != "" {
		return fmt.Sprintf("code=%d reason=%s", r.Code, r.Reason)
	}
	return fmt.Sprintf("code=%d message=%s", r.Code, r.Message)
}

// scanData 与服务端 CheckInResult 的 JSON 对应
type scanData struct {
	Visit struct {
		ID string `json:"id"`
	} `json:"visit"`
	Membership struct {
		Status          string `json:"status"`
		RemainingVisits *int   `json:"remainingVisits"`
	} `json:"membership"`
}

// HTTPConsumer 调用 POST /checkins/scan 的客户端
type HTTPConsumer struct {
	baseURL    string
	staffToken string
	client     *http.Client
}

func NewHTTPConsumer(baseURL, staffToken string, timeout time.Duration) *HTTPConsumer {
	return &HTTPConsumer{
		baseURL:    strings.TrimRight(baseURL, "/"),
		staffToken: staffToken,
		client:     &http.Client{Timeout: timeout},
	}
}

// Consume 提交入场码。业务拒绝通过 Result 返回，只有网络或协议错误才返回 error
func (c *HTTPConsumer) Consume(ctx context.Context, token string) (*Result, error) {
	body, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/checkins/scan", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.staffToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read scan response: %w", err)
	}

	var envelope struct {
		response.Response
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode scan response (http %d): %w", resp.StatusCode, err)
	}

	res := &Result{Code: envelope.Code, Message: envelope.Message, Reason: envelope.Reason}
	if resp.StatusCode != http.StatusOK && res.Code == response.CodeSuccess {
		return nil, fmt.Errorf("unexpected http status %d", resp.StatusCode)
	}
	if res.OK() && len(envelope.Data) > 0 {
		var data scanData
		if err := json.Unmarshal(envelope.Data, &data); err != nil {
			return nil, fmt.Errorf("decode scan data: %w", err)
		}
		res.VisitID = data.Visit.ID
		res.Status = data.Membership.Status
		res.RemainingVisits = data.Membership.RemainingVisits
	}
	return res, nil
}
