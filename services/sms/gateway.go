package smssvc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/shule/core"
)

const gatewayProvider = "gateway"

type (
	// gatewaySender posts messages to an HTTP SMS gateway:
	//
	//	POST <GatewayURL>/messages  {"to": "...", "from": "<SenderID>", "text": "..."}
	//	200|201|202                 {"id": "..."}
	gatewaySender struct {
		baseURL  string
		apiKey   string
		senderID string
	}

	gatewayRequest struct {
		To   string `json:"to"`
		From string `json:"from"`
		Text string `json:"text"`
	}

	gatewayResponse struct {
		ID    string `json:"id"`
		Error string `json:"error"`
	}
)

var _ core.SmsSender = (*gatewaySender)(nil)

func NewGatewaySender(conf *core.Config) core.SmsSender {
	return &gatewaySender{
		baseURL:  strings.TrimSuffix(conf.Sms.GatewayURL, "/"),
		apiKey:   conf.Sms.ApiKey,
		senderID: conf.Sms.SenderID,
	}
}

// Send makes a single delivery attempt.
func (s *gatewaySender) Send(ctx context.Context, msg core.SmsMessage) (core.SmsReceipt, error) {
	receipt := core.SmsReceipt{Provider: gatewayProvider}

	body, err := json.Marshal(gatewayRequest{To: msg.To, From: s.senderID, Text: msg.Body})
	if err != nil {
		return receipt, errors.Wrap(err, "encoding sms")
	}
	req := rest.Request{
		Method:  rest.Post,
		BaseURL: s.baseURL + "/messages",
		Headers: map[string]string{
			"Authorization": "Bearer " + s.apiKey,
			"Content-Type":  "application/json",
			"Accept":        "application/json",
		},
		Body: body,
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return receipt, errors.Wrap(err, "calling sms gateway")
	}

	var gwRes gatewayResponse
	_ = json.Unmarshal([]byte(res.Body), &gwRes)
	if res.StatusCode >= http.StatusBadRequest {
		reason := gwRes.Error
		if reason == "" {
			reason = http.StatusText(res.StatusCode)
		}
		return receipt, fmt.Errorf("sms gateway: %d %s", res.StatusCode, reason)
	}
	receipt.MessageID = gwRes.ID
	return receipt, nil
}
