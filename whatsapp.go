package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
)

const defaultMetaGraphAPIBase = "https://graph.facebook.com/v18.0"

// ChatSender delivers one chat message to one destination. WhatsApp and Slack
// both implement it; the broadcast loop does not care which.
type ChatSender interface {
	Send(text, destination string) error
}

// WhatsAppClient sends text messages through the Meta WhatsApp Business API.
// Completely headless; works from CI without a browser.
type WhatsAppClient struct {
	AccessToken   string
	PhoneNumberID string
	BaseURL       string // defaults to the Meta Graph API; overridable in tests
}

var _ ChatSender = (*WhatsAppClient)(nil)

type whatsappTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type whatsappSendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send posts one text message. The Meta API expects numbers without the "+"
// prefix.
func (c *WhatsAppClient) Send(text, destination string) error {
	phone := strings.TrimPrefix(strings.TrimSpace(destination), "+")

	payload := whatsappTextPayload{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
	}
	payload.Text.Body = text

	body, err := json.Marshal(payload)
	if err != nil {
		return &DeliveryError{Channel: "whatsapp", Err: fmt.Errorf("encoding payload: %w", err)}
	}

	base := c.BaseURL
	if base == "" {
		base = defaultMetaGraphAPIBase
	}
	apiURL := fmt.Sprintf("%s/%s/messages", strings.TrimRight(base, "/"), c.PhoneNumberID)

	req, err := http.NewRequest("POST", apiURL, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Channel: "whatsapp", Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.AccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := externalHTTPClient.Do(req)
	if err != nil {
		return &DeliveryError{Channel: "whatsapp", Err: fmt.Errorf("executing request: %w", err)}
	}

	respBody, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return &DeliveryError{Channel: "whatsapp", Err: fmt.Errorf("reading response: %w", err)}
	}
	if resp.StatusCode != http.StatusOK {
		return &DeliveryError{Channel: "whatsapp", Err: fmt.Errorf("Meta API returned %d: %s", resp.StatusCode, string(respBody))}
	}

	messageID := "unknown"
	var result whatsappSendResponse
	if err := json.Unmarshal(respBody, &result); err == nil && len(result.Messages) > 0 && result.Messages[0].ID != "" {
		messageID = result.Messages[0].ID
	}
	log.Printf("WhatsApp message sent to +%s (id=%s)", phone, messageID)
	return nil
}

// BroadcastChat sends the message to each destination in turn. Each send
// completes before the next begins; failures are logged and do not stop the
// remaining destinations. Returns how many sends succeeded out of the total.
func BroadcastChat(sender ChatSender, text string, destinations []string) (sent, total int) {
	total = len(destinations)
	for _, dest := range destinations {
		if err := sender.Send(text, dest); err != nil {
			log.Printf("Error sending chat message to %s: %v", dest, err)
			continue
		}
		sent++
	}
	log.Printf("Chat messages sent to %d/%d recipients", sent, total)
	return sent, total
}
