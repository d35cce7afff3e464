package main

import (
	"github.com/slack-go/slack"
)

// slackSender posts the chat report to a Slack channel. The destination is a
// channel ID.
type slackSender struct {
	api *slack.Client
}

var _ ChatSender = (*slackSender)(nil)

func newSlackSender(botToken string) *slackSender {
	return &slackSender{api: slack.New(botToken)}
}

func (s *slackSender) Send(text, destination string) error {
	_, _, err := s.api.PostMessage(destination, slack.MsgOptionText(text, false))
	if err != nil {
		return &DeliveryError{Channel: "slack", Err: err}
	}
	return nil
}
