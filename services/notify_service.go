package services

import (
	pubnub "github.com/pubnub/go"
)

// Notifier pushes out-of-band events to a user's private channel.
type Notifier interface {
	NotifyUser(userID string, message map[string]any)
}

// PubNubNotifier publishes to user-<id> channels.
type PubNubNotifier struct {
	pn *pubnub.PubNub
}

func NewPubNubNotifier(pn *pubnub.PubNub) *PubNubNotifier {
	return &PubNubNotifier{pn: pn}
}

func (n *PubNubNotifier) NotifyUser(userID string, message map[string]any) {
	if n.pn == nil {
		return
	}
	n.pn.Publish().
		Channel("user-" + userID).
		Message(message).
		Execute()
}
