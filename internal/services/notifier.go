package services

import (
	"fmt"
	"log/slog"

	"event-workflow/utils"

	pubnub "github.com/pubnub/go"
)

// Decision notification types sent to department channels.
const (
	NoticeRequestApproved     = "request_approved"
	NoticeRequestAutoRejected = "request_auto_rejected"
	NoticeRequestRejected     = "request_rejected"
	NoticeEventCancelled      = "event_cancelled"
	NoticeEventPostponed      = "event_postponed"
	NoticeEventCompleted      = "event_completed"
)

// Notifier tells a department about a decision on one of its records.
// Delivery is best effort and never changes the outcome of the decision.
type Notifier interface {
	Notify(departmentID, kind string, payload map[string]any)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, string, map[string]any) {}

// NopNotifier drops every notification.
func NopNotifier() Notifier {
	return nopNotifier{}
}

type notificationTracker interface {
	TrackNotification(kind, status string)
}

// PubNubNotifier publishes decisions on "department-<id>" channels. A circuit
// breaker keeps a failing PubNub from slowing every approval down.
type PubNubNotifier struct {
	pn      *pubnub.PubNub
	breaker *utils.CircuitBreaker
	monitor notificationTracker
}

func NewPubNubNotifier(pn *pubnub.PubNub, breaker *utils.CircuitBreaker, monitor notificationTracker) *PubNubNotifier {
	return &PubNubNotifier{pn: pn, breaker: breaker, monitor: monitor}
}

func DepartmentChannel(departmentID string) string {
	return fmt.Sprintf("department-%s", departmentID)
}

func (n *PubNubNotifier) Notify(departmentID, kind string, payload map[string]any) {
	if departmentID == "" {
		return
	}

	msg := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		msg[k] = v
	}
	msg["type"] = kind

	channel := DepartmentChannel(departmentID)
	err := n.breaker.Execute(func() error {
		_, _, err := n.pn.Publish().
			Channel(channel).
			Message(msg).
			Execute()
		return err
	})
	if err != nil {
		slog.Warn("Failed to publish notification", "channel", channel, "type", kind, "error", err)
		n.track(kind, "failed")
		return
	}
	n.track(kind, "sent")
}

func (n *PubNubNotifier) track(kind, status string) {
	if n.monitor != nil {
		n.monitor.TrackNotification(kind, status)
	}
}
