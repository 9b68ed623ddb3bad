// Package composer turns a capability's structured result into the single
// outbound message for an inbound email. Every compose function returns
// exactly one message; the orchestrator appends the matching ledger entry.
package composer

import (
	"fmt"
	"strings"
)

// Message is one outbound reply plus the capability tag recorded on its
// ledger entry.
type Message struct {
	Subject       string
	Body          string
	CapabilityTag string
}

// replySubject prefixes the thread subject the way a mail client would.
func replySubject(subject string) string {
	if subject == "" {
		return "Load inquiry"
	}
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}

// InfoRequest asks the broker for the load fields still missing.
func InfoRequest(subject string, missing []string) Message {
	labels := map[string]string{
		"origin":      "pickup location",
		"destination": "delivery location",
		"weight":      "weight",
		"equipment":   "equipment type",
	}
	var asks []string
	for _, field := range missing {
		if l, ok := labels[field]; ok {
			asks = append(asks, l)
		} else {
			asks = append(asks, field)
		}
	}
	body := fmt.Sprintf(
		"Thanks for the details. To get this moving I still need the %s. Send those over and I can confirm our truck and talk rate.",
		joinNatural(asks))
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "info_request"}
}

// RateRequest asks the broker to name a rate once the load checks out.
func RateRequest(subject string, body string) Message {
	if body == "" {
		body = "The load works for our truck. What rate are you offering on this one?"
	}
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "rate_request"}
}

// CounterOffer states the counter rate. A drafted body from the negotiate
// capability is used when present; the template is the fallback wording.
func CounterOffer(subject string, ratePerMile, totalRate float64, draftedBody string) Message {
	body := draftedBody
	if body == "" {
		body = fmt.Sprintf("We can move this one at $%.2f per mile", ratePerMile)
		if totalRate > 0 {
			body += fmt.Sprintf(" ($%.2f all in)", totalRate)
		}
		body += ". That covers the deadhead and keeps us on schedule for delivery. Let me know and we'll get it set up."
	}
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "counter_offer"}
}

// Acceptance confirms the broker's rate and asks for the rate confirmation.
func Acceptance(subject string, ratePerMile, totalRate float64) Message {
	body := fmt.Sprintf("That works. We'll take it at $%.2f per mile", ratePerMile)
	if totalRate > 0 {
		body += fmt.Sprintf(" ($%.2f total)", totalRate)
	}
	body += ". Please send the rate confirmation and we'll get the driver rolling."
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "acceptance"}
}

// RejectionBelowFloor declines a rate under the carrier's floor.
func RejectionBelowFloor(subject string, brokerRate float64) Message {
	body := fmt.Sprintf(
		"Appreciate the offer, but $%.2f per mile doesn't work on this lane. If the rate moves up, we'd be glad to take another look.",
		brokerRate)
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "rejection"}
}

// RejectionCompliance declines a load the truck cannot legally or
// physically take.
func RejectionCompliance(subject string, reasons []string) Message {
	body := "After checking the details against our equipment, we have to pass on this one"
	if len(reasons) > 0 {
		body += ": " + joinNatural(reasons)
	}
	body += ". Thanks for thinking of us — keep us in mind for the next load."
	return Message{Subject: replySubject(subject), Body: body, CapabilityTag: "rejection"}
}

// RejectionExhausted closes out a negotiation that ran out of rounds.
func RejectionExhausted(subject string) Message {
	return Message{
		Subject:       replySubject(subject),
		Body:          "It looks like we're too far apart on rate for this one, so we'll have to pass. Keep us posted on future loads out of that area.",
		CapabilityTag: "rejection",
	}
}

// CancellationAck acknowledges the broker pulling the load.
func CancellationAck(subject string) Message {
	return Message{
		Subject:       replySubject(subject),
		Body:          "Understood, we'll close this one out on our end. Thanks for the update — reach out any time you have freight on our lanes.",
		CapabilityTag: "cancellation",
	}
}

// CompanyAnswer relays the company-info capability's answer.
func CompanyAnswer(subject, answer string) Message {
	if answer == "" {
		answer = "Let me confirm that on our end and get right back to you."
	}
	return Message{Subject: replySubject(subject), Body: answer, CapabilityTag: "company_info"}
}

// Holding is the neutral reply sent when a capability is transiently
// unavailable. It commits to nothing so the same inbound email can be
// safely reprocessed.
func Holding(subject string) Message {
	return Message{
		Subject:       replySubject(subject),
		Body:          "We received your message and are reviewing it. We'll get back to you shortly.",
		CapabilityTag: "holding",
	}
}

// joinNatural joins items with commas and a final "and".
func joinNatural(items []string) string {
	switch len(items) {
	case 0:
		return ""
	case 1:
		return items[0]
	case 2:
		return items[0] + " and " + items[1]
	}
	return strings.Join(items[:len(items)-1], ", ") + " and " + items[len(items)-1]
}
