// Package routing decides which capability handles an inbound broker email.
// The decision is a pure function of the ledger tail and the negotiation
// state; identical inputs always produce the identical choice.
package routing

import (
	"github.com/zulandar/loadline/internal/capability"
	"github.com/zulandar/loadline/internal/loadstate"
	"github.com/zulandar/loadline/internal/models"
)

// Policy holds router configuration. CompanyQuestionFirst lets a detected
// company question outrank missing required fields; the default keeps
// field collection first.
type Policy struct {
	CompanyQuestionFirst bool
}

// Route maps (ledger tail, negotiation state) to the next capability.
// Precedence, highest first:
//  1. Explicit cancellation request in the latest inbound entry
//  2. Compliance check owed (verified but not yet warning-checked)
//  3. Missing required fields (new/info_requested without full fields)
//  4. Company-information question in the latest inbound entry
//  5. Rate negotiation owed (warning_checked or negotiating)
//
// Steps 3 and 4 swap under Policy.CompanyQuestionFirst. The order is total,
// so every inbound entry maps to exactly one capability; extraction is the
// fallback when nothing else applies.
func Route(tail []models.ConversationEntry, state *models.LoadNegotiation, policy Policy) capability.Name {
	latest := latestInbound(tail)
	status := loadstate.Status(state.Status)

	// 1. Cancellation beats everything, from any state.
	if latest != nil && IsCancellation(latest.Content) {
		return capability.Cancel
	}

	// 2. Compliance always runs before any rate discussion.
	if status == loadstate.StatusVerified {
		return capability.ComplianceCheck
	}

	fieldsOwed := (status == loadstate.StatusNew || status == loadstate.StatusInfoRequested) &&
		!loadstate.RequiredFieldsPresent(state)
	companyQuestion := latest != nil && IsCompanyQuestion(latest.Content)

	if policy.CompanyQuestionFirst {
		if companyQuestion {
			return capability.CompanyInfo
		}
		if fieldsOwed {
			return capability.Extract
		}
	} else {
		if fieldsOwed {
			return capability.Extract
		}
		if companyQuestion {
			return capability.CompanyInfo
		}
	}

	// 5. Rate negotiation owed.
	if status == loadstate.StatusWarningChecked || status == loadstate.StatusNegotiating {
		return capability.Negotiate
	}

	return capability.Extract
}

// latestInbound returns the newest broker entry in the tail, or nil.
func latestInbound(tail []models.ConversationEntry) *models.ConversationEntry {
	for i := len(tail) - 1; i >= 0; i-- {
		if tail[i].Role == models.RoleBroker {
			return &tail[i]
		}
	}
	return nil
}
