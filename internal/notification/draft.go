// Package notification drafts lender submission messages. The core only
// produces text; transport and attachments are the outer layer's concern, so
// attachments appear by name only.
package notification

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/brokerkit/fundmatch/internal/models"
)

// SubmissionDraft is a ready-to-send submission message.
type SubmissionDraft struct {
	Subject         string   `json:"subject"`
	Body            string   `json:"body"`
	AttachmentNames []string `json:"attachment_names,omitempty"`
}

// Drafter builds submission drafts from match results.
type Drafter struct {
	senderName string
	logger     *zap.Logger
}

// NewDrafter creates a submission drafter.
func NewDrafter(senderName string, logger *zap.Logger) *Drafter {
	return &Drafter{
		senderName: senderName,
		logger:     logger,
	}
}

// BuildSubmission drafts a human-readable submission for one matched lender.
func (d *Drafter) BuildSubmission(app *models.ApplicationRecord, match models.MatchResult, attachmentNames []string) SubmissionDraft {
	var body strings.Builder

	fmt.Fprintf(&body, "Hello,\n\nPlease find below a funding submission for %s.\n\n", app.BusinessName)
	fmt.Fprintf(&body, "Business: %s (%s, %s)\n", app.BusinessName, app.Industry, app.State)
	fmt.Fprintf(&body, "Time in business: %d months\n", app.TimeInBusiness)
	fmt.Fprintf(&body, "Credit score: %d\n", app.CreditScore)
	fmt.Fprintf(&body, "Avg monthly revenue: $%.2f\n", app.AvgMonthlyRevenue)
	fmt.Fprintf(&body, "Avg daily balance: $%.2f\n", app.AvgDailyBalance)
	fmt.Fprintf(&body, "Funding requested: $%.2f\n", app.FundingRequested)
	if app.FundingPurpose != "" {
		fmt.Fprintf(&body, "Use of funds: %s\n", app.FundingPurpose)
	}

	fmt.Fprintf(&body, "\nFit against your criteria: %d%%\n", match.MatchScore)
	for _, reason := range match.MatchReasons {
		fmt.Fprintf(&body, "  - %s\n", reason)
	}

	if len(attachmentNames) > 0 {
		fmt.Fprintf(&body, "\nAttached: %s\n", strings.Join(attachmentNames, ", "))
	}
	fmt.Fprintf(&body, "\nBest regards,\n%s\n", d.senderName)

	draft := SubmissionDraft{
		Subject:         fmt.Sprintf("Funding submission: %s ($%.0f)", app.BusinessName, app.FundingRequested),
		Body:            body.String(),
		AttachmentNames: attachmentNames,
	}

	d.logger.Debug("Built submission draft",
		zap.String("business", app.BusinessName),
		zap.Int64("lender_id", match.LenderID),
		zap.Int("match_score", match.MatchScore))

	return draft
}
