package email

import "fmt"

type Template string

const (
	TemplatePartnerApproved     Template = "partner_approved"
	TemplatePartnerBanned       Template = "partner_banned"
	TemplatePartnerInvited      Template = "partner_invited"
	TemplateApplicationReceived Template = "application_received"
	TemplateNewCommission       Template = "new_commission"
	TemplatePayoutSent          Template = "payout_sent"
	TemplateNewMessage          Template = "new_message"
)

// Templates lists every template shipped in templates/.
var Templates = []Template{
	TemplatePartnerApproved,
	TemplatePartnerBanned,
	TemplatePartnerInvited,
	TemplateApplicationReceived,
	TemplateNewCommission,
	TemplatePayoutSent,
	TemplateNewMessage,
}

// Subject builds the subject line for t from the same data the body uses.
func Subject(t Template, data map[string]string) string {
	program := data["ProgramName"]
	switch t {
	case TemplatePartnerApproved:
		return fmt.Sprintf("Your application to join %s has been approved", program)
	case TemplatePartnerBanned:
		return fmt.Sprintf("You have been banned from the %s partner program", program)
	case TemplatePartnerInvited:
		return fmt.Sprintf("You've been invited to join %s", program)
	case TemplateApplicationReceived:
		return fmt.Sprintf("New partner application for %s", program)
	case TemplateNewCommission:
		return fmt.Sprintf("You just earned %s from %s", data["Earnings"], program)
	case TemplatePayoutSent:
		return fmt.Sprintf("You've been paid %s by %s", data["Amount"], program)
	case TemplateNewMessage:
		return fmt.Sprintf("New message from %s", data["SenderName"])
	default:
		return "Notification from Partners"
	}
}

// SendTemplate sends t to a single recipient with its standard subject.
func (c *Client) SendTemplate(to string, t Template, data map[string]string) error {
	return c.SendEmail(to, Subject(t, data), t, data)
}
